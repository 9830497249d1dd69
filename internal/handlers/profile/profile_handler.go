// internal/handlers/profile/profile_handler.go
package profile

import (
	"net/http"

	"tuzo-service/internal/domain/profile"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	service "tuzo-service/internal/service/profile"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// Me returns the caller's profile and dashboard
func (h *ProfileHandler) Me(c *gin.Context) {
	result, err := h.profileService.Dashboard(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to load profile", err)
		return
	}

	response.Success(c, http.StatusOK, "profile retrieved", result)
}

func (h *ProfileHandler) LinkCustomer(c *gin.Context) {
	var req profile.LinkCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.profileService.LinkCustomer(c.Request.Context(), middleware.MustGetUserID(c), middleware.GetVerifiedPhone(c), &req)
	if err != nil {
		response.FromError(c, "failed to link customer", err)
		return
	}

	response.Success(c, http.StatusOK, "customer linked successfully", result)
}
