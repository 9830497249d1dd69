// internal/handlers/business/business_handler.go
package business

import (
	"net/http"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	service "tuzo-service/internal/service/business"

	"github.com/gin-gonic/gin"
)

type BusinessHandler struct {
	businessService *service.BusinessService
}

func NewBusinessHandler(businessService *service.BusinessService) *BusinessHandler {
	return &BusinessHandler{businessService: businessService}
}

// CreateBusiness registers a business owned by the caller
func (h *BusinessHandler) CreateBusiness(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req business.CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.businessService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, "failed to create business", err)
		return
	}

	response.Success(c, http.StatusCreated, "business created successfully", result)
}

func (h *BusinessHandler) GetMyBusiness(c *gin.Context) {
	result, err := h.businessService.Get(c.Request.Context(), middleware.MustGetBusinessID(c))
	if err != nil {
		response.FromError(c, "failed to get business", err)
		return
	}

	response.Success(c, http.StatusOK, "business retrieved", result)
}

// UpdateMyBusiness updates profile and loyalty settings
func (h *BusinessHandler) UpdateMyBusiness(c *gin.Context) {
	var req business.UpdateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.businessService.Update(c.Request.Context(), middleware.MustGetBusinessID(c), &req)
	if err != nil {
		response.FromError(c, "failed to update business", err)
		return
	}

	response.Success(c, http.StatusOK, "business updated successfully", result)
}

func (h *BusinessHandler) GetStats(c *gin.Context) {
	result, err := h.businessService.Stats(c.Request.Context(), middleware.MustGetBusinessID(c))
	if err != nil {
		response.FromError(c, "failed to get stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats retrieved", result)
}
