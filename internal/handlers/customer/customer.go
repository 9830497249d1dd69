// internal/handlers/customer/customer.go
package customer

import (
	"net/http"

	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	service "tuzo-service/internal/service/customer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CustomerHandler struct {
	customerService *service.CustomerService
}

func NewCustomerHandler(customerService *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
	}
}

// ========== Public Endpoints ==========

// Register signs a customer up at a business
func (h *CustomerHandler) Register(c *gin.Context) {
	var req customer.RegisterCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.customerService.Register(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to register customer", err)
		return
	}

	response.Success(c, http.StatusCreated, "customer registered successfully", result)
}

// Lookup verifies whether a phone is registered at a business
func (h *CustomerHandler) Lookup(c *gin.Context) {
	var req customer.LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid business ID", err)
		return
	}

	result, err := h.customerService.Lookup(c.Request.Context(), businessID, req.Phone)
	if err != nil {
		response.FromError(c, "failed to look up customer", err)
		return
	}

	message := "customer not registered"
	if result.Exists {
		message = "customer found"
	}
	response.Success(c, http.StatusOK, message, result)
}

// ========== Owner Endpoints ==========

// ListCustomers lists the caller's customers
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	businessID := middleware.MustGetBusinessID(c)

	var filters customer.CustomerListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.customerService.List(c.Request.Context(), businessID, &filters)
	if err != nil {
		response.FromError(c, "failed to list customers", err)
		return
	}

	response.Success(c, http.StatusOK, "customers retrieved", result)
}

// GetCustomer retrieves one of the caller's customers
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	businessID := middleware.MustGetBusinessID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
		return
	}

	result, err := h.customerService.Get(c.Request.Context(), businessID, id)
	if err != nil {
		response.FromError(c, "customer not found", err)
		return
	}

	response.Success(c, http.StatusOK, "customer retrieved", result)
}
