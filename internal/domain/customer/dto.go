// internal/domain/customer/dto.go
package customer

import "github.com/google/uuid"

type RegisterCustomerRequest struct {
	BusinessID uuid.UUID `json:"business_id" binding:"required"`
	FullName   string    `json:"full_name" binding:"required,max=120"`
	Phone      string    `json:"phone" binding:"required"`
	Email      string    `json:"email" binding:"omitempty,email"`
}

type LookupRequest struct {
	BusinessID string `form:"business_id" binding:"required,uuid"`
	Phone      string `form:"phone" binding:"required"`
}

type LookupResponse struct {
	Exists   bool      `json:"exists"`
	Phone    string    `json:"phone"`
	Customer *Customer `json:"customer,omitempty"`
}

type CustomerListFilters struct {
	Search    string `form:"search"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}

type CustomerListResponse struct {
	Customers  []Customer `json:"customers"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
