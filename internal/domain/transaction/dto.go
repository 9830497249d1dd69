// internal/domain/transaction/dto.go
package transaction

import (
	"time"

	"github.com/google/uuid"
)

type TransactionListFilters struct {
	Customer   string     `form:"customer_id" binding:"omitempty,uuid"`
	CustomerID *uuid.UUID `form:"-"`
	Status     string     `form:"status"`
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	PageSize     int           `json:"page_size"`
	TotalPages   int           `json:"total_pages"`
}
