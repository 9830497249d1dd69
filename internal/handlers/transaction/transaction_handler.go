// internal/handlers/transaction/transaction_handler.go
package transaction

import (
	"net/http"

	"tuzo-service/internal/domain/transaction"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	service "tuzo-service/internal/service/transaction"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// ListTransactions lists the business's transactions; customers only see their own
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	var filters transaction.TransactionListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}
	if filters.Customer != "" {
		id, err := uuid.Parse(filters.Customer)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid customer ID", err)
			return
		}
		filters.CustomerID = &id
	}

	result, err := h.transactionService.List(
		c.Request.Context(),
		middleware.MustGetBusinessID(c),
		middleware.CustomerScope(c),
		&filters,
	)
	if err != nil {
		response.FromError(c, "failed to list transactions", err)
		return
	}

	response.Success(c, http.StatusOK, "transactions retrieved", result)
}
