// internal/service/transaction/transaction_service.go
package transaction

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/transaction"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	List(ctx context.Context, businessID uuid.UUID, filters *transaction.TransactionListFilters) ([]transaction.Transaction, int64, error)
}

type TransactionService struct {
	repo   Repository
	logger *zap.Logger
}

func NewTransactionService(repo Repository, logger *zap.Logger) *TransactionService {
	return &TransactionService{repo: repo, logger: logger}
}

// List returns a page of a business's transactions. A non-nil customerID
// restricts the page to that customer and overrides any filter value.
func (s *TransactionService) List(ctx context.Context, businessID uuid.UUID, customerID *uuid.UUID, filters *transaction.TransactionListFilters) (*transaction.TransactionListResponse, error) {
	if customerID != nil {
		filters.CustomerID = customerID
	}

	switch transaction.TransactionStatus(filters.Status) {
	case "", transaction.StatusPending, transaction.StatusCompleted, transaction.StatusFailed:
	default:
		return nil, xerrors.Invalid("Invalid status filter %q", filters.Status)
	}

	if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return nil, xerrors.Invalid("'to' date must not be before 'from' date")
	}

	items, total, err := s.repo.List(ctx, businessID, filters)
	if err != nil {
		s.logger.Error("failed to list transactions", zap.String("business_id", businessID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	pages := 0
	if filters.PageSize > 0 {
		pages = int((total + int64(filters.PageSize) - 1) / int64(filters.PageSize))
	}

	return &transaction.TransactionListResponse{
		Transactions: items,
		Total:        total,
		Page:         filters.Page,
		PageSize:     filters.PageSize,
		TotalPages:   pages,
	}, nil
}
