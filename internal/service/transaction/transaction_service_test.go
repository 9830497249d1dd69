package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"tuzo-service/internal/domain/transaction"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type recordingRepo struct {
	got *transaction.TransactionListFilters
}

func (r *recordingRepo) List(ctx context.Context, businessID uuid.UUID, filters *transaction.TransactionListFilters) ([]transaction.Transaction, int64, error) {
	r.got = filters
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	return []transaction.Transaction{{ID: uuid.New()}}, 41, nil
}

func TestListScopesToCustomer(t *testing.T) {
	repo := &recordingRepo{}
	svc := NewTransactionService(repo, zap.NewNop())

	self := uuid.New()
	other := uuid.New()
	resp, err := svc.List(context.Background(), uuid.New(), &self, &transaction.TransactionListFilters{CustomerID: &other})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if *repo.got.CustomerID != self {
		t.Fatal("customer scope was not enforced")
	}
	if resp.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3", resp.TotalPages)
	}
}

func TestListRejectsBadFilters(t *testing.T) {
	svc := NewTransactionService(&recordingRepo{}, zap.NewNop())
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)

	tests := []transaction.TransactionListFilters{
		{Status: "refunded"},
		{From: &from, To: &to},
	}
	for _, f := range tests {
		f := f
		if _, err := svc.List(context.Background(), uuid.New(), nil, &f); !errors.Is(err, xerrors.ErrInvalidInput) {
			t.Fatalf("filters %+v: expected invalid input, got %v", f, err)
		}
	}
}
