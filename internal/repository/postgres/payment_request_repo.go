// internal/repository/postgres/payment_request_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/payment"

	"github.com/jackc/pgx/v5"
)

const paymentRequestColumns = `
	id, business_id, customer_id, phone, amount, description, checkout_request_id,
	merchant_request_id, status, result_code, result_desc, created_at, completed_at
`

type PaymentRequestRepository struct {
	db *DB
}

func NewPaymentRequestRepository(db *DB) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

// CreatePending stores req and, when task is non-nil, enqueues it in the same transaction.
func (r *PaymentRequestRepository) CreatePending(ctx context.Context, req *payment.Request, task *outbox.Task) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO payment_requests (
				id, business_id, customer_id, phone, amount, description,
				checkout_request_id, merchant_request_id, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
			RETURNING created_at
		`
		err := tx.QueryRow(ctx, query,
			req.ID, req.BusinessID, req.CustomerID, req.Phone, req.Amount, req.Description,
			req.CheckoutRequestID, req.MerchantRequestID,
		).Scan(&req.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create payment request: %w", err)
		}
		req.Status = payment.RequestPending

		if task != nil {
			if err := enqueueTaskTx(ctx, tx, task); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PaymentRequestRepository) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*payment.Request, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE checkout_request_id = $1`

	var p payment.Request
	err := r.db.Pool().QueryRow(ctx, query, checkoutRequestID).Scan(
		&p.ID, &p.BusinessID, &p.CustomerID, &p.Phone, &p.Amount, &p.Description, &p.CheckoutRequestID,
		&p.MerchantRequestID, &p.Status, &p.ResultCode, &p.ResultDesc, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, mapNoRows(err, "Payment request not found")
	}
	return &p, nil
}

// MarkFailed reports false when the request had already reached a final state.
// Expired requests may still be failed by a late callback.
func (r *PaymentRequestRepository) MarkFailed(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) (bool, error) {
	query := `
		UPDATE payment_requests
		SET status = 'failed', result_code = $1, result_desc = $2, completed_at = NOW()
		WHERE checkout_request_id = $3 AND status IN ('pending', 'expired')
	`
	result, err := r.db.Pool().Exec(ctx, query, resultCode, resultDesc, checkoutRequestID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment request failed: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ExpirePending marks requests created before olderThan that never got a callback.
func (r *PaymentRequestRepository) ExpirePending(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE payment_requests
		SET status = 'expired'
		WHERE status = 'pending' AND created_at < $1
	`
	result, err := r.db.Pool().Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to expire payment requests: %w", err)
	}
	return result.RowsAffected(), nil
}

func completePaymentRequestTx(ctx context.Context, tx pgx.Tx, checkoutRequestID string, resultCode int, resultDesc string) error {
	query := `
		UPDATE payment_requests
		SET status = 'completed', result_code = $1, result_desc = $2, completed_at = NOW()
		WHERE checkout_request_id = $3
	`
	_, err := tx.Exec(ctx, query, resultCode, resultDesc, checkoutRequestID)
	return err
}
