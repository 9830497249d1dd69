// internal/repository/postgres/transaction_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tuzo-service/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `
	id, business_id, customer_id, amount, points_awarded, checkout_request_id,
	mpesa_receipt, phone, status, metadata, created_at
`

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// List returns completed and failed transactions of a business, newest first.
func (r *TransactionRepository) List(ctx context.Context, businessID uuid.UUID, filters *transaction.TransactionListFilters) ([]transaction.Transaction, int64, error) {
	conditions := []string{"business_id = $1"}
	args := []interface{}{businessID}
	argPos := 2

	if filters.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filters.CustomerID)
		argPos++
	}

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filters.Status)
		argPos++
	}

	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filters.From)
		argPos++
	}

	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d::date + 1", argPos))
		args = append(args, *filters.To)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions WHERE %s", whereClause)
	var total int64
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	limit, offset := normalizePage(&filters.Page, &filters.PageSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, transactionColumns, whereClause, argPos, argPos+1)

	args = append(args, limit, offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []transaction.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, *t)
	}

	return transactions, total, rows.Err()
}

func (r *TransactionRepository) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE checkout_request_id = $1`
	t, err := scanTransaction(r.db.Pool().QueryRow(ctx, query, checkoutRequestID))
	if err != nil {
		return nil, mapNoRows(err, "Transaction not found")
	}
	return t, nil
}

// insertTransactionQuery stores the points calculate_points derives from the
// business's current rate, so the ledger and the database agree on the award.
// Only the checkout reference is an idempotency key; a receipt collision is an
// error, not a duplicate.
const insertTransactionQuery = `
	INSERT INTO transactions (
		id, business_id, customer_id, amount, points_awarded, checkout_request_id,
		mpesa_receipt, phone, status, metadata, created_at
	)
	SELECT $1::uuid, b.id, $3::uuid, $4::numeric, calculate_points($4::numeric, b.points_per_shilling),
		$5::text, $6::text, $7::text, $8::text, $9::jsonb, $10::timestamptz
	FROM businesses b
	WHERE b.id = $2
	ON CONFLICT (checkout_request_id) DO NOTHING
	RETURNING points_awarded, created_at
`

// insertTransactionTx reports false when the checkout reference has already
// been recorded. t.PointsAwarded is replaced by the stored value.
func insertTransactionTx(ctx context.Context, tx pgx.Tx, t *transaction.Transaction) (bool, error) {
	var metadataJSON []byte
	var err error
	if t.Metadata != nil {
		metadataJSON, err = json.Marshal(t.Metadata)
		if err != nil {
			return false, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = tx.QueryRow(ctx, insertTransactionQuery,
		t.ID, t.BusinessID, t.CustomerID, t.Amount, t.CheckoutRequestID,
		t.MpesaReceipt, t.Phone, t.Status, metadataJSON, t.CreatedAt,
	).Scan(&t.PointsAwarded, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var metadataJSON []byte

	err := row.Scan(
		&t.ID, &t.BusinessID, &t.CustomerID, &t.Amount, &t.PointsAwarded, &t.CheckoutRequestID,
		&t.MpesaReceipt, &t.Phone, &t.Status, &metadataJSON, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &t, nil
}
