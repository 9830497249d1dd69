// internal/repository/postgres/customer_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"tuzo-service/internal/domain/customer"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const customerColumns = `
	id, business_id, full_name, phone, email, points, visit_count, created_at, updated_at
`

var customerSortColumns = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"full_name":   true,
	"points":      true,
	"visit_count": true,
}

type CustomerRepository struct {
	db *DB
}

func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create registers a customer. A phone already registered at the business is a conflict.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (business_id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, points, visit_count, created_at, updated_at
	`
	err := r.db.Pool().QueryRow(ctx, query, c.BusinessID, c.FullName, c.Phone, c.Email).Scan(
		&c.ID, &c.Points, &c.VisitCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("phone already registered: %w", xerrors.ErrConflict)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	c, err := scanCustomer(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, "Customer not found")
	}
	return c, nil
}

func (r *CustomerRepository) FindByBusinessAndPhone(ctx context.Context, businessID uuid.UUID, phone string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE business_id = $1 AND phone = $2`
	c, err := scanCustomer(r.db.Pool().QueryRow(ctx, query, businessID, phone))
	if err != nil {
		return nil, mapNoRows(err, "Customer not found")
	}
	return c, nil
}

// List returns the customers of a business with search, sorting and pagination.
func (r *CustomerRepository) List(ctx context.Context, businessID uuid.UUID, filters *customer.CustomerListFilters) ([]customer.Customer, int64, error) {
	conditions := []string{"business_id = $1"}
	args := []interface{}{businessID}
	argPos := 2

	if s := strings.TrimSpace(filters.Search); s != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR phone ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+s+"%")
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers WHERE %s", whereClause)
	var total int64
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	limit, offset := normalizePage(&filters.Page, &filters.PageSize)

	sortBy := "created_at"
	if customerSortColumns[filters.SortBy] {
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, customerColumns, whereClause, pq.QuoteIdentifier(sortBy), sortOrder, argPos, argPos+1)

	args = append(args, limit, offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []customer.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}

	return customers, total, rows.Err()
}

// incrementPointsTx credits points and counts the visit. The row lock it takes
// serializes concurrent payments for the same customer.
func incrementPointsTx(ctx context.Context, tx pgx.Tx, businessID, customerID uuid.UUID, points int64) (int64, error) {
	query := `
		UPDATE customers
		SET points = points + $1, visit_count = visit_count + 1, updated_at = NOW()
		WHERE id = $2 AND business_id = $3
		RETURNING points
	`
	var balance int64
	if err := tx.QueryRow(ctx, query, points, customerID, businessID).Scan(&balance); err != nil {
		return 0, mapNoRows(err, "Customer not found")
	}
	return balance, nil
}

func lockPointsTx(ctx context.Context, tx pgx.Tx, businessID, customerID uuid.UUID) (int64, error) {
	query := `SELECT points FROM customers WHERE id = $1 AND business_id = $2 FOR UPDATE`
	var balance int64
	if err := tx.QueryRow(ctx, query, customerID, businessID).Scan(&balance); err != nil {
		return 0, mapNoRows(err, "Customer not found")
	}
	return balance, nil
}

func setPointsTx(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, points int64) error {
	result, err := tx.Exec(ctx, `UPDATE customers SET points = $1, updated_at = NOW() WHERE id = $2`, points, customerID)
	if err != nil {
		return fmt.Errorf("failed to set points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.NotFound("Customer not found")
	}
	return nil
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.FullName, &c.Phone, &c.Email,
		&c.Points, &c.VisitCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
