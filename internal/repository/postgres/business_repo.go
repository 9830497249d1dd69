// internal/repository/postgres/business_repo.go
package postgres

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/profile"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const businessColumns = `
	id, owner_user_id, name, business_type, phone, email, address,
	points_per_shilling, reward_threshold, reward_value, created_at, updated_at
`

type BusinessRepository struct {
	db *DB
}

func NewBusinessRepository(db *DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// Create inserts the business and points the owner's profile at it.
func (r *BusinessRepository) Create(ctx context.Context, b *business.Business) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO businesses (
				owner_user_id, name, business_type, phone, email, address,
				points_per_shilling, reward_threshold, reward_value
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			b.OwnerUserID, b.Name, b.BusinessType, b.Phone, b.Email, b.Address,
			b.PointsPerShilling, b.RewardThreshold, b.RewardValue,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("business already exists for this owner: %w", xerrors.ErrConflict)
			}
			return fmt.Errorf("failed to create business: %w", err)
		}

		p := &profile.UserProfile{
			ID:         b.OwnerUserID,
			Role:       profile.RoleBusinessOwner,
			BusinessID: &b.ID,
		}
		return upsertProfileTx(ctx, tx, p)
	})
}

func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`
	b, err := scanBusiness(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, "Business not found")
	}
	return b, nil
}

func (r *BusinessRepository) GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*business.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE owner_user_id = $1`
	b, err := scanBusiness(r.db.Pool().QueryRow(ctx, query, ownerUserID))
	if err != nil {
		return nil, mapNoRows(err, "Business not found")
	}
	return b, nil
}

// Update writes every mutable column of b.
func (r *BusinessRepository) Update(ctx context.Context, b *business.Business) error {
	query := `
		UPDATE businesses
		SET name = $1, business_type = $2, phone = $3, email = $4, address = $5,
		    points_per_shilling = $6, reward_threshold = $7, reward_value = $8,
		    updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`
	err := r.db.Pool().QueryRow(ctx, query,
		b.Name, b.BusinessType, b.Phone, b.Email, b.Address,
		b.PointsPerShilling, b.RewardThreshold, b.RewardValue, b.ID,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return mapNoRows(err, "Business not found")
	}
	return nil
}

// Stats aggregates the owner dashboard figures. "Today" is the Nairobi calendar day.
func (r *BusinessRepository) Stats(ctx context.Context, businessID uuid.UUID) (*business.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE business_id = $1),
			COUNT(t.id),
			COALESCE(SUM(t.amount), 0),
			COALESCE(SUM(t.points_awarded), 0),
			(SELECT COUNT(*) FROM rewards WHERE business_id = $1),
			(SELECT COUNT(*) FROM rewards WHERE business_id = $1 AND is_redeemed),
			COUNT(t.id) FILTER (WHERE t.created_at >= date_trunc('day', NOW() AT TIME ZONE 'Africa/Nairobi') AT TIME ZONE 'Africa/Nairobi'),
			COALESCE(SUM(t.amount) FILTER (WHERE t.created_at >= date_trunc('day', NOW() AT TIME ZONE 'Africa/Nairobi') AT TIME ZONE 'Africa/Nairobi'), 0),
			(SELECT COUNT(*) FROM payment_requests WHERE business_id = $1 AND status = 'pending')
		FROM transactions t
		WHERE t.business_id = $1 AND t.status = 'completed'
	`

	var s business.Stats
	err := r.db.Pool().QueryRow(ctx, query, businessID).Scan(
		&s.TotalCustomers, &s.TotalTransactions, &s.TotalRevenue, &s.TotalPointsAwarded,
		&s.RewardsIssued, &s.RewardsRedeemed, &s.TransactionsToday, &s.RevenueToday,
		&s.PendingPayments,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load business stats: %w", err)
	}
	return &s, nil
}

func loyaltySettingsTx(ctx context.Context, tx pgx.Tx, businessID uuid.UUID) (*business.LoyaltySettings, error) {
	query := `
		SELECT id, name, points_per_shilling, reward_threshold, reward_value
		FROM businesses
		WHERE id = $1
	`
	var s business.LoyaltySettings
	err := tx.QueryRow(ctx, query, businessID).Scan(
		&s.BusinessID, &s.Name, &s.PointsPerShilling, &s.RewardThreshold, &s.RewardValue,
	)
	if err != nil {
		return nil, mapNoRows(err, "Business not found")
	}
	return &s, nil
}

func scanBusiness(row pgx.Row) (*business.Business, error) {
	var b business.Business
	err := row.Scan(
		&b.ID, &b.OwnerUserID, &b.Name, &b.BusinessType, &b.Phone, &b.Email, &b.Address,
		&b.PointsPerShilling, &b.RewardThreshold, &b.RewardValue, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
