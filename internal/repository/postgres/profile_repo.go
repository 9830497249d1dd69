// internal/repository/postgres/profile_repo.go
package postgres

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/profile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error) {
	query := `
		SELECT p.id, p.role, p.business_id, p.customer_id, c.business_id, p.created_at, p.updated_at
		FROM user_profiles p
		LEFT JOIN customers c ON c.id = p.customer_id
		WHERE p.id = $1
	`
	var p profile.UserProfile
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Role, &p.BusinessID, &p.CustomerID, &p.CustomerBusinessID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapNoRows(err, "Profile not found")
	}
	return &p, nil
}

// Upsert creates the profile or replaces its role and links.
func (r *ProfileRepository) Upsert(ctx context.Context, p *profile.UserProfile) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return upsertProfileTx(ctx, tx, p)
	})
}

func upsertProfileTx(ctx context.Context, tx pgx.Tx, p *profile.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, role, business_id, customer_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			role = EXCLUDED.role,
			business_id = COALESCE(EXCLUDED.business_id, user_profiles.business_id),
			customer_id = COALESCE(EXCLUDED.customer_id, user_profiles.customer_id),
			updated_at = NOW()
		RETURNING business_id, customer_id, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query, p.ID, p.Role, p.BusinessID, p.CustomerID).Scan(
		&p.BusinessID, &p.CustomerID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
