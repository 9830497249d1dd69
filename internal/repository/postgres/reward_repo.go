// internal/repository/postgres/reward_repo.go
package postgres

import (
	"context"
	"fmt"
	"strings"

	"tuzo-service/internal/domain/reward"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const rewardColumns = `
	id, business_id, customer_id, reward_type, reward_value, points_at_issuance,
	points_redeemed, is_redeemed, issued_at, redeemed_at
`

type RewardRepository struct {
	db *DB
}

func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) FindByID(ctx context.Context, id uuid.UUID) (*reward.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`
	rw, err := scanReward(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, "reward not found")
	}
	return rw, nil
}

func (r *RewardRepository) List(ctx context.Context, businessID uuid.UUID, filters *reward.RewardListFilters) ([]reward.Reward, int64, error) {
	conditions := []string{"business_id = $1"}
	args := []interface{}{businessID}
	argPos := 2

	if filters.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filters.CustomerID)
		argPos++
	}

	if filters.IsRedeemed != nil {
		conditions = append(conditions, fmt.Sprintf("is_redeemed = $%d", argPos))
		args = append(args, *filters.IsRedeemed)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM rewards WHERE %s", whereClause)
	var total int64
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rewards: %w", err)
	}

	limit, offset := normalizePage(&filters.Page, &filters.PageSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM rewards
		WHERE %s
		ORDER BY issued_at DESC
		LIMIT $%d OFFSET $%d
	`, rewardColumns, whereClause, argPos, argPos+1)

	args = append(args, limit, offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []reward.Reward{}
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, *rw)
	}

	return rewards, total, rows.Err()
}

// CreateWithTx inserts an issued reward. The partial unique index on
// unredeemed rewards turns a second concurrent issue into a conflict.
func (r *RewardRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, rw *reward.Reward) error {
	query := `
		INSERT INTO rewards (
			id, business_id, customer_id, reward_type, reward_value, points_at_issuance, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		rw.ID, rw.BusinessID, rw.CustomerID, rw.RewardType, rw.RewardValue, rw.PointsAtIssuance, rw.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("customer already holds an unredeemed reward: %w", xerrors.ErrConflict)
		}
		return err
	}
	return nil
}

func hasUnredeemedTx(ctx context.Context, tx pgx.Tx, businessID, customerID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM rewards
			WHERE business_id = $1 AND customer_id = $2 AND is_redeemed = false
		)
	`
	var exists bool
	if err := tx.QueryRow(ctx, query, businessID, customerID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func rewardForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*reward.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1 FOR UPDATE`
	rw, err := scanReward(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, "reward not found")
	}
	return rw, nil
}

func markRedeemedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, pointsRedeemed int64) (*reward.Reward, error) {
	query := `
		UPDATE rewards
		SET is_redeemed = true, points_redeemed = $1, redeemed_at = NOW()
		WHERE id = $2 AND is_redeemed = false
		RETURNING ` + rewardColumns
	rw, err := scanReward(tx.QueryRow(ctx, query, pointsRedeemed, id))
	if err != nil {
		return nil, mapNoRows(err, "reward not found or already redeemed")
	}
	return rw, nil
}

func scanReward(row pgx.Row) (*reward.Reward, error) {
	var rw reward.Reward
	err := row.Scan(
		&rw.ID, &rw.BusinessID, &rw.CustomerID, &rw.RewardType, &rw.RewardValue, &rw.PointsAtIssuance,
		&rw.PointsRedeemed, &rw.IsRedeemed, &rw.IssuedAt, &rw.RedeemedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rw, nil
}
