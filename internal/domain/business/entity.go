// internal/domain/business/entity.go
package business

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	DefaultPointsPerShilling = decimal.RequireFromString("0.01")
	DefaultRewardThreshold   = int64(100)
)

type Business struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	OwnerUserID       uuid.UUID       `json:"owner_user_id" db:"owner_user_id"`
	Name              string          `json:"name" db:"name"`
	BusinessType      *string         `json:"business_type,omitempty" db:"business_type"`
	Phone             *string         `json:"phone,omitempty" db:"phone"`
	Email             *string         `json:"email,omitempty" db:"email"`
	Address           *string         `json:"address,omitempty" db:"address"`
	PointsPerShilling decimal.Decimal `json:"points_per_shilling" db:"points_per_shilling"`
	RewardThreshold   int64           `json:"reward_threshold" db:"reward_threshold"`
	RewardValue       decimal.Decimal `json:"reward_value" db:"reward_value"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// LoyaltySettings is the subset of a business read inside the recording transaction.
type LoyaltySettings struct {
	BusinessID        uuid.UUID
	Name              string
	PointsPerShilling decimal.Decimal
	RewardThreshold   int64
	RewardValue       decimal.Decimal
}

func (b *Business) Loyalty() LoyaltySettings {
	return LoyaltySettings{
		BusinessID:        b.ID,
		Name:              b.Name,
		PointsPerShilling: b.PointsPerShilling,
		RewardThreshold:   b.RewardThreshold,
		RewardValue:       b.RewardValue,
	}
}

// Stats backs the owner dashboard cards.
type Stats struct {
	TotalCustomers     int64           `json:"total_customers"`
	TotalTransactions  int64           `json:"total_transactions"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalPointsAwarded int64           `json:"total_points_awarded"`
	RewardsIssued      int64           `json:"rewards_issued"`
	RewardsRedeemed    int64           `json:"rewards_redeemed"`
	TransactionsToday  int64           `json:"transactions_today"`
	RevenueToday       decimal.Decimal `json:"revenue_today"`
	PendingPayments    int64           `json:"pending_payments"`
}
