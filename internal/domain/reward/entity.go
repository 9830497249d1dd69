// internal/domain/reward/entity.go
package reward

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TypeThreshold = "threshold"

// Reward is issued when a balance crosses the business threshold. Only the
// redemption fields change after creation.
type Reward struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	BusinessID       uuid.UUID       `json:"business_id" db:"business_id"`
	CustomerID       uuid.UUID       `json:"customer_id" db:"customer_id"`
	RewardType       string          `json:"reward_type" db:"reward_type"`
	RewardValue      decimal.Decimal `json:"reward_value" db:"reward_value"`
	PointsAtIssuance int64           `json:"points_at_issuance" db:"points_at_issuance"`
	PointsRedeemed   int64           `json:"points_redeemed" db:"points_redeemed"`
	IsRedeemed       bool            `json:"is_redeemed" db:"is_redeemed"`
	IssuedAt         time.Time       `json:"issued_at" db:"issued_at"`
	RedeemedAt       *time.Time      `json:"redeemed_at,omitempty" db:"redeemed_at"`
}

type RewardListFilters struct {
	Customer   string     `form:"customer_id" binding:"omitempty,uuid"`
	CustomerID *uuid.UUID `form:"-"`
	IsRedeemed *bool      `form:"is_redeemed"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

type RewardListResponse struct {
	Rewards    []Reward `json:"rewards"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// RedeemResult is returned after a successful redemption.
type RedeemResult struct {
	Reward         *Reward `json:"reward"`
	PointsDeducted int64   `json:"points_deducted"`
	NewBalance     int64   `json:"new_balance"`
}
