// internal/domain/business/dto.go
package business

import "github.com/shopspring/decimal"

type CreateBusinessRequest struct {
	Name              string           `json:"name" binding:"required,max=120"`
	BusinessType      string           `json:"business_type" binding:"omitempty,max=60"`
	Phone             string           `json:"phone"`
	Email             string           `json:"email" binding:"omitempty,email"`
	Address           string           `json:"address" binding:"omitempty,max=255"`
	PointsPerShilling *decimal.Decimal `json:"points_per_shilling"`
	RewardThreshold   *int64           `json:"reward_threshold"`
	RewardValue       *decimal.Decimal `json:"reward_value"`
}

type UpdateBusinessRequest struct {
	Name              *string          `json:"name" binding:"omitempty,max=120"`
	BusinessType      *string          `json:"business_type" binding:"omitempty,max=60"`
	Phone             *string          `json:"phone"`
	Email             *string          `json:"email" binding:"omitempty,email"`
	Address           *string          `json:"address" binding:"omitempty,max=255"`
	PointsPerShilling *decimal.Decimal `json:"points_per_shilling"`
	RewardThreshold   *int64           `json:"reward_threshold"`
	RewardValue       *decimal.Decimal `json:"reward_value"`
}
