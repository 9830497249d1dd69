// internal/service/business/business.go
package business

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tuzo-service/internal/domain/business"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/pkg/phone"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, b *business.Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error)
	GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*business.Business, error)
	Update(ctx context.Context, b *business.Business) error
	Stats(ctx context.Context, businessID uuid.UUID) (*business.Stats, error)
}

type BusinessService struct {
	repo   Repository
	logger *zap.Logger
}

func NewBusinessService(repo Repository, logger *zap.Logger) *BusinessService {
	return &BusinessService{repo: repo, logger: logger}
}

// Create registers a business owned by ownerUserID. An owner has at most one business.
func (s *BusinessService) Create(ctx context.Context, ownerUserID uuid.UUID, req *business.CreateBusinessRequest) (*business.Business, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, xerrors.Invalid("Business name is required")
	}

	if existing, err := s.repo.GetByOwner(ctx, ownerUserID); err == nil && existing != nil {
		return nil, fmt.Errorf("you already own a business: %w", xerrors.ErrConflict)
	} else if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing business: %w", err)
	}

	b := &business.Business{
		OwnerUserID:       ownerUserID,
		Name:              name,
		BusinessType:      optional(req.BusinessType),
		Email:             optional(req.Email),
		Address:           optional(req.Address),
		PointsPerShilling: business.DefaultPointsPerShilling,
		RewardThreshold:   business.DefaultRewardThreshold,
		RewardValue:       decimal.Zero,
	}

	if p := strings.TrimSpace(req.Phone); p != "" {
		canonical, err := phone.Normalize(p)
		if err != nil {
			return nil, xerrors.Invalid("Invalid business phone number")
		}
		b.Phone = &canonical
	}

	if err := applyLoyalty(b, req.PointsPerShilling, req.RewardThreshold, req.RewardValue); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create business", zap.Error(err))
		return nil, fmt.Errorf("failed to create business: %w", err)
	}

	s.logger.Info("business created",
		zap.String("business_id", b.ID.String()),
		zap.String("owner_user_id", ownerUserID.String()),
	)
	return b, nil
}

func (s *BusinessService) Get(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies the non-nil fields of req.
func (s *BusinessService) Update(ctx context.Context, id uuid.UUID, req *business.UpdateBusinessRequest) (*business.Business, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, xerrors.Invalid("Business name cannot be empty")
		}
		b.Name = name
	}
	if req.BusinessType != nil {
		b.BusinessType = optional(*req.BusinessType)
	}
	if req.Email != nil {
		b.Email = optional(*req.Email)
	}
	if req.Address != nil {
		b.Address = optional(*req.Address)
	}
	if req.Phone != nil {
		if p := strings.TrimSpace(*req.Phone); p == "" {
			b.Phone = nil
		} else {
			canonical, err := phone.Normalize(p)
			if err != nil {
				return nil, xerrors.Invalid("Invalid business phone number")
			}
			b.Phone = &canonical
		}
	}

	if err := applyLoyalty(b, req.PointsPerShilling, req.RewardThreshold, req.RewardValue); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update business: %w", err)
	}

	s.logger.Info("business updated", zap.String("business_id", b.ID.String()))
	return b, nil
}

func (s *BusinessService) Stats(ctx context.Context, id uuid.UUID) (*business.Stats, error) {
	return s.repo.Stats(ctx, id)
}

func applyLoyalty(b *business.Business, rate *decimal.Decimal, threshold *int64, value *decimal.Decimal) error {
	if rate != nil {
		if rate.IsNegative() {
			return xerrors.Invalid("Points per shilling cannot be negative")
		}
		b.PointsPerShilling = *rate
	}
	if threshold != nil {
		if *threshold < 0 {
			return xerrors.Invalid("Reward threshold cannot be negative")
		}
		b.RewardThreshold = *threshold
	}
	if value != nil {
		if value.IsNegative() {
			return xerrors.Invalid("Reward value cannot be negative")
		}
		b.RewardValue = *value
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
