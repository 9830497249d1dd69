// internal/service/profile/profile.go
package profile

import (
	"context"
	"errors"
	"fmt"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/profile"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/domain/transaction"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/pkg/phone"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const recentTransactions = 10

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error)
	Upsert(ctx context.Context, p *profile.UserProfile) error
}

type BusinessReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error)
}

type CustomerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	FindByBusinessAndPhone(ctx context.Context, businessID uuid.UUID, phone string) (*customer.Customer, error)
}

type RewardLister interface {
	List(ctx context.Context, businessID uuid.UUID, filters *reward.RewardListFilters) ([]reward.Reward, int64, error)
}

type TransactionLister interface {
	List(ctx context.Context, businessID uuid.UUID, filters *transaction.TransactionListFilters) ([]transaction.Transaction, int64, error)
}

type ProfileService struct {
	profiles     Store
	businesses   BusinessReader
	customers    CustomerReader
	rewards      RewardLister
	transactions TransactionLister
	logger       *zap.Logger
}

func NewProfileService(
	profiles Store,
	businesses BusinessReader,
	customers CustomerReader,
	rewards RewardLister,
	transactions TransactionLister,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		profiles:     profiles,
		businesses:   businesses,
		customers:    customers,
		rewards:      rewards,
		transactions: transactions,
		logger:       logger,
	}
}

// Resolve returns the caller's profile, or nil when they have not onboarded yet.
func (s *ProfileService) Resolve(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// Dashboard assembles the home view for either role.
func (s *ProfileService) Dashboard(ctx context.Context, userID uuid.UUID) (*profile.Dashboard, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &profile.Dashboard{Profile: p}

	switch p.Role {
	case profile.RoleBusinessOwner:
		if p.BusinessID != nil {
			b, err := s.businesses.GetByID(ctx, *p.BusinessID)
			if err != nil {
				return nil, err
			}
			d.Business = b
		}

	case profile.RoleCustomer:
		if p.CustomerID == nil {
			return d, nil
		}
		c, err := s.customers.FindByID(ctx, *p.CustomerID)
		if err != nil {
			return nil, err
		}
		d.Customer = c

		if b, err := s.businesses.GetByID(ctx, c.BusinessID); err == nil {
			d.Business = b
		} else {
			s.logger.Warn("failed to load customer's business", zap.Error(err))
		}

		rewards, _, err := s.rewards.List(ctx, c.BusinessID, &reward.RewardListFilters{CustomerID: &c.ID, PageSize: 50})
		if err != nil {
			return nil, fmt.Errorf("failed to load rewards: %w", err)
		}
		d.Rewards = rewards

		txns, _, err := s.transactions.List(ctx, c.BusinessID, &transaction.TransactionListFilters{CustomerID: &c.ID, PageSize: recentTransactions})
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
		d.RecentTransactions = txns
	}

	return d, nil
}

// LinkCustomer attaches the caller to the customer registered with phone at a
// business. verifiedPhone is the phone claim of the caller's token; only the
// holder of that number may claim the customer record.
func (s *ProfileService) LinkCustomer(ctx context.Context, userID uuid.UUID, verifiedPhone string, req *profile.LinkCustomerRequest) (*profile.UserProfile, error) {
	canonical, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, xerrors.Invalid("Invalid phone number. Use 07XXXXXXXX or 2547XXXXXXXX")
	}

	owned, err := phone.Normalize(verifiedPhone)
	if err != nil || owned != canonical {
		s.logger.Warn("customer link refused: phone not verified for caller",
			zap.String("user_id", userID.String()),
			zap.String("requested", phone.Mask(canonical)),
		)
		return nil, fmt.Errorf("phone number is not verified for this account: %w", xerrors.ErrForbidden)
	}

	existing, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Role == profile.RoleBusinessOwner {
		return nil, fmt.Errorf("business owners cannot link a customer record: %w", xerrors.ErrForbidden)
	}

	c, err := s.customers.FindByBusinessAndPhone(ctx, req.BusinessID, canonical)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.NotFound("Customer not found. Please register first.")
		}
		return nil, err
	}

	p := &profile.UserProfile{
		ID:         userID,
		Role:       profile.RoleCustomer,
		CustomerID: &c.ID,
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to link customer: %w", err)
	}
	p.CustomerBusinessID = &c.BusinessID

	s.logger.Info("customer linked",
		zap.String("user_id", userID.String()),
		zap.String("customer_id", c.ID.String()),
	)
	return p, nil
}
