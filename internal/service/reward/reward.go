// internal/service/reward/reward.go
package reward

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/notification"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/metrics"
	"tuzo-service/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	List(ctx context.Context, businessID uuid.UUID, filters *reward.RewardListFilters) ([]reward.Reward, int64, error)
}

type Redeemer interface {
	Redeem(ctx context.Context, businessID, rewardID uuid.UUID) (*reward.RedeemResult, error)
}

type Notifier interface {
	Create(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error)
}

type RewardService struct {
	repo     Repository
	redeemer Redeemer
	notifier Notifier
	broker   realtime.Broker
	logger   *zap.Logger
}

func NewRewardService(repo Repository, redeemer Redeemer, notifier Notifier, broker realtime.Broker, logger *zap.Logger) *RewardService {
	return &RewardService{
		repo:     repo,
		redeemer: redeemer,
		notifier: notifier,
		broker:   broker,
		logger:   logger,
	}
}

// List returns a page of a business's rewards; customerID, when set, narrows it to one customer.
func (s *RewardService) List(ctx context.Context, businessID uuid.UUID, customerID *uuid.UUID, filters *reward.RewardListFilters) (*reward.RewardListResponse, error) {
	if customerID != nil {
		filters.CustomerID = customerID
	}

	items, total, err := s.repo.List(ctx, businessID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}

	pages := 0
	if filters.PageSize > 0 {
		pages = int((total + int64(filters.PageSize) - 1) / int64(filters.PageSize))
	}

	return &reward.RewardListResponse{
		Rewards:    items,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: pages,
	}, nil
}

// Redeem marks a reward as used at the counter and deducts the threshold from the balance.
func (s *RewardService) Redeem(ctx context.Context, businessID, rewardID uuid.UUID) (*reward.RedeemResult, error) {
	res, err := s.redeemer.Redeem(ctx, businessID, rewardID)
	if err != nil {
		return nil, err
	}

	metrics.RewardsRedeemedTotal.Inc()

	rw := res.Reward
	s.logger.Info("reward redeemed",
		zap.String("reward_id", rw.ID.String()),
		zap.String("business_id", businessID.String()),
		zap.Int64("points_deducted", res.PointsDeducted),
		zap.Int64("balance", res.NewBalance),
	)

	s.publish(ctx, realtime.TopicRewards, realtime.OpUpdate, rw.BusinessID, rw.CustomerID, rw)
	s.publish(ctx, realtime.TopicCustomers, realtime.OpUpdate, rw.BusinessID, rw.CustomerID, map[string]interface{}{
		"id":          rw.CustomerID,
		"business_id": rw.BusinessID,
		"points":      res.NewBalance,
	})

	if s.notifier != nil {
		_, err := s.notifier.Create(ctx, &notification.CreateNotificationRequest{
			Recipient: notification.Recipient{Type: notification.RecipientCustomer, ID: rw.CustomerID},
			Title:     "Reward Redeemed",
			Message:   fmt.Sprintf("You redeemed a reward worth KES %s. Your new balance is %d points", rw.RewardValue.String(), res.NewBalance),
			Type:      notification.TypeReward,
			Metadata: map[string]interface{}{
				"reward_id":       rw.ID,
				"points_deducted": res.PointsDeducted,
			},
		})
		if err != nil {
			s.logger.Warn("failed to send redemption notification", zap.Error(err))
		}
	}

	return res, nil
}

func (s *RewardService) publish(ctx context.Context, topic realtime.Topic, op realtime.Op, businessID, customerID uuid.UUID, record interface{}) {
	if s.broker == nil {
		return
	}
	ev, err := realtime.NewEvent(topic, op, &businessID, &customerID, record)
	if err != nil {
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish reward event", zap.String("topic", string(topic)), zap.Error(err))
	}
}
