// internal/service/payment/effects.go
package payment

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/notification"
	"tuzo-service/internal/domain/payment"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/pkg/phone"
	"tuzo-service/internal/realtime"
	"tuzo-service/internal/service/loyalty"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RewardMailer emails customers about rewards; optional.
type RewardMailer interface {
	RewardEarned(ctx context.Context, businessName string, rw *reward.Reward)
}

type Notifier interface {
	Create(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error)
}

// Effects runs the post-commit side effects of a payment: notifications and
// live change events. Every step is best-effort and only logged on failure.
type Effects struct {
	notifier   Notifier
	broker     realtime.Broker
	businesses BusinessReader
	mailer     RewardMailer
	logger     *zap.Logger
}

func NewEffects(notifier Notifier, broker realtime.Broker, businesses BusinessReader, logger *zap.Logger) *Effects {
	return &Effects{notifier: notifier, broker: broker, businesses: businesses, logger: logger}
}

func (e *Effects) WithMailer(m RewardMailer) *Effects {
	e.mailer = m
	return e
}

func (e *Effects) PaymentCompleted(ctx context.Context, req *payment.Request, res *loyalty.RecordResult) {
	if e == nil {
		return
	}
	txn := res.Transaction
	businessID, customerID := txn.BusinessID, txn.CustomerID

	e.publish(ctx, realtime.TopicTransactions, realtime.OpInsert, &businessID, &customerID, txn)
	e.publish(ctx, realtime.TopicCustomers, realtime.OpUpdate, &businessID, &customerID, map[string]interface{}{
		"id":          customerID,
		"business_id": businessID,
		"points":      res.Balance,
	})

	meta := map[string]interface{}{
		"transaction_id":      txn.ID,
		"checkout_request_id": txn.CheckoutRequestID,
		"amount":              txn.Amount,
		"points_awarded":      txn.PointsAwarded,
	}

	e.notify(ctx, notification.RecipientCustomer, customerID, notification.TypeTransaction,
		"Payment Received",
		fmt.Sprintf("You earned %d points from your KES %s payment at %s", txn.PointsAwarded, txn.Amount.String(), res.Business.Name),
		meta)
	e.notify(ctx, notification.RecipientBusiness, businessID, notification.TypeTransaction,
		"Payment Received",
		fmt.Sprintf("KES %s received from %s. %d points awarded.", txn.Amount.String(), phone.Mask(req.Phone), txn.PointsAwarded),
		meta)

	if rw := res.Reward; rw != nil {
		e.publish(ctx, realtime.TopicRewards, realtime.OpInsert, &businessID, &customerID, rw)

		rewardMeta := map[string]interface{}{
			"reward_id":          rw.ID,
			"reward_value":       rw.RewardValue,
			"points_at_issuance": rw.PointsAtIssuance,
		}
		e.notify(ctx, notification.RecipientCustomer, customerID, notification.TypeReward,
			"Reward Earned",
			fmt.Sprintf("Congratulations! You reached %d points at %s and earned a reward worth KES %s", rw.PointsAtIssuance, res.Business.Name, rw.RewardValue.String()),
			rewardMeta)
		e.notify(ctx, notification.RecipientBusiness, businessID, notification.TypeReward,
			"Reward Issued",
			fmt.Sprintf("Customer %s reached %d points and earned a reward worth KES %s", phone.Mask(req.Phone), rw.PointsAtIssuance, rw.RewardValue.String()),
			rewardMeta)

		if e.mailer != nil {
			e.mailer.RewardEarned(ctx, res.Business.Name, rw)
		}
	}
}

func (e *Effects) PaymentFailed(ctx context.Context, req *payment.Request, reason string) {
	if e == nil {
		return
	}

	businessName := "the business"
	if e.businesses != nil {
		if biz, err := e.businesses.GetByID(ctx, req.BusinessID); err == nil {
			businessName = biz.Name
		}
	}
	if reason == "" {
		reason = "the request was not completed"
	}

	meta := map[string]interface{}{
		"checkout_request_id": req.CheckoutRequestID,
		"amount":              req.Amount,
		"reason":              reason,
	}
	e.notify(ctx, notification.RecipientCustomer, req.CustomerID, notification.TypePaymentFailed,
		"Payment Failed",
		fmt.Sprintf("Your KES %s payment to %s was not completed: %s", req.Amount.String(), businessName, reason),
		meta)
	e.notify(ctx, notification.RecipientBusiness, req.BusinessID, notification.TypePaymentFailed,
		"Payment Failed",
		fmt.Sprintf("KES %s payment from %s failed: %s", req.Amount.String(), phone.Mask(req.Phone), reason),
		meta)
}

func (e *Effects) notify(ctx context.Context, kind notification.RecipientType, id uuid.UUID, typ notification.NotificationType, title, message string, meta map[string]interface{}) {
	if e.notifier == nil {
		return
	}
	_, err := e.notifier.Create(ctx, &notification.CreateNotificationRequest{
		Recipient: notification.Recipient{Type: kind, ID: id},
		Title:     title,
		Message:   message,
		Type:      typ,
		Metadata:  meta,
	})
	if err != nil {
		e.logger.Warn("failed to send notification",
			zap.String("recipient_type", string(kind)),
			zap.String("recipient_id", id.String()),
			zap.Error(err),
		)
	}
}

func (e *Effects) publish(ctx context.Context, topic realtime.Topic, op realtime.Op, businessID, customerID *uuid.UUID, record interface{}) {
	if e.broker == nil {
		return
	}
	ev, err := realtime.NewEvent(topic, op, businessID, customerID, record)
	if err != nil {
		e.logger.Warn("failed to build change event", zap.String("topic", string(topic)), zap.Error(err))
		return
	}
	if err := e.broker.Publish(ctx, ev); err != nil {
		e.logger.Warn("failed to publish change event", zap.String("topic", string(topic)), zap.Error(err))
	}
}
