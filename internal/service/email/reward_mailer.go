// internal/service/email/reward_mailer.go
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/reward"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Sender interface {
	Send(to, subject, bodyHTML string) error
}

type CustomerReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task *outbox.Task) error
}

// RewardMailer queues reward emails for customers who gave an address at
// registration. Delivery happens later on the outbox.
type RewardMailer struct {
	customers CustomerReader
	queue     TaskQueue
	logger    *zap.Logger
	now       func() time.Time
}

func NewRewardMailer(customers CustomerReader, queue TaskQueue, logger *zap.Logger) *RewardMailer {
	return &RewardMailer{
		customers: customers,
		queue:     queue,
		logger:    logger,
		now:       time.Now,
	}
}

// RewardEarned is best-effort: failures are logged, never returned.
func (m *RewardMailer) RewardEarned(ctx context.Context, businessName string, rw *reward.Reward) {
	c, err := m.customers.FindByID(ctx, rw.CustomerID)
	if err != nil {
		m.logger.Warn("reward email skipped: customer lookup failed",
			zap.String("customer_id", rw.CustomerID.String()), zap.Error(err))
		return
	}
	if c.Email == nil || strings.TrimSpace(*c.Email) == "" {
		return
	}

	payload := outbox.EmailPayload{
		To:      strings.TrimSpace(*c.Email),
		Subject: fmt.Sprintf("You earned a reward at %s", businessName),
		Body:    rewardEarnedBody(c.FullName, businessName, rw),
	}
	task, err := outbox.NewTask(outbox.KindSendEmail, payload, m.now())
	if err != nil {
		m.logger.Warn("failed to build reward email task", zap.Error(err))
		return
	}
	if err := m.queue.Enqueue(ctx, task); err != nil {
		m.logger.Warn("failed to enqueue reward email",
			zap.String("reward_id", rw.ID.String()), zap.Error(err))
	}
}

func rewardEarnedBody(customerName, businessName string, rw *reward.Reward) string {
	return fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>You have reached <strong>%d points</strong> at %s and earned a reward worth <strong>KES %s</strong>.</p>
		<p>Show this email or your phone number at the counter to redeem it.</p>`,
		html.EscapeString(customerName),
		rw.PointsAtIssuance,
		html.EscapeString(businessName),
		rw.RewardValue.StringFixed(2),
	)
}

// TaskHandler delivers notification.email outbox tasks.
func TaskHandler(sender Sender) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p outbox.EmailPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid email payload: %w", err)
		}
		if p.To == "" {
			return fmt.Errorf("email payload missing recipient")
		}
		return sender.Send(p.To, p.Subject, p.Body)
	}
}
