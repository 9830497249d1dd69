// internal/service/jobs/jobs.go
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	jobTimeout      = 2 * time.Minute
	outboxRetention = 7 * 24 * time.Hour
)

type PaymentRequestExpirer interface {
	ExpirePending(ctx context.Context, olderThan time.Time) (int64, error)
}

type NotificationPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type OutboxPurger interface {
	PurgeDone(ctx context.Context, olderThan time.Time) (int64, error)
}

// Jobs holds the periodic maintenance tasks.
type Jobs struct {
	payments      PaymentRequestExpirer
	notifications NotificationPurger
	outbox        OutboxPurger
	pendingTTL    time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewJobs(payments PaymentRequestExpirer, notifications NotificationPurger, outbox OutboxPurger, pendingTTL time.Duration, logger *zap.Logger) *Jobs {
	return &Jobs{
		payments:      payments,
		notifications: notifications,
		outbox:        outbox,
		pendingTTL:    pendingTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// ExpirePendingPayments marks STK pushes that never received a callback as expired.
func (j *Jobs) ExpirePendingPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := j.now().Add(-j.pendingTTL)
	n, err := j.payments.ExpirePending(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to expire pending payments", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("expired pending payments", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
}

func (j *Jobs) DeleteExpiredNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := j.notifications.DeleteExpired(ctx); err != nil {
		j.logger.Error("failed to delete expired notifications", zap.Error(err))
	}
}

// PurgeOutbox removes completed tasks older than a week.
func (j *Jobs) PurgeOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.outbox.PurgeDone(ctx, j.now().Add(-outboxRetention))
	if err != nil {
		j.logger.Error("failed to purge outbox", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("purged completed outbox tasks", zap.Int64("count", n))
	}
}
