// internal/service/outbox/dispatcher.go
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/metrics"
	"tuzo-service/internal/pkg/rabbitmq"
	"tuzo-service/internal/pkg/textutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultBatchSize       = 50
	defaultPollInterval    = 1200 * time.Millisecond
	defaultStaleProcessing = 2 * time.Minute
	maxErrorLength         = 2000
)

type Store interface {
	// Claim moves up to limit due tasks to processing, reclaiming tasks stuck
	// in processing for longer than staleAfter.
	Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]outbox.Task, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	// MarkFailed reschedules the task after retryAfter, or parks it as dead.
	MarkFailed(ctx context.Context, id uuid.UUID, retryAfter time.Duration, reason string, dead bool) error
}

// Handler executes one task. A returned error schedules a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher polls the task table and runs due tasks by kind.
type Dispatcher struct {
	store        Store
	handlers     map[string]Handler
	batchSize    int
	pollInterval time.Duration
	staleAfter   time.Duration
	logger       *zap.Logger
}

func NewDispatcher(store Store, batchSize int, pollInterval time.Duration, logger *zap.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Dispatcher{
		store:        store,
		handlers:     make(map[string]Handler),
		batchSize:    batchSize,
		pollInterval: pollInterval,
		staleAfter:   defaultStaleProcessing,
		logger:       logger,
	}
}

// Register binds a handler to a task kind. Call before Run.
func (d *Dispatcher) Register(kind string, h Handler) {
	d.handlers[kind] = h
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.FlushOnce(ctx); err != nil {
				d.logger.Error("outbox flush error", zap.Error(err))
			}
		}
	}
}

// FlushOnce claims and runs one batch, returning how many tasks completed.
func (d *Dispatcher) FlushOnce(ctx context.Context) (int, error) {
	tasks, err := d.store.Claim(ctx, d.batchSize, d.staleAfter)
	if err != nil {
		return 0, fmt.Errorf("failed to claim tasks: %w", err)
	}

	done := 0
	for _, task := range tasks {
		if err := d.execute(ctx, task); err != nil {
			d.fail(ctx, task, err)
			continue
		}
		if err := d.store.MarkDone(ctx, task.ID); err != nil {
			d.logger.Error("failed to mark task done", zap.String("task_id", task.ID.String()), zap.Error(err))
			continue
		}
		metrics.OutboxTasksTotal.WithLabelValues(task.Kind, "done").Inc()
		done++
	}
	return done, nil
}

func (d *Dispatcher) execute(ctx context.Context, task outbox.Task) (err error) {
	handler, ok := d.handlers[task.Kind]
	if !ok {
		return errUnknownKind{kind: task.Kind}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return handler(ctx, task.Payload)
}

func (d *Dispatcher) fail(ctx context.Context, task outbox.Task, cause error) {
	_, unknown := cause.(errUnknownKind)
	dead := unknown || (task.MaxAttempts > 0 && task.Attempts >= task.MaxAttempts)

	reason := textutil.Truncate(cause.Error(), maxErrorLength)

	retryAfter := RetryDelay(task.Attempts)
	if err := d.store.MarkFailed(ctx, task.ID, retryAfter, reason, dead); err != nil {
		d.logger.Error("failed to reschedule task", zap.String("task_id", task.ID.String()), zap.Error(err))
	}

	outcome := "retry"
	if dead {
		outcome = "dead"
	}
	metrics.OutboxTasksTotal.WithLabelValues(task.Kind, outcome).Inc()
	d.logger.Warn("outbox task failed",
		zap.String("task_id", task.ID.String()),
		zap.String("kind", task.Kind),
		zap.Int("attempts", task.Attempts),
		zap.Bool("dead", dead),
		zap.Error(cause),
	)
}

// RetryDelay is 2^attempt seconds, capped at five minutes.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return time.Second
	}
	delay := 1 << minInt(attempt, 8)
	if delay > 300 {
		delay = 300
	}
	return time.Duration(delay) * time.Second
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type errUnknownKind struct{ kind string }

func (e errUnknownKind) Error() string { return "no handler for task kind " + e.kind }

// PublishHandler forwards event.publish tasks to the message broker.
func PublishHandler(p rabbitmq.Publisher) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var ev outbox.EventPayload
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("invalid event payload: %w", err)
		}
		if ev.Exchange == "" || ev.RoutingKey == "" {
			return fmt.Errorf("event payload missing exchange or routing key")
		}
		return p.Publish(ctx, ev.Exchange, ev.RoutingKey, ev.Body)
	}
}
