// internal/repository/postgres/outbox_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/pkg/textutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxErrorLength = 2000

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// EnqueueWithTx writes task in the caller's transaction.
func (r *OutboxRepository) EnqueueWithTx(ctx context.Context, tx pgx.Tx, task *outbox.Task) error {
	return enqueueTaskTx(ctx, tx, task)
}

// Enqueue stores a task outside any caller transaction.
func (r *OutboxRepository) Enqueue(ctx context.Context, task *outbox.Task) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return enqueueTaskTx(ctx, tx, task)
	})
}

func enqueueTaskTx(ctx context.Context, tx pgx.Tx, task *outbox.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = outbox.DefaultMaxAttempts
	}
	if task.NextAttemptAt.IsZero() {
		task.NextAttemptAt = time.Now()
	}

	query := `
		INSERT INTO event_outbox (id, kind, payload, status, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3::jsonb, 'pending', $4, $5)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		task.ID, task.Kind, string(task.Payload), task.MaxAttempts, task.NextAttemptAt,
	).Scan(&task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox task: %w", err)
	}
	task.Status = outbox.StatusPending
	return nil
}

// Claim locks up to limit due tasks and moves them to processing. Rows left in
// processing for longer than staleAfter are treated as abandoned and reclaimed.
func (r *OutboxRepository) Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]outbox.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	staleSeconds := int(staleAfter.Seconds())
	if staleSeconds <= 0 {
		staleSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT id
			FROM event_outbox
			WHERE (
				(status = 'pending' AND next_attempt_at <= NOW())
				OR (status = 'processing' AND processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE event_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.id, o.kind, o.payload::text, o.status, o.attempts, o.max_attempts,
		          o.next_attempt_at, o.last_error, o.created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, staleSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]outbox.Task, 0, limit)
	for rows.Next() {
		var (
			t           outbox.Task
			payloadText string
		)
		if err := rows.Scan(
			&t.ID, &t.Kind, &payloadText, &t.Status, &t.Attempts, &t.MaxAttempts,
			&t.NextAttemptAt, &t.LastError, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		t.Payload = []byte(payloadText)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *OutboxRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE event_outbox
		SET status = 'done',
			completed_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox task done: %w", err)
	}
	return nil
}

// MarkFailed reschedules the task after retryAfter, or parks it as dead.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, retryAfter time.Duration, reason string, dead bool) error {
	retrySeconds := int(retryAfter.Seconds())
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	reason = textutil.Truncate(reason, maxErrorLength)

	status := outbox.StatusPending
	if dead {
		status = outbox.StatusDead
	}

	_, err := r.db.Pool().Exec(ctx, `
		UPDATE event_outbox
		SET status = $2,
			next_attempt_at = NOW() + ($3 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $4
		WHERE id = $1
	`, id, status, retrySeconds, reason)
	if err != nil {
		return fmt.Errorf("failed to mark outbox task failed: %w", err)
	}
	return nil
}

// PurgeDone deletes completed tasks finished before olderThan.
func (r *OutboxRepository) PurgeDone(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.Pool().Exec(ctx, `
		DELETE FROM event_outbox
		WHERE status = 'done' AND completed_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return result.RowsAffected(), nil
}
