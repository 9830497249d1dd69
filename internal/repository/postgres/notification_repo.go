// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tuzo-service/internal/domain/notification"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const notificationColumns = `
	id, recipient_type, recipient_id, title, message, type, metadata, is_read, created_at, read_at, expires_at
`

type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_type, recipient_id, title, message, type, metadata, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	var metadataJSON []byte
	var err error
	if n.Metadata != nil {
		metadataJSON, err = json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = r.db.Pool().QueryRow(
		ctx, query,
		n.ID, n.RecipientType, n.RecipientID, n.Title, n.Message, n.Type, metadataJSON, n.ExpiresAt,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// FindByID retrieves a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err, "notification not found")
	}
	return n, nil
}

// List retrieves a recipient's notifications with filters
func (r *NotificationRepository) List(ctx context.Context, rc notification.Recipient, filters *notification.NotificationListFilters) ([]notification.Notification, int64, error) {
	conditions := []string{"recipient_type = $1", "recipient_id = $2"}
	args := []interface{}{rc.Type, rc.ID}
	argPos := 3

	// Filter out expired notifications
	conditions = append(conditions, "(expires_at IS NULL OR expires_at > NOW())")

	if filters.IsRead != nil {
		conditions = append(conditions, fmt.Sprintf("is_read = $%d", argPos))
		args = append(args, *filters.IsRead)
		argPos++
	}

	if filters.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, *filters.Type)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	var total int64
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	limit, offset := normalizePage(&filters.Page, &filters.PageSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, notificationColumns, whereClause, argPos, argPos+1)

	args = append(args, limit, offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notification.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, total, rows.Err()
}

// Latest retrieves the newest limit notifications
func (r *NotificationRepository) Latest(ctx context.Context, rc notification.Recipient, limit int) ([]notification.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_type = $1 AND recipient_id = $2 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, rc.Type, rc.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notification.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, rows.Err()
}

// MarkAsRead marks a notification as read
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID, rc notification.Recipient) error {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = $1
		WHERE id = $2 AND recipient_type = $3 AND recipient_id = $4 AND is_read = false
	`

	result, err := r.db.Pool().Exec(ctx, query, time.Now(), id, rc.Type, rc.ID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.NotFound("notification not found or already read")
	}

	return nil
}

// MarkAllAsRead marks all of a recipient's notifications as read
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, rc notification.Recipient) (int64, error) {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = $1
		WHERE recipient_type = $2 AND recipient_id = $3 AND is_read = false
	`

	result, err := r.db.Pool().Exec(ctx, query, time.Now(), rc.Type, rc.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, rc notification.Recipient) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_type = $1 AND recipient_id = $2 AND is_read = false
		  AND (expires_at IS NULL OR expires_at > NOW())
	`

	var count int
	if err := r.db.Pool().QueryRow(ctx, query, rc.Type, rc.ID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}

	return count, nil
}

// Summary gets read/unread totals
func (r *NotificationRepository) Summary(ctx context.Context, rc notification.Recipient) (*notification.NotificationSummary, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN is_read = false THEN 1 END) as unread,
			COUNT(CASE WHEN is_read = true THEN 1 END) as read
		FROM notifications
		WHERE recipient_type = $1 AND recipient_id = $2 AND (expires_at IS NULL OR expires_at > NOW())
	`

	var summary notification.NotificationSummary
	err := r.db.Pool().QueryRow(ctx, query, rc.Type, rc.ID).Scan(&summary.Total, &summary.TotalUnread, &summary.TotalRead)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification summary: %w", err)
	}

	return &summary, nil
}

// Delete deletes a notification
func (r *NotificationRepository) Delete(ctx context.Context, id uuid.UUID, rc notification.Recipient) error {
	query := `DELETE FROM notifications WHERE id = $1 AND recipient_type = $2 AND recipient_id = $3`

	result, err := r.db.Pool().Exec(ctx, query, id, rc.Type, rc.ID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.NotFound("notification not found")
	}

	return nil
}

// DeleteExpired deletes expired notifications
func (r *NotificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE expires_at IS NOT NULL AND expires_at < NOW()
	`

	result, err := r.db.Pool().Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var n notification.Notification
	var metadataJSON []byte

	err := row.Scan(
		&n.ID, &n.RecipientType, &n.RecipientID, &n.Title, &n.Message, &n.Type,
		&metadataJSON, &n.IsRead, &n.CreatedAt, &n.ReadAt, &n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &n, nil
}
