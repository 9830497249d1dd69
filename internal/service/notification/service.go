// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/notification"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, n *notification.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error)
	List(ctx context.Context, r notification.Recipient, filters *notification.NotificationListFilters) ([]notification.Notification, int64, error)
	Latest(ctx context.Context, r notification.Recipient, limit int) ([]notification.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, r notification.Recipient) error
	MarkAllAsRead(ctx context.Context, r notification.Recipient) (int64, error)
	UnreadCount(ctx context.Context, r notification.Recipient) (int, error)
	Summary(ctx context.Context, r notification.Recipient) (*notification.NotificationSummary, error)
	Delete(ctx context.Context, id uuid.UUID, r notification.Recipient) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// NotificationService persists notifications and pushes them to live subscribers.
type NotificationService struct {
	repo   Repository
	broker realtime.Broker
	logger *zap.Logger
}

func NewNotificationService(repo Repository, broker realtime.Broker, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		broker: broker,
		logger: logger,
	}
}

// Create stores a notification and pushes it to the recipient's live connections.
func (s *NotificationService) Create(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	if req.Recipient.ID == uuid.Nil {
		return nil, xerrors.Invalid("notification recipient is required")
	}
	if req.Title == "" || req.Message == "" {
		return nil, xerrors.Invalid("notification title and message are required")
	}

	n := &notification.Notification{
		ID:            uuid.New(),
		RecipientType: req.Recipient.Type,
		RecipientID:   req.Recipient.ID,
		Title:         req.Title,
		Message:       req.Message,
		Type:          req.Type,
		Metadata:      req.Metadata,
		ExpiresAt:     req.ExpiresAt,
	}
	if n.Type == "" {
		n.Type = notification.TypeInfo
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.publish(ctx, realtime.OpInsert, req.Recipient, n)
	return n, nil
}

// GetByID returns a notification owned by r.
func (s *NotificationService) GetByID(ctx context.Context, id uuid.UUID, r notification.Recipient) (*notification.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Recipient() != r {
		return nil, xerrors.NotFound("notification not found")
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, r notification.Recipient, filters *notification.NotificationListFilters) (*notification.NotificationListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	notifications, total, err := s.repo.List(ctx, r, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	summary, err := s.repo.Summary(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &notification.NotificationListResponse{
		Notifications: notifications,
		Summary:       *summary,
		Total:         total,
		Page:          filters.Page,
		PageSize:      filters.PageSize,
		TotalPages:    totalPages(total, filters.PageSize),
	}, nil
}

func (s *NotificationService) Latest(ctx context.Context, r notification.Recipient, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.repo.Latest(ctx, r, limit)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, r notification.Recipient) (int, error) {
	if err := s.repo.MarkAsRead(ctx, id, r); err != nil {
		return 0, fmt.Errorf("failed to mark as read: %w", err)
	}
	return s.pushCount(ctx, r), nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, r notification.Recipient) error {
	if _, err := s.repo.MarkAllAsRead(ctx, r); err != nil {
		return fmt.Errorf("failed to mark all as read: %w", err)
	}
	s.publish(ctx, realtime.OpUpdate, r, map[string]interface{}{"unread_count": 0})
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, r notification.Recipient) (int, error) {
	return s.repo.UnreadCount(ctx, r)
}

func (s *NotificationService) Summary(ctx context.Context, r notification.Recipient) (*notification.NotificationSummary, error) {
	return s.repo.Summary(ctx, r)
}

func (s *NotificationService) Delete(ctx context.Context, id uuid.UUID, r notification.Recipient) error {
	if err := s.repo.Delete(ctx, id, r); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// DeleteExpired removes notifications past their expiry. Run from the scheduler.
func (s *NotificationService) DeleteExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("deleted expired notifications", zap.Int64("count", deleted))
	}
	return deleted, nil
}

func (s *NotificationService) pushCount(ctx context.Context, r notification.Recipient) int {
	count, err := s.repo.UnreadCount(ctx, r)
	if err != nil {
		s.logger.Warn("failed to get unread count", zap.Error(err))
		return 0
	}
	s.publish(ctx, realtime.OpUpdate, r, map[string]interface{}{"unread_count": count})
	return count
}

// publish is best-effort; failures are logged and never returned.
func (s *NotificationService) publish(ctx context.Context, op realtime.Op, r notification.Recipient, record interface{}) {
	if s.broker == nil {
		return
	}
	businessID, customerID := Scope(r)
	ev, err := realtime.NewEvent(realtime.TopicNotifications, op, businessID, customerID, record)
	if err != nil {
		s.logger.Warn("failed to build notification event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish notification event", zap.Error(err))
	}
}

// Scope maps a recipient onto the realtime scoping fields.
func Scope(r notification.Recipient) (businessID, customerID *uuid.UUID) {
	id := r.ID
	if r.Type == notification.RecipientBusiness {
		return &id, nil
	}
	return nil, &id
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}
	return pages
}
