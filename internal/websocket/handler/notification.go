// internal/websocket/handler/notification.go
package handler

import (
	"context"
	"fmt"

	"tuzo-service/internal/domain/notification"
	wstypes "tuzo-service/internal/domain/websocket"
	ws "tuzo-service/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationStore interface {
	Latest(ctx context.Context, r notification.Recipient, limit int) ([]notification.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, r notification.Recipient) (int, error)
	MarkAllAsRead(ctx context.Context, r notification.Recipient) error
	UnreadCount(ctx context.Context, r notification.Recipient) (int, error)
}

// NotificationHandler serves the notification inbox over the socket.
type NotificationHandler struct {
	notifications NotificationStore
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

func (h *NotificationHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeNotificationRead,
		wstypes.EventTypeNotificationReadAll,
		wstypes.EventTypeNotificationList,
		wstypes.EventTypeNotificationCount,
	}
}

func (h *NotificationHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeNotificationRead:
		return h.handleMarkAsRead(ctx, client, msg)
	case wstypes.EventTypeNotificationReadAll:
		return h.handleMarkAllAsRead(ctx, client)
	case wstypes.EventTypeNotificationList:
		return h.handleListNotifications(ctx, client, msg)
	case wstypes.EventTypeNotificationCount:
		return h.handleGetCount(ctx, client)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *NotificationHandler) handleMarkAsRead(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req struct {
		NotificationID string `json:"notification_id"`
	}
	if err := ws.MapToStruct(msg.Data, &req); err != nil {
		client.SendError("invalid_request", "Invalid mark as read request", err.Error())
		return err
	}
	id, err := uuid.Parse(req.NotificationID)
	if err != nil {
		client.SendError("invalid_request", "Invalid notification ID", req.NotificationID)
		return err
	}

	count, err := h.notifications.MarkAsRead(ctx, id, client.Recipient())
	if err != nil {
		client.SendError("mark_read_failed", "Failed to mark notification as read", "")
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationRead, map[string]interface{}{
		"notification_id": id,
		"success":         true,
		"unread_count":    count,
	}))
	return nil
}

func (h *NotificationHandler) handleMarkAllAsRead(ctx context.Context, client *ws.Client) error {
	if err := h.notifications.MarkAllAsRead(ctx, client.Recipient()); err != nil {
		client.SendError("mark_all_read_failed", "Failed to mark all as read", "")
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationReadAll, map[string]interface{}{
		"success":      true,
		"unread_count": 0,
	}))
	return nil
}

func (h *NotificationHandler) handleListNotifications(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req struct {
		Limit int `json:"limit"`
	}
	if msg.Data != nil {
		if err := ws.MapToStruct(msg.Data, &req); err != nil {
			client.SendError("invalid_request", "Invalid list request", err.Error())
			return err
		}
	}
	if req.Limit <= 0 || req.Limit > 50 {
		req.Limit = 10
	}

	items, err := h.notifications.Latest(ctx, client.Recipient(), req.Limit)
	if err != nil {
		h.logger.Warn("failed to list notifications", zap.Error(err))
		client.SendError("list_failed", "Failed to get notifications", "")
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationList, map[string]interface{}{
		"notifications": items,
		"count":         len(items),
	}))
	return nil
}

func (h *NotificationHandler) handleGetCount(ctx context.Context, client *ws.Client) error {
	count, err := h.notifications.UnreadCount(ctx, client.Recipient())
	if err != nil {
		client.SendError("count_failed", "Failed to get unread count", "")
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationCount, map[string]interface{}{
		"unread_count": count,
	}))
	return nil
}
