// internal/handlers/notification/notification_handler.go
package notification

import (
	"net/http"
	"strconv"

	"tuzo-service/internal/domain/notification"
	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	service "tuzo-service/internal/service/notification"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

func recipient(c *gin.Context) (notification.Recipient, bool) {
	r, ok := middleware.Recipient(c)
	if !ok {
		response.Forbidden(c, "no notification inbox for this account")
	}
	return r, ok
}

// GetNotifications retrieves paginated notifications for the current user
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	var filters notification.NotificationListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.notificationService.List(c.Request.Context(), r, &filters)
	if err != nil {
		response.FromError(c, "failed to get notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", result)
}

// GetLatestNotifications retrieves the latest N notifications
func (h *NotificationHandler) GetLatestNotifications(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 10
	}

	notifications, err := h.notificationService.Latest(c.Request.Context(), r, limit)
	if err != nil {
		response.FromError(c, "failed to get notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// GetNotification retrieves a single notification by ID
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid notification ID", err)
		return
	}

	n, err := h.notificationService.GetByID(c.Request.Context(), id, r)
	if err != nil {
		response.FromError(c, "notification not found", err)
		return
	}

	response.Success(c, http.StatusOK, "notification retrieved", n)
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid notification ID", err)
		return
	}

	count, err := h.notificationService.MarkAsRead(c.Request.Context(), id, r)
	if err != nil {
		response.FromError(c, "failed to mark as read", err)
		return
	}

	response.Success(c, http.StatusOK, "notification marked as read", gin.H{
		"unread_count": count,
	})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), r); err != nil {
		response.FromError(c, "failed to mark all as read", err)
		return
	}

	response.Success(c, http.StatusOK, "all notifications marked as read", gin.H{
		"unread_count": 0,
	})
}

// GetUnreadCount gets the count of unread notifications
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), r)
	if err != nil {
		response.FromError(c, "failed to get unread count", err)
		return
	}

	response.Success(c, http.StatusOK, "unread count retrieved", gin.H{
		"unread_count": count,
	})
}

func (h *NotificationHandler) GetSummary(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	summary, err := h.notificationService.Summary(c.Request.Context(), r)
	if err != nil {
		response.FromError(c, "failed to get summary", err)
		return
	}

	response.Success(c, http.StatusOK, "summary retrieved", summary)
}

// DeleteNotification deletes a notification
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	r, ok := recipient(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid notification ID", err)
		return
	}

	if err := h.notificationService.Delete(c.Request.Context(), id, r); err != nil {
		response.FromError(c, "failed to delete notification", err)
		return
	}

	response.Success(c, http.StatusOK, "notification deleted", nil)
}
