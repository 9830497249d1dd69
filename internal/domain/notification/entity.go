// internal/domain/notification/entity.go
package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeTransaction   NotificationType = "transaction"
	TypeReward        NotificationType = "reward"
	TypePaymentFailed NotificationType = "payment_failed"
	TypeInfo          NotificationType = "info"
)

type RecipientType string

const (
	RecipientBusiness RecipientType = "business"
	RecipientCustomer RecipientType = "customer"
)

// Recipient identifies who a notification is addressed to.
type Recipient struct {
	Type RecipientType
	ID   uuid.UUID
}

type Notification struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	RecipientType RecipientType          `json:"recipient_type" db:"recipient_type"`
	RecipientID   uuid.UUID              `json:"recipient_id" db:"recipient_id"`
	Title         string                 `json:"title" db:"title"`
	Message       string                 `json:"message" db:"message"`
	Type          NotificationType       `json:"type" db:"type"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	IsRead        bool                   `json:"is_read" db:"is_read"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
	ReadAt        *time.Time             `json:"read_at,omitempty" db:"read_at"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty" db:"expires_at"`
}

func (n *Notification) Recipient() Recipient {
	return Recipient{Type: n.RecipientType, ID: n.RecipientID}
}

// DTOs

type CreateNotificationRequest struct {
	Recipient Recipient
	Title     string
	Message   string
	Type      NotificationType
	Metadata  map[string]interface{}
	ExpiresAt *time.Time
}

type NotificationListFilters struct {
	IsRead   *bool             `form:"is_read"`
	Type     *NotificationType `form:"type"`
	Page     int               `form:"page"`
	PageSize int               `form:"page_size"`
}

type NotificationSummary struct {
	TotalUnread int `json:"total_unread"`
	TotalRead   int `json:"total_read"`
	Total       int `json:"total"`
}

type NotificationListResponse struct {
	Notifications []Notification      `json:"notifications"`
	Summary       NotificationSummary `json:"summary"`
	Total         int64               `json:"total"`
	Page          int                 `json:"page"`
	PageSize      int                 `json:"page_size"`
	TotalPages    int                 `json:"total_pages"`
}
