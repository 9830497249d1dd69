// internal/domain/transaction/entity.go
package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable record of a completed payment.
type Transaction struct {
	ID                uuid.UUID              `json:"id" db:"id"`
	BusinessID        uuid.UUID              `json:"business_id" db:"business_id"`
	CustomerID        uuid.UUID              `json:"customer_id" db:"customer_id"`
	Amount            decimal.Decimal        `json:"amount" db:"amount"`
	PointsAwarded     int64                  `json:"points_awarded" db:"points_awarded"`
	CheckoutRequestID string                 `json:"checkout_request_id" db:"checkout_request_id"`
	MpesaReceipt      *string                `json:"mpesa_receipt,omitempty" db:"mpesa_receipt"`
	Phone             string                 `json:"phone" db:"phone"`
	Status            TransactionStatus      `json:"status" db:"status"`
	Metadata          map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time              `json:"created_at" db:"created_at"`
}
