// internal/domain/payment/entity.go
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
	RequestExpired   RequestStatus = "expired"
)

// Request is an STK push awaiting its callback. Provider callbacks carry only
// the CheckoutRequestID, so this row is how business and customer are resolved.
type Request struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	BusinessID        uuid.UUID       `json:"business_id" db:"business_id"`
	CustomerID        uuid.UUID       `json:"customer_id" db:"customer_id"`
	Phone             string          `json:"phone" db:"phone"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Description       string          `json:"description" db:"description"`
	CheckoutRequestID string          `json:"checkout_request_id" db:"checkout_request_id"`
	MerchantRequestID string          `json:"merchant_request_id" db:"merchant_request_id"`
	Status            RequestStatus   `json:"status" db:"status"`
	ResultCode        *int            `json:"result_code,omitempty" db:"result_code"`
	ResultDesc        *string         `json:"result_desc,omitempty" db:"result_desc"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}
