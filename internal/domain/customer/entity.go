// internal/domain/customer/entity.go
package customer

import (
	"time"

	"github.com/google/uuid"
)

// Customer is scoped to a single business; the same phone can hold separate
// balances at different businesses.
type Customer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BusinessID uuid.UUID `json:"business_id" db:"business_id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Phone      string    `json:"phone" db:"phone"`
	Email      *string   `json:"email,omitempty" db:"email"`
	Points     int64     `json:"points" db:"points"`
	VisitCount int64     `json:"visit_count" db:"visit_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
