// internal/domain/profile/entity.go
package profile

import (
	"time"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/domain/transaction"

	"github.com/google/uuid"
)

type Role string

const (
	RoleBusinessOwner Role = "business_owner"
	RoleCustomer      Role = "customer"
)

// UserProfile maps an authenticated identity to its business or customer record.
type UserProfile struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Role       Role       `json:"role" db:"role"`
	BusinessID *uuid.UUID `json:"business_id,omitempty" db:"business_id"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`

	// CustomerBusinessID is the business of the linked customer record.
	CustomerBusinessID *uuid.UUID `json:"customer_business_id,omitempty" db:"-"`
}

type LinkCustomerRequest struct {
	BusinessID uuid.UUID `json:"business_id" binding:"required"`
	Phone      string    `json:"phone" binding:"required"`
}

// Dashboard is the signed-in user's home view.
type Dashboard struct {
	Profile            *UserProfile              `json:"profile"`
	Business           *business.Business        `json:"business,omitempty"`
	Customer           *customer.Customer        `json:"customer,omitempty"`
	Rewards            []reward.Reward           `json:"rewards,omitempty"`
	RecentTransactions []transaction.Transaction `json:"recent_transactions,omitempty"`
}
