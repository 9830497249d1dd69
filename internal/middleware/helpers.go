// internal/middleware/helpers.go
package middleware

import (
	"tuzo-service/internal/domain/notification"
	"tuzo-service/internal/domain/profile"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	return getUUID(c, ctxUserID)
}

// MustGetUserID gets the user ID from context or panics
func MustGetUserID(c *gin.Context) uuid.UUID {
	id, ok := GetUserID(c)
	if !ok {
		panic("user_id not found in context")
	}
	return id
}

// GetVerifiedPhone returns the phone number claim of the caller's token, or
// "" when the token carries none.
func GetVerifiedPhone(c *gin.Context) string {
	return c.GetString(ctxPhone)
}

func GetBusinessID(c *gin.Context) (uuid.UUID, bool) {
	return getUUID(c, ctxBusinessID)
}

func MustGetBusinessID(c *gin.Context) uuid.UUID {
	id, ok := GetBusinessID(c)
	if !ok {
		panic("business_id not found in context")
	}
	return id
}

func GetCustomerID(c *gin.Context) (uuid.UUID, bool) {
	return getUUID(c, ctxCustomerID)
}

func GetRole(c *gin.Context) (profile.Role, bool) {
	v, exists := c.Get(ctxRole)
	if !exists {
		return "", false
	}
	role, ok := v.(profile.Role)
	return role, ok
}

func HasRole(c *gin.Context, role profile.Role) bool {
	r, ok := GetRole(c)
	return ok && r == role
}

// CustomerScope returns the caller's customer ID when they are a customer, or
// nil for owners. Owners see the whole business.
func CustomerScope(c *gin.Context) *uuid.UUID {
	if !HasRole(c, profile.RoleCustomer) {
		return nil
	}
	id, ok := GetCustomerID(c)
	if !ok {
		return &uuid.Nil
	}
	return &id
}

func getUUID(c *gin.Context, key string) (uuid.UUID, bool) {
	v, exists := c.Get(key)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Recipient maps the caller onto the notification inbox they own.
func Recipient(c *gin.Context) (notification.Recipient, bool) {
	role, ok := GetRole(c)
	if !ok {
		return notification.Recipient{}, false
	}
	switch role {
	case profile.RoleBusinessOwner:
		if id, ok := GetBusinessID(c); ok {
			return notification.Recipient{Type: notification.RecipientBusiness, ID: id}, true
		}
	case profile.RoleCustomer:
		if id, ok := GetCustomerID(c); ok {
			return notification.Recipient{Type: notification.RecipientCustomer, ID: id}, true
		}
	}
	return notification.Recipient{}, false
}
