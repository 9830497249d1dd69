// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tuzo-service/internal/domain/profile"
	"tuzo-service/internal/pkg/jwt"
	"tuzo-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxUserID     = "user_id"
	ctxEmail      = "email"
	ctxPhone      = "phone"
	ctxRole       = "role"
	ctxBusinessID = "business_id"
	ctxCustomerID = "customer_id"
)

type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// ProfileResolver returns nil, nil for users without a profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	profiles ProfileResolver
}

func NewAuthMiddleware(verifier TokenVerifier, profiles ProfileResolver) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		profiles: profiles,
	}
}

// Auth validates the bearer token and loads the caller's role and scope.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid token subject", err)
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxPhone, claims.Phone)

		p, err := m.profiles.Resolve(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to load profile", nil)
			return
		}
		if p != nil {
			c.Set(ctxRole, p.Role)
			switch p.Role {
			case profile.RoleBusinessOwner:
				if p.BusinessID != nil {
					c.Set(ctxBusinessID, *p.BusinessID)
				}
			case profile.RoleCustomer:
				if p.CustomerID != nil {
					c.Set(ctxCustomerID, *p.CustomerID)
				}
				if p.CustomerBusinessID != nil {
					c.Set(ctxBusinessID, *p.CustomerBusinessID)
				}
			}
		}

		c.Next()
	}
}

// RequireRole requires one of roles and a resolved business scope.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...profile.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "no profile found - complete onboarding first", nil)
			return
		}

		allowed := false
		for _, r := range roles {
			if r == role {
				allowed = true
				break
			}
		}

		if !allowed {
			err := errors.New("user does not have required role")
			response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
				"required_roles": roles,
				"user_role":      role,
			})
			return
		}

		if _, ok := GetBusinessID(c); !ok {
			response.Error(c, http.StatusForbidden, "profile is not linked to a business", nil)
			return
		}

		c.Next()
	}
}

// OwnerOnly returns middlewares for business owner routes (Auth + RequireRole)
func (m *AuthMiddleware) OwnerOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(profile.RoleBusinessOwner),
	}
}

// Member returns middlewares for routes open to owners and linked customers.
func (m *AuthMiddleware) Member() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(profile.RoleBusinessOwner, profile.RoleCustomer),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Browsers cannot set headers on websocket upgrades
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}
