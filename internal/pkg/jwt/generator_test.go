package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// testGenerator signs HS256 tokens shaped like the auth backend's.
type testGenerator struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func newTestGenerator(secret []byte, issuer, audience string, ttl time.Duration) *testGenerator {
	return &testGenerator{secret: secret, issuer: issuer, audience: audience, ttl: ttl}
}

func (g *testGenerator) Generate(userID uuid.UUID, email, phone string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Phone: phone,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID.String(),
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        ulid.Make().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}
