// internal/pkg/jwt/loader.go
package jwt

import (
	"crypto/rsa"
	"fmt"
)

type Config struct {
	Secret   string // HS256 shared secret of the auth backend
	PubPath  string // optional RS256 public key; takes precedence over Secret
	Issuer   string
	Audience string
}

// Manager holds the verifier for tokens minted by the auth backend. This
// service never issues tokens.
type Manager struct {
	Verifier *Verifier
}

func LoadAndBuild(cfg Config) (*Manager, error) {
	var pub *rsa.PublicKey
	if cfg.PubPath != "" {
		key, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
		}
		pub = key
	} else if cfg.Secret == "" {
		return nil, fmt.Errorf("either a JWT secret or a public key path is required")
	}

	return &Manager{
		Verifier: NewVerifier([]byte(cfg.Secret), pub, cfg.Issuer, cfg.Audience),
	}, nil
}
