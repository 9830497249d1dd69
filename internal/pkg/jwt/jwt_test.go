package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndVerify(t *testing.T) {
	secret := []byte("test-secret")
	gen := newTestGenerator(secret, "tuzo-auth", "authenticated", time.Hour)
	ver := NewVerifier(secret, nil, "tuzo-auth", "authenticated")

	userID := uuid.New()
	token, err := gen.Generate(userID, "owner@example.com", "+254712345678")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ver.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	got, err := claims.UserID()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	if got != userID {
		t.Fatalf("expected %s, got %s", userID, got)
	}
	if claims.Email != "owner@example.com" || claims.Phone != "+254712345678" {
		t.Fatalf("unexpected contact claims %q %q", claims.Email, claims.Phone)
	}
}

func TestVerifyRejects(t *testing.T) {
	userID := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		token, _ := newTestGenerator([]byte("a"), "iss", "aud", time.Hour).Generate(userID, "", "")
		if _, err := NewVerifier([]byte("b"), nil, "iss", "aud").Verify(token); err == nil {
			t.Fatal("expected signature error")
		}
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, _ := newTestGenerator([]byte("a"), "iss", "other", time.Hour).Generate(userID, "", "")
		_, err := NewVerifier([]byte("a"), nil, "iss", "aud").Verify(token)
		if err == nil || !strings.Contains(err.Error(), "audience") {
			t.Fatalf("expected audience error, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		token, _ := newTestGenerator([]byte("a"), "iss", "aud", -time.Minute).Generate(userID, "", "")
		if _, err := NewVerifier([]byte("a"), nil, "iss", "aud").Verify(token); err == nil {
			t.Fatal("expected expiry error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := NewVerifier([]byte("a"), nil, "", "").Verify("not.a.token"); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestLoadAndBuildRequiresKey(t *testing.T) {
	if _, err := LoadAndBuild(Config{}); err == nil {
		t.Fatal("expected error without secret or key")
	}
	m, err := LoadAndBuild(Config{Secret: "s", Issuer: "i", Audience: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Verifier == nil {
		t.Fatal("expected verifier")
	}
}
