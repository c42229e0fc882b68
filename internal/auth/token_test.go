// ABOUTME: Unit tests for bearer token inspection
// ABOUTME: Tests claim extraction, expiry reporting, and opaque tokens

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signToken builds a real HS256 token. The secret is irrelevant because
// inspection never verifies signatures.
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("backend-only-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func TestInspect_ValidToken(t *testing.T) {
	issued := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)
	token := signToken(t, jwt.MapClaims{
		"sub": "analyst-42",
		"iat": issued.Unix(),
		"exp": expires.Unix(),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if info.Subject != "analyst-42" {
		t.Errorf("Subject = %q, want %q", info.Subject, "analyst-42")
	}
	if info.IssuedAt.Unix() != issued.Unix() {
		t.Errorf("IssuedAt = %v, want %v", info.IssuedAt, issued)
	}
	if info.ExpiresAt.Unix() != expires.Unix() {
		t.Errorf("ExpiresAt = %v, want %v", info.ExpiresAt, expires)
	}
	if info.Expired() {
		t.Error("Expired() = true for a live token")
	}
}

func TestInspect_BearerPrefix(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "analyst-42"})

	info, err := Inspect("Bearer " + token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Subject != "analyst-42" {
		t.Errorf("Subject = %q, want %q", info.Subject, "analyst-42")
	}
}

func TestInspect_OpaqueToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "opaque API key", token: "sk-not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.token)
			if err == nil {
				t.Fatal("Inspect() should have returned an error")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Inspect() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestInspect_MissingSubject(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	_, err := Inspect(token)
	if err == nil {
		t.Fatal("Inspect() should have returned an error")
	}
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Inspect() error = %v, want ErrMissingClaim", err)
	}
}

func TestInspect_ExpiredTokenStillInspectable(t *testing.T) {
	// Inspection must not reject expired tokens, the caller decides
	// what an expired credential means
	token := signToken(t, jwt.MapClaims{
		"sub": "analyst-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !info.Expired() {
		t.Error("Expired() = false for an expired token")
	}
}

func TestTokenInfo_Expired_NoExpClaim(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "analyst-42"})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Expired() {
		t.Error("Expired() = true for a token without exp")
	}
	if info.ExpiresWithin(24 * time.Hour) {
		t.Error("ExpiresWithin() = true for a token without exp")
	}
}

func TestTokenInfo_ExpiresWithin(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "analyst-42",
		"exp": time.Now().Add(30 * time.Minute).Unix(),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if !info.ExpiresWithin(time.Hour) {
		t.Error("ExpiresWithin(1h) = false for a token expiring in 30m")
	}
	if info.ExpiresWithin(time.Minute) {
		t.Error("ExpiresWithin(1m) = true for a token expiring in 30m")
	}
}
