// ABOUTME: Bearer token inspection for backend credentials
// ABOUTME: Reads JWT claims without verifying, the backend holds the secret

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenInfo describes a bearer token as far as the client can tell.
// Signature verification happens on the backend; the client only reads
// claims to show who it is acting as and to warn before expiry.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry has passed. Tokens without
// an exp claim never expire.
func (ti TokenInfo) Expired() bool {
	if ti.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(ti.ExpiresAt)
}

// ExpiresWithin reports whether the token expires inside the window.
func (ti TokenInfo) ExpiresWithin(window time.Duration) bool {
	if ti.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(window).After(ti.ExpiresAt)
}

// Inspect parses a bearer token's claims without verifying its
// signature. A leading "Bearer " scheme is tolerated so pasted headers
// work. Opaque non-JWT tokens yield ErrInvalidToken.
func Inspect(tokenString string) (TokenInfo, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return TokenInfo{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenInfo{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return TokenInfo{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	info := TokenInfo{Subject: sub}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}

	return info, nil
}
