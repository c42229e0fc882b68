// Package auth inspects the bearer token the client sends to the
// backend.
//
// The client never verifies signatures; it only decodes JWT claims to
// report the acting subject and to warn when the credential is expired
// or about to expire. Opaque non-JWT tokens are rejected with
// ErrInvalidToken and treated by callers as uninspectable.
package auth
