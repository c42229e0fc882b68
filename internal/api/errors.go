// ABOUTME: Error types surfaced by backend HTTP calls.
// ABOUTME: TransportError carries the status code and raw body for diagnostics.

package api

import "fmt"

// TransportError reports a non-success HTTP status from the backend.
// Body holds the raw response text so callers can surface backend
// diagnostics ("model overloaded", validation detail) verbatim.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}
