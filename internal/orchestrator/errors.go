package orchestrator

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the orchestrator. Detail carries the
// human-readable message from the response body when the orchestrator
// provided one.
type APIError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("orchestrator returned status %d", e.StatusCode)
}

// IsAuthError reports whether the error is a rejected or missing credential.
// Callers surface these as a redirect to login rather than an error banner.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
