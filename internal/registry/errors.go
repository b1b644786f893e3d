package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain-specific errors for registry calls.
var (
	// ErrInvalidBaseURL is returned by New when the base URL cannot be used.
	ErrInvalidBaseURL = errors.New("registry: invalid base url")

	// ErrRequestFailed wraps transport-level failures (DNS, refused, timeout).
	ErrRequestFailed = errors.New("registry: request failed")

	// ErrCircuitOpen is returned while the breaker is rejecting calls.
	ErrCircuitOpen = errors.New("registry: circuit open")

	// ErrInvalidResponse is returned when a typed helper cannot decode the reply.
	ErrInvalidResponse = errors.New("registry: invalid response")
)

// APIError is a non-2xx reply from the registry.
type APIError struct {
	Status  int
	Message string
}

// Error returns the registry's message, or "Request failed (<status>)".
func (e *APIError) Error() string {
	return e.Message
}

// Temporary reports whether the failure is on the registry side.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError
}

func newAPIError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("Request failed (%d)", status)
	}
	return &APIError{Status: status, Message: message}
}

// IsUnauthorized reports whether err is a 401 from the registry.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
