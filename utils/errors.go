package utils

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// ErrCircuitOpen is returned when the circuit breaker refuses an attempt
// without touching the network.
var ErrCircuitOpen = NewAPIError(http.StatusServiceUnavailable, "Circuit breaker is open")

// RateLimitedError is returned for HTTP 429 responses and carries the
// server-provided retry hint so callers can honor it over computed backoff.
type RateLimitedError struct {
	RetryAfter float64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %.2fs", e.RetryAfter)
}

// StatusError is returned for non-2xx webhook responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
