package musicgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// AuthenticationError is returned when the service rejects the API key.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return "music generation authentication failed: " + e.Message
}

// RateLimitError is returned on HTTP 429 or an equivalent body code.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("music generation rate limited (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return "music generation rate limited: " + e.Message
}

// Temporary marks rate limiting as retryable.
func (e *RateLimitError) Temporary() bool { return true }

// APIError is any other unsuccessful response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("music generation API error (%d): %s", e.StatusCode, e.Message)
}

// Temporary reports server side failures as retryable.
func (e *APIError) Temporary() bool { return e.StatusCode >= 500 }

// TimeoutError is returned when a request exceeds the client timeout.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("music generation %s timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error   { return e.Err }
func (e *TimeoutError) Temporary() bool { return true }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
