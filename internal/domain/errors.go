package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound covers missing records and records the caller may not see.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned for records past their TTL.
	ErrExpired = errors.New("expired")
	// ErrNotReady is returned when a task has not completed yet.
	ErrNotReady = errors.New("not ready")
	// ErrForbidden is returned when the caller does not own the record.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError is a caller input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// QuotaExceededError is returned when the daily limit is used up.
type QuotaExceededError struct {
	Limit      int
	RetryAfter int // whole seconds until ResetTime
	ResetTime  time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit of %d reached; resets at %s", e.Limit, e.ResetTime.Format(time.RFC3339))
}

// NewQuotaExceeded computes RetryAfter as floor(reset - now) seconds.
func NewQuotaExceeded(limit int, reset, now time.Time) *QuotaExceededError {
	return &QuotaExceededError{
		Limit:      limit,
		RetryAfter: max(0, int(reset.Sub(now)/time.Second)),
		ResetTime:  reset,
	}
}
