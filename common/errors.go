package common

import (
	"fmt"
	"time"

	"emperror.dev/errors"
)

// Error kinds shared across the store, the discord layer and the campaign
// engine. Tool handlers map these onto structured error payloads.
const (
	ErrNotConnected = errors.Sentinel("discord session is not connected")
	ErrForbidden    = errors.Sentinel("forbidden")
	ErrNotFound     = errors.Sentinel("not found")
	ErrInvalidState = errors.Sentinel("invalid state")
)

// DuplicateError signals a (channel_id, message_id, emoji) collision on
// campaign create. It carries the id of the campaign already tracking that
// triple.
type DuplicateError struct {
	ExistingID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("campaign already exists with id %d", e.ExistingID)
}

// RateLimitedError is returned when Discord rejects a call with a 429.
// RetryAfter is zero when Discord did not say how long to wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// TransientError marks a retryable transport fault.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return "transient fault: " + e.Cause.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// ErrKind classifies err into its wire-level error kind name.
func ErrKind(err error) string {
	if err == nil {
		return ""
	}

	var (
		dup *DuplicateError
		rl  *RateLimitedError
		tr  *TransientError
	)

	switch {
	case errors.Is(err, ErrNotConnected):
		return "NotConnected"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.As(err, &dup):
		return "Duplicate"
	case errors.As(err, &rl):
		return "RateLimited"
	case errors.As(err, &tr):
		return "Transient"
	}

	return "Internal"
}
