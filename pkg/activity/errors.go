// Package activity defines the typed, at-least-once call surface to the
// external AI computations, with classified errors and bounded retries.
package activity

import (
	"errors"
	"fmt"
)

// ErrorType classifies activity failures for retry decisions.
type ErrorType int8

const (
	// Retryable error types.

	// ErrorTypeTransient represents downstream service failures (5xx, EOF,
	// connection reset, timeout).
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeRateLimit represents rate limiting (429, quota exceeded).
	ErrorTypeRateLimit

	// Non-retryable error types.

	// ErrorTypeInvalidRequest represents malformed inputs that validation
	// rejected. Never retried and never consumes an iteration slot.
	ErrorTypeInvalidRequest
	// ErrorTypeContentPolicy represents terminal model-side rejections.
	ErrorTypeContentPolicy
	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeInvalidRequest:
		return "invalid_request"
	case ErrorTypeContentPolicy:
		return "content_policy"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error is a classified activity failure.
type Error struct {
	Err      error     // Wrapped underlying error
	Message  string    // Human-readable error message
	Activity string    // Which activity failed
	Type     ErrorType // Classified error type
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("activity %s (%s): %s", e.Activity, e.Type.String(), e.Message)
	}
	return fmt.Sprintf("activity %s (%s): %v", e.Activity, e.Type.String(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is worth re-attempting.
// Blocklist approach: everything retries unless explicitly terminal.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeContentPolicy:
		return false
	default:
		return true
	}
}

// NewError creates a classified activity error.
func NewError(errorType ErrorType, activityName, message string) *Error {
	return &Error{
		Type:     errorType,
		Activity: activityName,
		Message:  message,
	}
}

// WrapError classifies an underlying error.
func WrapError(errorType ErrorType, activityName string, cause error) *Error {
	return &Error{
		Type:     errorType,
		Activity: activityName,
		Err:      cause,
	}
}

// TypeOf returns the classified type of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var actErr *Error
	if errors.As(err, &actErr) {
		return actErr.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err should be surfaced as retryable.
// Unclassified errors default to retryable so a user can always try again
// after an unexpected failure.
func IsRetryable(err error) bool {
	var actErr *Error
	if errors.As(err, &actErr) {
		return actErr.IsRetryable()
	}
	return true
}
