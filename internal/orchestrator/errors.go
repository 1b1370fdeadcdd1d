package orchestrator

import (
	"errors"
	"time"
)

// ThrottledError signals that the external service rejected a call for rate
// limiting (HTTP 429 equivalent). RetryAfter carries the server-provided wait
// hint when one was present, otherwise zero.
type ThrottledError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return "throttled: " + e.Err.Error()
}

func (e *ThrottledError) Unwrap() error {
	return e.Err
}

// Throttled wraps err as a throttling failure with an optional retry hint.
func Throttled(err error, retryAfter time.Duration) error {
	return &ThrottledError{Err: err, RetryAfter: retryAfter}
}

// StructuralError signals a failure that retrying cannot fix, such as a
// response that stays unparseable after best-effort repair. The orchestrator
// fails the item immediately without consuming remaining attempts.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string {
	return "structural: " + e.Err.Error()
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Structural wraps err as a non-retriable failure.
func Structural(err error) error {
	return &StructuralError{Err: err}
}

// IsThrottled reports whether err is a throttling failure and returns its
// retry hint.
func IsThrottled(err error) (time.Duration, bool) {
	var throttled *ThrottledError
	if errors.As(err, &throttled) {
		return throttled.RetryAfter, true
	}
	return 0, false
}

// IsStructural reports whether err is a non-retriable failure.
func IsStructural(err error) bool {
	var structural *StructuralError
	return errors.As(err, &structural)
}
