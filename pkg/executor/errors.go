package executor

import (
	"fmt"

	"agrimind/router/pkg/health"
)

// AllCandidatesExhaustedError is returned when a call could not be served:
// every attempt failed, or no eligible endpoint/credential remained. It is
// the only failure the executor surfaces; callers are expected to have
// their own fallback text.
type AllCandidatesExhaustedError struct {
	// Task is the task tag that could not be served.
	Task string

	// Attempts is how many attempts were made before giving up.
	Attempts int

	// LastKind is the classified kind of the last failure.
	LastKind health.FailureKind

	// Cause is the last raw error (nil when no attempt could even start).
	Cause error
}

// Error implements the error interface.
func (e *AllCandidatesExhaustedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("task %q: all candidates exhausted after %d attempts (last: %s): %v",
			e.Task, e.Attempts, e.LastKind, e.Cause)
	}
	return fmt.Sprintf("task %q: all candidates exhausted after %d attempts", e.Task, e.Attempts)
}

// Unwrap returns the last raw error for error chain support.
func (e *AllCandidatesExhaustedError) Unwrap() error {
	return e.Cause
}
