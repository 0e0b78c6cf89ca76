package classifier

import (
	"errors"
	"fmt"
)

// TransientError is a failure that may succeed on retry: network errors, timeouts, 429, 5xx
// and response bodies that cannot be parsed.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrorClass implements the metric classifier interface.
func (e *TransientError) ErrorClass() string { return "classifier_transient" }

// Permanent reports false; the failure may clear on retry.
func (e *TransientError) Permanent() bool { return false }

// PermanentError is a failure retrying cannot fix, such as a 4xx other than 429.
type PermanentError struct {
	Op     string
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ErrorClass implements the metric classifier interface.
func (e *PermanentError) ErrorClass() string { return "classifier_permanent" }

// Permanent reports true so callers outside this package can skip retries.
func (e *PermanentError) Permanent() bool { return true }

func statusError(op string, status int, body []byte) error {
	err := errors.New(truncate(body, 512))
	if status == 429 || status >= 500 {
		return &TransientError{Op: op, Status: status, Err: err}
	}
	return &PermanentError{Op: op, Status: status, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
