package invoker

import (
	"errors"
	"fmt"

	"gameforge/pkg/llmerrors"
)

// Error is returned by Invoke when no result could be produced. Attempts is
// the number of provider calls made; zero means the failure happened before
// any call (cache store error, invalid request).
type Error struct {
	Err       error
	Attempts  int
	Exhausted bool // retryable failures used up every attempt
}

func (e *Error) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("max retries reached after %d attempts: %v", e.Attempts, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Type returns the classification of the underlying failure.
func (e *Error) Type() llmerrors.ErrorType {
	return llmerrors.TypeOf(e.Err)
}

// AttemptsOf extracts the attempt count from an invoker error, or 0.
func AttemptsOf(err error) int {
	var invErr *Error
	if errors.As(err, &invErr) {
		return invErr.Attempts
	}
	return 0
}
