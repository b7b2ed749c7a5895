package invoker

import (
	"errors"
	"time"

	"gameforge/pkg/llmerrors"
)

// Policy bounds the attempts made for one provider call.
type Policy struct {
	MaxAttempts int           `json:"max_attempts"` // Total attempts including the first
	DelayBase   time.Duration `json:"delay_base"`   // Sleep after failed attempt n is DelayBase*n
}

// DefaultPolicy is three attempts with a one second base delay.
//
//nolint:gochecknoglobals // sensible default config pattern
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	DelayBase:   time.Second,
}

// Validate rejects policies that would never call the provider.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if p.DelayBase < 0 {
		return errors.New("delay base cannot be negative")
	}
	return nil
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(failedAttempt int) time.Duration {
	return p.DelayBase * time.Duration(failedAttempt)
}

// ShouldRetry reports whether err may be attempted again. Only classified
// transient provider failures qualify; everything else aborts immediately.
func (p Policy) ShouldRetry(err error) bool {
	return llmerrors.IsRetryable(err)
}
