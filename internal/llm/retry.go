package llm

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts    = 6
	DefaultInitialBackoff = time.Second

	// MaxAttemptsLimit bounds configured attempts per chart.
	MaxAttemptsLimit = 20
	// MaxBackoff caps a single wait between attempts.
	MaxBackoff = time.Minute
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds the attempts made for one chart.
type RetryPolicy struct {
	// MaxAttempts counts every request including the first.
	MaxAttempts int
	// InitialBackoff is the wait after the first failure; it doubles each time.
	InitialBackoff time.Duration
}

// NewRetryPolicy fills in defaults for non-positive values.
func NewRetryPolicy(maxAttempts int, initial time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	return RetryPolicy{MaxAttempts: maxAttempts, InitialBackoff: initial}
}

// Delay returns the wait after the given failed attempt (1-based),
// never more than MaxBackoff.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.InitialBackoff
	for i := 1; i < attempt && d < MaxBackoff; i++ {
		d *= 2
	}
	return min(d, MaxBackoff)
}

// Delays lists every wait a fully failing request goes through.
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, p.Delay(i))
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
