package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retry loop by attempt count and fixed interval.
// The overall timeout is Attempts*Interval.
type Policy struct {
	Attempts int           `yaml:"attempts" validate:"gte=1"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// Once is a single attempt with no waiting
var Once = Policy{Attempts: 1}

// DefaultPoll is 30 attempts 500ms apart, a 15s window
var DefaultPoll = Policy{Attempts: 30, Interval: 500 * time.Millisecond}

// Timeout returns the total time the policy may spend waiting
func (p Policy) Timeout() time.Duration {
	return time.Duration(p.Attempts) * p.Interval
}

// Do calls fn until it succeeds or the policy is exhausted. Attempts are
// numbered from 1. On exhaustion the returned error wraps both ErrExhausted
// and the last error from fn.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
