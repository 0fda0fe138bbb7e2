package recovery

import (
	"context"
	"time"

	"ble-solar-monitor/pkg/errors"
)

// FailureClass splits connection failures into the two classes the backoff
// policy distinguishes
type FailureClass int

const (
	// ClassTransient - link establishment flaked, retrying with backoff can help
	ClassTransient FailureClass = iota
	// ClassDefinitive - the device is not advertising; no number of retries
	// will find it, so the attempt window ends immediately
	ClassDefinitive
)

// String returns the string representation of the class
func (c FailureClass) String() string {
	switch c {
	case ClassTransient:
		return "TRANSIENT"
	case ClassDefinitive:
		return "DEFINITIVE"
	default:
		return "UNKNOWN"
	}
}

// Classify maps a connection error to its failure class
func Classify(err error) FailureClass {
	if errors.IsNotFound(err) {
		return ClassDefinitive
	}
	return ClassTransient
}

// RetryPolicy wraps an operation in bounded retries with exponential backoff.
// It is consulted uniformly by every connect call site instead of each one
// carrying its own ad-hoc retry loop.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BackoffBase time.Duration // delay before the second attempt
	BackoffCap  time.Duration // upper bound on any single delay
}

// Backoff returns the delay to insert after the given failed attempt
// (1-based). Delays double per attempt and saturate at BackoffCap.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// Run executes op until it succeeds, a definitive failure ends the window,
// attempts run out, or ctx is cancelled. Backoff sleeps are cancellable so
// a host teardown never waits out a delay.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if Classify(lastErr) == ClassDefinitive {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff(attempt)):
		}
	}
	return lastErr
}
