package resilience

import (
	"context"
	"time"
)

// Timeout races operations against a deadline. The race does not cancel the
// underlying operation; it stops waiting for it and surfaces a TimeoutError,
// so operations must tolerate abandoned results.
type Timeout struct {
	op      string
	timeout time.Duration
}

// NewTimeout creates a timeout wrapper for the named operation. A timeout of
// zero or less disables the race entirely.
func NewTimeout(op string, timeout time.Duration) *Timeout {
	return &Timeout{op: op, timeout: timeout}
}

// Execute runs the operation, failing with a TimeoutError if it does not
// settle within the deadline. The timer is stopped as soon as the raced
// operation settles so idle timers never hold up shutdown.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	if t.timeout <= 0 {
		// Fast path, no timer allocated
		return op(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &TimeoutError{Op: t.op, Timeout: t.timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecuteWithTimeout is a convenience function to run a named operation with
// a timeout.
func ExecuteWithTimeout(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	return NewTimeout(op, timeout).Execute(ctx, fn)
}
