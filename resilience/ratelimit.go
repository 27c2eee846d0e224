package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// MaxRequests is the number of admissions allowed per Window.
	// Default: 100
	MaxRequests int

	// Window is the trailing window requests are counted over.
	// Default: 1 second
	Window time.Duration

	// Service names the guarded dependency for diagnostics.
	Service string
}

// RateLimiter implements sliding-window admission control. The count of
// admissions younger than Window never exceeds MaxRequests; a limiter
// instance is shared by every call to one named dependency.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	timestamps []time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.MaxRequests <= 0 {
		config.MaxRequests = 100
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}

	return &RateLimiter{config: config}
}

// Acquire blocks until admission is possible, then records the admission
// timestamp. When the window is full it sleeps until the oldest entry falls
// outside the window and re-evaluates, so simultaneous wakers cannot
// overshoot the limit.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow reports admission without waiting. On denial it returns a
// RateLimitError carrying the time until the next slot frees up.
func (rl *RateLimiter) Allow() error {
	wait, ok := rl.tryAcquire()
	if ok {
		return nil
	}
	return &RateLimitError{Service: rl.config.Service, RetryAfter: wait}
}

// tryAcquire admits and records the request if the window has room,
// otherwise reports how long until the oldest entry expires.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(now)

	if len(rl.timestamps) < rl.config.MaxRequests {
		rl.timestamps = append(rl.timestamps, now)
		return 0, true
	}

	// Never index a fully pruned window.
	if len(rl.timestamps) == 0 {
		rl.timestamps = append(rl.timestamps, now)
		return 0, true
	}

	wait := rl.config.Window - now.Sub(rl.timestamps[0])
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rl.config.Window)
	idx := len(rl.timestamps)
	for i, t := range rl.timestamps {
		if t.After(cutoff) {
			idx = i
			break
		}
	}
	if idx > 0 {
		rl.timestamps = append(rl.timestamps[:0:0], rl.timestamps[idx:]...)
	}
}

// Execute acquires admission and then runs the operation.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := rl.Acquire(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Remaining returns how many requests may still be admitted in the current
// window.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.pruneLocked(time.Now())
	return rl.config.MaxRequests - len(rl.timestamps)
}

// Reset discards all recorded admissions.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.timestamps = nil
}

// Metrics returns a snapshot of the limiter state.
func (rl *RateLimiter) Metrics() RateLimiterMetrics {
	return RateLimiterMetrics{
		Remaining:   rl.Remaining(),
		MaxRequests: rl.config.MaxRequests,
		Window:      rl.config.Window,
	}
}

// RateLimiterMetrics contains rate limiter statistics.
type RateLimiterMetrics struct {
	Remaining   int
	MaxRequests int
	Window      time.Duration
}
