package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// Classifier decides whether an error should trigger a retry.
type Classifier func(err error) bool

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// Jitter adds up to 25% randomness to delays to prevent thundering
	// herd. Default: false, so the backoff schedule is exact.
	Jitter bool

	// RetryableStatuses is the set of HTTP status codes that trigger a
	// retry. Default: 408, 429, 500, 502, 503, 504.
	RetryableStatuses map[int]bool

	// RetryableCodes is the set of network/provider error codes that
	// trigger a retry.
	// Default: ECONNRESET, ECONNREFUSED, ETIMEDOUT, ENOTFOUND.
	RetryableCodes map[string]bool

	// Classifier overrides the status/code retryability test entirely.
	Classifier Classifier

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	// OnRecover is called when an operation succeeds after one or more
	// retries, with the attempt number that succeeded.
	OnRecover func(attempt int)
}

// DefaultRetryableStatuses returns the default retryable HTTP status set.
func DefaultRetryableStatuses() map[int]bool {
	return map[int]bool{
		408: true,
		429: true,
		500: true,
		502: true,
		503: true,
		504: true,
	}
}

// DefaultRetryableCodes returns the default retryable error code set.
func DefaultRetryableCodes() map[string]bool {
	return map[string]bool{
		"ECONNRESET":   true,
		"ECONNREFUSED": true,
		"ETIMEDOUT":    true,
		"ENOTFOUND":    true,
	}
}

// Retry implements retry with backoff. It is stateless per call; one Retry
// may be shared by concurrent executions.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryableStatuses == nil {
		config.RetryableStatuses = DefaultRetryableStatuses()
	}
	if config.RetryableCodes == nil {
		config.RetryableCodes = DefaultRetryableCodes()
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic. Once attempts are exhausted
// or the error is non-retryable, the last error is returned unchanged so
// callers can still branch on its kind.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)

		if err == nil {
			if attempt > 1 && r.config.OnRecover != nil {
				r.config.OnRecover(attempt)
			}
			return nil
		}

		lastErr = err

		if !r.Retryable(err) {
			return err
		}

		// Don't retry if this was the last attempt
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.Delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		// Wait for delay or context cancellation
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Retryable reports whether the error should trigger a retry. An error is
// retryable if it does not mark itself non-operational and either its HTTP
// status or its error code is in the configured retryable set.
func (r *Retry) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if r.config.Classifier != nil {
		return r.config.Classifier(err)
	}

	var op interface{ Operational() bool }
	if errors.As(err, &op) && !op.Operational() {
		return false
	}

	if status, ok := httpStatus(err); ok && r.config.RetryableStatuses[status] {
		return true
	}
	if code := errorCode(err); code != "" && r.config.RetryableCodes[code] {
		return true
	}
	return false
}

// Delay returns the backoff delay after the given 1-indexed attempt:
// min(InitialDelay * Multiplier^(attempt-1), MaxDelay).
func (r *Retry) Delay(attempt int) time.Duration {
	multiplier := math.Pow(r.config.Multiplier, float64(attempt-1))
	delay := time.Duration(float64(r.config.InitialDelay) * multiplier)

	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// httpStatus extracts an HTTP status code from the error chain.
func httpStatus(err error) (int, bool) {
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatus(), true
	}
	return 0, false
}

// errorCode extracts a network error code from the error chain. Errors that
// do not carry an explicit code are mapped from the stdlib network error
// types.
func errorCode(err error) string {
	var ec interface{ ErrorCode() string }
	if errors.As(err, &ec) {
		return ec.ErrorCode()
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET:
			return "ECONNRESET"
		case syscall.ECONNREFUSED:
			return "ECONNREFUSED"
		case syscall.ETIMEDOUT:
			return "ETIMEDOUT"
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return "ENOTFOUND"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}

	return ""
}
