// Package resilience bounds the blast radius of slow or failing remote
// dependencies.
//
// The package implements resilience patterns that can be composed into one
// execution contract for every outbound operation.
//
// # Patterns
//
//   - Circuit Breaker: stops dispatching calls to a dependency once recent
//     failures cross a threshold within the monitor window, then probes
//     recovery with a bounded number of half-open calls.
//
//   - Retry: re-attempts operations whose errors classify as transient
//     (retryable HTTP status or network error code) with exponential
//     backoff.
//
//   - Rate Limiter: sliding-window admission control that suspends callers
//     until the window has room.
//
//   - Bulkhead: limits concurrent operations to prevent resource
//     exhaustion.
//
//   - Timeout: races operations against a deadline without cancelling them.
//
// # Usage
//
// Patterns can be used independently or composed:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    ResetTimeout:     time.Minute,
//	    MonitorWindow:    time.Minute,
//	})
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 100 * time.Millisecond,
//	    MaxDelay:     5 * time.Second,
//	})
//
//	err := resilience.ExecuteWithResilience(ctx, resilience.ExecuteConfig{
//	    Operation:         "db.query",
//	    Timeout:           5 * time.Second,
//	    UseCircuitBreaker: true,
//	    CircuitBreaker:    cb,
//	    UseRetry:          true,
//	    Retry:             retry,
//	}, func(ctx context.Context) error {
//	    return callDatabase(ctx)
//	})
//
// A circuit-open rejection surfaces as ErrCircuitOpen immediately, before
// any retry attempt is consumed, so operators can tell "dependency is being
// protected" apart from "dependency is slow".
package resilience
