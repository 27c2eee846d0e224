package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// windowPruneThreshold is the timestamp count past which windowed counters
// are compacted on access.
const windowPruneThreshold = 64

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures within MonitorWindow
	// before opening the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long to wait before attempting recovery.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of probe calls allowed in half-open
	// state. All probes must succeed to close the circuit.
	// Default: 1
	HalfOpenMaxCalls int

	// MonitorWindow bounds failure and success counting to recent activity.
	// Failures older than the window never trip the breaker.
	// Default: 60 seconds
	MonitorWindow time.Duration

	// OnStateChange is called with the new state and a reason whenever the
	// circuit transitions.
	OnStateChange func(state State, reason string)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern with windowed
// failure counting. A breaker instance is shared by every call to one named
// dependency.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu              sync.Mutex
	state           State
	failures        int64 // lifetime
	successes       int64 // lifetime
	failureTimes    []time.Time
	successTimes    []time.Time
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenSuccess int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	if config.MonitorWindow <= 0 {
		config.MonitorWindow = 60 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker. When the circuit
// is open the operation is not invoked and ErrCircuitOpen is returned
// immediately. The decision to execute and the dispatch are not separated by
// any other call on this breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state, applying the OPEN to HALF_OPEN
// transition if the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset forces the breaker to closed and zeroes all counters. Used for
// manual operator recovery and test isolation.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.failureTimes = nil
	cb.successTimes = nil
	cb.lastFailure = time.Time{}
	cb.halfOpenCalls = 0
	cb.halfOpenSuccess = 0

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(StateClosed, "manual reset")
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		cb.halfOpenCalls++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	isFailure := cb.config.IsFailure(err)

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.recordFailureLocked(now)
			if cb.countInWindowLocked(cb.failureTimes, now) >= cb.config.FailureThreshold {
				cb.transitionLocked(StateOpen, "failure threshold reached")
			}
		} else {
			cb.recordSuccessLocked(now)
		}

	case StateHalfOpen:
		if isFailure {
			// Probe failed, re-arm the open timeout
			cb.recordFailureLocked(now)
			cb.transitionLocked(StateOpen, "probe failed")
		} else {
			cb.recordSuccessLocked(now)
			cb.halfOpenSuccess++
			if cb.halfOpenSuccess >= cb.config.HalfOpenMaxCalls {
				cb.transitionLocked(StateClosed, "recovery confirmed")
			}
		}
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.transitionLocked(StateHalfOpen, "reset timeout elapsed")
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(state State, reason string) {
	cb.state = state
	switch state {
	case StateHalfOpen:
		cb.halfOpenCalls = 0
		cb.halfOpenSuccess = 0
	case StateClosed:
		cb.halfOpenCalls = 0
		cb.halfOpenSuccess = 0
		// Stale window entries must not retrip the breaker right away
		cb.failureTimes = nil
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(state, reason)
	}
}

func (cb *CircuitBreaker) recordFailureLocked(now time.Time) {
	cb.failures++
	cb.lastFailure = now
	cb.failureTimes = append(cb.failureTimes, now)
	if len(cb.failureTimes) > windowPruneThreshold {
		cb.failureTimes = pruneWindow(cb.failureTimes, now.Add(-cb.config.MonitorWindow))
	}
}

func (cb *CircuitBreaker) recordSuccessLocked(now time.Time) {
	cb.successes++
	cb.successTimes = append(cb.successTimes, now)
	if len(cb.successTimes) > windowPruneThreshold {
		cb.successTimes = pruneWindow(cb.successTimes, now.Add(-cb.config.MonitorWindow))
	}
}

func (cb *CircuitBreaker) countInWindowLocked(times []time.Time, now time.Time) int {
	cutoff := now.Add(-cb.config.MonitorWindow)
	count := 0
	for _, t := range times {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// pruneWindow drops timestamps at or before cutoff. Timestamps are appended
// in order, so the first retained index bounds the live region.
func pruneWindow(times []time.Time, cutoff time.Time) []time.Time {
	idx := len(times)
	for i, t := range times {
		if t.After(cutoff) {
			idx = i
			break
		}
	}
	return append(times[:0:0], times[idx:]...)
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	return CircuitBreakerMetrics{
		State:             cb.currentStateLocked(),
		FailureCount:      cb.failures,
		SuccessCount:      cb.successes,
		FailuresInWindow:  cb.countInWindowLocked(cb.failureTimes, now),
		SuccessesInWindow: cb.countInWindowLocked(cb.successTimes, now),
		LastFailure:       cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics. FailureCount and
// SuccessCount are lifetime totals; the windowed counts cover MonitorWindow.
type CircuitBreakerMetrics struct {
	State             State
	FailureCount      int64
	SuccessCount      int64
	FailuresInWindow  int
	SuccessesInWindow int
	LastFailure       time.Time
}
