package resilience

import (
	"context"
	"time"
)

// Monitor is invoked after every Executor execution with the outcome.
type Monitor func(ctx context.Context, op string, duration time.Duration, err error)

// Executor composes timeout, circuit breaking, bulkhead isolation and retry
// into one call contract. Rate limiting and idempotency are call-site
// concerns and are deliberately left out of the composition.
type Executor struct {
	name           string
	timeout        time.Duration
	circuitBreaker *CircuitBreaker
	bulkhead       *Bulkhead
	retry          *Retry
	monitor        Monitor
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor for the named operation.
func NewExecutor(name string, opts ...ExecutorOption) *Executor {
	e := &Executor{name: name}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithTimeout bounds the whole execution. Zero or negative disables the
// timeout race.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// WithCircuitBreaker routes the execution through a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithMonitor registers a hook observing every execution outcome.
func WithMonitor(m Monitor) ExecutorOption {
	return func(e *Executor) {
		e.monitor = m
	}
}

// Execute runs the operation through all configured resilience patterns.
//
// The nesting, outermost first, is:
//  1. Timeout - the whole execution races the deadline
//  2. Circuit Breaker - open-circuit rejections short-circuit before any
//     retry attempt is consumed
//  3. Bulkhead - limits concurrency of admitted executions
//  4. Retry - retries transient failures of the underlying operation
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	// Build the execution chain from inside out
	execute := op

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	if e.timeout > 0 {
		inner := execute
		t := NewTimeout(e.name, e.timeout)
		execute = func(ctx context.Context) error {
			return t.Execute(ctx, inner)
		}
	}

	if e.monitor == nil {
		return execute(ctx)
	}

	start := time.Now()
	err := execute(ctx)
	e.monitor(ctx, e.name, time.Since(start), err)
	return err
}

// ExecuteConfig bundles one resilient call: the operation name used for
// diagnostics and timeouts, the timeout, the pattern flags, and the shared
// pattern instances.
type ExecuteConfig struct {
	// Operation names the call for timeout errors and monitoring.
	Operation string

	// Timeout bounds the whole call. Zero or negative disables the race.
	Timeout time.Duration

	// UseCircuitBreaker routes the call through CircuitBreaker.
	UseCircuitBreaker bool

	// CircuitBreaker is the shared per-dependency breaker instance.
	CircuitBreaker *CircuitBreaker

	// UseRetry wraps the attempt in Retry.
	UseRetry bool

	// Retry is the retry engine; nil with UseRetry set uses defaults.
	Retry *Retry

	// Bulkhead optionally caps concurrency.
	Bulkhead *Bulkhead

	// Monitor optionally observes the outcome.
	Monitor Monitor
}

// ExecuteWithResilience is the single entry point composing timeout, circuit
// breaker and retry for one call. Any combination of the flags being off
// still preserves the timeout behavior.
func ExecuteWithResilience(ctx context.Context, cfg ExecuteConfig, op func(context.Context) error) error {
	opts := []ExecutorOption{WithTimeout(cfg.Timeout)}

	if cfg.UseCircuitBreaker && cfg.CircuitBreaker != nil {
		opts = append(opts, WithCircuitBreaker(cfg.CircuitBreaker))
	}
	if cfg.UseRetry {
		r := cfg.Retry
		if r == nil {
			r = NewRetry(RetryConfig{})
		}
		opts = append(opts, WithRetry(r))
	}
	if cfg.Bulkhead != nil {
		opts = append(opts, WithBulkhead(cfg.Bulkhead))
	}
	if cfg.Monitor != nil {
		opts = append(opts, WithMonitor(cfg.Monitor))
	}

	return NewExecutor(cfg.Operation, opts...).Execute(ctx, op)
}
