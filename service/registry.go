package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/svcguard/config"
	"github.com/jonwraymond/svcguard/health"
	"github.com/jonwraymond/svcguard/observe"
	"github.com/jonwraymond/svcguard/resilience"
)

// Registry owns the shared resilience state for every named dependency:
// one circuit breaker, one rate limiter and one retry engine per name,
// created on first use from the default options plus any per-dependency
// override. Construct one Registry at process start and inject it into
// the service wrappers; there is no package-level instance.
type Registry struct {
	defaults  config.Options
	overrides map[string]config.Options

	health  *health.Registry
	logger  observe.Logger
	tracer  observe.Tracer
	metrics observe.Metrics

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
	limiters map[string]*resilience.RateLimiter
	retries  map[string]*resilience.Retry
}

// Option configures a Registry.
type Option func(*Registry)

// WithHealth injects the health registry that probes are wired into.
func WithHealth(h *health.Registry) Option {
	return func(r *Registry) {
		r.health = h
	}
}

// WithObserver wires telemetry from an observer: per-call spans, metrics
// and structured logs.
func WithObserver(obs observe.Observer) Option {
	return func(r *Registry) {
		r.logger = obs.Logger()
		r.tracer = observe.NewTracer(obs.Tracer())
		if m, err := observe.NewMetrics(obs.Meter()); err == nil {
			r.metrics = m
		}
	}
}

// WithDependencyOptions overrides the default options for one named
// dependency. The override applies from the dependency's first use.
func WithDependencyOptions(name string, opts config.Options) Option {
	return func(r *Registry) {
		r.overrides[name] = opts
	}
}

// NewRegistry creates a registry with the given default options.
func NewRegistry(defaults config.Options, opts ...Option) *Registry {
	r := &Registry{
		defaults:  defaults,
		overrides: make(map[string]config.Options),
		health:    health.NewRegistry(),
		logger:    observe.NewLogger("info"),
		tracer:    observe.NewNoopTracer(),
		metrics:   observe.NoopMetrics{},
		breakers:  make(map[string]*resilience.CircuitBreaker),
		limiters:  make(map[string]*resilience.RateLimiter),
		retries:   make(map[string]*resilience.Retry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) optionsFor(name string) config.Options {
	if opts, ok := r.overrides[name]; ok {
		return opts
	}
	return r.defaults
}

// Breaker returns the circuit breaker shared by all calls to the named
// dependency, creating it on first use.
func (r *Registry) Breaker(name string) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakerLocked(name)
}

func (r *Registry) breakerLocked(name string) *resilience.CircuitBreaker {
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	opts := r.optionsFor(name)
	logger := r.logger.WithCall(observe.CallMeta{Dependency: name})
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: opts.CircuitBreakerThreshold,
		ResetTimeout:     opts.CircuitBreakerResetTimeout,
		HalfOpenMaxCalls: opts.HalfOpenMaxCalls,
		MonitorWindow:    opts.MonitorWindow,
		OnStateChange: func(state resilience.State, reason string) {
			logger.Warn(context.Background(), "circuit breaker state change",
				observe.Field{Key: "state", Value: state.String()},
				observe.Field{Key: "reason", Value: reason},
			)
		},
	})
	r.breakers[name] = cb
	return cb
}

// Limiter returns the rate limiter shared by all calls to the named
// dependency, creating it on first use. Admission control stays at the
// call site: acquire before invoking Execute.
func (r *Registry) Limiter(name string) *resilience.RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.limiters[name]; ok {
		return rl
	}

	opts := r.optionsFor(name)
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		MaxRequests: opts.RateLimitRequests,
		Window:      opts.RateLimitWindow,
		Service:     name,
	})
	r.limiters[name] = rl
	return rl
}

func (r *Registry) retryFor(name string) *resilience.Retry {
	if rt, ok := r.retries[name]; ok {
		return rt
	}

	opts := r.optionsFor(name)
	logger := r.logger.WithCall(observe.CallMeta{Dependency: name})
	rt := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  opts.MaxRetries,
		InitialDelay: opts.InitialDelay,
		MaxDelay:     opts.MaxDelay,
		Multiplier:   opts.BackoffMultiplier,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn(context.Background(), "retrying after failure",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay_ms", Value: float64(delay.Milliseconds())},
				observe.Field{Key: "error", Value: err.Error()},
			)
		},
		OnRecover: func(attempt int) {
			logger.Info(context.Background(), "recovered after retry",
				observe.Field{Key: "attempt", Value: attempt},
			)
		},
	})
	r.retries[name] = rt
	return rt
}

// Execute runs op against the named dependency under the full guard:
// timeout outermost, then the dependency's circuit breaker, then retry.
// The call is traced, measured and logged under dependency.operation.
func (r *Registry) Execute(ctx context.Context, dependency, operation string, op func(context.Context) error) error {
	opts := r.optionsFor(dependency)

	r.mu.Lock()
	cb := r.breakerLocked(dependency)
	rt := r.retryFor(dependency)
	r.mu.Unlock()

	meta := observe.CallMeta{Dependency: dependency, Operation: operation}
	ctx, span := r.tracer.StartSpan(ctx, meta)

	err := resilience.ExecuteWithResilience(ctx, resilience.ExecuteConfig{
		Operation:         dependency + "." + operation,
		Timeout:           opts.Timeout,
		UseCircuitBreaker: true,
		CircuitBreaker:    cb,
		UseRetry:          true,
		Retry:             rt,
		Monitor: func(ctx context.Context, opName string, duration time.Duration, err error) {
			r.metrics.RecordCall(ctx, meta, duration, err)
		},
	}, op)

	r.tracer.EndSpan(span, err)
	return err
}

// RegisterHealthProbe wires a service wrapper's probe into the health
// registry under the dependency's configured timeout and retries.
func (r *Registry) RegisterHealthProbe(name string, probe health.ProbeFunc, dependencies ...string) error {
	opts := r.optionsFor(name)
	return r.health.Register(name, health.FromProbe(probe), health.CheckConfig{
		Timeout:      opts.HealthCheckTimeout,
		Retries:      opts.HealthCheckRetries,
		Dependencies: dependencies,
	})
}

// Health returns the health registry the probes are wired into.
func (r *Registry) Health() *health.Registry {
	return r.health
}

// Dependencies returns the names of all dependencies with created state.
func (r *Registry) Dependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(r.breakers)+len(r.limiters))
	names := make([]string, 0, len(r.breakers)+len(r.limiters))
	for name := range r.breakers {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range r.limiters {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// BreakerSnapshot is a read-only view of one dependency's circuit breaker.
type BreakerSnapshot struct {
	State             string `json:"state"`
	FailureCount      int64  `json:"failure_count"`
	SuccessCount      int64  `json:"success_count"`
	FailuresInWindow  int    `json:"failures_in_window"`
	SuccessesInWindow int    `json:"successes_in_window"`
}

// BreakerSnapshot returns the breaker state for a dependency. The second
// return is false if the dependency has never been used.
func (r *Registry) BreakerSnapshot(name string) (BreakerSnapshot, bool) {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return BreakerSnapshot{}, false
	}

	m := cb.Metrics()
	return BreakerSnapshot{
		State:             m.State.String(),
		FailureCount:      m.FailureCount,
		SuccessCount:      m.SuccessCount,
		FailuresInWindow:  m.FailuresInWindow,
		SuccessesInWindow: m.SuccessesInWindow,
	}, true
}

// RateLimitSnapshot is a read-only view of one dependency's rate limiter.
type RateLimitSnapshot struct {
	RemainingRequests int   `json:"remaining_requests"`
	MaxRequests       int   `json:"max_requests"`
	WindowMs          int64 `json:"window_ms"`
}

// LimiterSnapshot returns the rate limiter state for a dependency. The
// second return is false if the dependency has never been used.
func (r *Registry) LimiterSnapshot(name string) (RateLimitSnapshot, bool) {
	r.mu.Lock()
	rl, ok := r.limiters[name]
	r.mu.Unlock()

	if !ok {
		return RateLimitSnapshot{}, false
	}

	m := rl.Metrics()
	return RateLimitSnapshot{
		RemainingRequests: m.Remaining,
		MaxRequests:       m.MaxRequests,
		WindowMs:          m.Window.Milliseconds(),
	}, true
}

// ResetBreaker manually closes a dependency's breaker. Returns false if
// the dependency has never been used.
func (r *Registry) ResetBreaker(name string) bool {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return false
	}
	cb.Reset()
	return true
}
