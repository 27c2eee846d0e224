// Package config holds the tunable surface for the resilience components,
// with defaults, environment loading and validation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Options is the full set of recognized tunables. Zero values mean
// "use the component default"; Default returns the documented defaults
// explicitly.
type Options struct {
	// Timeout bounds a single guarded operation.
	Timeout time.Duration

	// MaxRetries is the total attempt budget, first try included.
	MaxRetries int

	// InitialDelay is the backoff delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay clamps the exponential backoff.
	MaxDelay time.Duration

	// BackoffMultiplier is the exponential backoff base.
	BackoffMultiplier float64

	// CircuitBreakerThreshold is the windowed failure count that opens
	// the breaker.
	CircuitBreakerThreshold int

	// CircuitBreakerResetTimeout is how long an open breaker waits
	// before probing.
	CircuitBreakerResetTimeout time.Duration

	// HalfOpenMaxCalls is the probe budget in the half-open state.
	HalfOpenMaxCalls int

	// MonitorWindow is the sliding window for breaker failure counting.
	MonitorWindow time.Duration

	// RateLimitRequests is the per-window request budget.
	RateLimitRequests int

	// RateLimitWindow is the rate limiter's sliding window.
	RateLimitWindow time.Duration

	// IdempotencyTTL is how long recorded results serve duplicates.
	IdempotencyTTL time.Duration

	// HealthCheckTimeout bounds a single health probe.
	HealthCheckTimeout time.Duration

	// HealthCheckRetries re-runs an unhealthy probe before reporting.
	HealthCheckRetries int
}

// Default returns the documented defaults for every option.
func Default() Options {
	return Options{
		Timeout:                    30 * time.Second,
		MaxRetries:                 3,
		InitialDelay:               100 * time.Millisecond,
		MaxDelay:                   30 * time.Second,
		BackoffMultiplier:          2.0,
		CircuitBreakerThreshold:    5,
		CircuitBreakerResetTimeout: 30 * time.Second,
		HalfOpenMaxCalls:           1,
		MonitorWindow:              60 * time.Second,
		RateLimitRequests:          100,
		RateLimitWindow:            time.Second,
		IdempotencyTTL:             24 * time.Hour,
		HealthCheckTimeout:         5 * time.Second,
		HealthCheckRetries:         0,
	}
}

// Environment variable names recognized by FromEnv.
const (
	EnvTimeout              = "SVCGUARD_TIMEOUT"
	EnvMaxRetries           = "SVCGUARD_MAX_RETRIES"
	EnvInitialDelay         = "SVCGUARD_INITIAL_DELAY"
	EnvMaxDelay             = "SVCGUARD_MAX_DELAY"
	EnvBackoffMultiplier    = "SVCGUARD_BACKOFF_MULTIPLIER"
	EnvBreakerThreshold     = "SVCGUARD_BREAKER_THRESHOLD"
	EnvBreakerResetTimeout  = "SVCGUARD_BREAKER_RESET_TIMEOUT"
	EnvBreakerHalfOpenCalls = "SVCGUARD_BREAKER_HALF_OPEN_CALLS"
	EnvBreakerMonitorWindow = "SVCGUARD_BREAKER_MONITOR_WINDOW"
	EnvRateLimitRequests    = "SVCGUARD_RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow      = "SVCGUARD_RATE_LIMIT_WINDOW"
	EnvIdempotencyTTL       = "SVCGUARD_IDEMPOTENCY_TTL"
	EnvHealthCheckTimeout   = "SVCGUARD_HEALTH_CHECK_TIMEOUT"
	EnvHealthCheckRetries   = "SVCGUARD_HEALTH_CHECK_RETRIES"
)

// FromEnv returns Default overridden by any set environment variables.
// Values may reference other environment variables as `${VAR}`; a
// referenced variable that is missing is an error, and `$$` emits a
// literal `$`.
func FromEnv() (Options, error) {
	opts := Default()

	setters := []struct {
		key string
		set func(string) error
	}{
		{EnvTimeout, durationSetter(&opts.Timeout)},
		{EnvMaxRetries, intSetter(&opts.MaxRetries)},
		{EnvInitialDelay, durationSetter(&opts.InitialDelay)},
		{EnvMaxDelay, durationSetter(&opts.MaxDelay)},
		{EnvBackoffMultiplier, floatSetter(&opts.BackoffMultiplier)},
		{EnvBreakerThreshold, intSetter(&opts.CircuitBreakerThreshold)},
		{EnvBreakerResetTimeout, durationSetter(&opts.CircuitBreakerResetTimeout)},
		{EnvBreakerHalfOpenCalls, intSetter(&opts.HalfOpenMaxCalls)},
		{EnvBreakerMonitorWindow, durationSetter(&opts.MonitorWindow)},
		{EnvRateLimitRequests, intSetter(&opts.RateLimitRequests)},
		{EnvRateLimitWindow, durationSetter(&opts.RateLimitWindow)},
		{EnvIdempotencyTTL, durationSetter(&opts.IdempotencyTTL)},
		{EnvHealthCheckTimeout, durationSetter(&opts.HealthCheckTimeout)},
		{EnvHealthCheckRetries, intSetter(&opts.HealthCheckRetries)},
	}

	for _, s := range setters {
		raw, ok := os.LookupEnv(s.key)
		if !ok || raw == "" {
			continue
		}
		value, err := ExpandEnvStrict(raw)
		if err != nil {
			return Options{}, fmt.Errorf("config: %s: %w", s.key, err)
		}
		if err := s.set(value); err != nil {
			return Options{}, fmt.Errorf("config: %s: %w", s.key, err)
		}
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

// Validate checks the options for values no component accepts.
func (o Options) Validate() error {
	if o.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %v", o.Timeout)
	}
	if o.MaxRetries < 1 {
		return fmt.Errorf("config: max retries must be at least 1, got %d", o.MaxRetries)
	}
	if o.InitialDelay < 0 || o.MaxDelay < 0 {
		return fmt.Errorf("config: backoff delays must not be negative")
	}
	if o.MaxDelay < o.InitialDelay {
		return fmt.Errorf("config: max delay %v is below initial delay %v", o.MaxDelay, o.InitialDelay)
	}
	if o.BackoffMultiplier < 1.0 {
		return fmt.Errorf("config: backoff multiplier must be at least 1.0, got %f", o.BackoffMultiplier)
	}
	if o.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("config: breaker threshold must be at least 1, got %d", o.CircuitBreakerThreshold)
	}
	if o.CircuitBreakerResetTimeout <= 0 {
		return fmt.Errorf("config: breaker reset timeout must be positive, got %v", o.CircuitBreakerResetTimeout)
	}
	if o.HalfOpenMaxCalls < 1 {
		return fmt.Errorf("config: half-open call budget must be at least 1, got %d", o.HalfOpenMaxCalls)
	}
	if o.MonitorWindow <= 0 {
		return fmt.Errorf("config: monitor window must be positive, got %v", o.MonitorWindow)
	}
	if o.RateLimitRequests < 1 {
		return fmt.Errorf("config: rate limit budget must be at least 1, got %d", o.RateLimitRequests)
	}
	if o.RateLimitWindow <= 0 {
		return fmt.Errorf("config: rate limit window must be positive, got %v", o.RateLimitWindow)
	}
	if o.IdempotencyTTL <= 0 {
		return fmt.Errorf("config: idempotency TTL must be positive, got %v", o.IdempotencyTTL)
	}
	if o.HealthCheckTimeout <= 0 {
		return fmt.Errorf("config: health check timeout must be positive, got %v", o.HealthCheckTimeout)
	}
	if o.HealthCheckRetries < 0 {
		return fmt.Errorf("config: health check retries must not be negative, got %d", o.HealthCheckRetries)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded via os.ExpandEnv.
//   - If `${VAR}` is present but VAR is missing from the environment, it errors.
//   - `$$` emits a literal `$` (escape hatch).
func ExpandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00SVCGUARD_CONFIG_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		key := match[1]
		if _, ok := os.LookupEnv(key); !ok {
			missing[key] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(keys, ", "))
	}

	s = os.ExpandEnv(s)
	s = strings.ReplaceAll(s, dollarSentinel, "$")
	return s, nil
}
