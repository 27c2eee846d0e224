package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/svcguard/config"
	"github.com/jonwraymond/svcguard/health"
	"github.com/jonwraymond/svcguard/resilience"
)

func testOptions() config.Options {
	opts := config.Default()
	opts.Timeout = time.Second
	opts.InitialDelay = time.Millisecond
	opts.MaxDelay = 5 * time.Millisecond
	return opts
}

func TestRegistry_BreakerSharedPerDependency(t *testing.T) {
	reg := NewRegistry(testOptions())

	a := reg.Breaker("payments")
	b := reg.Breaker("payments")
	if a != b {
		t.Error("Breaker() should return the same instance per dependency")
	}

	other := reg.Breaker("search")
	if other == a {
		t.Error("Breaker() should return distinct instances per dependency")
	}
}

func TestRegistry_LimiterSharedPerDependency(t *testing.T) {
	reg := NewRegistry(testOptions())

	a := reg.Limiter("payments")
	b := reg.Limiter("payments")
	if a != b {
		t.Error("Limiter() should return the same instance per dependency")
	}
}

func TestRegistry_DependencyOverride(t *testing.T) {
	override := testOptions()
	override.RateLimitRequests = 7

	reg := NewRegistry(testOptions(),
		WithDependencyOptions("payments", override),
	)

	reg.Limiter("payments")
	snapshot, ok := reg.LimiterSnapshot("payments")
	if !ok {
		t.Fatal("LimiterSnapshot() should exist after first use")
	}
	if snapshot.MaxRequests != 7 {
		t.Errorf("MaxRequests = %d, want 7 from override", snapshot.MaxRequests)
	}

	reg.Limiter("search")
	defSnapshot, _ := reg.LimiterSnapshot("search")
	if defSnapshot.MaxRequests != 100 {
		t.Errorf("MaxRequests = %d, want default 100", defSnapshot.MaxRequests)
	}
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry(testOptions())

	var calls atomic.Int32
	err := reg.Execute(context.Background(), "payments", "charge", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("operation ran %d times, want 1", calls.Load())
	}

	snapshot, ok := reg.BreakerSnapshot("payments")
	if !ok {
		t.Fatal("BreakerSnapshot() should exist after Execute")
	}
	if snapshot.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", snapshot.SuccessCount)
	}
	if snapshot.State != "closed" {
		t.Errorf("State = %v, want closed", snapshot.State)
	}
}

func TestRegistry_Execute_RetriesTransientFailure(t *testing.T) {
	reg := NewRegistry(testOptions())

	var calls atomic.Int32
	err := reg.Execute(context.Background(), "payments", "charge", func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return &resilience.OpError{Op: "charge", Status: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("operation ran %d times, want 2", calls.Load())
	}
}

func TestRegistry_Execute_OpenBreakerShortCircuits(t *testing.T) {
	opts := testOptions()
	opts.CircuitBreakerThreshold = 1
	opts.MaxRetries = 1
	reg := NewRegistry(testOptions(),
		WithDependencyOptions("payments", opts),
	)

	boom := errors.New("hard failure")
	_ = reg.Execute(context.Background(), "payments", "charge", func(ctx context.Context) error {
		return boom
	})

	var calls atomic.Int32
	err := reg.Execute(context.Background(), "payments", "charge", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 0 {
		t.Error("operation should not run while the breaker is open")
	}

	snapshot, _ := reg.BreakerSnapshot("payments")
	if snapshot.State != "open" {
		t.Errorf("State = %v, want open", snapshot.State)
	}
}

func TestRegistry_ResetBreaker(t *testing.T) {
	opts := testOptions()
	opts.CircuitBreakerThreshold = 1
	opts.MaxRetries = 1
	reg := NewRegistry(opts)

	_ = reg.Execute(context.Background(), "payments", "charge", func(ctx context.Context) error {
		return errors.New("hard failure")
	})
	if snapshot, _ := reg.BreakerSnapshot("payments"); snapshot.State != "open" {
		t.Fatalf("State = %v, want open before reset", snapshot.State)
	}

	if !reg.ResetBreaker("payments") {
		t.Fatal("ResetBreaker() = false, want true")
	}
	if snapshot, _ := reg.BreakerSnapshot("payments"); snapshot.State != "closed" {
		t.Errorf("State = %v, want closed after reset", snapshot.State)
	}

	if reg.ResetBreaker("never-used") {
		t.Error("ResetBreaker() = true for unknown dependency, want false")
	}
}

func TestRegistry_SnapshotsForUnusedDependency(t *testing.T) {
	reg := NewRegistry(testOptions())

	if _, ok := reg.BreakerSnapshot("payments"); ok {
		t.Error("BreakerSnapshot() should report absence before first use")
	}
	if _, ok := reg.LimiterSnapshot("payments"); ok {
		t.Error("LimiterSnapshot() should report absence before first use")
	}
}

func TestRegistry_Dependencies(t *testing.T) {
	reg := NewRegistry(testOptions())
	reg.Breaker("payments")
	reg.Limiter("search")

	names := reg.Dependencies()
	if len(names) != 2 {
		t.Errorf("Dependencies() = %v, want 2 entries", names)
	}
}

func TestRegistry_RegisterHealthProbe(t *testing.T) {
	h := health.NewRegistry()
	reg := NewRegistry(testOptions(), WithHealth(h))

	err := reg.RegisterHealthProbe("payments", func(ctx context.Context) health.Probe {
		return health.Probe{Healthy: true, Latency: 10 * time.Millisecond}
	})
	if err != nil {
		t.Fatalf("RegisterHealthProbe() error = %v", err)
	}
	if reg.Health() != h {
		t.Error("Health() should return the injected registry")
	}

	result, err := h.Check(context.Background(), "payments")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Status != health.StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
}

func TestRegistry_RegisterHealthProbe_WithDependencies(t *testing.T) {
	reg := NewRegistry(testOptions())

	err := reg.RegisterHealthProbe("database", func(ctx context.Context) health.Probe {
		return health.Probe{Healthy: false, Error: "connection refused"}
	})
	if err != nil {
		t.Fatalf("RegisterHealthProbe(database) error = %v", err)
	}
	err = reg.RegisterHealthProbe("api", func(ctx context.Context) health.Probe {
		return health.Probe{Healthy: true}
	}, "database")
	if err != nil {
		t.Fatalf("RegisterHealthProbe(api) error = %v", err)
	}

	result, err := reg.Health().Check(context.Background(), "api")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Status != health.StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy from dependency", result.Status)
	}
}

func TestRegistry_Execute_TimeoutPreserved(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.MaxRetries = 1
	reg := NewRegistry(opts)

	err := reg.Execute(context.Background(), "payments", "charge", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	var terr *resilience.TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("Execute() error = %v, want *TimeoutError", err)
	}
	if terr.Op != "payments.charge" {
		t.Errorf("TimeoutError.Op = %v, want 'payments.charge'", terr.Op)
	}
}
