package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.config.ResetTimeout)
	}
	if cb.config.HalfOpenMaxCalls != 1 {
		t.Errorf("HalfOpenMaxCalls = %d, want 1", cb.config.HalfOpenMaxCalls)
	}
	if cb.config.MonitorWindow != 60*time.Second {
		t.Errorf("MonitorWindow = %v, want 60s", cb.config.MonitorWindow)
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Second,
	})

	testErr := errors.New("test error")

	// First 2 failures should not open
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
		if err != testErr {
			t.Errorf("Execute() error = %v, want %v", err, testErr)
		}
		if cb.State() != StateClosed {
			t.Errorf("After %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	// Third failure should open
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if err != testErr {
		t.Errorf("Execute() error = %v, want %v", err, testErr)
	}
	if cb.State() != StateOpen {
		t.Errorf("After 3 failures, state = %v, want open", cb.State())
	}

	// Next request should be rejected without invoking the operation
	err = cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("Should not be called when circuit is open")
		return nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("Execute() when open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_WindowedCounting(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Second,
		MonitorWindow:    30 * time.Millisecond,
	})

	testErr := errors.New("test error")
	fail := func(ctx context.Context) error { return testErr }

	// Two failures, then let them age out of the window
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	time.Sleep(40 * time.Millisecond)

	// Two more failures: lifetime count is 4, windowed count is 2
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)

	if cb.State() != StateClosed {
		t.Fatalf("State = %v, want closed (stale failures must not trip)", cb.State())
	}

	m := cb.Metrics()
	if m.FailureCount != 4 {
		t.Errorf("FailureCount = %d, want 4", m.FailureCount)
	}
	if m.FailuresInWindow != 2 {
		t.Errorf("FailuresInWindow = %d, want 2", m.FailuresInWindow)
	}

	// A third in-window failure trips the breaker
	_ = cb.Execute(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Errorf("State = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Open the circuit
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	// Wait for reset timeout
	time.Sleep(20 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("State = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_RecoverySuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	})

	testErr := errors.New("test error")

	// Open the circuit
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	time.Sleep(20 * time.Millisecond)

	// First probe succeeds, circuit stays half-open
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("After 1 of 2 probes, state = %v, want half-open", cb.State())
	}

	// Second probe success closes the circuit
	err = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("After all probes succeed, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_RecoveryFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Open the circuit
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	time.Sleep(20 * time.Millisecond)

	// Failed probe reopens immediately
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if cb.State() != StateOpen {
		t.Errorf("After failed probe, state = %v, want open", cb.State())
	}

	// And the open rejection is immediate again
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("Should not be called when circuit is open")
		return nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("Execute() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenCallBudget(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	testErr := errors.New("test error")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	time.Sleep(20 * time.Millisecond)

	// Hold the single probe slot with a slow call
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(ctx context.Context) error {
			<-release
			return nil
		})
	}()

	// Give the probe time to claim its slot
	time.Sleep(5 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("Should not be called past the half-open budget")
		return nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("Execute() past probe budget = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("test error")
	})
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("After Reset, state = %v, want closed", cb.State())
	}
	m := cb.Metrics()
	if m.FailureCount != 0 || m.SuccessCount != 0 || m.FailuresInWindow != 0 {
		t.Errorf("After Reset, metrics = %+v, want zeroed", m)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	type change struct {
		state  State
		reason string
	}
	var changes []change

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange: func(state State, reason string) {
			mu.Lock()
			changes = append(changes, change{state, reason})
			mu.Unlock()
		},
	})

	testErr := errors.New("test error")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	mu.Lock()
	defer mu.Unlock()

	want := []change{
		{StateOpen, "failure threshold reached"},
		{StateHalfOpen, "reset timeout elapsed"},
		{StateClosed, "recovery confirmed"},
	}
	if len(changes) != len(want) {
		t.Fatalf("Got %d state changes, want %d: %+v", len(changes), len(want), changes)
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("Change %d = %+v, want %+v", i, changes[i], w)
		}
	}
}

func TestCircuitBreaker_WindowPruning(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1000,
		MonitorWindow:    10 * time.Millisecond,
	})

	testErr := errors.New("test error")
	for i := 0; i < windowPruneThreshold+10; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}

	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	cb.mu.Lock()
	retained := len(cb.failureTimes)
	cb.mu.Unlock()

	if retained > windowPruneThreshold+1 {
		t.Errorf("Retained %d failure timestamps, want pruning at %d", retained, windowPruneThreshold)
	}
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 500,
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = cb.Execute(context.Background(), func(ctx context.Context) error {
					if n%2 == 0 {
						return errors.New("test error")
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	m := cb.Metrics()
	if m.FailureCount+m.SuccessCount != 200 {
		t.Errorf("Total recorded = %d, want 200", m.FailureCount+m.SuccessCount)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
