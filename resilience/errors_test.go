package resilience

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSentinelErrors(t *testing.T) {
	if !errors.Is(ErrCircuitOpen, ErrCircuitOpen) {
		t.Error("ErrCircuitOpen should match itself")
	}
	if !strings.Contains(ErrCircuitOpen.Error(), "circuit breaker is open") {
		t.Errorf("ErrCircuitOpen message = %q", ErrCircuitOpen.Error())
	}
}

func TestOpError(t *testing.T) {
	inner := errors.New("connection dropped")
	err := &OpError{Op: "db.query", Status: 503, Err: inner}

	if err.HTTPStatus() != 503 {
		t.Errorf("HTTPStatus() = %d, want 503", err.HTTPStatus())
	}
	if !err.Operational() {
		t.Error("OpError without NonOperational should be operational")
	}
	if !errors.Is(err, inner) {
		t.Error("OpError should unwrap to the inner error")
	}
	if !strings.Contains(err.Error(), "db.query") || !strings.Contains(err.Error(), "503") {
		t.Errorf("Error() = %q", err.Error())
	}

	nonOp := &OpError{Op: "db.query", Status: 500, NonOperational: true}
	if nonOp.Operational() {
		t.Error("NonOperational OpError should not be operational")
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Service: "gemini", RetryAfter: 250 * time.Millisecond}

	if !strings.Contains(err.Error(), "gemini") {
		t.Errorf("Error() = %q, want the service name", err.Error())
	}
	if !err.Operational() {
		t.Error("RateLimitError should be operational")
	}
}

func TestServiceUnavailableError(t *testing.T) {
	err := &ServiceUnavailableError{Service: "supabase", Reason: "circuit open"}

	if !strings.Contains(err.Error(), "supabase") || !strings.Contains(err.Error(), "circuit open") {
		t.Errorf("Error() = %q", err.Error())
	}
}
