package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and the
	// operation was not attempted.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")
)

// TimeoutError is returned when an operation exceeds its deadline.
// It carries the operation name and the configured timeout.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resilience: operation %q timed out after %s", e.Op, e.Timeout)
}

// Operational reports that a timeout is an expected runtime failure.
func (e *TimeoutError) Operational() bool { return true }

// RateLimitError is returned when admission is denied without waiting.
// RetryAfter is the time until the window's oldest entry expires.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("resilience: rate limit exceeded for %q, retry after %s", e.Service, e.RetryAfter)
}

// Operational reports that rate limiting is an expected runtime failure.
func (e *RateLimitError) Operational() bool { return true }

// ServiceUnavailableError indicates a dependency is unreachable or is being
// protected by an open circuit.
type ServiceUnavailableError struct {
	Service string
	Reason  string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("resilience: service %q unavailable: %s", e.Service, e.Reason)
}

// Operational reports that unavailability is an expected runtime failure.
func (e *ServiceUnavailableError) Operational() bool { return true }

// OpError classifies a failed remote operation so the retry engine can decide
// whether to re-attempt it. Status carries the HTTP status code (0 if none),
// Code carries a network or provider error code (empty if none).
// NonOperational marks programmer or invariant errors that must never be
// retried regardless of status or code.
type OpError struct {
	Op             string
	Status         int
	Code           string
	Err            error
	NonOperational bool
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("resilience: operation %q failed", e.Op)
	switch {
	case e.Status != 0:
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	case e.Code != "":
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() error { return e.Err }

// HTTPStatus returns the HTTP status code associated with the failure.
func (e *OpError) HTTPStatus() int { return e.Status }

// ErrorCode returns the network or provider error code for the failure.
func (e *OpError) ErrorCode() string { return e.Code }

// Operational reports whether this error represents an expected runtime
// failure as opposed to a programmer error.
func (e *OpError) Operational() bool { return !e.NonOperational }
