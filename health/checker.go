package health

import (
	"context"
	"time"
)

// Status represents the health status of a service.
type Status int

const (
	// StatusHealthy indicates the service is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the service is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the service is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// worse returns the more severe of two statuses
// (unhealthy > degraded > healthy).
func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Result contains the outcome of a health check.
type Result struct {
	// Service is the registered service name.
	Service string

	// Status is the rolled-up health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// ResponseTime is how long the check took.
	ResponseTime time.Duration

	// Timestamp is when the check was performed.
	Timestamp time.Time

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// Dependencies holds the results of this service's declared
	// dependencies, keyed by dependency name.
	Dependencies map[string]Result

	// Error is the error if the check failed.
	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// CheckFunc performs a health check and reports the result.
type CheckFunc func(ctx context.Context) Result

// Probe is the minimal health signal a service wrapper reports: whether the
// dependency answered, how long it took, and the error message if not.
type Probe struct {
	Healthy bool
	Latency time.Duration
	Error   string
}

// ProbeFunc is the signature service wrappers register.
type ProbeFunc func(ctx context.Context) Probe

// FromProbe adapts a wrapper probe into a CheckFunc.
func FromProbe(fn ProbeFunc) CheckFunc {
	return func(ctx context.Context) Result {
		p := fn(ctx)
		result := Healthy("ok")
		if !p.Healthy {
			msg := p.Error
			if msg == "" {
				msg = "probe failed"
			}
			result = Unhealthy(msg, ErrCheckFailed)
		}
		result.ResponseTime = p.Latency
		return result
	}
}
