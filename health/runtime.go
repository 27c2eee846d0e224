package health

import (
	"context"
	"fmt"
	"runtime"
)

// RuntimeCheckerConfig configures the process runtime health checker.
type RuntimeCheckerConfig struct {
	// WarningThreshold is the fraction of allocated memory that triggers
	// degraded status. Value should be between 0 and 1. Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of allocated memory that triggers
	// unhealthy status. Value should be between 0 and 1. Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the maximum expected allocation in bytes.
	// Default: 0 (use the runtime's reported system memory)
	MaxAlloc uint64
}

// RuntimeChecker reports process memory and goroutine health. It is a stock
// check for the process itself, registered alongside remote dependency
// probes.
type RuntimeChecker struct {
	config RuntimeCheckerConfig
}

// NewRuntimeChecker creates a new process runtime checker.
func NewRuntimeChecker(config RuntimeCheckerConfig) *RuntimeChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold + 0.1
		if config.CriticalThreshold > 1 {
			config.CriticalThreshold = 0.99
		}
	}

	return &RuntimeChecker{config: config}
}

// Check performs the runtime health check.
func (c *RuntimeChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxAlloc := c.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}

	details := map[string]any{
		"alloc_bytes": stats.Alloc,
		"heap_in_use": stats.HeapInuse,
		"max_alloc":   maxAlloc,
		"num_gc":      stats.NumGC,
		"goroutines":  runtime.NumGoroutine(),
	}

	if maxAlloc == 0 {
		return Healthy("memory stats unavailable").WithDetails(details)
	}

	usage := float64(stats.Alloc) / float64(maxAlloc)
	details["usage_percent"] = usage * 100

	if usage >= c.config.CriticalThreshold {
		return Unhealthy(
			fmt.Sprintf("memory usage critical: %.1f%%", usage*100),
			ErrCheckFailed,
		).WithDetails(details)
	}
	if usage >= c.config.WarningThreshold {
		return Degraded(
			fmt.Sprintf("memory usage high: %.1f%%", usage*100),
		).WithDetails(details)
	}
	return Healthy(
		fmt.Sprintf("memory usage normal: %.1f%%", usage*100),
	).WithDetails(details)
}

// CheckFunc adapts the checker for Registry registration.
func (c *RuntimeChecker) CheckFunc() CheckFunc {
	return c.Check
}
