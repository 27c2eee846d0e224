// Package health provides dependency-aware health checking for remote
// services.
//
// This package implements a health check registry where each service
// declares the services it depends on. The dependency graph is validated
// acyclic at registration time, and checking a service checks its declared
// dependencies first, rolling the worst status up into the result.
//
// # Core Concepts
//
// A CheckFunc reports the health of one service. The Status type represents
// the health state: Healthy, Degraded, or Unhealthy. A service whose own
// check passes is still reported unhealthy when one of its dependencies is.
//
// # Basic Usage
//
//	reg := health.NewRegistry()
//
//	err := reg.Register("database", pingDatabase)
//	err = reg.Register("api", pingAPI, health.CheckConfig{
//	    Timeout:      2 * time.Second,
//	    Dependencies: []string{"database"},
//	})
//
//	result, err := reg.Check(ctx, "api")
//	if result.Status == health.StatusUnhealthy {
//	    log.Printf("api down: %s", result.Message)
//	}
//
// # Checking Everything
//
// CheckAll runs every registered check concurrently and aggregates the
// results with per-status counts:
//
//	agg := reg.CheckAll(ctx)
//	fmt.Printf("%s: %d/%d healthy\n", agg.Status, agg.Summary.Healthy, agg.Summary.Total)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe over all registered services
//	http.Handle("/readyz", health.ReadinessHandler(registry))
//
//	// Detailed health status with dependency breakdowns
//	http.Handle("/health", health.DetailedHandler(registry))
package health
