// Package service provides the shared per-dependency resilience state:
// a registry that owns one circuit breaker, rate limiter and retry engine
// per named dependency, wires health probes into a health registry, and
// exposes read-only operational snapshots.
//
// Service wrappers obtain their guard instances from a Registry instead of
// constructing their own, so breaker and limiter state is shared across
// every call to a dependency:
//
//	reg := service.NewRegistry(config.Default(),
//	    service.WithObserver(obs),
//	    service.WithDependencyOptions("payments", paymentOpts),
//	)
//
//	err := reg.Execute(ctx, "payments", "charge", func(ctx context.Context) error {
//	    return client.Charge(ctx, req)
//	})
package service
