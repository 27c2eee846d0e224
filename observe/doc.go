// Package observe provides observability primitives for dependency calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the observer into the service
// registry or wrap calls with Middleware.
package observe
