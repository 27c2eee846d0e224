package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckNotFound indicates no check is registered under the name.
	ErrCheckNotFound = errors.New("health: check not found")

	// ErrInvalidCheck indicates a registration with an empty name or nil
	// check function.
	ErrInvalidCheck = errors.New("health: invalid check registration")

	// ErrDuplicateCheck indicates the name is already registered.
	ErrDuplicateCheck = errors.New("health: check already registered")

	// ErrSelfDependency indicates a service declared itself as a
	// dependency.
	ErrSelfDependency = errors.New("health: service cannot depend on itself")

	// ErrDependencyCycle indicates the declared dependencies would create
	// a cycle in the dependency graph.
	ErrDependencyCycle = errors.New("health: dependency cycle detected")
)
