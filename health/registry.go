package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckConfig configures one registered health check.
type CheckConfig struct {
	// Timeout bounds a single run of the check function.
	// Default: 5 seconds
	Timeout time.Duration

	// Retries is the number of re-runs after an unhealthy result before
	// the result is reported.
	// Default: 0
	Retries int

	// Dependencies names the services this service requires to be
	// healthy. Each is checked first and its status rolled up.
	Dependencies []string
}

type registration struct {
	check  CheckFunc
	config CheckConfig
}

// Registry is a directory of named health checks with declared
// dependencies. The dependency graph is validated acyclic at registration
// time. Construct one Registry at process start and pass it by reference;
// there is no package-level instance.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]*registration
	order  []string // registration order, for stable listings
}

// NewRegistry creates an empty health check registry.
func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]*registration),
	}
}

// Register adds a named health check. It fails without committing any state
// if the name is empty or taken, the check is nil, the service depends on
// itself, or the declared dependencies would create a cycle in the existing
// graph.
func (r *Registry) Register(name string, check CheckFunc, config ...CheckConfig) error {
	if name == "" || check == nil {
		return ErrInvalidCheck
	}

	cfg := CheckConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	for _, dep := range cfg.Dependencies {
		if dep == name {
			return fmt.Errorf("%w: %q", ErrSelfDependency, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checks[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCheck, name)
	}

	// Adding edges name -> dep creates a cycle exactly when some declared
	// dependency can already reach name through committed edges.
	for _, dep := range cfg.Dependencies {
		if r.reachesLocked(dep, name, make(map[string]bool)) {
			return fmt.Errorf("%w: %q -> %q", ErrDependencyCycle, name, dep)
		}
	}

	r.checks[name] = &registration{check: check, config: cfg}
	r.order = append(r.order, name)
	return nil
}

// reachesLocked reports whether target is reachable from start by a
// depth-first walk over the committed dependency edges.
func (r *Registry) reachesLocked(start, target string, visited map[string]bool) bool {
	if start == target {
		return true
	}
	if visited[start] {
		return false
	}
	visited[start] = true

	reg, ok := r.checks[start]
	if !ok {
		return false
	}
	for _, dep := range reg.config.Dependencies {
		if r.reachesLocked(dep, target, visited) {
			return true
		}
	}
	return false
}

// Unregister removes a named check and strips it from the dependency lists
// of remaining services. Dependents are not cascaded. Returns false if the
// name was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.checks[name]; !ok {
		return false
	}
	delete(r.checks, name)

	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	for _, reg := range r.checks {
		deps := reg.config.Dependencies[:0]
		for _, dep := range reg.config.Dependencies {
			if dep != name {
				deps = append(deps, dep)
			}
		}
		reg.config.Dependencies = deps
	}
	return true
}

// IsRegistered reports whether a check exists under the name.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.checks[name]
	return ok
}

// Services returns the names of all registered checks in registration
// order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Check runs the named health check, checking declared dependencies first
// and rolling their severity up into the result. A shared transitive
// dependency is checked once per path through the graph; results stay
// self-contained per branch.
func (r *Registry) Check(ctx context.Context, name string) (Result, error) {
	r.mu.RLock()
	reg, ok := r.checks[name]
	r.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrCheckNotFound, name)
	}
	return r.checkService(ctx, name, reg), nil
}

func (r *Registry) checkService(ctx context.Context, name string, reg *registration) Result {
	var depResults map[string]Result
	if len(reg.config.Dependencies) > 0 {
		depResults = make(map[string]Result, len(reg.config.Dependencies))
		for _, dep := range reg.config.Dependencies {
			r.mu.RLock()
			depReg, ok := r.checks[dep]
			r.mu.RUnlock()

			if !ok {
				res := Unhealthy("not registered", ErrCheckNotFound)
				res.Service = dep
				depResults[dep] = res
				continue
			}
			depResults[dep] = r.checkService(ctx, dep, depReg)
		}
	}

	result := r.runCheck(ctx, name, reg)

	// A failing dependency outranks the service's own report.
	for _, dep := range depResults {
		result.Status = worse(result.Status, dep.Status)
	}
	result.Dependencies = depResults
	return result
}

// runCheck executes the check function under its timeout, re-running up to
// Retries times after an unhealthy result. A timed-out, erroring or
// panicking check resolves to an unhealthy result, never a hard failure.
func (r *Registry) runCheck(ctx context.Context, name string, reg *registration) Result {
	attempts := reg.config.Retries + 1

	var result Result
	for i := 0; i < attempts; i++ {
		result = r.runOnce(ctx, name, reg)
		if result.Status != StatusUnhealthy {
			break
		}
	}
	return result
}

func (r *Registry) runOnce(ctx context.Context, name string, reg *registration) Result {
	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				resultCh <- Unhealthy(fmt.Sprintf("check panicked: %v", p), ErrCheckFailed)
			}
		}()
		resultCh <- reg.check(ctx)
	}()

	timer := time.NewTimer(reg.config.Timeout)
	defer timer.Stop()

	var result Result
	select {
	case result = <-resultCh:
	case <-timer.C:
		result = Unhealthy(fmt.Sprintf("check timed out after %s", reg.config.Timeout), ErrCheckTimeout)
	case <-ctx.Done():
		result = Unhealthy("check cancelled", ctx.Err())
	}

	result.Service = name
	if result.ResponseTime == 0 {
		result.ResponseTime = time.Since(start)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	return result
}

// Summary counts services by rolled-up status.
type Summary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
}

// AggregateResult is the outcome of checking every registered service.
type AggregateResult struct {
	Status    Status
	Timestamp time.Time
	Services  map[string]Result
	Summary   Summary
}

// CheckAll runs every registered check independently and aggregates the
// results. A failure in one service's check never aborts the others. An
// empty registry aggregates to healthy with zero counts.
func (r *Registry) CheckAll(ctx context.Context) AggregateResult {
	r.mu.RLock()
	regs := make(map[string]*registration, len(r.checks))
	for name, reg := range r.checks {
		regs[name] = reg
	}
	r.mu.RUnlock()

	agg := AggregateResult{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Services:  make(map[string]Result, len(regs)),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for name, reg := range regs {
		g.Go(func() error {
			result := r.checkService(ctx, name, reg)
			mu.Lock()
			agg.Services[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range agg.Services {
		agg.Summary.Total++
		switch result.Status {
		case StatusHealthy:
			agg.Summary.Healthy++
		case StatusDegraded:
			agg.Summary.Degraded++
		case StatusUnhealthy:
			agg.Summary.Unhealthy++
		}
		agg.Status = worse(agg.Status, result.Status)
	}
	return agg
}
