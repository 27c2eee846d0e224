package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ManagerConfig configures the idempotency manager.
type ManagerConfig struct {
	// TTL is how long successful results are served as duplicates.
	// Default: 24 hours
	TTL time.Duration

	// Store persists results. Default: NewMemoryStore()
	Store Store
}

// Result is the outcome of an idempotent execution.
type Result struct {
	// Data is the operation's serialized result.
	Data []byte

	// Cached reports whether the result was served without running the
	// operation: either from the store or from an in-flight execution.
	Cached bool

	// IdempotencyKey is the key the result is recorded under.
	IdempotencyKey string

	// Timestamp is when the result was produced.
	Timestamp time.Time
}

// Operation produces the result to record under an idempotency key.
type Operation func(ctx context.Context) ([]byte, error)

// Manager deduplicates operations by idempotency key. A key that already
// has a stored result is served from the store; a key with an execution in
// flight shares that execution's outcome. Only successful results are
// recorded.
type Manager struct {
	config ManagerConfig
	store  Store
	group  singleflight.Group
}

// NewManager creates a new idempotency manager.
func NewManager(config ...ManagerConfig) *Manager {
	cfg := ManagerConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	return &Manager{
		config: cfg,
		store:  cfg.Store,
	}
}

// ValidateKey checks that the key is a UUID v4 string.
func ValidateKey(key string) error {
	if key == "" {
		return &ValidationError{Key: key, Reason: "key is empty"}
	}
	// uuid.Parse also accepts braced, URN and raw-hex forms; only the
	// canonical 36-character text form is a valid key.
	if len(key) != 36 {
		return &ValidationError{Key: key, Reason: "key must be 36 characters"}
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return &ValidationError{Key: key, Reason: "key is not a valid UUID"}
	}
	if id.Version() != 4 {
		return &ValidationError{Key: key, Reason: "key must be a version 4 UUID"}
	}
	return nil
}

// Execute runs op at most once per key. A stored result or an in-flight
// execution for the same key is returned with Cached set. A store read or
// write failure degrades to executing the operation, never to an error.
func (m *Manager) Execute(ctx context.Context, key string, op Operation) (Result, error) {
	if op == nil {
		return Result{}, ErrNilOperation
	}
	if err := ValidateKey(key); err != nil {
		return Result{}, err
	}

	if entry, err := m.store.Get(ctx, key); err == nil && entry != nil {
		return Result{
			Data:           entry.Data,
			Cached:         true,
			IdempotencyKey: key,
			Timestamp:      entry.Timestamp,
		}, nil
	}

	v, err, shared := m.group.Do(key, func() (any, error) {
		// A same-key caller may have stored a result between the miss
		// above and this goroutine winning the flight.
		if entry, err := m.store.Get(ctx, key); err == nil && entry != nil {
			return Result{
				Data:           entry.Data,
				Cached:         true,
				IdempotencyKey: key,
				Timestamp:      entry.Timestamp,
			}, nil
		}

		data, err := op(ctx)
		if err != nil {
			return Result{}, err
		}

		now := time.Now()
		entry := &Entry{
			Data:      data,
			Timestamp: now,
			ExpiresAt: now.Add(m.config.TTL),
		}
		// Best effort: a failed write costs a duplicate execution later,
		// not the result.
		_ = m.store.Set(ctx, key, entry)

		return Result{
			Data:           data,
			IdempotencyKey: key,
			Timestamp:      now,
		}, nil
	})
	if err != nil {
		return Result{}, err
	}

	result := v.(Result)
	if shared {
		result.Cached = true
	}
	return result, nil
}

// Invalidate removes the stored result for a key so the next execution
// runs the operation again.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return m.store.Delete(ctx, key)
}

// Clear removes all stored results.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}
