package idempotency

import (
	"context"
	"sync"
	"time"
)

// Entry is a stored operation result.
type Entry struct {
	// Data is the operation's serialized result.
	Data []byte `json:"data"`

	// Timestamp is when the result was recorded.
	Timestamp time.Time `json:"timestamp"`

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists operation results keyed by idempotency key. Implementations
// must be safe for concurrent use. Get returns (nil, nil) on a miss;
// expired entries count as misses.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-memory store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves an entry. Returns (nil, nil) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if time.Now().After(entry.ExpiresAt) {
		// Expired - clean up lazily
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, nil
	}

	return entry, nil
}

// Set stores an entry under the key.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes an entry. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
