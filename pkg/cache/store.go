package cache

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists session entries across process restarts. Save must
// replace the whole record in one write.
type Store interface {
	// Load returns ErrCacheMiss if the key does not exist.
	Load(ctx context.Context, key Key) (Entry, error)
	Save(ctx context.Context, key Key, entry Entry) error
	Delete(ctx context.Context, key Key) error
}

// MemoryStore keeps entries in process memory. It is the default store
// when no durable backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, key Key) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key.String()]
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	return cloneEntry(entry), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, key Key, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.String()] = cloneEntry(entry)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key.String())
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cloneEntry(e Entry) Entry {
	if e.Value != nil {
		e.Value = append([]byte(nil), e.Value...)
	}
	return e
}
