package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and the dry-run CLI path.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	puts    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) GetCacheEntry(_ context.Context, fingerprint string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fingerprint]
	if !ok {
		return nil, ErrMiss
	}
	return &e, nil
}

func (m *MemoryStore) PutCacheEntry(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if _, exists := m.entries[entry.Fingerprint]; exists {
		return nil
	}
	m.entries[entry.Fingerprint] = entry
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
