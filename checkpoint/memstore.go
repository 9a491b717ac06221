package checkpoint

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral runs.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	snapshot []byte
	meta     Metadata
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]memEntry)}
}

// Put stores a snapshot, replacing any previous one for the namespace.
func (s *MemStore) Put(_ context.Context, namespace string, snapshot []byte, meta Metadata) error {
	buf := make([]byte, len(snapshot))
	copy(buf, snapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[namespace] = memEntry{snapshot: buf, meta: meta}
	return nil
}

// Get returns the latest snapshot for namespace, if any.
func (s *MemStore) Get(_ context.Context, namespace string) ([]byte, Metadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[namespace]
	if !ok {
		return nil, Metadata{}, false, nil
	}
	buf := make([]byte, len(entry.snapshot))
	copy(buf, entry.snapshot)
	return buf, entry.meta, true, nil
}
