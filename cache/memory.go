package cache

import "sync"

// MemoryStore is an unbounded in-memory store. Entries never expire and are
// never evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]any),
	}
}

// Has reports whether key has an entry.
func (s *MemoryStore) Has(key Key) bool {
	s.mu.RLock()
	_, ok := s.entries[key.id]
	s.mu.RUnlock()
	return ok
}

// Get returns the entry for key, or ErrMiss.
func (s *MemoryStore) Get(key Key) (any, error) {
	s.mu.RLock()
	v, ok := s.entries[key.id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

// Put stores value under key, replacing any previous entry.
func (s *MemoryStore) Put(key Key, value any) {
	s.mu.Lock()
	s.entries[key.id] = value
	s.mu.Unlock()
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
