package session

import (
	"context"
	"sync"
	"time"
)

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process [Store] for tests and single-node dev runs.
// TTL is honored lazily: expired entries are treated as missing on Get.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	customer Customer
	expires  time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, callID string, customer Customer, ttl time.Duration) error {
	if ttl <= 0 || ttl > maxTTL {
		ttl = maxTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[callID] = memoryEntry{customer: customer, expires: time.Now().Add(ttl)}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, callID string) (Customer, error) {
	s.mu.RLock()
	e, ok := s.entries[callID]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return Customer{}, ErrNotFound
	}
	return e.customer, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, callID)
	return nil
}
