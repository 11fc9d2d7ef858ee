package storage

import (
	"context"
	"sync"
)

// MemoryKVStore is an in-process KVStore. Values are lost on exit.
type MemoryKVStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKVStore returns an empty MemoryKVStore.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{values: make(map[string]string)}
}

// Get returns the value for key, or def if it was never set.
func (s *MemoryKVStore) Get(_ context.Context, key, def string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return def, nil
}

// Set stores value under key.
func (s *MemoryKVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
