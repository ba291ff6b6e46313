package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps values in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	m.mu.RLock()
	value, ok := m.data[key]
	m.mu.RUnlock()
	var err error
	if !ok {
		err = ErrNotFound
	}
	observe("memory", "get", start, err)
	return value, err
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	observe("memory", "set", start, nil)
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	start := time.Now()
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	observe("memory", "remove", start, nil)
	return nil
}
