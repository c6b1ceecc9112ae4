package kvstore

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]record
	now   Clock
}

// NewMemory returns an empty in-memory store. A nil clock uses time.Now.
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{items: make(map[string]record), now: now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	r, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if r.expired(m.now()) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return append([]byte(nil), r.Value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = newRecord(value, ttl, m.now())
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Close() error { return nil }
