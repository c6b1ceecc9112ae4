package autocorrect

import "sync"

// DefaultMemoSize bounds each memo table.
const DefaultMemoSize = 4096

// memo is a bounded string-keyed table, emptied in one go when full.
type memo[V any] struct {
	mu      sync.Mutex
	items   map[string]V
	maxSize int
	hits    int
	misses  int
}

func newMemo[V any](maxSize int) *memo[V] {
	if maxSize <= 0 {
		maxSize = DefaultMemoSize
	}
	return &memo[V]{items: make(map[string]V), maxSize: maxSize}
}

func (m *memo[V]) getOrCompute(key string, compute func() V) V {
	m.mu.Lock()
	if v, ok := m.items[key]; ok {
		m.hits++
		m.mu.Unlock()
		return v
	}
	m.misses++
	m.mu.Unlock()

	v := compute()

	m.mu.Lock()
	if len(m.items) >= m.maxSize {
		clear(m.items)
	}
	m.items[key] = v
	m.mu.Unlock()
	return v
}

func (m *memo[V]) reset() {
	m.mu.Lock()
	clear(m.items)
	m.hits, m.misses = 0, 0
	m.mu.Unlock()
}

func (m *memo[V]) stats() (size, hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), m.hits, m.misses
}
