package popular

import (
	"math"
	"sync"
	"time"

	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
)

// CacheEntry is one memoized search result.
type CacheEntry struct {
	Key       string
	Value     []places.PlaceRecord
	CreatedAt time.Time
	ExpiresAt time.Time
}

// resultCache is a small LRU of search results. Recency is a monotonically
// increasing access counter; eviction scans for the lowest.
type resultCache struct {
	entries     map[string]*CacheEntry
	accessTime  map[string]int64
	accessCount int64
	maxEntries  int
	ttl         time.Duration
	hits        int
	misses      int
	// gen counts clears; a result computed before a clear is not stored.
	gen uint64
	mu  sync.Mutex
}

func newResultCache(maxEntries int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries:    make(map[string]*CacheEntry, maxEntries),
		accessTime: make(map[string]int64, maxEntries),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// get returns a copy of the cached value for key if present and fresh.
func (rc *resultCache) get(key string, now time.Time) ([]places.PlaceRecord, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	e, ok := rc.entries[key]
	if !ok {
		rc.misses++
		return nil, false
	}
	if !now.Before(e.ExpiresAt) {
		rc.remove(key)
		rc.misses++
		return nil, false
	}
	rc.hits++
	rc.markAccessed(key)
	return places.Clone(e.Value), true
}

// generation returns the current clear count, to be passed to put.
func (rc *resultCache) generation() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.gen
}

// put stores value unless the cache was cleared since gen was read.
func (rc *resultCache) put(key string, value []places.PlaceRecord, now time.Time, gen uint64) {
	if rc.maxEntries <= 0 {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if gen != rc.gen {
		log.Debugf("Dropping result for '%s' computed before a clear", key)
		return
	}

	if _, exists := rc.entries[key]; !exists && len(rc.entries) >= rc.maxEntries {
		rc.evictLRU()
	}
	rc.entries[key] = &CacheEntry{
		Key:       key,
		Value:     places.Clone(value),
		CreatedAt: now,
		ExpiresAt: now.Add(rc.ttl),
	}
	rc.markAccessed(key)
}

func (rc *resultCache) clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	clear(rc.entries)
	clear(rc.accessTime)
	rc.gen++
}

func (rc *resultCache) stats() (size, hits, misses int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries), rc.hits, rc.misses
}

func (rc *resultCache) markAccessed(key string) {
	rc.accessCount++
	rc.accessTime[key] = rc.accessCount
}

func (rc *resultCache) remove(key string) {
	delete(rc.entries, key)
	delete(rc.accessTime, key)
}

func (rc *resultCache) evictLRU() {
	var oldestKey string
	var oldestTime int64 = math.MaxInt64

	for key, t := range rc.accessTime {
		if t < oldestTime {
			oldestTime = t
			oldestKey = key
		}
	}

	if oldestKey != "" {
		rc.remove(oldestKey)
		log.Debugf("Evicted '%s' from result cache", oldestKey)
	}
}
