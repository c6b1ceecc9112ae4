/*
Package popular serves instant, ranked suggestions from a curated set of
well-known places.

The working set starts as the dataset bundled with the binary and can grow
with places learned at runtime (for example results of a live geocoding
lookup). It is persisted as one snapshot in a kvstore.Store with a 24 hour
TTL and reloaded on startup while fresh.

Store failures never reach the caller: they are logged at warn level and the
cache carries on in memory.
*/
package popular

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/kvstore"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// DefaultTTL bounds both the persisted snapshot and memoized results.
	DefaultTTL = 24 * time.Hour
	// DefaultLRUSize caps the number of memoized search results.
	DefaultLRUSize = 50
	// DefaultLimit applies when Options.Limit is not positive.
	DefaultLimit = 8
	// SnapshotKey is the store key of the persisted working set.
	SnapshotKey = "popular_places"
	snapshotVersion = 1
)

// Options narrows a search.
type Options struct {
	Limit        int
	UserLocation *places.Coordinates
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the snapshot and result lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLRUSize sets the number of memoized results. Zero disables memoization.
func WithLRUSize(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.lruSize = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSeed replaces the bundled dataset used when no snapshot is available.
func WithSeed(records []places.PlaceRecord) Option {
	return func(c *Cache) {
		c.seed = places.Clone(records)
	}
}

// Cache holds the working set of popular places. It is safe for concurrent
// use.
type Cache struct {
	store   kvstore.Store
	ttl     time.Duration
	lruSize int
	now     func() time.Time
	seed    []places.PlaceRecord

	mu      sync.RWMutex
	records []places.PlaceRecord
	lower   []string
	byKey   map[string]int
	trie    *patricia.Trie
	learned int

	results     *resultCache
	storeErrors int
}

type snapshot struct {
	Version int                  `msgpack:"v"`
	SavedAt int64                `msgpack:"t"`
	Learned int                  `msgpack:"l"`
	Places  []places.PlaceRecord `msgpack:"p"`
}

// New returns a cache serving the seed dataset (the bundled curated places
// by default). It performs no I/O; call Load to pick up a persisted
// snapshot. A nil store keeps everything in memory.
func New(store kvstore.Store, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		ttl:     DefaultTTL,
		lruSize: DefaultLRUSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.seed == nil {
		c.seed = places.Curated()
	}
	c.results = newResultCache(c.lruSize, c.ttl)
	c.setRecords(c.seed, 0)
	return c
}

// Load replaces the working set with a fresh persisted snapshot when one
// exists. Otherwise it keeps the seed dataset and persists it. It returns
// true when the snapshot was used.
func (c *Cache) Load(ctx context.Context) bool {
	if c.store == nil {
		return false
	}

	data, err := c.store.Get(ctx, SnapshotKey)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		log.Debugf("No popular places snapshot, using %d seed places", len(c.seed))
	case err != nil:
		c.storeFailed("read", err)
		return false
	default:
		snap, err := decodeSnapshot(data)
		if err == nil && c.now().Sub(time.Unix(0, snap.SavedAt)) < c.ttl {
			c.setRecords(snap.Places, snap.Learned)
			c.results.clear()
			log.Debugf("Loaded %d popular places from snapshot", len(snap.Places))
			return true
		}
		if err != nil {
			log.Warnf("Ignoring unreadable popular places snapshot: %v", err)
		}
	}

	c.persist(ctx)
	return false
}

// Learn adds places to the working set and persists it. Records that fail
// validation or are already known are skipped. It returns the number added.
func (c *Cache) Learn(ctx context.Context, records []places.PlaceRecord) int {
	c.mu.Lock()
	merged := places.Clone(c.records)
	known := make(map[string]bool, len(merged)+len(records))
	for _, p := range merged {
		known[p.Key()] = true
	}
	added := 0
	for _, p := range records {
		p = places.Normalize(p)
		if err := places.Validate(p); err != nil {
			log.Debugf("Not learning place: %v", err)
			continue
		}
		if known[p.Key()] {
			continue
		}
		known[p.Key()] = true
		merged = append(merged, p)
		added++
	}
	if added > 0 {
		c.setRecordsLocked(merged, c.learned+added)
	}
	c.mu.Unlock()

	if added > 0 {
		c.results.clear()
		c.persist(ctx)
		log.Debugf("Learned %d places", added)
	}
	return added
}

// Reset drops every memoized search result.
func (c *Cache) Reset() {
	c.results.clear()
}

// Invalidate drops memoized results and the persisted snapshot, and reverts
// the working set to the seed dataset.
func (c *Cache) Invalidate(ctx context.Context) {
	c.setRecords(c.seed, 0)
	c.results.clear()
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, SnapshotKey); err != nil {
		c.storeFailed("delete", err)
	}
}

// Records returns a copy of the working set in priority order.
func (c *Cache) Records() []places.PlaceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return places.Clone(c.records)
}

// InstantSuggestions returns the top limit places by priority, for the
// empty-query state.
func (c *Cache) InstantSuggestions(limit int) []places.PlaceRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return places.Clone(c.records[:min(limit, len(c.records))])
}

// ByCategory returns every place in cat, in priority order.
func (c *Cache) ByCategory(cat places.Category) []places.PlaceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []places.PlaceRecord
	for _, p := range c.records {
		if p.Category == cat {
			out = append(out, p)
		}
	}
	return out
}

// Stats reports working set and result cache counters.
func (c *Cache) Stats() map[string]int {
	size, hits, misses := c.results.stats()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]int{
		"places":           len(c.records),
		"learnedPlaces":    c.learned,
		"resultEntries":    size,
		"maxResultEntries": c.lruSize,
		"resultHits":       hits,
		"resultMisses":     misses,
		"storeErrors":      c.storeErrors,
	}
}

func (c *Cache) setRecords(records []places.PlaceRecord, learned int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRecordsLocked(places.Clone(records), learned)
}

// setRecordsLocked takes ownership of records, sorts them and rebuilds the
// name index. The trie maps a lower-cased name to the indices sharing it.
func (c *Cache) setRecordsLocked(records []places.PlaceRecord, learned int) {
	places.SortByPriority(records)
	c.records = records
	c.learned = learned
	c.lower = make([]string, len(records))
	c.byKey = make(map[string]int, len(records))
	c.trie = patricia.NewTrie()

	for i, p := range records {
		name := utils.NormalizeQuery(p.Name)
		c.lower[i] = name
		c.byKey[p.Key()] = i
		if item := c.trie.Get(patricia.Prefix(name)); item != nil {
			c.trie.Set(patricia.Prefix(name), append(item.([]int), i))
			continue
		}
		c.trie.Insert(patricia.Prefix(name), []int{i})
	}
}

func (c *Cache) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	c.mu.RLock()
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: c.now().UnixNano(),
		Learned: c.learned,
		Places:  places.Clone(c.records),
	}
	c.mu.RUnlock()

	data, err := msgpack.Marshal(snap)
	if err != nil {
		log.Warnf("Failed to encode popular places snapshot: %v", err)
		return
	}
	if err := c.store.Set(ctx, SnapshotKey, data, c.ttl); err != nil {
		c.storeFailed("write", err)
	}
}

func (c *Cache) storeFailed(op string, err error) {
	c.mu.Lock()
	c.storeErrors++
	c.mu.Unlock()
	log.Warnf("Popular places store %s failed, continuing in memory: %v", op, err)
}

func decodeSnapshot(data []byte) (snapshot, error) {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return snap, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	valid := snap.Places[:0]
	for _, p := range snap.Places {
		p = places.Normalize(p)
		if err := places.Validate(p); err != nil {
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return snap, errors.New("snapshot holds no valid places")
	}
	snap.Places = valid
	return snap, nil
}

// cacheKey identifies a memoized result. Locations are keyed exactly: the
// ranking depends on each user's own distances.
func cacheKey(q string, limit int, loc *places.Coordinates) string {
	var b strings.Builder
	b.WriteString(q)
	fmt.Fprintf(&b, "|%d|", limit)
	if loc != nil {
		b.WriteString(strconv.FormatFloat(loc.Lat, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(loc.Lon, 'g', -1, 64))
	}
	return b.String()
}
