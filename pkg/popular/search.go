package popular

import (
	"sort"
	"strings"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

type hit struct {
	idx      int
	prefix   bool
	distance float64
}

// Search returns places whose name starts with or contains query,
// case-insensitively. Prefix matches rank first, then higher priority, then
// (with a user location) shorter great-circle distance, then larger
// population, then name. An empty query returns InstantSuggestions.
//
// Results are memoized per normalized query, limit and location.
func (c *Cache) Search(query string, opts Options) []places.PlaceRecord {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := utils.NormalizeQuery(query)
	if q == "" {
		return c.InstantSuggestions(limit)
	}
	loc := opts.UserLocation
	if loc != nil && !loc.Valid() {
		loc = nil
	}

	key := cacheKey(q, limit, loc)
	now := c.now()
	if cached, ok := c.results.get(key, now); ok {
		return cached
	}
	gen := c.results.generation()

	c.mu.RLock()
	hits := c.matchLocked(q, loc)
	sort.Slice(hits, func(i, j int) bool {
		return c.rankLocked(hits[i], hits[j], loc != nil)
	})
	out := make([]places.PlaceRecord, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		out = append(out, c.records[h.idx])
	}
	c.mu.RUnlock()

	c.results.put(key, out, now, gen)
	return out
}

func (c *Cache) matchLocked(q string, loc *places.Coordinates) []hit {
	seen := make(map[int]bool)
	var hits []hit
	add := func(idx int, prefix bool) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		h := hit{idx: idx, prefix: prefix}
		if loc != nil {
			h.distance = places.DistanceKm(*loc, c.records[idx].Coordinates)
		}
		hits = append(hits, h)
	}

	err := c.trie.VisitSubtree(patricia.Prefix(q), func(_ patricia.Prefix, item patricia.Item) error {
		for _, idx := range item.([]int) {
			add(idx, true)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error searching popular places trie: %v", err)
	}

	for i, name := range c.lower {
		if !seen[i] && strings.Contains(name, q) {
			add(i, false)
		}
	}
	return hits
}

func (c *Cache) rankLocked(a, b hit, byDistance bool) bool {
	if a.prefix != b.prefix {
		return a.prefix
	}
	pa, pb := c.records[a.idx], c.records[b.idx]
	if pa.SearchPriority != pb.SearchPriority {
		return pa.SearchPriority > pb.SearchPriority
	}
	if byDistance && a.distance != b.distance {
		return a.distance < b.distance
	}
	return places.LessByPriority(pa, pb)
}
