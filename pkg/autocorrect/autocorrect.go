// Package autocorrect turns a mistyped place name into the most likely known
// name, with a confidence score and the tier that found it.
//
// The cascade runs exact, prefix, known-misspelling, edit-distance,
// phonetic and character-overlap matching in that order and stops at the
// first tier that produces a candidate. Anything below the reject floor is
// dropped: too many errors to correct reliably.
package autocorrect

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/match"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
	"gopkg.in/yaml.v3"
)

//go:embed data/misspellings.yaml
var misspellingsYAML []byte

// entry is one correctable name. Places sharing a name (London GB and
// London CA) collapse into one entry carrying the highest priority.
type entry struct {
	name     string
	lower    string
	priority int
}

// Option configures an Autocorrector.
type Option func(*Autocorrector)

// WithThresholds replaces the default confidence bands.
func WithThresholds(t Thresholds) Option {
	return func(a *Autocorrector) {
		a.thresholds = t
	}
}

// WithMisspellings replaces the bundled misspellings table. Keys are
// canonical names, values their known variants.
func WithMisspellings(table map[string][]string) Option {
	return func(a *Autocorrector) {
		a.rawMisspellings = table
	}
}

// WithMemoSize bounds the phonetic and similarity memo tables.
func WithMemoSize(n int) Option {
	return func(a *Autocorrector) {
		a.memoSize = n
	}
}

// Autocorrector corrects queries against a dictionary of place names.
// It is safe for concurrent use.
type Autocorrector struct {
	thresholds      Thresholds
	rawMisspellings map[string][]string
	memoSize        int

	mu           sync.RWMutex
	entries      []entry
	byLower      map[string]int
	trie         *patricia.Trie
	misspellings map[string]string

	codes     *memo[string]
	distances *memo[distanceResult]
}

type distanceResult struct {
	dist int
	ok   bool
}

// New builds an Autocorrector over the names of records.
func New(records []places.PlaceRecord, opts ...Option) *Autocorrector {
	a := &Autocorrector{
		thresholds: DefaultThresholds(),
		memoSize:   DefaultMemoSize,
		byLower:    make(map[string]int, len(records)),
		trie:       patricia.NewTrie(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rawMisspellings == nil {
		table, err := LoadMisspellings(misspellingsYAML)
		if err != nil {
			log.Errorf("Failed to parse bundled misspellings: %v", err)
		}
		a.rawMisspellings = table
	}
	a.codes = newMemo[string](a.memoSize)
	a.distances = newMemo[distanceResult](a.memoSize)

	a.addLocked(records)
	a.rebuildMisspellings()
	log.Debugf("Autocorrector ready: %d names, %d known misspellings", len(a.entries), len(a.misspellings))
	return a
}

// LoadMisspellings parses a YAML map of canonical name to variants.
func LoadMisspellings(data []byte) (map[string][]string, error) {
	table := make(map[string][]string)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decoding misspellings: %w", err)
	}
	return table, nil
}

// Learn adds names to the dictionary, e.g. places resolved through a live
// geocoding lookup. Known names only have their priority raised.
func (a *Autocorrector) Learn(records []places.PlaceRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addLocked(records)
	a.rebuildMisspellings()
}

// Rebuild replaces the dictionary with the names of records, dropping
// everything learned since, and empties the memo tables.
func (a *Autocorrector) Rebuild(records []places.PlaceRecord) {
	a.mu.Lock()
	a.entries = nil
	a.byLower = make(map[string]int, len(records))
	a.trie = patricia.NewTrie()
	a.addLocked(records)
	a.rebuildMisspellings()
	a.mu.Unlock()

	a.Reset()
	log.Debugf("Autocorrector rebuilt: %d names", len(records))
}

func (a *Autocorrector) addLocked(records []places.PlaceRecord) {
	for _, p := range records {
		name := utils.CollapseSpaces(p.Name)
		lower := utils.NormalizeQuery(name)
		if lower == "" {
			continue
		}
		prio := places.ClampPriority(p.SearchPriority)
		if i, ok := a.byLower[lower]; ok {
			if prio > a.entries[i].priority {
				a.entries[i].priority = prio
				a.entries[i].name = name
			}
			continue
		}
		a.byLower[lower] = len(a.entries)
		a.entries = append(a.entries, entry{name: name, lower: lower, priority: prio})
		a.trie.Insert(patricia.Prefix(lower), len(a.entries)-1)
	}
}

// rebuildMisspellings inverts the raw table, keeping only canonical names
// present in the dictionary so every correction can round-trip to Exact.
func (a *Autocorrector) rebuildMisspellings() {
	a.misspellings = make(map[string]string)
	for canonical, variants := range a.rawMisspellings {
		idx, ok := a.byLower[utils.NormalizeQuery(canonical)]
		if !ok {
			continue
		}
		for _, v := range variants {
			key := utils.NormalizeQuery(v)
			if key == "" || key == a.entries[idx].lower {
				continue
			}
			if prev, dup := a.misspellings[key]; dup && prev != a.entries[idx].name {
				log.Warnf("Misspelling %q maps to both %q and %q; keeping %q", key, prev, a.entries[idx].name, prev)
				continue
			}
			a.misspellings[key] = a.entries[idx].name
		}
	}
}

// Correct returns the best correction for query, or nil when the query is
// empty or nothing reaches the reject floor. A query that already names a
// known place comes back as an Exact candidate with confidence 1.0.
func (a *Autocorrector) Correct(query string) *Candidate {
	q := utils.NormalizeQuery(query)
	if q == "" {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	tiers := []func(string) *Candidate{
		a.exact,
		a.prefix,
		a.knownMisspelling,
		a.editDistance,
		a.phonetic,
		a.fuzzy,
	}
	for _, tier := range tiers {
		c := tier(q)
		if c == nil {
			continue
		}
		if c.Confidence < a.thresholds.RejectFloor {
			log.Debugf("Rejected %s correction %q -> %q (%.2f)", c.Method, q, c.Corrected, c.Confidence)
			return nil
		}
		c.Original = query
		return c
	}
	return nil
}

// Suggest collects up to n candidates across every tier, best first, for
// "did you mean" lists. Each name appears once, under the earliest tier that found it.
func (a *Autocorrector) Suggest(query string, n int) []Candidate {
	q := utils.NormalizeQuery(query)
	if q == "" || n <= 0 {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	best := make(map[string]Candidate)
	offer := func(c Candidate) {
		if c.Confidence < a.thresholds.RejectFloor {
			return
		}
		// tiers are offered in cascade order, so the first offer is the strongest method
		if _, ok := best[c.Corrected]; ok {
			return
		}
		c.Original = query
		best[c.Corrected] = c
	}

	if c := a.exact(q); c != nil {
		offer(*c)
	}
	for _, i := range a.prefixMatches(q) {
		offer(Candidate{Corrected: a.entries[i].name, Confidence: a.thresholds.PrefixConfidence, Method: Prefix})
	}
	if c := a.knownMisspelling(q); c != nil {
		offer(*c)
	}
	if runeCount(q) >= a.thresholds.MinCorrectLen {
		limit := a.editLimit(q)
		for i := range a.entries {
			if sim, ok := a.similarityWithin(q, i, limit); ok && sim >= a.thresholds.EditFloor {
				offer(Candidate{Corrected: a.entries[i].name, Confidence: a.editConfidence(sim), Method: EditDistance})
			}
			if a.phoneticEqual(q, i) {
				offer(Candidate{Corrected: a.entries[i].name, Confidence: a.thresholds.PhoneticConfidence, Method: Phonetic})
			}
			if ratio := match.CharOverlap(q, a.entries[i].lower); ratio >= a.thresholds.FuzzyFloor {
				offer(Candidate{Corrected: a.entries[i].name, Confidence: a.fuzzyConfidence(ratio), Method: Fuzzy})
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		pi := a.entries[a.byLower[utils.NormalizeQuery(out[i].Corrected)]].priority
		pj := a.entries[a.byLower[utils.NormalizeQuery(out[j].Corrected)]].priority
		if pi != pj {
			return pi > pj
		}
		return out[i].Corrected < out[j].Corrected
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (a *Autocorrector) exact(q string) *Candidate {
	i, ok := a.byLower[q]
	if !ok {
		return nil
	}
	return &Candidate{Corrected: a.entries[i].name, Confidence: 1.0, Method: Exact}
}

func (a *Autocorrector) prefix(q string) *Candidate {
	matches := a.prefixMatches(q)
	if len(matches) == 0 {
		return nil
	}
	return &Candidate{Corrected: a.entries[matches[0]].name, Confidence: a.thresholds.PrefixConfidence, Method: Prefix}
}

// prefixMatches lists entries starting with q, ordered by priority desc,
// then shorter name, then name.
func (a *Autocorrector) prefixMatches(q string) []int {
	if runeCount(q) < a.thresholds.PrefixMinLen {
		return nil
	}
	var matches []int
	err := a.trie.VisitSubtree(patricia.Prefix(q), func(p patricia.Prefix, item patricia.Item) error {
		if idx, ok := item.(int); ok && string(p) != q {
			matches = append(matches, idx)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting name trie: %v", err)
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		ei, ej := a.entries[matches[i]], a.entries[matches[j]]
		if ei.priority != ej.priority {
			return ei.priority > ej.priority
		}
		if len(ei.lower) != len(ej.lower) {
			return len(ei.lower) < len(ej.lower)
		}
		return ei.lower < ej.lower
	})
	return matches
}

func (a *Autocorrector) knownMisspelling(q string) *Candidate {
	name, ok := a.misspellings[q]
	if !ok {
		return nil
	}
	return &Candidate{Corrected: name, Confidence: a.thresholds.MisspellingConfidence, Method: KnownMisspelling}
}

func (a *Autocorrector) editDistance(q string) *Candidate {
	if runeCount(q) < a.thresholds.MinCorrectLen {
		return nil
	}
	limit := a.editLimit(q)

	best, bestSim, bestJW := -1, 0.0, 0.0
	for i := range a.entries {
		sim, ok := a.similarityWithin(q, i, limit)
		if !ok || sim < a.thresholds.EditFloor {
			continue
		}
		jw := match.JaroWinkler(q, a.entries[i].lower)
		if best < 0 || sim > bestSim ||
			(sim == bestSim && jw > bestJW) ||
			(sim == bestSim && jw == bestJW && a.outranks(i, best)) {
			best, bestSim, bestJW = i, sim, jw
		}
	}
	if best < 0 {
		return nil
	}
	return &Candidate{Corrected: a.entries[best].name, Confidence: a.editConfidence(bestSim), Method: EditDistance}
}

func (a *Autocorrector) phonetic(q string) *Candidate {
	if runeCount(q) < a.thresholds.MinCorrectLen {
		return nil
	}
	best, bestSim := -1, 0.0
	for i := range a.entries {
		if !a.phoneticEqual(q, i) {
			continue
		}
		sim := match.Similarity(q, a.entries[i].lower)
		if best < 0 || sim > bestSim || (sim == bestSim && a.outranks(i, best)) {
			best, bestSim = i, sim
		}
	}
	if best < 0 {
		return nil
	}
	return &Candidate{Corrected: a.entries[best].name, Confidence: a.thresholds.PhoneticConfidence, Method: Phonetic}
}

func (a *Autocorrector) fuzzy(q string) *Candidate {
	if runeCount(q) < a.thresholds.MinCorrectLen {
		return nil
	}
	best, bestRatio, bestSim := -1, 0.0, 0.0
	for i := range a.entries {
		ratio := match.CharOverlap(q, a.entries[i].lower)
		if ratio < a.thresholds.FuzzyFloor {
			continue
		}
		sim := match.Similarity(q, a.entries[i].lower)
		if best < 0 || ratio > bestRatio ||
			(ratio == bestRatio && sim > bestSim) ||
			(ratio == bestRatio && sim == bestSim && a.outranks(i, best)) {
			best, bestRatio, bestSim = i, ratio, sim
		}
	}
	if best < 0 {
		return nil
	}
	return &Candidate{Corrected: a.entries[best].name, Confidence: a.fuzzyConfidence(bestRatio), Method: Fuzzy}
}

// outranks breaks remaining ties by priority, then name.
func (a *Autocorrector) outranks(i, j int) bool {
	if a.entries[i].priority != a.entries[j].priority {
		return a.entries[i].priority > a.entries[j].priority
	}
	return a.entries[i].lower < a.entries[j].lower
}

func (a *Autocorrector) editLimit(q string) int {
	return int(math.Ceil(a.thresholds.EditRatio * float64(runeCount(q))))
}

func (a *Autocorrector) similarityWithin(q string, i, limit int) (float64, bool) {
	name := a.entries[i].lower
	r := a.distances.getOrCompute(q+"\x00"+name, func() distanceResult {
		d, ok := match.EditDistanceWithin(q, name, limit)
		return distanceResult{dist: d, ok: ok}
	})
	if !r.ok {
		return 0, false
	}
	return match.SimilarityFromDistance(r.dist, q, name), true
}

func (a *Autocorrector) phoneticEqual(q string, i int) bool {
	qc := a.phoneticCode(q)
	return qc != "" && qc == a.phoneticCode(a.entries[i].lower)
}

func (a *Autocorrector) phoneticCode(s string) string {
	return a.codes.getOrCompute(s, func() string {
		return match.PhoneticCode(s)
	})
}

func (a *Autocorrector) editConfidence(sim float64) float64 {
	t := a.thresholds
	return scale(sim, t.EditFloor, 1.0, t.EditFloor, t.EditCeiling)
}

func (a *Autocorrector) fuzzyConfidence(ratio float64) float64 {
	t := a.thresholds
	return scale(ratio, t.FuzzyFloor, 1.0, t.FuzzyFloor, t.FuzzyCeiling)
}

// scale maps v from [lo, hi] onto [outLo, outHi], clamped.
func scale(v, lo, hi, outLo, outHi float64) float64 {
	if hi <= lo {
		return outHi
	}
	f := (v - lo) / (hi - lo)
	f = min(max(f, 0), 1)
	return outLo + f*(outHi-outLo)
}

// Reset empties the memo tables.
func (a *Autocorrector) Reset() {
	a.codes.reset()
	a.distances.reset()
}

// Len returns the number of distinct names in the dictionary.
func (a *Autocorrector) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Stats reports dictionary and memo sizes.
func (a *Autocorrector) Stats() map[string]int {
	a.mu.RLock()
	names, variants := len(a.entries), len(a.misspellings)
	a.mu.RUnlock()

	codeSize, codeHits, codeMisses := a.codes.stats()
	distSize, distHits, distMisses := a.distances.stats()
	return map[string]int{
		"names":          names,
		"misspellings":   variants,
		"phoneticMemo":   codeSize,
		"phoneticHits":   codeHits,
		"phoneticMisses": codeMisses,
		"distanceMemo":   distSize,
		"distanceHits":   distHits,
		"distanceMisses": distMisses,
	}
}

func runeCount(s string) int {
	return len([]rune(s))
}

// Names returns the dictionary's display names in insertion order.
func (a *Autocorrector) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.name
	}
	return out
}
