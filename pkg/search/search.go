package search

import (
	"context"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/popular"
	"github.com/bastiangx/placeserve/pkg/voice"
	"github.com/charmbracelet/log"
)

const (
	DefaultLimit              = 8
	DefaultMaxLimit           = 50
	DefaultCorrectionFloor    = 0.90
	DefaultDebounceShortQuery = 250 * time.Millisecond
	DefaultDebounceLongQuery  = 150 * time.Millisecond
	// debounceLongFrom is the query length from which the shorter wait applies.
	debounceLongFrom = 3
)

// Source tells where a suggestion came from.
type Source int

const (
	Popular Source = iota
	Corrected
	API
)

func (s Source) String() string {
	switch s {
	case Popular:
		return "popular"
	case Corrected:
		return "corrected"
	case API:
		return "api"
	}
	return "unknown"
}

// Suggestion is one ranked entry. Score decreases strictly down the list.
type Suggestion struct {
	Place  places.PlaceRecord
	Source Source
	Score  float64
}

// List is the result of a query. Correction carries the autocorrector's
// proposal when it changed the input, whether or not it was confident
// enough to reorder the results.
type List struct {
	Items      []Suggestion
	Correction *autocorrect.Candidate
}

// Places returns the records in order.
func (l List) Places() []places.PlaceRecord {
	out := make([]places.PlaceRecord, len(l.Items))
	for i, s := range l.Items {
		out[i] = s.Place
	}
	return out
}

// Options narrows a query.
type Options struct {
	Limit        int
	UserLocation *places.Coordinates
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultLimit applies when Options.Limit is not positive.
func WithDefaultLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.defaultLimit = n
		}
	}
}

// WithMaxLimit caps Options.Limit.
func WithMaxLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithCorrectionFloor sets the confidence a correction needs before its
// results are merged ahead of the raw query's.
func WithCorrectionFloor(f float64) Option {
	return func(o *Orchestrator) {
		o.correctionFloor = f
	}
}

// WithDebounce sets the caller-side waits returned by DebounceFor.
func WithDebounce(short, long time.Duration) Option {
	return func(o *Orchestrator) {
		o.debounceShort, o.debounceLong = short, long
	}
}

// Orchestrator composes the popular places cache and the autocorrector.
// It performs no network I/O and never panics on input.
type Orchestrator struct {
	source    PlaceSource
	corrector Corrector

	defaultLimit    int
	maxLimit        int
	correctionFloor float64
	debounceShort   time.Duration
	debounceLong    time.Duration
}

// New returns an Orchestrator. Either dependency may be nil, in which case
// it contributes nothing.
func New(source PlaceSource, corrector Corrector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:          source,
		corrector:       corrector,
		defaultLimit:    DefaultLimit,
		maxLimit:        DefaultMaxLimit,
		correctionFloor: DefaultCorrectionFloor,
		debounceShort:   DefaultDebounceShortQuery,
		debounceLong:    DefaultDebounceLongQuery,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// QuerySuggestions returns suggestions for raw input.
//
// An empty (or blank) query returns the instant suggestions. Otherwise the
// cache is searched with the normalized query. Input that cannot be a place
// name (digits only, symbols, one repeated letter) is not corrected;
// otherwise a correction at or above the correction floor that names
// something else has its own results merged in front. Entries are
// de-duplicated by name and country code, first occurrence winning, and the
// list is cut to the limit.
func (o *Orchestrator) QuerySuggestions(raw string, opts Options) List {
	limit := o.limit(opts.Limit)
	q := utils.NormalizeQuery(raw)
	if q == "" {
		return build(nil, o.instant(limit), nil, limit)
	}

	searchOpts := popular.Options{Limit: limit, UserLocation: opts.UserLocation}
	direct := o.search(q, searchOpts)
	var candidate *autocorrect.Candidate
	if utils.IsValidInput(q) {
		candidate = o.correct(q)
	}

	var corrected []places.PlaceRecord
	var shown *autocorrect.Candidate
	if candidate != nil && candidate.Method != autocorrect.Exact {
		shown = candidate
		target := utils.NormalizeQuery(candidate.Corrected)
		if candidate.Confidence >= o.correctionFloor && target != q {
			corrected = o.search(target, searchOpts)
		}
	}

	return build(shown, direct, corrected, limit)
}

// FromVoice runs a finished voice session's final transcript exactly as if
// it had been typed. Sessions without a final transcript yield an empty list.
func (o *Orchestrator) FromVoice(s voice.Session, opts Options) List {
	if s.FinalTranscript == nil {
		return List{}
	}
	return o.QuerySuggestions(*s.FinalTranscript, opts)
}

// Supplement appends caller-fetched API results after the cached ones,
// keeping the de-duplication and the limit. Invalid records are dropped.
func (o *Orchestrator) Supplement(l List, api []places.PlaceRecord, limit int) List {
	limit = o.limit(limit)
	filter := utils.NewKeyFilter(limit)
	items := make([]Suggestion, 0, limit)
	for _, s := range l.Items {
		if len(items) == limit {
			break
		}
		if filter.ShouldInclude(s.Place.Key()) {
			items = append(items, s)
		}
	}
	for _, p := range api {
		if len(items) == limit {
			break
		}
		p = places.Normalize(p)
		if err := places.Validate(p); err != nil {
			log.Debugf("Dropping API result: %v", err)
			continue
		}
		if filter.ShouldInclude(p.Key()) {
			items = append(items, Suggestion{Place: p, Source: API})
		}
	}
	score(items)
	return List{Items: items, Correction: l.Correction}
}

// Learn feeds resolved places back into the sources that accept them, so
// later queries find them without a live lookup.
func (o *Orchestrator) Learn(ctx context.Context, records []places.PlaceRecord) int {
	added := 0
	if pl, ok := o.source.(placeLearner); ok {
		added = pl.Learn(ctx, records)
	}
	if nl, ok := o.corrector.(nameLearner); ok {
		nl.Learn(records)
	}
	return added
}

// Invalidate forgets learned places in both the source and the corrector.
// The source reverts to its seed and the corrector's dictionary is rebuilt
// from what the source still holds.
func (o *Orchestrator) Invalidate(ctx context.Context) {
	inv, ok := o.source.(invalidator)
	if !ok {
		return
	}
	inv.Invalidate(ctx)
	if rb, ok := o.corrector.(rebuilder); ok {
		rb.Rebuild(inv.Records())
	}
}

// DebounceFor is how long a caller should wait after the last keystroke
// before querying. It is advisory; QuerySuggestions does not enforce it.
func (o *Orchestrator) DebounceFor(query string) time.Duration {
	if len([]rune(utils.NormalizeQuery(query))) >= debounceLongFrom {
		return o.debounceLong
	}
	return o.debounceShort
}

func (o *Orchestrator) limit(n int) int {
	if n <= 0 {
		n = o.defaultLimit
	}
	return min(n, o.maxLimit)
}

func (o *Orchestrator) instant(limit int) (out []places.PlaceRecord) {
	if o.source == nil {
		return nil
	}
	defer recoverAs("instant suggestions", &out)
	return o.source.InstantSuggestions(limit)
}

func (o *Orchestrator) search(q string, opts popular.Options) (out []places.PlaceRecord) {
	if o.source == nil {
		return nil
	}
	defer recoverAs("popular search", &out)
	return o.source.Search(q, opts)
}

func (o *Orchestrator) correct(q string) (c *autocorrect.Candidate) {
	if o.corrector == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("Autocorrect failed for %q: %v", q, r)
			c = nil
		}
	}()
	return o.corrector.Correct(q)
}

// recoverAs turns a panic in a source into an empty result.
func recoverAs(what string, out *[]places.PlaceRecord) {
	if r := recover(); r != nil {
		log.Warnf("%s failed, treating as empty: %v", what, r)
		*out = nil
	}
}

// build merges corrected results ahead of direct ones.
func build(correction *autocorrect.Candidate, direct, corrected []places.PlaceRecord, limit int) List {
	filter := utils.NewKeyFilter(len(direct) + len(corrected))
	items := make([]Suggestion, 0, min(limit, len(direct)+len(corrected)))
	add := func(records []places.PlaceRecord, src Source) {
		for _, p := range records {
			if len(items) == limit {
				return
			}
			if filter.ShouldInclude(p.Key()) {
				items = append(items, Suggestion{Place: p, Source: src})
			}
		}
	}
	add(corrected, Corrected)
	add(direct, Popular)
	score(items)
	return List{Items: items, Correction: correction}
}

// score assigns rank-based scores in (0, 1], highest first.
func score(items []Suggestion) {
	n := float64(len(items))
	for i := range items {
		items[i].Score = (n - float64(i)) / n
	}
}
