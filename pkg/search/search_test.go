package search

import (
	"context"
	"testing"
	"time"

	"github.com/bastiangx/placeserve/pkg/autocorrect"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/popular"
	"github.com/bastiangx/placeserve/pkg/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(t testing.TB, opts ...Option) (*Orchestrator, *popular.Cache) {
	t.Helper()
	cache := popular.New(nil)
	return New(cache, autocorrect.New(cache.Records()), opts...), cache
}

func keys(l List) []string {
	out := make([]string, len(l.Items))
	for i, s := range l.Items {
		out[i] = s.Place.String()
	}
	return out
}

type panickySource struct{}

func (panickySource) Search(string, popular.Options) []places.PlaceRecord { panic("storage exploded") }
func (panickySource) InstantSuggestions(int) []places.PlaceRecord { panic("storage exploded") }

type panickyCorrector struct{}

func (panickyCorrector) Correct(string) *autocorrect.Candidate { panic("dictionary exploded") }

func TestEmptyQueryIsInstantSuggestions(t *testing.T) {
	o, cache := newOrchestrator(t)
	for _, raw := range []string{"", "   ", "\t"} {
		got := o.QuerySuggestions(raw, Options{Limit: 8})
		assert.Equal(t, cache.InstantSuggestions(8), got.Places())
		assert.Nil(t, got.Correction)
	}

	top := o.QuerySuggestions("", Options{Limit: 3})
	assert.Equal(t, []string{"Tokyo, JP", "London, GB", "New York, US"}, keys(top))
}

func TestConfidentCorrectionRanksFirst(t *testing.T) {
	o, _ := newOrchestrator(t)

	got := o.QuerySuggestions("filadelfia", Options{Limit: 5})
	require.NotEmpty(t, got.Items)
	assert.Equal(t, "Philadelphia", got.Items[0].Place.Name)
	assert.Equal(t, Corrected, got.Items[0].Source)
	require.NotNil(t, got.Correction)
	assert.Equal(t, autocorrect.KnownMisspelling, got.Correction.Method)
	assert.Equal(t, "filadelfia", got.Correction.Original)
}

func TestPrefixCorrectionMergesWithoutDuplicates(t *testing.T) {
	o, _ := newOrchestrator(t)
	got := o.QuerySuggestions("lon", Options{Limit: 5})
	assert.Equal(t, []string{"London, GB", "London, CA", "Barcelona, ES"}, keys(got))
	assert.Equal(t, Corrected, got.Items[0].Source)
	assert.Equal(t, Popular, got.Items[2].Source)
}

func TestExactQueryHasNoCorrection(t *testing.T) {
	o, _ := newOrchestrator(t)
	got := o.QuerySuggestions("  New  YORK ", Options{})
	require.NotEmpty(t, got.Items)
	assert.Equal(t, "New York", got.Items[0].Place.Name)
	assert.Equal(t, Popular, got.Items[0].Source)
	assert.Nil(t, got.Correction)
}

func TestWeakCorrectionIsOnlyReported(t *testing.T) {
	o, _ := newOrchestrator(t)
	got := o.QuerySuggestions("lodnon", Options{})
	assert.Empty(t, got.Items)
	require.NotNil(t, got.Correction)
	assert.Equal(t, "London", got.Correction.Corrected)
	assert.Less(t, got.Correction.Confidence, DefaultCorrectionFloor)
}

func TestImplausibleInputIsNotCorrected(t *testing.T) {
	o, _ := newOrchestrator(t)
	for _, q := range []string{"12345", "lon@don", "oooo"} {
		assert.Nil(t, o.QuerySuggestions(q, Options{}).Correction, q)
	}
}

func TestDedupAndBound(t *testing.T) {
	o, _ := newOrchestrator(t)
	queries := []string{
		"", "l", "lo", "lon", "london", "san", "s", "a", "e", "new", "ny",
		"filadelfia", "bombay", "peking", "par", "to", "xyz", "lundunn", "rio",
	}
	for _, q := range queries {
		for _, limit := range []int{1, 3, 8, 20} {
			got := o.QuerySuggestions(q, Options{Limit: limit})
			assert.LessOrEqual(t, len(got.Items), limit, "%q limit %d", q, limit)

			seen := map[string]bool{}
			for i, s := range got.Items {
				assert.False(t, seen[s.Place.Key()], "%q: duplicate %s", q, s.Place)
				seen[s.Place.Key()] = true
				if i > 0 {
					assert.Greater(t, got.Items[i-1].Score, s.Score)
				}
			}
		}
	}
}

func TestDeterministic(t *testing.T) {
	o, _ := newOrchestrator(t)
	paris := places.Coordinates{Lat: 48.85, Lon: 2.35}
	for _, q := range []string{"lon", "san", "filadelfia", "a"} {
		first := o.QuerySuggestions(q, Options{Limit: 6, UserLocation: &paris})
		assert.Equal(t, first, o.QuerySuggestions(q, Options{Limit: 6, UserLocation: &paris}))
	}
}

func TestLimits(t *testing.T) {
	o, _ := newOrchestrator(t, WithMaxLimit(10))
	assert.Len(t, o.QuerySuggestions("", Options{}).Items, DefaultLimit)
	assert.Len(t, o.QuerySuggestions("", Options{Limit: 1000}).Items, 10)
}

func TestSubcomponentPanicsAreContained(t *testing.T) {
	o := New(panickySource{}, panickyCorrector{})
	assert.NotPanics(t, func() {
		assert.Empty(t, o.QuerySuggestions("", Options{}).Items)
		got := o.QuerySuggestions("london", Options{})
		assert.Empty(t, got.Items)
		assert.Nil(t, got.Correction)
	})

	cache := popular.New(nil)
	o = New(cache, panickyCorrector{})
	got := o.QuerySuggestions("lon", Options{Limit: 3})
	assert.Equal(t, []string{"London, GB", "London, CA", "Barcelona, ES"}, keys(got))

	o = New(nil, nil)
	assert.Empty(t, o.QuerySuggestions("lon", Options{}).Items)
}

func TestSupplement(t *testing.T) {
	o, _ := newOrchestrator(t)
	l := o.QuerySuggestions("par", Options{Limit: 3})
	require.NotEmpty(t, l.Items)
	cached := len(l.Items)

	api := []places.PlaceRecord{
		{Name: "Paris", CountryCode: "fr"},
		{Name: "Paris", CountryCode: "US", Coordinates: places.Coordinates{Lat: 33.66, Lon: -95.55}, Population: 24000},
		{Name: ""},
		{Name: "Parma", CountryCode: "IT", Coordinates: places.Coordinates{Lat: 44.8, Lon: 10.33}},
		{Name: "Paramaribo", CountryCode: "SR"},
	}
	got := o.Supplement(l, api, 3)
	require.Len(t, got.Items, min(3, cached+2))
	assert.Equal(t, l.Items[0].Place, got.Items[0].Place)
	for _, s := range got.Items[cached:] {
		assert.Equal(t, API, s.Source)
		assert.NotEqual(t, "Paris, FR", s.Place.String())
	}
	assert.Equal(t, l.Correction, got.Correction)
}

func TestFromVoice(t *testing.T) {
	o, _ := newOrchestrator(t)
	assert.Empty(t, o.FromVoice(voice.Session{State: voice.Listening, Transcript: "paris"}, Options{}).Items)

	final := "New York"
	s := voice.Session{State: voice.Result, FinalTranscript: &final, Confidence: 0.9}
	got := o.FromVoice(s, Options{Limit: 3})
	assert.Equal(t, o.QuerySuggestions("New York", Options{Limit: 3}), got)
	require.NotEmpty(t, got.Items)
	assert.Equal(t, "New York", got.Items[0].Place.Name)
}

func TestLearn(t *testing.T) {
	o, _ := newOrchestrator(t)
	assert.Empty(t, o.QuerySuggestions("ushuaia", Options{}).Items)

	added := o.Learn(context.Background(), []places.PlaceRecord{
		{Name: "Ushuaia", CountryCode: "AR", Coordinates: places.Coordinates{Lat: -54.8, Lon: -68.3}},
	})
	assert.Equal(t, 1, added)

	got := o.QuerySuggestions("ushuaia", Options{})
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Correction, "learned names correct to themselves")

	got = o.QuerySuggestions("ushuaiaa", Options{})
	require.NotNil(t, got.Correction)
	assert.Equal(t, "Ushuaia", got.Correction.Corrected)
}

func TestInvalidateForgetsLearnedNames(t *testing.T) {
	ctx := context.Background()
	cache := popular.New(nil)
	corrector := autocorrect.New(cache.Records())
	o := New(cache, corrector)
	seeded := corrector.Len()

	o.Learn(ctx, []places.PlaceRecord{
		{Name: "Ushuaia", CountryCode: "AR", Coordinates: places.Coordinates{Lat: -54.8, Lon: -68.3}},
	})
	require.Equal(t, autocorrect.Exact, corrector.Correct("ushuaia").Method)

	o.Invalidate(ctx)
	assert.Equal(t, seeded, corrector.Len())
	if c := corrector.Correct("ushuaia"); c != nil {
		assert.NotEqual(t, "Ushuaia", c.Corrected)
	}

	got := o.QuerySuggestions("ushuaia", Options{})
	for _, s := range got.Items {
		assert.NotEqual(t, "Ushuaia", s.Place.Name)
	}
	if got.Correction != nil {
		assert.NotEqual(t, "Ushuaia", got.Correction.Corrected)
	}

	o = New(panickySource{}, corrector)
	assert.NotPanics(t, func() { o.Invalidate(ctx) }, "sources that cannot forget are left alone")
}

func TestDebounceFor(t *testing.T) {
	o, _ := newOrchestrator(t)
	assert.Equal(t, DefaultDebounceShortQuery, o.DebounceFor("pa"))
	assert.Equal(t, DefaultDebounceLongQuery, o.DebounceFor("par"))
	assert.Equal(t, DefaultDebounceShortQuery, o.DebounceFor("  p  "))
	assert.Greater(t, DefaultDebounceShortQuery, DefaultDebounceLongQuery, "short queries wait longer")

	o = New(nil, nil, WithDebounce(time.Second, 2*time.Second))
	assert.Equal(t, 2*time.Second, o.DebounceFor("london"))
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "corrected", Corrected.String())
	assert.Equal(t, "unknown", Source(9).String())
}

func BenchmarkQuerySuggestions(b *testing.B) {
	o, _ := newOrchestrator(b)
	inputs := []string{"l", "lo", "lon", "filadelfia", "lodnon", "san f"}
	for i := 0; i < b.N; i++ {
		o.QuerySuggestions(inputs[i%len(inputs)], Options{Limit: 8})
	}
}
