package autocorrect

import (
	"fmt"
	"testing"

	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCurated(t testing.TB, opts ...Option) *Autocorrector {
	t.Helper()
	return New(places.Curated(), opts...)
}

// Tests the cascade with our expected preferences:
// exact > prefix > known misspelling > edit distance > phonetic > fuzzy
func TestCorrect(t *testing.T) {
	ac := newCurated(t)

	testCases := []struct {
		input     string
		corrected string
		method    Method
		desc      string
	}{
		{"new york", "New York", Exact, "Exact match"},
		{"  NEW   York ", "New York", Exact, "Case and spacing"},
		{"London", "London", Exact, "Name shared by two countries"},
		{"lon", "London", Prefix, "Prefix with highest priority"},
		{"san f", "San Francisco", Prefix, "Multi-word prefix"},
		{"filadelfia", "Philadelphia", KnownMisspelling, "Known misspelling"},
		{"bombay", "Mumbai", KnownMisspelling, "Former name"},
		{"lodnon", "London", EditDistance, "Transposition"},
		{"berln", "Berlin", EditDistance, "Missing letter"},
		{"torontto", "Toronto", EditDistance, "Doubled letter"},
		{"lundunn", "London", Phonetic, "Sounds alike"},
		{"nodlon", "London", Fuzzy, "Scrambled letters"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			c := ac.Correct(tc.input)
			require.NotNil(t, c, "no correction for %q", tc.input)
			assert.Equal(t, tc.corrected, c.Corrected)
			assert.Equal(t, tc.method, c.Method, "method for %q", tc.input)
			assert.Equal(t, tc.input, c.Original)
		})
	}
}

func TestCorrectConfidenceBands(t *testing.T) {
	ac := newCurated(t)

	c := ac.Correct("new york")
	require.NotNil(t, c)
	assert.Equal(t, 1.0, c.Confidence)

	c = ac.Correct("lon")
	require.NotNil(t, c)
	assert.Equal(t, 0.95, c.Confidence)

	c = ac.Correct("filadelfia")
	require.NotNil(t, c)
	assert.Equal(t, 0.90, c.Confidence)

	c = ac.Correct("berln")
	require.NotNil(t, c)
	assert.GreaterOrEqual(t, c.Confidence, 0.60)
	assert.LessOrEqual(t, c.Confidence, 0.85)

	c = ac.Correct("lundunn")
	require.NotNil(t, c)
	assert.Equal(t, 0.70, c.Confidence)

	c = ac.Correct("nodlon")
	require.NotNil(t, c)
	assert.GreaterOrEqual(t, c.Confidence, 0.50)
	assert.LessOrEqual(t, c.Confidence, 0.75)
}

func TestCorrectRejects(t *testing.T) {
	ac := newCurated(t)
	for _, q := range []string{"", "   ", "xqzjw", "zzzzzzzzz", "q"} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			assert.Nil(t, ac.Correct(q))
		})
	}
}

// correcting an already-correct name is a no-op
func TestCorrectIdempotent(t *testing.T) {
	ac := newCurated(t)
	queries := []string{
		"new york", "lon", "filadelfia", "lodnon", "berln", "lundunn",
		"nodlon", "peking", "sidney", "rio de janiero", "tok", "cape",
	}
	for _, q := range queries {
		first := ac.Correct(q)
		if first == nil {
			continue
		}
		second := ac.Correct(first.Corrected)
		require.NotNil(t, second, "second pass for %q", q)
		assert.Equal(t, Exact, second.Method, "second pass for %q", q)
		assert.Equal(t, 1.0, second.Confidence)
		assert.Equal(t, first.Corrected, second.Corrected)
	}
}

func TestCorrectDeterministic(t *testing.T) {
	ac := newCurated(t)
	for _, q := range []string{"lodnon", "nodlon", "lundunn", "par", "mi"} {
		first := ac.Correct(q)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, ac.Correct(q), "run %d for %q", i, q)
		}
		ac.Reset()
		assert.Equal(t, first, ac.Correct(q), "after reset for %q", q)
	}
}

// exact must win even when a fuzzy candidate exists
func TestExactBeatsFuzzy(t *testing.T) {
	ac := New([]places.PlaceRecord{
		{Name: "Nice", CountryCode: "FR", SearchPriority: 5},
		{Name: "Cine", CountryCode: "XX", SearchPriority: 10},
	}, WithMisspellings(map[string][]string{}))

	c := ac.Correct("nice")
	require.NotNil(t, c)
	assert.Equal(t, "Nice", c.Corrected)
	assert.Equal(t, Exact, c.Method)
	assert.False(t, c.Changed())
}

func TestPrefixTieBreak(t *testing.T) {
	ac := New([]places.PlaceRecord{
		{Name: "Porto", SearchPriority: 5},
		{Name: "Portland", SearchPriority: 5},
		{Name: "Port Louis", SearchPriority: 7},
		{Name: "Portsmouth", SearchPriority: 5},
	}, WithMisspellings(map[string][]string{}))

	c := ac.Correct("port")
	require.NotNil(t, c)
	assert.Equal(t, "Port Louis", c.Corrected, "priority first")

	ac = New([]places.PlaceRecord{
		{Name: "Portland", SearchPriority: 5},
		{Name: "Porto", SearchPriority: 5},
	}, WithMisspellings(map[string][]string{}))
	c = ac.Correct("por")
	require.NotNil(t, c)
	assert.Equal(t, "Porto", c.Corrected, "shorter name second")
}

func TestPrefixNeedsTwoCharacters(t *testing.T) {
	ac := New([]places.PlaceRecord{{Name: "Oslo", SearchPriority: 5}}, WithMisspellings(map[string][]string{}))
	assert.Nil(t, ac.Correct("o"))
	c := ac.Correct("os")
	require.NotNil(t, c)
	assert.Equal(t, Prefix, c.Method)
}

func TestMisspellingsIgnoreUnknownCanonicals(t *testing.T) {
	ac := New([]places.PlaceRecord{{Name: "Oslo", SearchPriority: 5}},
		WithMisspellings(map[string][]string{
			"Oslo":      {"kristiania"},
			"Atlantis":  {"atlantys"},
			"oslo city": {"osloo"},
		}))

	c := ac.Correct("kristiania")
	require.NotNil(t, c)
	assert.Equal(t, "Oslo", c.Corrected)
	assert.Equal(t, KnownMisspelling, c.Method)

	assert.Equal(t, 1, ac.Stats()["misspellings"])
}

func TestRebuildForgetsLearnedNames(t *testing.T) {
	curated := places.Curated()
	ac := New(curated)
	ac.Learn([]places.PlaceRecord{{Name: "Ushuaia", CountryCode: "AR"}})
	require.Equal(t, Exact, ac.Correct("ushuaia").Method)
	ac.Correct("lodnon")

	ac.Rebuild(curated)
	assert.Equal(t, len(curated), ac.Len())
	if c := ac.Correct("ushuaia"); c != nil {
		assert.NotEqual(t, "Ushuaia", c.Corrected)
	}
	assert.Equal(t, 0, ac.Stats()["distanceMemo"])

	c := ac.Correct("filadelfia")
	require.NotNil(t, c)
	assert.Equal(t, KnownMisspelling, c.Method, "misspellings survive a rebuild")
	assert.Equal(t, "Philadelphia", c.Corrected)
}

func TestLearn(t *testing.T) {
	ac := newCurated(t)
	if c := ac.Correct("ushuaia"); c != nil {
		assert.NotEqual(t, "Ushuaia", c.Corrected)
	}
	names := ac.Len()

	ac.Learn([]places.PlaceRecord{{Name: "Ushuaia", CountryCode: "AR", SearchPriority: 4}})
	assert.Equal(t, names+1, ac.Len())
	c := ac.Correct("ushuaia")
	require.NotNil(t, c)
	assert.Equal(t, Exact, c.Method)
	assert.Equal(t, "Ushuaia", c.Corrected)

	c = ac.Correct("ushuaiaa")
	require.NotNil(t, c)
	assert.Equal(t, "Ushuaia", c.Corrected)
	assert.Equal(t, EditDistance, c.Method)
}

func TestSuggest(t *testing.T) {
	ac := newCurated(t)

	got := ac.Suggest("par", 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "Paris", got[0].Corrected)
	assert.Equal(t, Prefix, got[0].Method)
	assert.LessOrEqual(t, len(got), 3)

	seen := map[string]bool{}
	for i, c := range got {
		assert.False(t, seen[c.Corrected], "duplicate %s", c.Corrected)
		seen[c.Corrected] = true
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Confidence, c.Confidence)
		}
	}

	assert.Nil(t, ac.Suggest("", 5))
	assert.Nil(t, ac.Suggest("paris", 0))
}

func TestMemoIsBounded(t *testing.T) {
	ac := newCurated(t, WithMemoSize(16))
	for i := 0; i < 20; i++ {
		ac.Correct(fmt.Sprintf("qwerty%d", i))
	}
	stats := ac.Stats()
	assert.LessOrEqual(t, stats["distanceMemo"], 16)
	assert.LessOrEqual(t, stats["phoneticMemo"], 16)

	ac.Reset()
	stats = ac.Stats()
	assert.Equal(t, 0, stats["distanceMemo"])
	assert.Equal(t, 0, stats["phoneticMemo"])
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "known_misspelling", KnownMisspelling.String())
	assert.Equal(t, "unknown", Method(42).String())
	text, err := Fuzzy.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "fuzzy", string(text))
}

func BenchmarkCorrect(b *testing.B) {
	ac := newCurated(b)
	inputs := []string{"lodnon", "filadelfia", "berln", "lundunn", "nodlon"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ac.Correct(inputs[i%len(inputs)])
	}
}
