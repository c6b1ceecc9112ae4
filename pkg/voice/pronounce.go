package voice

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/match"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

//go:embed data/pronunciations.yaml
var pronunciationsYAML []byte

// DefaultSpokenThreshold is the Jaro-Winkler score a phonetically matching
// transcript needs to be rewritten to a known name.
const DefaultSpokenThreshold = 0.80

// maxSpanWords bounds the n-gram window used for span replacement.
const maxSpanWords = 4

// LoadPronunciations parses a YAML map of canonical name to spoken forms.
func LoadPronunciations(data []byte) (map[string][]string, error) {
	table := make(map[string][]string)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decoding pronunciations: %w", err)
	}
	return table, nil
}

// DefaultPronunciations returns the bundled pronunciation table.
func DefaultPronunciations() map[string][]string {
	table, err := LoadPronunciations(pronunciationsYAML)
	if err != nil {
		log.Errorf("Failed to parse bundled pronunciations: %v", err)
		return map[string][]string{}
	}
	return table
}

type spokenName struct {
	name   string
	lower  string
	tokens []string
	codes  [][2]string
}

// Normalizer rewrites recognized text toward known place names: an exact
// spoken-form lookup on the whole transcript, then span-by-span lookups,
// then a Double Metaphone match against the canonical names.
type Normalizer struct {
	phrases   map[string]string
	names     []spokenName
	threshold float64
}

// NewNormalizer builds a Normalizer from a pronunciation table plus any
// extra canonical names (e.g. the curated places) for phonetic matching.
func NewNormalizer(table map[string][]string, names ...string) *Normalizer {
	n := &Normalizer{
		phrases:   make(map[string]string),
		threshold: DefaultSpokenThreshold,
	}

	canonical := make(map[string]string)
	for name, variants := range table {
		name = utils.CollapseSpaces(name)
		canonical[utils.NormalizeQuery(name)] = name
		for _, v := range variants {
			key := utils.NormalizeQuery(utils.StripPunctuation(v))
			if key != "" {
				n.phrases[key] = name
			}
		}
	}
	for _, name := range names {
		name = utils.CollapseSpaces(name)
		if lower := utils.NormalizeQuery(name); lower != "" {
			if _, ok := canonical[lower]; !ok {
				canonical[lower] = name
			}
		}
	}

	lowers := make([]string, 0, len(canonical))
	for lower := range canonical {
		lowers = append(lowers, lower)
	}
	sort.Strings(lowers)
	for _, lower := range lowers {
		tokens := strings.Fields(lower)
		sn := spokenName{name: canonical[lower], lower: lower, tokens: tokens}
		for _, t := range tokens {
			p, s := match.Metaphone(t)
			sn.codes = append(sn.codes, [2]string{p, s})
		}
		n.names = append(n.names, sn)
	}
	return n
}

// Len returns the number of spoken forms.
func (n *Normalizer) Len() int { return len(n.phrases) }

// Normalize returns text rewritten toward a known place name. Text that
// matches nothing comes back cleaned (punctuation stripped, lower case).
func (n *Normalizer) Normalize(text string) string {
	clean := utils.NormalizeQuery(utils.StripPunctuation(text))
	if clean == "" {
		return ""
	}
	if name, ok := n.phrases[clean]; ok {
		return name
	}
	for _, sn := range n.names {
		if sn.lower == clean {
			return sn.name
		}
	}

	rewritten := n.replaceSpans(strings.Fields(clean))
	if rewritten != clean {
		return rewritten
	}
	if name, ok := n.soundsLike(clean); ok {
		return name
	}
	return clean
}

// replaceSpans swaps the longest known spoken form starting at each word,
// left to right.
func (n *Normalizer) replaceSpans(words []string) string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		replaced := false
		for size := min(maxSpanWords, len(words)-i); size >= 1; size-- {
			span := strings.Join(words[i:i+size], " ")
			if name, ok := n.phrases[span]; ok {
				out = append(out, name)
				i += size
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, words[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

// soundsLike finds the canonical name whose words all share a Double
// Metaphone code with the transcript's words and whose Jaro-Winkler score
// clears the threshold. Ties keep the alphabetically first name.
func (n *Normalizer) soundsLike(clean string) (string, bool) {
	tokens := strings.Fields(clean)
	codes := make([][2]string, len(tokens))
	for i, t := range tokens {
		p, s := match.Metaphone(t)
		codes[i] = [2]string{p, s}
	}

	best, bestScore := "", 0.0
	for _, sn := range n.names {
		if len(sn.tokens) != len(tokens) || !codesAlign(codes, sn.codes) {
			continue
		}
		score := match.JaroWinkler(clean, sn.lower)
		if score >= n.threshold && score > bestScore {
			best, bestScore = sn.name, score
		}
	}
	return best, best != ""
}

func codesAlign(a, b [][2]string) bool {
	for i := range a {
		if !overlap(a[i], b[i]) {
			return false
		}
	}
	return true
}

func overlap(a, b [2]string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
