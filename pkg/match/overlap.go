package match

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// CharOverlap scores a and b by their bag of characters: the size of the
// multiset intersection over the size of the larger multiset. Letters and
// digits are compared case-insensitively; everything else is ignored.
// Order plays no part, so anagrams score 1.0.
func CharOverlap(a, b string) float64 {
	ca, na := charBag(a)
	cb, nb := charBag(b)
	if na == 0 && nb == 0 {
		return 1.0
	}
	if na == 0 || nb == 0 {
		return 0
	}

	shared := 0
	for r, n := range ca {
		shared += min(n, cb[r])
	}
	return float64(shared) / float64(max(na, nb))
}

func charBag(s string) (map[rune]int, int) {
	bag := make(map[rune]int, len(s))
	total := 0
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		bag[unicode.ToLower(r)]++
		total++
	}
	return bag, total
}

// JaroWinkler returns the case-insensitive Jaro-Winkler similarity of a and
// b in [0,1]. It rewards shared prefixes, which makes it a good tie-breaker
// between candidates with equal edit distance.
func JaroWinkler(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	return matchr.JaroWinkler(a, b, false)
}
