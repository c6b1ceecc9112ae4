// Package match provides the string comparison primitives the correction and
// ranking layers are built on: edit distance, normalized similarity, a
// Soundex-style phonetic code and character-overlap scoring.
//
// Every function here is total. Empty strings are valid input everywhere and
// nothing panics.
package match

// EditDistance returns the Levenshtein distance between a and b, counting
// insertions, deletions and substitutions at cost 1. Comparison is per rune.
// Only one DP row is kept, sized to the shorter input.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			prev := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, diag+cost)
			diag = prev
		}
	}
	return row[len(rb)]
}

// EditDistanceWithin reports the edit distance between a and b when it is at
// most limit. When the distance exceeds limit it returns limit+1 and false,
// usually without finishing the table: the length difference is checked up
// front and the scan stops once a whole row is above limit.
func EditDistanceWithin(a, b string, limit int) (int, bool) {
	if limit < 0 {
		return 0, false
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(ra)-len(rb) > limit {
		return limit + 1, false
	}
	if len(rb) == 0 {
		return len(ra), true
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		rowMin := row[0]
		for j := 1; j <= len(rb); j++ {
			prev := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, diag+cost)
			diag = prev
			if row[j] < rowMin {
				rowMin = row[j]
			}
		}
		if rowMin > limit {
			return limit + 1, false
		}
	}

	d := row[len(rb)]
	if d > limit {
		return limit + 1, false
	}
	return d, true
}

// Similarity is 1 - EditDistance(a, b) / max(len(a), len(b)), in runes.
// Two empty strings are identical (1.0); an empty and a non-empty string
// share nothing (0.0).
func Similarity(a, b string) float64 {
	la, lb := runeLen(a), runeLen(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(EditDistance(a, b))/float64(longest)
}

// SimilarityFromDistance converts an already computed distance into the same
// score Similarity would return.
func SimilarityFromDistance(d int, a, b string) float64 {
	longest := max(runeLen(a), runeLen(b))
	if longest == 0 {
		return 1.0
	}
	s := 1.0 - float64(d)/float64(longest)
	if s < 0 {
		return 0
	}
	return s
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
