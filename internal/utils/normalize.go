package utils

import (
	"strings"
	"unicode"
)

// NormalizeQuery trims s, folds it to lower case and collapses every run of
// whitespace into a single space. Normalizing twice is a no-op.
func NormalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CollapseSpaces collapses whitespace runs without changing case.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripPunctuation replaces everything that is not a letter, digit or space
// with a space and collapses the result. Speech transcripts come back with
// trailing periods and commas that should not reach the matcher.
func StripPunctuation(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	return CollapseSpaces(mapped)
}
