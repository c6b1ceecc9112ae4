package utils

import (
	"unicode"
)

// IsSeparator checks if a rune may appear between the words of a place name
func IsSeparator(r rune) bool {
	return r == ' ' || r == '-' || r == '.' || r == '\'' || r == ','
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ContainsSpecialChars checks if a string contains characters no place name uses
func ContainsSpecialChars(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !IsSeparator(r) {
			return true
		}
	}
	return false
}

// IsRepetitive checks if a string is one character repeated (e.g. "aaa")
func IsRepetitive(s string) bool {
	runes := []rune(s)
	if len(runes) <= 2 {
		return false
	}
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

// IsValidInput checks if input is worth sending to the matcher.
// Returns false for strings that are only numbers, contain special
// characters, or are repetitive. Empty input is valid: it asks for the
// instant suggestions.
func IsValidInput(s string) bool {
	if len(s) == 0 {
		return true
	}
	if IsOnlyNumbers(s) {
		return false
	}
	if ContainsSpecialChars(s) {
		return false
	}
	if IsRepetitive(s) {
		return false
	}
	return true
}
