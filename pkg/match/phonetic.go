package match

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// PhoneticCodeLen is the fixed length of codes produced by PhoneticCode.
const PhoneticCodeLen = 4

// soundexClass maps a lowercase ASCII letter to its articulation class.
// '0' marks vowels (and y), which separate duplicate runs; h and w are
// transparent and never separate them.
var soundexClass = [26]byte{
	'0', '1', '2', '3', '0', '1', '2', 0, '0', '2', '2', '4', '5', // a-m
	'5', '0', '1', '2', '6', '2', '3', '0', '1', 0, '2', '0', '2', // n-z
}

// PhoneticCode returns a Soundex-style code for s: the first letter, then
// the class digits of the following consonants with vowels dropped and
// adjacent duplicates collapsed, padded with zeros or truncated to four
// characters. Non-letters (spaces, digits, punctuation) are ignored, so a
// multi-word name is coded as one letter stream. Input without any ASCII
// letter returns "".
func PhoneticCode(s string) string {
	var code strings.Builder
	code.Grow(PhoneticCodeLen)

	var last byte
	for _, r := range strings.ToLower(s) {
		if r < 'a' || r > 'z' {
			continue
		}
		class := soundexClass[r-'a']

		if code.Len() == 0 {
			code.WriteByte(byte(r) - 'a' + 'A')
			last = class
			continue
		}

		switch class {
		case 0:
			// h, w
		case '0':
			last = '0'
		default:
			if class != last {
				code.WriteByte(class)
				if code.Len() == PhoneticCodeLen {
					return code.String()
				}
			}
			last = class
		}
	}

	if code.Len() == 0 {
		return ""
	}
	for code.Len() < PhoneticCodeLen {
		code.WriteByte('0')
	}
	return code.String()
}

// PhoneticMatch reports whether a and b produce the same non-empty code.
func PhoneticMatch(a, b string) bool {
	ca := PhoneticCode(a)
	return ca != "" && ca == PhoneticCode(b)
}

// Metaphone returns the primary and alternate Double Metaphone keys of s.
// Either may be empty.
func Metaphone(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	return matchr.DoubleMetaphone(s)
}

// MetaphoneMatch reports whether any Double Metaphone key of a equals any
// key of b. Empty keys never match.
func MetaphoneMatch(a, b string) bool {
	pa, sa := Metaphone(a)
	pb, sb := Metaphone(b)
	for _, x := range [...]string{pa, sa} {
		if x == "" {
			continue
		}
		if x == pb || x == sb {
			return true
		}
	}
	return false
}
