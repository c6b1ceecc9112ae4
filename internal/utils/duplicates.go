package utils

// KeyFilter drops repeated identities while a ranked list is assembled.
// The first occurrence of a key wins, so callers feed items in rank order.
// Not safe for concurrent use; one filter per merge.
type KeyFilter struct {
	seen map[string]struct{}
}

// NewKeyFilter creates a filter with room for about n keys.
func NewKeyFilter(n int) *KeyFilter {
	return &KeyFilter{seen: make(map[string]struct{}, n)}
}

// ShouldInclude reports whether key is new, and remembers it.
func (f *KeyFilter) ShouldInclude(key string) bool {
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// Len returns how many distinct keys were accepted.
func (f *KeyFilter) Len() int {
	return len(f.seen)
}
