package protocol

// Tag is a single name/value metadata pair on a ledger transaction.
// Incoming transactions may carry duplicate names; outbound sets keep one
// tag per logical field but remain order-sensitive for downstream indexers.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TagSet is an ordered sequence of tags with positional insert semantics.
type TagSet []Tag

// Find returns the value of the first tag with the given name.
func (s TagSet) Find(name string) (string, bool) {
	for _, t := range s {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Get returns the first value for name, or the empty string when absent.
func (s TagSet) Get(name string) string {
	v, _ := s.Find(name)
	return v
}

// index returns the position of the first tag with the given name, or -1.
func (s TagSet) index(name string) int {
	for i, t := range s {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// InsertAfter inserts tag immediately after the first occurrence of
// afterName. When the anchor is absent the tag is appended at the end; the
// anchor-missing case is an explicit policy, not an index underflow.
func (s TagSet) InsertAfter(afterName string, tag Tag) TagSet {
	idx := s.index(afterName)
	if idx < 0 {
		return append(s, tag)
	}
	out := make(TagSet, 0, len(s)+1)
	out = append(out, s[:idx+1]...)
	out = append(out, tag)
	out = append(out, s[idx+1:]...)
	return out
}

// InsertAt inserts tag at position idx, clamping to the valid range.
func (s TagSet) InsertAt(idx int, tag Tag) TagSet {
	if idx < 0 {
		idx = 0
	}
	if idx > len(s) {
		idx = len(s)
	}
	out := make(TagSet, 0, len(s)+1)
	out = append(out, s[:idx]...)
	out = append(out, tag)
	out = append(out, s[idx:]...)
	return out
}

// Replace swaps the first occurrence of name with tag, preserving its
// position. When name is absent the tag is appended.
func (s TagSet) Replace(name string, tag Tag) TagSet {
	idx := s.index(name)
	if idx < 0 {
		return append(s, tag)
	}
	out := make(TagSet, len(s))
	copy(out, s)
	out[idx] = tag
	return out
}

// Clone returns an independent copy of the set.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	copy(out, s)
	return out
}

// Truncate caps the value of the first tag with the given name at maxLen.
func (s TagSet) Truncate(name string, maxLen int) TagSet {
	idx := s.index(name)
	if idx < 0 || len(s[idx].Value) <= maxLen {
		return s
	}
	out := make(TagSet, len(s))
	copy(out, s)
	out[idx].Value = out[idx].Value[:maxLen]
	return out
}

// TruncateValue caps a raw string at maxLen characters.
func TruncateValue(v string, maxLen int) string {
	if len(v) > maxLen {
		return v[:maxLen]
	}
	return v
}
