package schema

import (
	"maps"
	"sort"
)

// Values maps field ids to the selected option id.
type Values map[string]string

// Clone returns an independent copy.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// Get returns the value for field, or "" when unset.
func (v Values) Get(field string) string {
	return v[field]
}

// Equal reports whether both sets hold the same fields and values.
func (v Values) Equal(other Values) bool {
	return maps.Equal(v, other)
}

// Change records one field whose value differs between two value sets.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Diff lists the fields whose value differs from before to after, sorted by field id.
func Diff(before, after Values) []Change {
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	changes := make([]Change, 0)
	for k := range keys {
		if before[k] != after[k] {
			changes = append(changes, Change{Field: k, From: before[k], To: after[k]})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}
