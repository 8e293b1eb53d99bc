package core

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Row is one untyped spreadsheet record keyed by column header. Columns vary
// per store, so rows are maps rather than fixed structs.
type Row map[string]any

// Lookup returns the value of the first column whose normalized header equals
// the normalized key ("Phone Number" matches "phone_number").
func (r Row) Lookup(key string) (any, bool) {
	if v, ok := r[key]; ok {
		return v, true
	}
	want := NormalizeHeader(key)
	for _, col := range r.Keys() {
		if NormalizeHeader(col) == want {
			return r[col], true
		}
	}
	return nil, false
}

// String returns the value of key rendered as text ("" when absent or nil).
func (r Row) String(key string) string {
	v, ok := r.Lookup(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Keys returns the column names in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NormalizeHeader lowercases a column header and strips everything that is
// not a letter or digit.
func NormalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
