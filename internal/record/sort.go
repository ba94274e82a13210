package record

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MissingKeyError reports a record that does not resolve the sort path.
// Sorting requires every record to carry the key.
type MissingKeyError struct {
	Path  Path
	Index int
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("record: sort key %q missing on record %d", e.Path.String(), e.Index)
}

type sortKey struct {
	text   string
	at     time.Time
	isTime bool
}

func newSortKey(v Value) sortKey {
	k := sortKey{text: v.Text()}
	if t, err := time.Parse(time.RFC3339, k.text); err == nil {
		k.at, k.isTime = t, true
	}
	return k
}

func (a sortKey) compare(b sortKey) int {
	if a.isTime && b.isTime {
		return a.at.Compare(b.at)
	}
	return strings.Compare(a.text, b.text)
}

// Compare orders two resolved values. When both render as RFC 3339
// timestamps they compare as instants; otherwise their text forms compare
// byte-wise. Numbers are not compared numerically: "10" sorts before "2".
func Compare(a, b Value) int {
	return newSortKey(a).compare(newSortKey(b))
}

// SortByPath sorts records ascending by the value each resolves at path. The
// sort is not stable. If any record lacks the path a *MissingKeyError is
// returned and records is left untouched.
func SortByPath[T Resolver](records []T, path Path) error {
	type keyed struct {
		key sortKey
		rec T
	}

	entries := make([]keyed, len(records))
	for i, rec := range records {
		val, ok := rec.Resolve(path)
		if !ok {
			return &MissingKeyError{Path: path, Index: i}
		}
		entries[i] = keyed{key: newSortKey(val), rec: rec}
	}

	slices.SortFunc(entries, func(a, b keyed) int {
		return a.key.compare(b.key)
	})

	for i, e := range entries {
		records[i] = e.rec
	}
	return nil
}
