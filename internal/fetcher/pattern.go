package fetcher

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is a validated glob (`*`, `?`, `[a-z]`, `{a,b}`) used to select
// documents by file name.
type Pattern struct {
	glob string
}

// NewPattern validates glob.
func NewPattern(glob string) (Pattern, error) {
	if glob == "" || !doublestar.ValidatePattern(glob) {
		return Pattern{}, &ConfigError{Field: "pattern", Value: glob, Reason: "invalid glob"}
	}
	return Pattern{glob: glob}, nil
}

// String returns the glob text.
func (p Pattern) String() string { return p.glob }

// MatchName reports whether the component of key after its last "/" matches
// the pattern.
func (p Pattern) MatchName(key string) bool {
	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	ok, err := doublestar.Match(p.glob, name)
	return err == nil && ok
}
