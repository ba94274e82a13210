package record

import "strings"

// Path addresses a nested location in a value tree, e.g. "data.user.id".
// Segments are split on "." with no escaping, and empty segments are kept as
// ordinary keys. A Path is immutable once parsed.
type Path struct {
	raw      string
	segments []string
}

// ParsePath splits a dotted key string into a Path.
func ParsePath(s string) Path {
	return Path{raw: s, segments: strings.Split(s, ".")}
}

// String returns the dotted form the path was parsed from.
func (p Path) String() string { return p.raw }

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Resolver is anything that can resolve a Path to a Value. Value is the
// canonical implementation; typed records can satisfy it by flattening to a
// Value on demand.
type Resolver interface {
	Resolve(p Path) (Value, bool)
}

// Resolve walks p from v. Each segment is looked up as an object key; arrays
// are never indexed, so a segment such as "0" only matches an object key. It
// reports false as soon as a segment is missing or the current value is not
// an object.
func (v Value) Resolve(p Path) (Value, bool) {
	cur := v
	for _, seg := range p.segments {
		next, ok := cur.Get(seg)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Lookup is shorthand for v.Resolve(ParsePath(key)).
func Lookup(v Value, key string) (Value, bool) {
	return v.Resolve(ParsePath(key))
}
