package record

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Key returns the dedup key of v: a JSON encoding with object keys sorted
// and number literals normalised, so structurally equal values share a key.
// Integers and fractional numbers stay distinct: 1 and 1.0 differ, while
// 1.0 and 1.00 are the same key.
func (v Value) Key() string {
	var b bytes.Buffer
	writeKey(&b, v)
	return b.String()
}

func writeKey(b *bytes.Buffer, v Value) {
	switch v.kind {
	case Null:
		b.WriteString("null")
	case Bool:
		b.WriteString(strconv.FormatBool(v.b))
	case Number:
		b.WriteString(normalizeNumber(v.num))
	case String:
		writeKeyString(b, v.str)
	case Array:
		b.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, item)
		}
		b.WriteByte(']')
	case Object:
		keys := v.Keys()
		slices.Sort(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKeyString(b, k)
			b.WriteByte(':')
			val, _ := v.Get(k)
			writeKey(b, val)
		}
		b.WriteByte('}')
	}
}

func writeKeyString(b *bytes.Buffer, s string) {
	// A Go string always encodes.
	_ = writeJSONString(b, s)
}

// normalizeNumber maps equal literals to one form. Integer literals that fit
// 64 bits keep their value; anything else is read as a float64.
func normalizeNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return strconv.FormatUint(u, 10)
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	out := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(out, ".eEn") {
		out += ".0"
	}
	return out
}
