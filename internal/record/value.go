// Package record holds the generic value tree that every ingested document is
// decoded into, and the path, dedup, and sort operations that run over it.
package record

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

var kindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a JSON-like tagged union. Objects keep their keys in insertion
// order and numbers keep their original text, so decoding then encoding a
// document reproduces its fields as written.
//
// The zero Value is Null. Values are cheap to copy; copies of an Array or
// Object share the underlying storage.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  *orderedmap.OrderedMap[string, Value]
}

// Field is a key/value pair used to build objects.
type Field struct {
	Key   string
	Value Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue wraps a number literal such as "42" or "1.5e3".
func NumberValue(n json.Number) Value { return Value{kind: Number, num: n} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: String, str: s} }

// ArrayValue builds an array from items.
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, arr: items}
}

// ObjectValue builds an object whose keys appear in the given order.
func ObjectValue(fields ...Field) Value {
	m := orderedmap.New[string, Value](len(fields))
	for _, f := range fields {
		m.Set(f.Key, f.Value)
	}
	return Value{kind: Object, obj: m}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsObject reports whether v is an Object.
func (v Value) IsObject() bool { return v.kind == Object }

// Bool returns the boolean and whether v is a Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// Number returns the number literal and whether v is a Number.
func (v Value) Number() (json.Number, bool) { return v.num, v.kind == Number }

// Str returns the string and whether v is a String.
func (v Value) Str() (string, bool) { return v.str, v.kind == String }

// Items returns the elements of an Array, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Get looks up key on an Object. It reports false for missing keys and for
// values that are not objects.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object || v.obj == nil {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Set assigns key on an Object, appending it if new. It is a no-op on other
// kinds.
func (v Value) Set(key string, val Value) {
	if v.kind != Object || v.obj == nil {
		return
	}
	v.obj.Set(key, val)
}

// Keys returns the keys of an Object in insertion order.
func (v Value) Keys() []string {
	if v.kind != Object || v.obj == nil {
		return nil
	}
	keys := make([]string, 0, v.obj.Len())
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of elements of an Array or keys of an Object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		if v.obj == nil {
			return 0
		}
		return v.obj.Len()
	default:
		return 0
	}
}

// String returns the JSON encoding of v with object keys in insertion order.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return string(data)
}

// Text is the form used for ordering: the raw contents of a String, the
// canonical encoding of anything else.
func (v Value) Text() string {
	if v.kind == String {
		return v.str
	}
	return v.String()
}

// MarshalJSON implements json.Marshaler. Strings are written without HTML
// escaping, so "<", ">" and "&" come out as they were read.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		if v.num == "" {
			buf.WriteByte('0')
		} else {
			buf.WriteString(v.num.String())
		}
	case String:
		return writeJSONString(buf, v.str)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		if v.obj != nil {
			i := 0
			for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
				if i > 0 {
					buf.WriteByte(',')
				}
				i++
				if err := writeJSONString(buf, pair.Key); err != nil {
					return err
				}
				buf.WriteByte(':')
				if err := writeJSON(buf, pair.Value); err != nil {
					return err
				}
			}
		}
		buf.WriteByte('}')
	default:
		return eris.Errorf("record: unknown kind %d", v.kind)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "record: encode string")
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return eris.New("record: empty json value")
	}

	switch data[0] {
	case '{':
		m := orderedmap.New[string, Value]()
		if err := m.UnmarshalJSON(data); err != nil {
			return eris.Wrap(err, "record: decode object")
		}
		*v = Value{kind: Object, obj: m}
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return eris.Wrap(err, "record: decode array")
		}
		*v = ArrayValue(items...)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "record: decode string")
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return eris.Wrap(err, "record: decode bool")
		}
		*v = BoolValue(b)
	case 'n':
		if !bytes.Equal(data, []byte("null")) {
			return eris.Errorf("record: invalid literal %q", data)
		}
		*v = NullValue()
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return eris.Wrap(err, "record: decode number")
		}
		*v = NumberValue(n)
	}
	return nil
}
