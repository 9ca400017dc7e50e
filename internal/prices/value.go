package prices

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the shape of a decoded JSON value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

// maxDecodeDepth mirrors the nesting limit of encoding/json.
const maxDecodeDepth = 10000

// Member is one key/value pair of an object. Members holds them in document
// order; Ordered gives the order in which they are enumerated.
type Member struct {
	Key   string
	Value *Value
}

// Value is a JSON document decoded into a tree that keeps object key order.
// Heuristic extraction depends on "first match in document order", which a
// plain map[string]any cannot provide.
type Value struct {
	Kind Kind
	// Text holds the contents of a string or the literal text of a number.
	Text    string
	Boolean bool
	Members []Member
	Items   []*Value
}

// Decode reads exactly one JSON document from r.
func Decode(r io.Reader) (*Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

// DecodeBytes is a convenience wrapper around Decode.
func DecodeBytes(b []byte) (*Value, error) {
	return Decode(bytes.NewReader(b))
}

func decodeValue(dec *json.Decoder, depth int) (*Value, error) {
	if depth > maxDecodeDepth {
		return nil, fmt.Errorf("exceeded max depth %d", maxDecodeDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return &Value{Kind: Null}, nil
	case bool:
		return &Value{Kind: Bool, Boolean: t}, nil
	case json.Number:
		return &Value{Kind: Number, Text: t.String()}, nil
	case string:
		return &Value{Kind: String, Text: t}, nil
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec, depth)
		case '[':
			return decodeArray(dec, depth)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder, depth int) (*Value, error) {
	v := &Value{Kind: Object}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, want string", tok)
		}
		child, err := decodeValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		// A repeated key keeps its first position and takes the last value.
		if i, seen := index[key]; seen {
			v.Members[i].Value = child
			continue
		}
		index[key] = len(v.Members)
		v.Members = append(v.Members, Member{Key: key, Value: child})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeArray(dec *json.Decoder, depth int) (*Value, error) {
	v := &Value{Kind: Array}
	for dec.More() {
		child, err := decodeValue(dec, depth+1)
		if err != nil {
			return nil, err
		}
		v.Items = append(v.Items, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return v, nil
}

// Ordered returns the members of an object in property enumeration order:
// array-index keys first in ascending numeric order, then every other key in
// the order it first appeared. Scanning and serialization both follow it.
func (v *Value) Ordered() []Member {
	if v == nil || v.Kind != Object {
		return nil
	}
	var index, named []Member
	for _, m := range v.Members {
		if _, ok := arrayIndex(m.Key); ok {
			index = append(index, m)
		} else {
			named = append(named, m)
		}
	}
	if len(index) == 0 {
		return v.Members
	}
	sort.SliceStable(index, func(i, j int) bool {
		a, _ := arrayIndex(index[i].Key)
		b, _ := arrayIndex(index[j].Key)
		return a < b
	})
	return append(index, named...)
}

// arrayIndex reports whether key is the canonical decimal form of an integer
// in [0, 2^32-2].
func arrayIndex(key string) (uint32, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// IsContainer reports whether v is an object or an array.
func (v *Value) IsContainer() bool {
	return v != nil && (v.Kind == Object || v.Kind == Array)
}

// Float returns the numeric value of a Number.
func (v *Value) Float() (float64, bool) {
	if v == nil || v.Kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders v the way loosely typed string coercion does: numbers in
// shortest form, arrays as comma-joined elements, objects as "[object Object]".
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.Boolean)
	case Number:
		return formatNumber(v.Text)
	case String:
		return v.Text
	case Array:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			if it.Kind != Null {
				parts[i] = it.String()
			}
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

// MarshalJSON serializes v compactly with members in enumeration order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Indent serializes v with two-space indentation.
func (v *Value) Indent() (string, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.Boolean))
	case Number:
		buf.WriteString(formatNumber(v.Text))
	case String:
		return encodeString(buf, v.Text)
	case Array:
		buf.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.Ordered() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown kind %d", v.Kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// formatNumber normalizes a JSON number literal to its shortest round-trip
// form, so 95.50 serializes as 95.5 and 1e2 as 100.
func formatNumber(text string) string {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) {
		return text
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go pads exponents to two digits ("1e-07"); drop the padding.
		s = strings.Replace(s, "e-0", "e-", 1)
		s = strings.Replace(s, "e+0", "e+", 1)
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
