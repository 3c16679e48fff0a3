package xfeed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind tags a JSON Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a decoded JSON value. Object keys keep document order so that
// scans visit nodes in the order X emitted them.
type Value struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	items  []*Value
	keys   []string
	fields map[string]*Value
}

// ParseValue decodes one JSON document.
func ParseValue(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return &Value{kind: KindNull}, nil
	case bool:
		return &Value{kind: KindBool, b: t}, nil
	case json.Number:
		return &Value{kind: KindNumber, num: t}, nil
	case string:
		return &Value{kind: KindString, str: t}, nil
	case json.Delim:
		switch t {
		case '[':
			v := &Value{kind: KindArray}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				v.items = append(v.items, item)
			}
			_, err := dec.Token()
			return v, err
		case '{':
			v := &Value{kind: KindObject, fields: map[string]*Value{}}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				field, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := v.fields[key]; !dup {
					v.keys = append(v.keys, key)
				}
				v.fields[key] = field
			}
			_, err := dec.Token()
			return v, err
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

// Kind returns the value's tag. A nil Value is null.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// Get returns the field key of an object, or nil.
func (v *Value) Get(key string) *Value {
	if v.Kind() != KindObject {
		return nil
	}
	return v.fields[key]
}

// Path follows nested object keys. Missing steps yield nil.
func (v *Value) Path(keys ...string) *Value {
	for _, k := range keys {
		v = v.Get(k)
		if v == nil {
			return nil
		}
	}
	return v
}

// Items returns the elements of an array.
func (v *Value) Items() []*Value {
	if v.Kind() != KindArray {
		return nil
	}
	return v.items
}

// Str returns the string value, or "" for any other kind.
func (v *Value) Str() string {
	if v.Kind() != KindString {
		return ""
	}
	return v.str
}

// Truthy follows JavaScript truthiness for booleans, numbers and strings.
func (v *Value) Truthy() bool {
	switch v.Kind() {
	case KindBool:
		return v.b
	case KindNumber:
		f, err := v.num.Float64()
		return err == nil && f != 0
	case KindString:
		return v.str != ""
	case KindArray, KindObject:
		return true
	}
	return false
}

// Number coerces a number or numeric string. ok is false when v is neither.
func (v *Value) Number() (n float64, ok bool) {
	s, ok := v.numeric()
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Int coerces like Number, truncating and saturating at the int64 range.
// Unparseable values give 0.
func (v *Value) Int() int64 {
	if s, ok := v.numeric(); ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	f, _ := v.Number()
	return saturate(f)
}

func (v *Value) numeric() (string, bool) {
	switch v.Kind() {
	case KindNumber:
		return v.num.String(), true
	case KindString:
		return strings.TrimSpace(v.str), true
	}
	return "", false
}

// saturate converts f to int64, clamping values outside the int64 range.
func saturate(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// Walk visits v and its descendants depth-first, parents before children,
// object fields in document order. Returning false from fn skips the node's
// children.
func Walk(v *Value, fn func(*Value) bool) {
	if v == nil || !fn(v) {
		return
	}
	switch v.kind {
	case KindArray:
		for _, item := range v.items {
			Walk(item, fn)
		}
	case KindObject:
		for _, k := range v.keys {
			Walk(v.fields[k], fn)
		}
	}
}

// Collect returns every node for which match is true, in Walk order.
func Collect(v *Value, match func(*Value) bool) []*Value {
	var out []*Value
	Walk(v, func(n *Value) bool {
		if match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// HasField returns a predicate matching objects whose key holds the string want.
func HasField(key, want string) func(*Value) bool {
	return func(n *Value) bool {
		f := n.Get(key)
		return f.Kind() == KindString && f.str == want
	}
}
