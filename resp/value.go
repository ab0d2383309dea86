package resp

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind identifies the wire type of a Value.
type Kind uint8

const (
	// KindNil is a null reply: a bulk string or array with length -1.
	KindNil Kind = iota
	// KindInteger is a signed 64-bit integer reply (":").
	KindInteger
	// KindSimple is a simple string reply ("+").
	KindSimple
	// KindBulk is a length-prefixed bulk string reply ("$").
	KindBulk
	// KindError is a server error reply ("-").
	KindError
	// KindArray is an array reply ("*"), possibly nested.
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindSimple:
		return "simple string"
	case KindBulk:
		return "bulk string"
	case KindError:
		return "error"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Value is a single decoded RESP value. Arrays contain further Values,
// so one Value can represent an arbitrarily nested reply.
//
// A Value is only ever constructed by the decoder or by the exported
// constructors; the zero value is the null reply.
type Value struct {
	kind  Kind
	num   int64
	str   []byte
	ekind string
	emsg  string
	arr   []Value
}

// Nil is the null reply. Both "$-1" and "*-1" decode to it, and it is
// distinct from an empty bulk string and from an empty array.
var Nil = Value{}

// Int returns an integer Value.
func Int(n int64) Value {
	return Value{kind: KindInteger, num: n}
}

// Simple returns a simple string Value.
func Simple(s string) Value {
	return Value{kind: KindSimple, str: []byte(s)}
}

// Bulk returns a bulk string Value holding b. The bytes are not copied.
func Bulk(b []byte) Value {
	return Value{kind: KindBulk, str: b}
}

// BulkString returns a bulk string Value holding s.
func BulkString(s string) Value {
	return Value{kind: KindBulk, str: []byte(s)}
}

// Error returns a server error Value. An empty kind stands for the
// generic error convention (no leading kind token on the wire).
func Error(kind, message string) Value {
	return Value{kind: KindError, ekind: kind, emsg: message}
}

// Array returns an array Value of the given elements. Array() is the
// empty array, which is distinct from Nil.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Kind reports the wire type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether the value is the null reply.
func (v Value) IsNil() bool { return v.kind == KindNil }

// IsError reports whether the value is a server error reply.
func (v Value) IsError() bool { return v.kind == KindError }

// ErrorKind returns the error kind token ("ERR", "WRONGTYPE", ...) of an
// error reply. Empty when the server did not follow the kind-prefix
// convention, or when the value is not an error.
func (v Value) ErrorKind() string { return v.ekind }

// ErrorMessage returns the message of an error reply.
func (v Value) ErrorMessage() string { return v.emsg }

// Int returns the value as an int64. Only integer replies convert.
func (v Value) Int() (int64, error) {
	if v.kind != KindInteger {
		return 0, &TypeError{Expected: "integer", Value: v}
	}
	return v.num, nil
}

// Bool interprets an integer reply of 0 or 1 as a boolean.
func (v Value) Bool() (bool, error) {
	n, err := v.Int()
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, &TypeError{Expected: "boolean", Value: v}
}

// Bytes returns the payload of a bulk or simple string reply.
// The null reply yields (nil, nil) so callers can treat misses uniformly.
func (v Value) Bytes() ([]byte, error) {
	switch v.kind {
	case KindBulk, KindSimple:
		return v.str, nil
	case KindNil:
		return nil, nil
	}
	return nil, &TypeError{Expected: "bulk string", Value: v}
}

// Text returns the payload of a bulk or simple string reply as a string.
func (v Value) Text() (string, error) {
	b, err := v.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OK reports whether the value is the simple string "OK".
func (v Value) OK() bool {
	return v.kind == KindSimple && bytes.Equal(v.str, []byte("OK"))
}

// Slice returns the elements of an array reply.
// The null reply yields (nil, nil).
func (v Value) Slice() ([]Value, error) {
	switch v.kind {
	case KindArray:
		return v.arr, nil
	case KindNil:
		return nil, nil
	}
	return nil, &TypeError{Expected: "array", Value: v}
}

// Strings converts an array of string replies into a []string.
func (v Value) Strings() ([]string, error) {
	items, err := v.Slice()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := item.Text()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// StringMap converts a flat array of alternating field/value string
// replies (the HGETALL shape) into a map.
func (v Value) StringMap() (map[string]string, error) {
	items, err := v.Slice()
	if err != nil {
		return nil, err
	}
	if len(items)%2 != 0 {
		return nil, &TypeError{Expected: "field/value array", Value: v}
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		field, err := items[i].Text()
		if err != nil {
			return nil, err
		}
		value, err := items[i+1].Text()
		if err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, nil
}

// Equal reports deep equality of two values, including the distinction
// between Nil, the empty bulk string, and the empty array.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindInteger:
		return v.num == o.num
	case KindSimple, KindBulk:
		return bytes.Equal(v.str, o.str)
	case KindError:
		return v.ekind == o.ekind && v.emsg == o.emsg
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug representation. It is not the wire format.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "(nil)"
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindSimple:
		return string(v.str)
	case KindBulk:
		return fmt.Sprintf("%q", v.str)
	case KindError:
		if v.ekind == "" {
			return "(error) " + v.emsg
		}
		return "(error) " + v.ekind + " " + v.emsg
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(item.String())
		}
		buf.WriteByte(']')
		return buf.String()
	}
	return "(unknown)"
}
