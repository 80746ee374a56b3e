package xmlrpc

import (
	"bytes"
	"fmt"
)

// Kind is the XML-RPC type of a [Value].
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindString
	KindDouble
	KindBytes
	KindArray
	KindStruct
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "boolean",
	KindInt:     "i4",
	KindString:  "string",
	KindDouble:  "double",
	KindBytes:   "base64",
	KindArray:   "array",
	KindStruct:  "struct",
}

// String returns the XML-RPC tag name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is an XML-RPC value.
//
// The set of Value implementations is closed: [Bool], [Int], [Str],
// [Double], [Bytes], [Array] and [Struct]. A type switch over those
// seven types is exhaustive.
//
// Values are trees, and are treated as immutable once
// constructed. Nothing in this package modifies a Value it did not
// just create, and callers should do the same.
type Value interface {
	// Kind reports which XML-RPC type the value is.
	Kind() Kind

	isValue()
}

// Bool is an XML-RPC boolean.
type Bool bool

// Int is an XML-RPC i4, a signed 32-bit integer.
type Int int32

// Str is an XML-RPC string.
type Str string

// Double is an XML-RPC double.
type Double float64

// Bytes is an XML-RPC base64 value. The in-memory form is the raw
// bytes, base64 is only a property of the XML text encoding.
type Bytes []byte

// Array is an XML-RPC array. Element order is significant.
type Array []Value

// Struct is an XML-RPC struct.
//
// Members are kept in insertion order, which is the order in which
// they are written out, but members are addressed by name. Member
// names must be unique within a Struct.
type Struct []Member

// Member is a named member of a [Struct].
type Member struct {
	Name  string
	Value Value
}

func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Str) Kind() Kind    { return KindString }
func (Double) Kind() Kind { return KindDouble }
func (Bytes) Kind() Kind  { return KindBytes }
func (Array) Kind() Kind  { return KindArray }
func (Struct) Kind() Kind { return KindStruct }

func (Bool) isValue()   {}
func (Int) isValue()    {}
func (Str) isValue()    {}
func (Double) isValue() {}
func (Bytes) isValue()  {}
func (Array) isValue()  {}
func (Struct) isValue() {}

// Get returns the value of the member with the given name, if
// present.
func (s Struct) Get(name string) (Value, bool) {
	for _, m := range s {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// index returns s's members indexed by name. It fails if s contains
// more than one member with the same name.
func (s Struct) index() (map[string]Value, error) {
	ret := make(map[string]Value, len(s))
	for _, m := range s {
		if _, dup := ret[m.Name]; dup {
			return nil, newErr(ErrDuplicateField, "member %q appears more than once", m.Name)
		}
		ret[m.Name] = m.Value
	}
	return ret, nil
}

// Equal reports whether a and b are the same XML-RPC value.
//
// Arrays are equal if they have equal elements in the same
// order. Structs are equal if they have the same member names, in the
// same order, with equal values. A nil Bytes, Array or Struct is
// equal to an empty one.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Double:
		bv, ok := b.(Double)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// kindOf is v.Kind(), except that it tolerates a nil Value.
func kindOf(v Value) Kind {
	if v == nil {
		return KindInvalid
	}
	return v.Kind()
}

// checkTree verifies that v is a well-formed tree: no nil values, and
// no Struct with repeated member names. depth is the number of
// further Array or Struct levels allowed below v.
func checkTree(v Value, depth int) error {
	switch vv := v.(type) {
	case nil:
		return newErr(ErrTypeMismatch, "want a value, got nil")
	case Array:
		if depth <= 0 {
			return newErr(ErrDepthExceeded, "value nested too deeply")
		}
		for i, ev := range vv {
			if err := checkTree(ev, depth-1); err != nil {
				return atIndex(err, i)
			}
		}
	case Struct:
		if depth <= 0 {
			return newErr(ErrDepthExceeded, "value nested too deeply")
		}
		if _, err := vv.index(); err != nil {
			return err
		}
		for _, m := range vv {
			if err := checkTree(m.Value, depth-1); err != nil {
				return atField(err, m.Name)
			}
		}
	}
	return nil
}
