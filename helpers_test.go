package xmlrpc

import (
	"fmt"
)

// Simple is a struct with simple fields.
type Simple struct {
	A int16
	B bool
}

// Nested is a struct with a struct field.
type Nested struct {
	A byte
	B Simple
}

// Embedded is a struct that embeds another struct by value.
type Embedded struct {
	Simple
	C byte
}

// EmbeddedShadow is a struct that embeds another struct by value,
// with one of the embedded fields shadowed by an outer field.
type EmbeddedShadow struct {
	Simple
	B byte
}

// Embedded_P is a struct that embeds another struct by pointer.
type Embedded_P struct {
	*Simple
	C byte
}

// Embedded_PV is a struct with 2 layers of embedding, first by value
// then by pointers.
type Embedded_PV struct {
	Embedded_P
}

// Embedded_PVP is a struct with 3 layers of embedding, pointer then
// value then pointer.
type Embedded_PVP struct {
	*Embedded_PV
	D byte
}

// Arrays is a struct with various degrees of complicated arrays
// inside.
type Arrays struct {
	A []string
	B []Simple
	C [][]Nested
}

// Unit is a struct with no exported fields.
type Unit struct {
	hidden int
}

// Tagged is a struct whose fields use all the xmlrpc struct tags.
type Tagged struct {
	ID    int32  `xmlrpc:"id"`
	Cache []byte `xmlrpc:"-"`
	Note  string `xmlrpc:"note,optional"`
}

// WithOptional is a struct with optional fields.
type WithOptional struct {
	A string
	B string `xmlrpc:",optional"`
	C *int32
}

// WithRest is a struct that collects unknown members.
type WithRest struct {
	Name  string           `xmlrpc:"name"`
	Extra map[string]int32 `xmlrpc:",rest"`
}

// WithValue is a struct that holds raw XML-RPC values.
type WithValue struct {
	Raw Value
	Any any
}

// Point is a tuple.
type Point struct {
	_    Tuple
	X, Y float64
}

// Segment is a tuple of tuples.
type Segment struct {
	_        Tuple
	From, To Point
}

// Meters is a newtype around a float.
type Meters struct {
	_ Newtype
	V float64
}

type Circle struct {
	Radius float64 `xmlrpc:"radius"`
}

type Square struct {
	Side float64 `xmlrpc:"side"`
}

// Figure is an enum with every kind of variant.
type Figure struct {
	_       Enum
	Circle  *Circle
	Square  *Square
	Dot     *struct{}
	Label   *string
	Segment *Segment
}

// Drawing is a struct holding a list of enums.
type Drawing struct {
	Figures []Figure `xmlrpc:"figures"`
}

// List is a self-referential struct.
type List struct {
	Value int32 `xmlrpc:"value"`
	Next  *List `xmlrpc:"next"`
}

// BadEnum is an enum with a non-pointer variant.
type BadEnum struct {
	_ Enum
	A int32
}

// TwoMarkers is a struct that is confused about what it is.
type TwoMarkers struct {
	_ Enum
	_ Tuple
	A *int32
}

// DupNames is a struct whose fields encode to the same member name.
type DupNames struct {
	A int32 `xmlrpc:"x"`
	B int32 `xmlrpc:"x"`
}

// IPKey is a map key that implements TextMarshaler.
type IPKey [4]byte

func (k IPKey) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d.%d.%d.%d", k[0], k[1], k[2], k[3])), nil
}

func (k *IPKey) UnmarshalText(bs []byte) error {
	_, err := fmt.Sscanf(string(bs), "%d.%d.%d.%d", &k[0], &k[1], &k[2], &k[3])
	return err
}

// SelfMarshalerVal is a struct that implements Marshaler and
// Unmarshaler, with value method receivers. Note the Unmarshaler
// implementation is deliberately unusable (UnmarshalXMLRPC must have
// a pointer receiver).
type SelfMarshalerVal struct {
	B byte
}

func (s SelfMarshalerVal) MarshalXMLRPC() (Value, error) {
	return Int(int32(s.B) + 1), nil
}

func (s SelfMarshalerVal) UnmarshalXMLRPC(v Value) error {
	i, ok := v.(Int)
	if !ok {
		return fmt.Errorf("unexpected %s", kindOf(v))
	}
	s.B = byte(i - 1)
	return nil
}

// SelfMarshalerPtr is a struct that implements Marshaler and
// Unmarshaler with pointer method receivers.
type SelfMarshalerPtr struct {
	B byte
}

func (s *SelfMarshalerPtr) MarshalXMLRPC() (Value, error) {
	return Int(int32(s.B) + 1), nil
}

func (s *SelfMarshalerPtr) UnmarshalXMLRPC(v Value) error {
	i, ok := v.(Int)
	if !ok {
		return fmt.Errorf("unexpected %s", kindOf(v))
	}
	s.B = byte(i - 1)
	return nil
}

// NestedSelfMarshalerVal is a struct with a field that implements
// Marshaler/Unmarshaler using value method receivers.
// NestedSelfMarshalerVal cannot be unmarshaled.
type NestedSelfMarshalerVal struct {
	A byte
	B SelfMarshalerVal
}

// NestedSelfMarshalerPtr is a struct with a struct field that
// implements Marshaler/Unmarshaler with pointer method receivers.
type NestedSelfMarshalerPtr struct {
	A byte
	B SelfMarshalerPtr
}

// NestedSelfMarshalerPtrPtr is a struct with an optional struct field
// that implements Marshaler/Unmarshaler with pointer method
// receivers.
type NestedSelfMarshalerPtrPtr struct {
	A byte
	B *SelfMarshalerPtr
}

// badMarshaler is a Marshaler that produces a malformed Value.
type badMarshaler struct{}

func (badMarshaler) MarshalXMLRPC() (Value, error) {
	return Struct{{"x", Int(1)}, {"x", Int(2)}}, nil
}

func ptr[T any](v T) *T {
	return &v
}

func mustMarshal(v any) Value {
	ret, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return ret
}
