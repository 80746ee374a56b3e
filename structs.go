package xmlrpc

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// Tuple marks a struct as a tuple. A struct with a blank field of
// type Tuple encodes as an [Array] of its exported fields, in
// declaration order, rather than as a [Struct].
//
//	type Point struct {
//	    _    xmlrpc.Tuple
//	    X, Y float64
//	}
type Tuple struct{}

// Enum marks a struct as an enumeration of variants. Every exported
// field of an Enum struct must be a pointer, and exactly one of them
// must be non-nil when encoding. The active variant encodes as a
// [Struct] with a single member, named after the field, holding the
// encoding of the pointed-to value.
//
// The payload keeps the encoding of its own type: a unit variant
// carries an empty Struct, a [Tuple] variant carries an [Array], and
// a plain struct variant carries a Struct. Tuple payloads are not
// turned into Structs with positional member names.
//
//	type Shape struct {
//	    _      xmlrpc.Enum
//	    Circle *Circle
//	    Square *Square
//	    Empty  *struct{}
//	}
type Enum struct{}

// Newtype marks a struct as a transparent wrapper around its single
// exported field. A Newtype struct encodes exactly like the field it
// wraps.
type Newtype struct{}

var (
	tupleType   = reflect.TypeFor[Tuple]()
	enumType    = reflect.TypeFor[Enum]()
	newtypeType = reflect.TypeFor[Newtype]()
)

// structKind is the way a struct type maps onto XML-RPC values.
type structKind int

const (
	// kindRecord is a plain struct with named fields.
	kindRecord structKind = iota
	// kindUnit is a struct with no exported fields.
	kindUnit
	kindNewtype
	kindTuple
	kindEnum
)

func (k structKind) String() string {
	switch k {
	case kindRecord:
		return "struct"
	case kindUnit:
		return "unit"
	case kindNewtype:
		return "newtype"
	case kindTuple:
		return "tuple"
	case kindEnum:
		return "enum"
	default:
		return fmt.Sprintf("structKind(%d)", int(k))
	}
}

// structField is the information about a struct field that needs to
// be marshaled/unmarshaled.
type structField struct {
	// Name is the field's XML-RPC member name, or the variant name
	// for enum fields.
	Name string
	// GoName is the Go name of the field, for diagnostics.
	GoName string
	Index  [][]int
	Type   reflect.Type

	// Optional is whether the field may be absent when decoding.
	Optional bool
	// depth is the embedding depth of the field, for shadowing.
	depth int
}

// GetWithZero loads the struct field from structVal. If loading
// requires traversing a nil pointer into an embedded struct,
// GetWithZero returns a non-settable zero value of the field.
func (f *structField) GetWithZero(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				return reflect.Zero(f.Type)
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// GetWithAlloc loads the struct field from structVal. If loading
// requires traversing a nil pointer into an embedded struct,
// GetWithAlloc allocates zero values appropriately. The returned
// [reflect.Value] is settable.
func (f *structField) GetWithAlloc(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

func (f *structField) String() string {
	opt := ""
	if f.Optional {
		opt = ", optional"
	}
	return fmt.Sprintf("%s (%s): %s at %v%s", f.Name, f.GoName, f.Type, f.Index, opt)
}

// structInfo is the information about a struct relevant to
// marshaling/unmarshaling.
type structInfo struct {
	// Name is the struct's name, for use in diagnostics.
	Name string
	Type reflect.Type
	Kind structKind

	// Fields are the struct's encoded fields, in declaration
	// order. For enums, each field is one variant.
	Fields []*structField
	// Rest, if non-nil, is the map field that holds struct members
	// with no corresponding field.
	Rest *structField
}

func (s *structInfo) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "%s: %s, fields:\n", s.Name, s.Kind)
	for _, f := range s.Fields {
		ret.WriteString(f.String())
		ret.WriteByte('\n')
	}
	if s.Rest != nil {
		fmt.Fprintf(&ret, "rest: %s\n", s.Rest)
	}
	return ret.String()
}

// Field returns the field with the given member name, or nil.
func (s *structInfo) Field(name string) *structField {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// getStructInfo returns the structInfo for t.
//
// getStructInfo returns an error if t is not a struct, or if the
// struct is malformed in a way that prevents its use with XML-RPC.
func getStructInfo(t reflect.Type) (*structInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, typeErr(t, "not a struct")
	}

	ret := &structInfo{
		Name: t.String(),
		Type: t,
		Kind: kindRecord,
	}

	markers := 0
	for i := range t.NumField() {
		switch t.Field(i).Type {
		case tupleType:
			ret.Kind = kindTuple
		case enumType:
			ret.Kind = kindEnum
		case newtypeType:
			ret.Kind = kindNewtype
		default:
			continue
		}
		markers++
	}
	if markers > 1 {
		return nil, typeErr(t, "struct carries more than one of Tuple, Enum and Newtype")
	}

	for field := range structFields(t, nil) {
		if !field.IsExported() {
			continue
		}
		name, optional, rest, skip := parseStructTag(field)
		if skip {
			continue
		}
		fieldInfo := &structField{
			Name:     name,
			GoName:   field.Name,
			Type:     field.Type,
			Index:    allocSteps(t, field.Index),
			Optional: optional || field.Type.Kind() == reflect.Pointer,
			depth:    len(field.Index),
		}

		if (optional || rest) && ret.Kind != kindRecord {
			return nil, typeErr(t, "field %s: optional and rest only apply to plain structs, not %s structs", field.Name, ret.Kind)
		}
		if rest {
			if ret.Rest != nil {
				return nil, typeErr(t, "fields %s and %s are both tagged rest", ret.Rest.GoName, field.Name)
			}
			if !isValidRestType(field.Type) {
				return nil, typeErr(t, "rest field %s must be a map[string]V, not %s", field.Name, field.Type)
			}
			ret.Rest = fieldInfo
			continue
		}

		ret.Fields = append(ret.Fields, fieldInfo)
	}

	// As in encoding/json, the shallowest field of a given name wins.
	// Unlike encoding/json, a tie is an error rather than silently
	// dropping both fields.
	shallowest := map[string]*structField{}
	for _, f := range ret.Fields {
		if prev := shallowest[f.Name]; prev == nil || f.depth < prev.depth {
			shallowest[f.Name] = f
		}
	}
	for _, f := range ret.Fields {
		if win := shallowest[f.Name]; win != f && win.depth == f.depth {
			return nil, typeErr(t, "%w: fields %s and %s both encode as %q", ErrDuplicateField, win.GoName, f.GoName, f.Name)
		}
	}
	visible := ret.Fields[:0]
	for _, f := range ret.Fields {
		if shallowest[f.Name] == f {
			visible = append(visible, f)
		}
	}
	ret.Fields = visible

	switch ret.Kind {
	case kindRecord:
		if len(ret.Fields) == 0 && ret.Rest == nil {
			ret.Kind = kindUnit
		}
	case kindNewtype:
		if len(ret.Fields) != 1 {
			return nil, typeErr(t, "newtype struct must have exactly one exported field, found %d", len(ret.Fields))
		}
	case kindEnum:
		if len(ret.Fields) == 0 {
			return nil, typeErr(t, "enum struct has no variants")
		}
		for _, f := range ret.Fields {
			if f.Type.Kind() != reflect.Pointer {
				return nil, typeErr(t, "enum variant %s must be a pointer, not %s", f.GoName, f.Type)
			}
		}
	}

	return ret, nil
}

// parseStructTag returns the information contained in field's
// "xmlrpc" struct tag.
func parseStructTag(field reflect.StructField) (name string, optional, rest, skip bool) {
	tag := field.Tag.Get("xmlrpc")
	if tag == "-" {
		return "", false, false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	for _, f := range strings.Split(opts, ",") {
		switch f {
		case "optional":
			optional = true
		case "rest":
			rest = true
		}
	}
	return name, optional, rest, false
}

// isValidRestType reports whether t can hold the unknown members of
// a struct.
func isValidRestType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String && t.Key() != charType
}

// allocSteps partitions a multi-hop traversal of struct fields into
// segments that end at either the final value, or at a struct pointer
// that might be nil.
//
// This partition is used by [structField.GetWithZero] and
// [structField.GetWithAlloc] to load embedded struct fields that
// require traversing a nil pointer.
func allocSteps(t reflect.Type, idx []int) [][]int {
	var ret [][]int
	prev := 0
	t = t.Field(idx[0]).Type
	for i := 1; i < len(idx); i++ {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
			// Hop through a struct pointer that might be nil, cut.
			ret = append(ret, idx[prev:i])
			prev = i
			t = t.Elem()
		}
		t = t.Field(idx[i]).Type
	}
	ret = append(ret, idx[prev:])
	return ret
}

// structFields yields the fields of t, with the fields of embedded
// structs flattened into the parent. Embedded structs that carry a
// marker stay opaque, as do unexported embedded struct pointers,
// which cannot be allocated through.
func structFields(t reflect.Type, idx []int) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			f := t.Field(i)
			idx = append(idx, i)
			if f.Anonymous && f.Tag.Get("xmlrpc") == "" {
				at := f.Type
				isPtr := at.Kind() == reflect.Pointer
				if isPtr {
					at = at.Elem()
				}
				if at.Kind() == reflect.Struct && !hasMarker(at) && (f.IsExported() || !isPtr) {
					for af := range structFields(at, idx) {
						if !yield(af) {
							return
						}
					}
					idx = idx[:len(idx)-1]
					continue
				}
			}
			f.Index = append([]int(nil), idx...)
			if !yield(f) {
				return
			}
			idx = idx[:len(idx)-1]
		}
	}
}

func hasMarker(t reflect.Type) bool {
	for i := range t.NumField() {
		switch t.Field(i).Type {
		case tupleType, enumType, newtypeType:
			return true
		}
	}
	return false
}
