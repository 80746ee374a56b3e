package xmlrpc

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// A Shape describes the XML-RPC values that a Go type encodes to and
// decodes from.
//
// The string form of a Shape is a compact type expression:
//
//	bool, int, str, double, bytes  the scalar value kinds
//	any                            any value at all
//	[T]                            array of T
//	[T;N]                          array of exactly N T
//	(T,U)                          array of a T followed by a U
//	?T                             option: an empty array, or an array of one T
//	{}                             unit: an empty struct
//	{a:T,b:U}                      struct with members a and b
//	{a:T,*:U}                      struct with member a, and any others of type U
//	{str:T}                        struct with any member names, all of type T
//	<A:T|B:U>                      struct with a single member, A or B
//	@Name                          the shape of the enclosing type Name
//
// Note that wide integers (int64, uint32...) encode as decimal
// strings, and so have shape str.
type Shape struct {
	typ reflect.Type
	str string
}

// String returns the Shape's type expression.
func (s Shape) String() string {
	return s.str
}

// Type returns the Go type the Shape describes.
func (s Shape) Type() reflect.Type {
	return s.typ
}

// IsZero reports whether s is the zero Shape.
func (s Shape) IsZero() bool {
	return s.typ == nil
}

var shapes cache[Shape]

// ShapeFor returns the Shape of T.
func ShapeFor[T any]() (Shape, error) {
	return ShapeOf(reflect.TypeFor[T]())
}

// ShapeOf returns the Shape of t.
//
// ShapeOf returns a [TypeError] if t cannot be represented in
// XML-RPC, in which case encoding or decoding values of type t would
// also fail.
func ShapeOf(t reflect.Type) (Shape, error) {
	if t == nil {
		return Shape{}, typeErr(nil, "nil type")
	}
	if ret, ok := shapes.Load(t); ok {
		return ret, nil
	}
	str, err := shapeStr(t, nil)
	if err != nil {
		debugLog().Debug("no shape for type", zap.Stringer("type", t), zap.Error(err))
		return Shape{}, err
	}
	ret := Shape{t, str}
	shapes.Put(t, ret)
	return ret, nil
}

// shapeStr returns the type expression for t. stack is the chain of
// struct types currently being described, to detect recursion.
func shapeStr(t reflect.Type, stack []reflect.Type) (string, error) {
	switch {
	case t == valueType:
		return "any", nil
	case isConcreteValue(t):
		switch reflect.Zero(t).Interface().(Value).Kind() {
		case KindBool:
			return "bool", nil
		case KindInt:
			return "int", nil
		case KindString:
			return "str", nil
		case KindDouble:
			return "double", nil
		case KindBytes:
			return "bytes", nil
		case KindArray:
			return "[any]", nil
		case KindStruct:
			return "{str:any}", nil
		}
	case t.Kind() != reflect.Pointer && (t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)):
		// Custom encodings are opaque.
		return "any", nil
	case t == charType:
		return "str", nil
	}

	switch k := t.Kind(); {
	case k == reflect.Interface:
		return "any", nil
	case k == reflect.Bool:
		return "bool", nil
	case narrowIntKinds.Has(k):
		return "int", nil
	case wideIntKinds.Has(k), k == reflect.String:
		return "str", nil
	case k == reflect.Float32, k == reflect.Float64:
		return "double", nil
	case k == reflect.Pointer:
		es, err := shapeStr(t.Elem(), stack)
		if err != nil {
			return "", err
		}
		return "?" + es, nil
	case k == reflect.Slice, k == reflect.Array:
		if isByteSeq(t) {
			return "bytes", nil
		}
		es, err := shapeStr(t.Elem(), stack)
		if err != nil {
			return "", err
		}
		if k == reflect.Array {
			return fmt.Sprintf("[%s;%d]", es, t.Len()), nil
		}
		return "[" + es + "]", nil
	case k == reflect.Map:
		if !validMapKey(t.Key()) {
			return "", typeErr(t, "%w: %s cannot be a struct member name", ErrUnsupportedKey, t.Key())
		}
		vs, err := shapeStr(t.Elem(), stack)
		if err != nil {
			return "", err
		}
		return "{str:" + vs + "}", nil
	case k == reflect.Struct:
		if slices.Contains(stack, t) {
			return "@" + typeName(t), nil
		}
		return structShapeStr(t, append(stack, t))
	}

	return "", typeErr(t, "no XML-RPC mapping for type")
}

func structShapeStr(t reflect.Type, stack []reflect.Type) (string, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, f := range fs.Fields {
		ft := f.Type
		if fs.Kind == kindEnum {
			ft = ft.Elem()
		}
		s, err := shapeStr(ft, stack)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}

	switch fs.Kind {
	case kindUnit:
		return "{}", nil
	case kindNewtype:
		return parts[0], nil
	case kindTuple:
		return "(" + strings.Join(parts, ",") + ")", nil
	case kindEnum:
		for i, f := range fs.Fields {
			parts[i] = f.Name + ":" + parts[i]
		}
		return "<" + strings.Join(parts, "|") + ">", nil
	}

	for i, f := range fs.Fields {
		parts[i] = f.Name + ":" + parts[i]
	}
	if fs.Rest != nil {
		rs, err := shapeStr(fs.Rest.Type.Elem(), stack)
		if err != nil {
			return "", err
		}
		parts = append(parts, "*:"+rs)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func typeName(t reflect.Type) string {
	if n := t.Name(); n != "" {
		return n
	}
	return t.String()
}
