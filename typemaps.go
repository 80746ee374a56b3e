package xmlrpc

import (
	"cmp"
	"encoding"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/creachadair/mds/mapset"
)

// Char is a single Unicode scalar value. It encodes as a one
// character [Str], where a plain rune (an int32) would encode as an
// [Int].
type Char rune

var (
	valueType           = reflect.TypeFor[Value]()
	anyType             = reflect.TypeFor[any]()
	charType            = reflect.TypeFor[Char]()
	byteType            = reflect.TypeFor[byte]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

	// narrowIntKinds are the integer kinds whose every value fits in
	// an Int.
	narrowIntKinds = mapset.New(
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Uint8,
		reflect.Uint16,
	)

	// wideIntKinds are the integer kinds that may hold values outside
	// of Int's range, and so encode as decimal strings.
	wideIntKinds = mapset.New(
		reflect.Int,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Uintptr,
	)

	// mapKeyKinds is the set of reflect.Kinds that can be rendered as
	// a struct member name, and so can be map keys.
	mapKeyKinds = mapset.New(
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Uintptr,
		reflect.String,
	)
)

// isByteSeq reports whether t is a slice or array of bytes, which
// map to Bytes rather than Array.
func isByteSeq(t reflect.Type) bool {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	et := t.Elem()
	return et.Kind() == reflect.Uint8 && !et.Implements(marshalerType) && !reflect.PointerTo(et).Implements(unmarshalerType)
}

// isConcreteValue reports whether t is one of the Value
// implementations of this package.
func isConcreteValue(t reflect.Type) bool {
	return t.Kind() != reflect.Interface && t.PkgPath() == valueType.PkgPath() && t.Implements(valueType)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

// isTextKey reports whether map keys of type t go through
// encoding.TextMarshaler and encoding.TextUnmarshaler.
func isTextKey(t reflect.Type) bool {
	return t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// validMapKey reports whether t can be a map key.
func validMapKey(t reflect.Type) bool {
	return t == charType || isTextKey(t) || mapKeyKinds.Has(t.Kind())
}

// mapKeyFormatter returns a function that renders map keys of type t
// as struct member names.
func mapKeyFormatter(t reflect.Type) func(reflect.Value) (string, error) {
	switch {
	case t == charType:
		return func(v reflect.Value) (string, error) {
			r := rune(v.Int())
			if !utf8.ValidRune(r) {
				return "", newErr(ErrUnsupportedKey, "%U is not a valid Unicode scalar value", r)
			}
			return string(r), nil
		}
	case isTextKey(t):
		return func(v reflect.Value) (string, error) {
			bs, err := v.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return "", newErr(ErrUnsupportedKey, "marshaling %s key: %v", t, err)
			}
			return string(bs), nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return func(v reflect.Value) (string, error) {
			return strconv.FormatBool(v.Bool()), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(v reflect.Value) (string, error) {
			return strconv.FormatInt(v.Int(), 10), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(v reflect.Value) (string, error) {
			return strconv.FormatUint(v.Uint(), 10), nil
		}
	case reflect.String:
		return func(v reflect.Value) (string, error) {
			return v.String(), nil
		}
	default:
		panic("mapKeyFormatter called on type that can't be a map key")
	}
}

// mapKeyParser returns a function that converts struct member names
// back into values of the given map key type.
func mapKeyParser(t reflect.Type) func(string) (reflect.Value, error) {
	switch {
	case t == charType:
		return func(s string) (reflect.Value, error) {
			r, err := parseChar(s)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(r), nil
		}
	case isTextKey(t):
		return func(s string) (reflect.Value, error) {
			ret := reflect.New(t)
			if err := ret.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
				return reflect.Value{}, newErr(ErrUnsupportedKey, "unmarshaling %s key %q: %v", t, s, err)
			}
			return ret.Elem(), nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return func(s string) (reflect.Value, error) {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return reflect.Value{}, newErr(ErrTypeMismatch, "map key %q is not a boolean", s)
			}
			return reflect.ValueOf(b).Convert(t), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(s string) (reflect.Value, error) {
			i64, err := parseInt(s, t)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(i64).Convert(t), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(s string) (reflect.Value, error) {
			u64, err := parseUint(s, t)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(u64).Convert(t), nil
		}
	case reflect.String:
		return func(s string) (reflect.Value, error) {
			return reflect.ValueOf(s).Convert(t), nil
		}
	default:
		panic("mapKeyParser called on type that can't be a map key")
	}
}

// mapKeyCmp returns a comparison function that orders map keys of
// type t. The ordering determines the order of the encoded struct
// members.
func mapKeyCmp(t reflect.Type) func(a, b reflect.Value) int {
	if t == charType || isTextKey(t) {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return func(a, b reflect.Value) int {
			if a.Bool() == b.Bool() {
				return 0
			}
			if !a.Bool() {
				return -1
			}
			return 1
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b reflect.Value) int {
			return cmp.Compare(a.Int(), b.Int())
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b reflect.Value) int {
			return cmp.Compare(a.Uint(), b.Uint())
		}
	case reflect.String:
		return func(a, b reflect.Value) int {
			return cmp.Compare(a.String(), b.String())
		}
	default:
		panic("invalid map key type")
	}
}

// parseInt parses a decimal integer that must fit in the signed
// integer type t.
func parseInt(s string, t reflect.Type) (int64, error) {
	i64, err := strconv.ParseInt(s, 10, t.Bits())
	if err != nil {
		return 0, numErr(err, s, t)
	}
	return i64, nil
}

// parseUint parses a decimal integer that must fit in the unsigned
// integer type t.
func parseUint(s string, t reflect.Type) (uint64, error) {
	u64, err := strconv.ParseUint(s, 10, t.Bits())
	if err != nil {
		return 0, numErr(err, s, t)
	}
	return u64, nil
}

func numErr(err error, s string, t reflect.Type) error {
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return newErr(ErrIntegerOutOfRange, "%s does not fit in %s", s, t)
	}
	// ParseUint rejects a leading minus sign as a syntax error, but
	// a well-formed negative number is really a range problem.
	if !isSigned(t.Kind()) && len(s) > 1 && s[0] == '-' {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return newErr(ErrIntegerOutOfRange, "%s does not fit in %s", s, t)
		}
	}
	return newErr(ErrInvalidInteger, "%q is not a decimal integer", s)
}

// parseChar returns the single Unicode scalar value of s.
func parseChar(s string) (Char, error) {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || n != len(s) || (r == utf8.RuneError && n == 1) {
		return 0, newErr(ErrInvalidChar, "%q is not exactly one character", s)
	}
	return Char(r), nil
}
