package xmlrpc

import (
	"errors"
	"fmt"
	"reflect"
)

// Errors returned by [Marshal] and [Unmarshal], wrapped in an
// [*Error] that records where in the value the failure happened. Use
// [errors.Is] to test for them.
var (
	// ErrTypeMismatch is a wire value whose kind is incompatible with
	// the Go type being decoded.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownVariant is an enum variant name that the enum type
	// does not declare.
	ErrUnknownVariant = errors.New("unknown variant")
	// ErrInvalidVariantShape is an enum encoding that is not a struct
	// with exactly one member, or an enum value with zero or several
	// variants set.
	ErrInvalidVariantShape = errors.New("invalid variant shape")
	// ErrInvalidOptionShape is an option encoding that is not an
	// array of zero or one elements.
	ErrInvalidOptionShape = errors.New("invalid option shape")
	// ErrInvalidUnitShape is a unit encoding that is not an empty
	// struct.
	ErrInvalidUnitShape = errors.New("invalid unit shape")
	// ErrInvalidInteger is a string-encoded integer that is not valid
	// decimal.
	ErrInvalidInteger = errors.New("invalid integer")
	// ErrIntegerOutOfRange is an integer that does not fit in the Go
	// type being decoded.
	ErrIntegerOutOfRange = errors.New("integer out of range")
	// ErrFloatOutOfRange is a double whose magnitude is too large for
	// the Go float type being decoded.
	ErrFloatOutOfRange = errors.New("float out of range")
	// ErrInvalidChar is a char encoding that is not a string of
	// exactly one Unicode scalar value.
	ErrInvalidChar = errors.New("invalid char")
	// ErrArityMismatch is an array whose length differs from the
	// fixed length of the Go type being decoded.
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrMissingField is a required struct field absent from the wire
	// struct.
	ErrMissingField = errors.New("missing field")
	// ErrUnknownField is a wire struct member with no corresponding
	// struct field, reported only when [Decoder.DisallowUnknownFields]
	// is set.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnsupportedKey is a map key that cannot be rendered as, or
	// parsed from, a struct member name.
	ErrUnsupportedKey = errors.New("unsupported map key")
	// ErrDuplicateField is a struct with two members of the same
	// name.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrDepthExceeded is a value nested more deeply than the
	// configured maximum depth.
	ErrDepthExceeded = errors.New("maximum nesting depth exceeded")
)

// Error is a failure to convert between a Go value and a [Value].
type Error struct {
	// Kind is one of the Err* sentinel errors of this package.
	Kind error
	// Path is the location of the failure within the value being
	// converted, for example ".Shapes[2].Circle.radius". Empty means
	// the top-level value.
	Path string
	// Detail is a human-readable explanation, possibly empty.
	Detail string
}

func (e *Error) Error() string {
	msg := "xmlrpc: " + e.Kind.Error()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newErr(kind error, detail string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(detail, args...)}
}

func mismatch(want string, got Value) error {
	return newErr(ErrTypeMismatch, "want %s, got %s", want, kindOf(got))
}

// atField prefixes the path of err with a struct field or member
// name. Errors that don't carry a path are returned unchanged.
func atField(err error, name string) error {
	return atPath(err, "."+name)
}

// atIndex prefixes the path of err with an array index.
func atIndex(err error, idx int) error {
	return atPath(err, fmt.Sprintf("[%d]", idx))
}

// atKey prefixes the path of err with a map key.
func atKey(err error, key string) error {
	return atPath(err, fmt.Sprintf("[%q]", key))
}

func atPath(err error, seg string) error {
	var e *Error
	if errors.As(err, &e) {
		e.Path = seg + e.Path
	}
	return err
}

// TypeError is the error returned when a Go type cannot be
// represented in XML-RPC at all.
type TypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't representable by
	// XML-RPC.
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("xmlrpc cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := "nil"
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}
