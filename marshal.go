package xmlrpc

import (
	"bytes"
	"cmp"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultMaxDepth is the nesting limit used by an [Encoder] or
// [Decoder] whose MaxDepth is zero.
const DefaultMaxDepth = 256

// Marshal returns the XML-RPC encoding of v, using the default
// [Encoder].
//
// Marshal traverses the value v recursively. If an encountered value
// implements [Marshaler], Marshal calls MarshalXMLRPC on it to produce
// its encoding. [Value] values encode as themselves.
//
// Otherwise, Marshal uses the following type-dependent default
// encodings:
//
// bool values encode as [Bool]. int8, int16, int32, uint8 and uint16
// values encode as [Int]. int, int64, uint, uint32, uint64 and
// uintptr values may not fit in an i4, and encode as a [Str] holding
// the decimal representation of the value. float32 and float64 values
// encode as [Double].
//
// string values encode as [Str], as do [Char] values. []byte and
// [N]byte values encode as [Bytes].
//
// Pointers encode as options: a nil pointer encodes as an empty
// [Array], a non-nil pointer as an Array holding the encoding of the
// pointed-to value.
//
// Other array and slice values encode as [Array]. Nil slices encode
// the same as an empty slice.
//
// Map values encode as [Struct], with one member per map entry, in
// sorted key order. The map's key type must be a string, bool,
// integer or [Char] type, or implement [encoding.TextMarshaler].
//
// Struct values encode according to their kind, see [Tuple], [Enum]
// and [Newtype]. A struct with no exported fields encodes as an empty
// [Struct]. Other structs encode as a [Struct] with one member per
// exported field, in declaration order. Embedded struct fields are
// encoded as if their inner exported fields were fields in the outer
// struct, subject to the usual Go visibility rules.
//
// Struct fields can be customized with an "xmlrpc" struct tag. The
// tag's first value renames the member, and "-" skips the field
// entirely. A field tagged with "rest" must be a map[string]V, and
// its entries encode as additional members after the other fields.
//
// Interface values encode as the value they contain. A nil interface
// cannot be encoded.
//
// complex64, complex128, channel, function and unsafe pointer values
// cannot be encoded. Attempting to encode such values causes Marshal
// to return a [TypeError].
//
// XML-RPC cannot represent cyclic values. Attempting to encode a
// cyclic value causes Marshal to return an error wrapping
// [ErrDepthExceeded].
func Marshal(v any) (Value, error) {
	var e Encoder
	return e.Marshal(v)
}

// An Encoder converts Go values into XML-RPC values. The zero Encoder
// is ready to use, and applies the default encodings described in
// [Marshal].
type Encoder struct {
	// IntsByValue, if true, encodes wide integers (int, int64, uint,
	// uint32, uint64 and uintptr) whose value fits in an i4 as
	// [Int]. Only values that don't fit are encoded as decimal
	// [Str]. This produces friendlier output for peers that expect
	// integers, at the cost of the encoding depending on the value
	// rather than only on the type.
	IntsByValue bool
	// MaxDepth is the maximum nesting depth of encoded values. Zero
	// means [DefaultMaxDepth].
	MaxDepth int
}

// Marshal returns the XML-RPC encoding of v.
func (e *Encoder) Marshal(v any) (Value, error) {
	if v == nil {
		return nil, typeErr(nil, "cannot marshal a nil interface")
	}
	// Copy v into an addressable value, so that Marshalers with
	// pointer receivers work on the top-level value too.
	val := reflect.New(reflect.TypeOf(v)).Elem()
	val.Set(reflect.ValueOf(v))
	enc := encoderFor(val.Type())
	st := encodeState{
		intsByValue: e.IntsByValue,
		maxDepth:    cmp.Or(e.MaxDepth, DefaultMaxDepth),
	}
	return enc(&st, val)
}

// Marshaler is the interface implemented by types that can marshal
// themselves into an XML-RPC value.
//
// MarshalXMLRPC must return a non-nil Value.
type Marshaler interface {
	MarshalXMLRPC() (Value, error)
}

var marshalerType = reflect.TypeFor[Marshaler]()

// encodeState is the state of one Marshal call.
type encodeState struct {
	intsByValue bool
	maxDepth    int
	depth       int
}

func (st *encodeState) enter() error {
	st.depth++
	if st.depth > st.maxDepth {
		return newErr(ErrDepthExceeded, "more than %d levels of nesting, is the value cyclic?", st.maxDepth)
	}
	return nil
}

func (st *encodeState) leave() {
	st.depth--
}

type encoderFunc func(st *encodeState, v reflect.Value) (Value, error)

var encoders cache[encoderFunc]

func init() {
	encoders.OnRecursive = func(t reflect.Type) encoderFunc {
		return func(st *encodeState, v reflect.Value) (Value, error) {
			enc, ok := encoders.Load(t)
			if !ok {
				// Another goroutine is still deriving t, do our own
				// uncached derivation instead of waiting.
				enc = mustEncoder(deriveEncoder(t))
			}
			return enc(st, v)
		}
	}
}

// encoderFor returns the encoder func for t. If t cannot be
// represented in XML-RPC, the returned func reports why.
func encoderFor(t reflect.Type) (ret encoderFunc) {
	if ret, ok := encoders.Get(t); ok {
		return ret
	}
	enc, err := deriveEncoder(t)
	debugEncoder(t, err)
	ret = mustEncoder(enc, err)
	encoders.Put(t, ret)
	return ret
}

func debugEncoder(t reflect.Type, err error) {
	if err != nil {
		debugLog().Debug("no encoder for type", zap.Stringer("type", t), zap.Error(err))
		return
	}
	debugLog().Debug("derived encoder", zap.Stringer("type", t), zap.Stringer("kind", t.Kind()))
}

func mustEncoder(enc encoderFunc, err error) encoderFunc {
	if err != nil {
		return newErrEncoder(err)
	}
	return enc
}

func newErrEncoder(err error) encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		return nil, err
	}
}

func deriveEncoder(t reflect.Type) (encoderFunc, error) {
	if t == valueType {
		return newValueEncoder(), nil
	} else if isConcreteValue(t) {
		return newConcreteValueEncoder(), nil
	}

	// If a value's pointer type implements Marshaler, we can avoid a
	// value copy by using it. But we can only use it for addressable
	// values, which requires an additional runtime check.
	//
	// Pointer types are always options, so their Marshaler
	// implementations are reached through their element type.
	if t.Kind() != reflect.Pointer {
		if reflect.PointerTo(t).Implements(marshalerType) {
			return newCondAddrMarshalEncoder(t), nil
		} else if t.Implements(marshalerType) {
			return newMarshalEncoder(), nil
		}
	}

	if t == charType {
		return newCharEncoder(), nil
	}

	switch k := t.Kind(); {
	case k == reflect.Interface:
		return newInterfaceEncoder(t), nil
	case k == reflect.Pointer:
		return newPtrEncoder(t), nil
	case k == reflect.Bool:
		return newBoolEncoder(), nil
	case narrowIntKinds.Has(k):
		return newNarrowIntEncoder(t), nil
	case wideIntKinds.Has(k):
		return newWideIntEncoder(t), nil
	case k == reflect.Float32, k == reflect.Float64:
		return newFloatEncoder(), nil
	case k == reflect.String:
		return newStringEncoder(), nil
	case k == reflect.Slice, k == reflect.Array:
		return newSliceEncoder(t), nil
	case k == reflect.Struct:
		return newStructEncoder(t)
	case k == reflect.Map:
		return newMapEncoder(t)
	}
	return nil, typeErr(t, "no XML-RPC mapping for type")
}

func newValueEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		if v.IsNil() {
			return nil, typeErr(valueType, "cannot marshal a nil Value")
		}
		ret := v.Interface().(Value)
		if err := checkTree(ret, st.maxDepth-st.depth); err != nil {
			return nil, err
		}
		return ret, nil
	}
}

func newConcreteValueEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		ret := v.Interface().(Value)
		if err := checkTree(ret, st.maxDepth-st.depth); err != nil {
			return nil, err
		}
		return ret, nil
	}
}

func newCondAddrMarshalEncoder(t reflect.Type) encoderFunc {
	ptr := newMarshalEncoder()
	if t.Implements(marshalerType) {
		val := newMarshalEncoder()
		return func(st *encodeState, v reflect.Value) (Value, error) {
			if v.CanAddr() {
				return ptr(st, v.Addr())
			} else {
				return val(st, v)
			}
		}
	} else {
		return func(st *encodeState, v reflect.Value) (Value, error) {
			if !v.CanAddr() {
				return nil, typeErr(t, "Marshaler is only implemented on pointer receiver, and cannot take the address of given value")
			}
			return ptr(st, v.Addr())
		}
	}
}

func newMarshalEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		m := v.Interface().(Marshaler)
		ret, err := m.MarshalXMLRPC()
		if err != nil {
			return nil, err
		}
		if ret == nil {
			return nil, typeErr(v.Type(), "MarshalXMLRPC returned a nil Value")
		}
		if err := checkTree(ret, st.maxDepth-st.depth); err != nil {
			return nil, err
		}
		return ret, nil
	}
}

func newInterfaceEncoder(t reflect.Type) encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		if v.IsNil() {
			return nil, typeErr(t, "cannot marshal a nil interface")
		}
		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()
		inner := v.Elem()
		return encoderFor(inner.Type())(st, inner)
	}
}

func newPtrEncoder(t reflect.Type) encoderFunc {
	elemEnc := encoderFor(t.Elem())
	return func(st *encodeState, v reflect.Value) (Value, error) {
		if v.IsNil() {
			return wrapOption(nil), nil
		}
		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()
		inner, err := elemEnc(st, v.Elem())
		if err != nil {
			return nil, err
		}
		return wrapOption(inner), nil
	}
}

func newBoolEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		return Bool(v.Bool()), nil
	}
}

func newNarrowIntEncoder(t reflect.Type) encoderFunc {
	if isSigned(t.Kind()) {
		return func(st *encodeState, v reflect.Value) (Value, error) {
			return Int(v.Int()), nil
		}
	}
	return func(st *encodeState, v reflect.Value) (Value, error) {
		return Int(v.Uint()), nil
	}
}

func newWideIntEncoder(t reflect.Type) encoderFunc {
	if isSigned(t.Kind()) {
		return func(st *encodeState, v reflect.Value) (Value, error) {
			i := v.Int()
			if st.intsByValue && i >= math.MinInt32 && i <= math.MaxInt32 {
				return Int(i), nil
			}
			return Str(strconv.FormatInt(i, 10)), nil
		}
	}
	return func(st *encodeState, v reflect.Value) (Value, error) {
		u := v.Uint()
		if st.intsByValue && u <= math.MaxInt32 {
			return Int(u), nil
		}
		return Str(strconv.FormatUint(u, 10)), nil
	}
}

func newFloatEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		return Double(v.Float()), nil
	}
}

func newCharEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		r := rune(v.Int())
		if !utf8.ValidRune(r) {
			return nil, newErr(ErrInvalidChar, "%U is not a valid Unicode scalar value", r)
		}
		return Str(string(r)), nil
	}
}

func newStringEncoder() encoderFunc {
	return func(st *encodeState, v reflect.Value) (Value, error) {
		return Str(v.String()), nil
	}
}

func newSliceEncoder(t reflect.Type) encoderFunc {
	if isByteSeq(t) {
		return func(st *encodeState, v reflect.Value) (Value, error) {
			if t.Kind() == reflect.Slice && t.Elem() == byteType {
				return Bytes(bytes.Clone(v.Bytes())), nil
			}
			ret := make(Bytes, v.Len())
			for i := range ret {
				ret[i] = byte(v.Index(i).Uint())
			}
			return ret, nil
		}
	}

	elemEnc := encoderFor(t.Elem())
	return func(st *encodeState, v reflect.Value) (Value, error) {
		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()
		ret := make(Array, 0, v.Len())
		for i := range v.Len() {
			ev, err := elemEnc(st, v.Index(i))
			if err != nil {
				return nil, atIndex(err, i)
			}
			ret = append(ret, ev)
		}
		return ret, nil
	}
}

func newStructEncoder(t reflect.Type) (encoderFunc, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}
	debugLog().Debug("struct layout", zap.Stringer("type", t), zap.Stringer("info", fs))

	switch fs.Kind {
	case kindUnit:
		return func(st *encodeState, v reflect.Value) (Value, error) {
			return unitValue(), nil
		}, nil
	case kindNewtype:
		return newNewtypeEncoder(fs.Fields[0]), nil
	case kindTuple:
		return newTupleEncoder(fs), nil
	case kindEnum:
		return newEnumEncoder(fs), nil
	default:
		return newRecordEncoder(fs), nil
	}
}

func newNewtypeEncoder(f *structField) encoderFunc {
	fEnc := encoderFor(f.Type)
	return func(st *encodeState, v reflect.Value) (Value, error) {
		return fEnc(st, f.GetWithZero(v))
	}
}

func newTupleEncoder(fs *structInfo) encoderFunc {
	encs := make([]encoderFunc, len(fs.Fields))
	for i, f := range fs.Fields {
		encs[i] = encoderFor(f.Type)
	}
	return func(st *encodeState, v reflect.Value) (Value, error) {
		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()
		ret := make(Array, 0, len(encs))
		for i, enc := range encs {
			ev, err := enc(st, fs.Fields[i].GetWithZero(v))
			if err != nil {
				return nil, atIndex(err, i)
			}
			ret = append(ret, ev)
		}
		return ret, nil
	}
}

func newEnumEncoder(fs *structInfo) encoderFunc {
	// Variants are pointers, but the pointer only says which variant
	// is active. The payload is the pointed-to value.
	encs := make([]encoderFunc, len(fs.Fields))
	for i, f := range fs.Fields {
		encs[i] = encoderFor(f.Type.Elem())
	}
	return func(st *encodeState, v reflect.Value) (Value, error) {
		active := -1
		for i, f := range fs.Fields {
			if f.GetWithZero(v).IsNil() {
				continue
			}
			if active >= 0 {
				return nil, newErr(ErrInvalidVariantShape, "%s has variants %s and %s both set", fs.Name, fs.Fields[active].GoName, f.GoName)
			}
			active = i
		}
		if active < 0 {
			return nil, newErr(ErrInvalidVariantShape, "%s has no variant set", fs.Name)
		}

		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()
		f := fs.Fields[active]
		payload, err := encs[active](st, f.GetWithZero(v).Elem())
		if err != nil {
			return nil, atField(err, f.Name)
		}
		return wrapVariant(f.Name, payload), nil
	}
}

func newRecordEncoder(fs *structInfo) encoderFunc {
	encs := make([]encoderFunc, len(fs.Fields))
	for i, f := range fs.Fields {
		encs[i] = encoderFor(f.Type)
	}
	var restEnc encoderFunc
	if fs.Rest != nil {
		restEnc = newRestEncoder(fs)
	}

	return func(st *encodeState, v reflect.Value) (Value, error) {
		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()
		ret := make(Struct, 0, len(encs))
		for i, enc := range encs {
			f := fs.Fields[i]
			fv, err := enc(st, f.GetWithZero(v))
			if err != nil {
				return nil, atField(err, f.Name)
			}
			ret = append(ret, Member{f.Name, fv})
		}
		if restEnc != nil {
			rest, err := restEnc(st, v)
			if err != nil {
				return nil, err
			}
			ret = append(ret, rest.(Struct)...)
		}
		return ret, nil
	}
}

// Note, the returned encoder expects to be given the entire struct,
// not just the rest field, and returns only the members held in the
// rest field.
func newRestEncoder(fs *structInfo) encoderFunc {
	f := fs.Rest
	vEnc := encoderFor(f.Type.Elem())
	return func(st *encodeState, v reflect.Value) (Value, error) {
		m := f.GetWithZero(v)
		ks := m.MapKeys()
		slices.SortFunc(ks, func(a, b reflect.Value) int {
			return cmp.Compare(a.String(), b.String())
		})
		ret := make(Struct, 0, len(ks))
		for _, k := range ks {
			name := k.String()
			if fs.Field(name) != nil {
				return nil, atField(newErr(ErrDuplicateField, "rest field %s holds member %q, which is also a struct field", f.GoName, name), name)
			}
			mv, err := vEnc(st, m.MapIndex(k))
			if err != nil {
				return nil, atField(err, name)
			}
			ret = append(ret, Member{name, mv})
		}
		return ret, nil
	}
}

func newMapEncoder(t reflect.Type) (encoderFunc, error) {
	kt := t.Key()
	if !validMapKey(kt) {
		return nil, typeErr(t, "%w: %s cannot be a struct member name", ErrUnsupportedKey, kt)
	}
	kFmt := mapKeyFormatter(kt)
	kCmp := mapKeyCmp(kt)
	vEnc := encoderFor(t.Elem())

	type entry struct {
		name string
		key  reflect.Value
	}

	fn := func(st *encodeState, v reflect.Value) (Value, error) {
		if err := st.enter(); err != nil {
			return nil, err
		}
		defer st.leave()

		ents := make([]entry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			name, err := kFmt(iter.Key())
			if err != nil {
				return nil, err
			}
			ents = append(ents, entry{name, iter.Key()})
		}
		if kCmp != nil {
			slices.SortFunc(ents, func(a, b entry) int { return kCmp(a.key, b.key) })
		} else {
			slices.SortFunc(ents, func(a, b entry) int { return cmp.Compare(a.name, b.name) })
		}

		ret := make(Struct, 0, len(ents))
		for i, ent := range ents {
			if kCmp == nil && i > 0 && ents[i-1].name == ent.name {
				return nil, atKey(newErr(ErrDuplicateField, "two map keys encode as %q", ent.name), ent.name)
			}
			mv, err := vEnc(st, v.MapIndex(ent.key))
			if err != nil {
				return nil, atKey(err, ent.name)
			}
			ret = append(ret, Member{ent.name, mv})
		}
		return ret, nil
	}
	return fn, nil
}
