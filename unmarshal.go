package xmlrpc

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Unmarshal decodes the XML-RPC value v and stores the result in the
// value pointed to by out, using the default [Decoder]. If out is nil
// or not a pointer, Unmarshal returns a [TypeError].
//
// Generally, Unmarshal applies the inverse of the rules used by
// [Marshal]. XML-RPC values do not carry enough information to
// reconstruct a Go value on their own, so the type of *out dictates
// how v is interpreted: the same [Str] decodes as a string into a
// string, as a number into a uint64, and as a single character into a
// [Char].
//
// Unmarshal either fully succeeds, or leaves *out untouched. It never
// stores a partially decoded value.
//
// Unmarshal traverses the value v recursively. If an encountered
// value implements [Unmarshaler], Unmarshal calls UnmarshalXMLRPC to
// unmarshal it. Types implementing [Unmarshaler] must implement
// UnmarshalXMLRPC with a pointer receiver. Attempting to unmarshal
// using an UnmarshalXMLRPC method with a value receiver results in a
// [TypeError].
//
// Otherwise, Unmarshal uses the following type-dependent decodings:
//
// bool accepts a [Bool]. int8, int16, int32, uint8 and uint16 accept
// an [Int] that fits in the target type. int, int64, uint, uint32,
// uint64 and uintptr accept a [Str] holding a decimal integer that
// fits in the target type, and also an [Int]. float32 and float64
// accept a [Double] or an [Int]. A finite Double too large for
// float32 is an error.
//
// string accepts a [Str]. [Char] accepts a Str of exactly one
// character. []byte accepts [Bytes], and [N]byte accepts Bytes of
// length exactly N. The decoded bytes never alias v.
//
// Pointers decode options: an empty [Array] leaves the pointer nil,
// and an Array of one element allocates a new value and decodes the
// element into it.
//
// Other slices accept an Array of any length. Go arrays and [Tuple]
// structs accept an Array with exactly as many elements as the target
// has.
//
// Maps accept a [Struct]. Each member name is parsed back into the
// map's key type.
//
// Structs with no exported fields accept an empty Struct. [Newtype]
// structs accept whatever their field accepts. [Enum] structs accept
// a Struct with a single member, whose name selects the variant.
//
// Other structs accept a Struct, with members in any order. Members
// with no corresponding field are ignored, unless
// [Decoder.DisallowUnknownFields] is set or the struct has a field
// tagged "rest", which collects them. Every field must have a
// corresponding member, except pointer fields and fields tagged
// "optional", which keep their zero value when absent.
//
// Decoding into an empty interface stores v itself. Decoding into a
// [Value] also stores v itself, and decoding into one of the concrete
// Value types requires v to be of that type.
//
// complex64, complex128, non-empty interface, channel, function and
// unsafe pointer values cannot decode any XML-RPC value. Attempting
// to decode into such values causes Unmarshal to return a
// [TypeError].
//
// Every failure to decode v is reported as an [*Error], which records
// where in v the problem was found.
func Unmarshal(v Value, out any) error {
	var d Decoder
	return d.Unmarshal(v, out)
}

// A Decoder converts XML-RPC values into Go values. The zero Decoder
// is ready to use, and applies the default decodings described in
// [Unmarshal].
type Decoder struct {
	// DisallowUnknownFields, if true, causes decoding into a struct
	// to fail with [ErrUnknownField] when the incoming [Struct] has a
	// member with no corresponding field. Structs with a "rest" field
	// still collect unknown members.
	DisallowUnknownFields bool
	// MaxDepth is the maximum nesting depth of decoded values. Zero
	// means [DefaultMaxDepth].
	MaxDepth int
}

// Unmarshal decodes v into the value pointed to by out.
func (d *Decoder) Unmarshal(v Value, out any) error {
	val, err := d.decode(v, out)
	if err != nil {
		return err
	}
	reflect.ValueOf(out).Elem().Set(val)
	return nil
}

// decode decodes v into a new value of the type out points to.
func (d *Decoder) decode(v Value, out any) (reflect.Value, error) {
	if out == nil {
		return reflect.Value{}, typeErr(nil, "can't unmarshal into nil interface")
	}
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, typeErr(val.Type(), "can't unmarshal into a non-pointer")
	}
	if val.IsNil() {
		return reflect.Value{}, typeErr(val.Type(), "can't unmarshal into a nil pointer")
	}
	t := val.Type().Elem()
	dec := decoderFor(t)
	st := decodeState{
		disallowUnknown: d.DisallowUnknownFields,
		maxDepth:        cmp.Or(d.MaxDepth, DefaultMaxDepth),
	}
	ret := reflect.New(t).Elem()
	if err := dec(&st, v, ret); err != nil {
		return reflect.Value{}, err
	}
	return ret, nil
}

// UnmarshalParams decodes the positional parameters of a method call
// or response into outs, which must all be non-nil pointers. The
// number of params must equal the number of outs.
func (d *Decoder) UnmarshalParams(params []Value, outs ...any) error {
	if len(params) != len(outs) {
		return newErr(ErrArityMismatch, "got %d params, want %d", len(params), len(outs))
	}
	// Decode everything before storing anything, so that a failure
	// leaves all of outs untouched.
	vals := make([]reflect.Value, len(outs))
	for i, out := range outs {
		var err error
		vals[i], err = d.decode(params[i], out)
		if err != nil {
			return atPath(err, fmt.Sprintf("params[%d]", i))
		}
	}
	for i, out := range outs {
		reflect.ValueOf(out).Elem().Set(vals[i])
	}
	return nil
}

// Unmarshaler is the interface implemented by types that can
// unmarshal themselves from an XML-RPC value.
//
// UnmarshalXMLRPC must have a pointer receiver. If Unmarshal
// encounters an Unmarshaler whose UnmarshalXMLRPC method takes a
// value receiver, it will return a [TypeError].
//
// UnmarshalXMLRPC must not retain v or anything it references.
type Unmarshaler interface {
	UnmarshalXMLRPC(v Value) error
}

var unmarshalerType = reflect.TypeFor[Unmarshaler]()

// decodeState is the state of one Unmarshal call.
type decodeState struct {
	disallowUnknown bool
	maxDepth        int
	depth           int
}

func (st *decodeState) enter() error {
	st.depth++
	if st.depth > st.maxDepth {
		return newErr(ErrDepthExceeded, "more than %d levels of nesting", st.maxDepth)
	}
	return nil
}

func (st *decodeState) leave() {
	st.depth--
}

// decoderFunc decodes v into out, which is a settable zero value.
type decoderFunc func(st *decodeState, v Value, out reflect.Value) error

var decoders cache[decoderFunc]

func init() {
	decoders.OnRecursive = func(t reflect.Type) decoderFunc {
		return func(st *decodeState, v Value, out reflect.Value) error {
			dec, ok := decoders.Load(t)
			if !ok {
				dec = mustDecoder(deriveDecoder(t))
			}
			return dec(st, v, out)
		}
	}
}

// decoderFor returns the decoder func for t. If t cannot be
// represented in XML-RPC, the returned func reports why.
func decoderFor(t reflect.Type) decoderFunc {
	if ret, ok := decoders.Get(t); ok {
		return ret
	}
	dec, err := deriveDecoder(t)
	debugDecoder(t, err)
	ret := mustDecoder(dec, err)
	decoders.Put(t, ret)
	return ret
}

func debugDecoder(t reflect.Type, err error) {
	if err != nil {
		debugLog().Debug("no decoder for type", zap.Stringer("type", t), zap.Error(err))
		return
	}
	debugLog().Debug("derived decoder", zap.Stringer("type", t), zap.Stringer("kind", t.Kind()))
}

func mustDecoder(dec decoderFunc, err error) decoderFunc {
	if err != nil {
		return newErrDecoder(err)
	}
	return dec
}

func newErrDecoder(err error) decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		return err
	}
}

func deriveDecoder(t reflect.Type) (decoderFunc, error) {
	if t == valueType {
		return newValueDecoder(), nil
	} else if isConcreteValue(t) {
		return newConcreteValueDecoder(t), nil
	}

	// We only want Unmarshalers with pointer receivers, since a value
	// receiver would silently discard the results of the
	// UnmarshalXMLRPC call and lead to confusing bugs.
	//
	// Pointer types are always options, so a *T that implements
	// Unmarshaler is reached through T, by taking T's address.
	// Decoding always hands us addressable values, so we don't need
	// an addressability check to do this.
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if t.Implements(unmarshalerType) {
			return nil, typeErr(t, "refusing to use xmlrpc.Unmarshaler implementation with value receiver, Unmarshalers must use pointer receivers.")
		} else if reflect.PointerTo(t).Implements(unmarshalerType) {
			return newAddrUnmarshalDecoder(), nil
		}
	}

	if t == charType {
		return newCharDecoder(), nil
	}

	switch k := t.Kind(); {
	case k == reflect.Interface:
		if t.NumMethod() != 0 {
			return nil, typeErr(t, "can't unmarshal into a non-empty interface")
		}
		return newAnyDecoder(), nil
	case k == reflect.Pointer:
		return newPtrDecoder(t), nil
	case k == reflect.Bool:
		return newBoolDecoder(), nil
	case narrowIntKinds.Has(k):
		return newNarrowIntDecoder(t), nil
	case wideIntKinds.Has(k):
		return newWideIntDecoder(t), nil
	case k == reflect.Float32, k == reflect.Float64:
		return newFloatDecoder(), nil
	case k == reflect.String:
		return newStringDecoder(), nil
	case k == reflect.Slice, k == reflect.Array:
		return newSliceDecoder(t), nil
	case k == reflect.Struct:
		return newStructDecoder(t)
	case k == reflect.Map:
		return newMapDecoder(t)
	}

	return nil, typeErr(t, "no XML-RPC mapping for type")
}

func newValueDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		if v == nil {
			return mismatch("a value", v)
		}
		if err := checkTree(v, st.maxDepth-st.depth); err != nil {
			return err
		}
		out.Set(reflect.ValueOf(&v).Elem())
		return nil
	}
}

func newConcreteValueDecoder(t reflect.Type) decoderFunc {
	want := reflect.Zero(t).Interface().(Value).Kind()
	return func(st *decodeState, v Value, out reflect.Value) error {
		if kindOf(v) != want {
			return mismatch(want.String(), v)
		}
		if err := checkTree(v, st.maxDepth-st.depth); err != nil {
			return err
		}
		out.Set(reflect.ValueOf(v).Convert(t))
		return nil
	}
}

func newAnyDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		if v == nil {
			return mismatch("a value", v)
		}
		if err := checkTree(v, st.maxDepth-st.depth); err != nil {
			return err
		}
		out.Set(reflect.ValueOf(v))
		return nil
	}
}

func newAddrUnmarshalDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		m := out.Addr().Interface().(Unmarshaler)
		if err := m.UnmarshalXMLRPC(v); err != nil {
			return err
		}
		return nil
	}
}

func newPtrDecoder(t reflect.Type) decoderFunc {
	elem := t.Elem()
	elemDec := decoderFor(elem)
	return func(st *decodeState, v Value, out reflect.Value) error {
		inner, present, err := unwrapOption(v)
		if err != nil {
			return err
		}
		if !present {
			out.SetZero()
			return nil
		}
		if err := st.enter(); err != nil {
			return err
		}
		defer st.leave()
		ev := reflect.New(elem)
		if err := elemDec(st, inner, ev.Elem()); err != nil {
			return err
		}
		out.Set(ev)
		return nil
	}
}

func newBoolDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		b, ok := v.(Bool)
		if !ok {
			return mismatch(KindBool.String(), v)
		}
		out.SetBool(bool(b))
		return nil
	}
}

func newNarrowIntDecoder(t reflect.Type) decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		i, ok := v.(Int)
		if !ok {
			return mismatch(KindInt.String(), v)
		}
		return setInt(out, int64(i), t)
	}
}

func newWideIntDecoder(t reflect.Type) decoderFunc {
	signed := isSigned(t.Kind())
	return func(st *decodeState, v Value, out reflect.Value) error {
		switch n := v.(type) {
		case Int:
			return setInt(out, int64(n), t)
		case Str:
			if signed {
				i, err := parseInt(string(n), t)
				if err != nil {
					return err
				}
				out.SetInt(i)
			} else {
				u, err := parseUint(string(n), t)
				if err != nil {
					return err
				}
				out.SetUint(u)
			}
			return nil
		default:
			return mismatch("integer string", v)
		}
	}
}

// setInt stores i in out, which has integer type t, if it fits.
func setInt(out reflect.Value, i int64, t reflect.Type) error {
	if isSigned(t.Kind()) {
		if out.OverflowInt(i) {
			return newErr(ErrIntegerOutOfRange, "%d does not fit in %s", i, t)
		}
		out.SetInt(i)
		return nil
	}
	if i < 0 || out.OverflowUint(uint64(i)) {
		return newErr(ErrIntegerOutOfRange, "%d does not fit in %s", i, t)
	}
	out.SetUint(uint64(i))
	return nil
}

func newFloatDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		switch f := v.(type) {
		case Double:
			if out.OverflowFloat(float64(f)) {
				return newErr(ErrFloatOutOfRange, "%v does not fit in %s", float64(f), out.Type())
			}
			out.SetFloat(float64(f))
		case Int:
			out.SetFloat(float64(f))
		default:
			return mismatch(KindDouble.String(), v)
		}
		return nil
	}
}

func newCharDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		s, ok := v.(Str)
		if !ok {
			return mismatch("single character string", v)
		}
		r, err := parseChar(string(s))
		if err != nil {
			return err
		}
		out.SetInt(int64(r))
		return nil
	}
}

func newStringDecoder() decoderFunc {
	return func(st *decodeState, v Value, out reflect.Value) error {
		s, ok := v.(Str)
		if !ok {
			return mismatch(KindString.String(), v)
		}
		out.SetString(string(s))
		return nil
	}
}

func newSliceDecoder(t reflect.Type) decoderFunc {
	if isByteSeq(t) {
		return newBytesDecoder(t)
	}

	elemDec := decoderFor(t.Elem())
	isArray := t.Kind() == reflect.Array
	return func(st *decodeState, v Value, out reflect.Value) error {
		a, ok := v.(Array)
		if !ok {
			return mismatch(KindArray.String(), v)
		}
		if isArray && len(a) != t.Len() {
			return newErr(ErrArityMismatch, "got %d elements, want %d", len(a), t.Len())
		}
		if err := st.enter(); err != nil {
			return err
		}
		defer st.leave()
		if !isArray {
			out.Set(reflect.MakeSlice(t, len(a), len(a)))
		}
		for i, ev := range a {
			if err := elemDec(st, ev, out.Index(i)); err != nil {
				return atIndex(err, i)
			}
		}
		return nil
	}
}

func newBytesDecoder(t reflect.Type) decoderFunc {
	isArray := t.Kind() == reflect.Array
	return func(st *decodeState, v Value, out reflect.Value) error {
		bs, ok := v.(Bytes)
		if !ok {
			return mismatch(KindBytes.String(), v)
		}
		if isArray {
			if len(bs) != t.Len() {
				return newErr(ErrArityMismatch, "got %d bytes, want %d", len(bs), t.Len())
			}
			for i, b := range bs {
				out.Index(i).SetUint(uint64(b))
			}
			return nil
		}
		if t.Elem() == byteType {
			if bs == nil {
				bs = Bytes{}
			}
			out.SetBytes(bytes.Clone([]byte(bs)))
			return nil
		}
		out.Set(reflect.MakeSlice(t, len(bs), len(bs)))
		for i, b := range bs {
			out.Index(i).SetUint(uint64(b))
		}
		return nil
	}
}

func newStructDecoder(t reflect.Type) (decoderFunc, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}

	switch fs.Kind {
	case kindUnit:
		return func(st *decodeState, v Value, out reflect.Value) error {
			return checkUnit(v)
		}, nil
	case kindNewtype:
		return newNewtypeDecoder(fs.Fields[0]), nil
	case kindTuple:
		return newTupleDecoder(fs), nil
	case kindEnum:
		return newEnumDecoder(fs), nil
	default:
		return newRecordDecoder(fs), nil
	}
}

func newNewtypeDecoder(f *structField) decoderFunc {
	fDec := decoderFor(f.Type)
	return func(st *decodeState, v Value, out reflect.Value) error {
		return fDec(st, v, f.GetWithAlloc(out))
	}
}

func newTupleDecoder(fs *structInfo) decoderFunc {
	decs := make([]decoderFunc, len(fs.Fields))
	for i, f := range fs.Fields {
		decs[i] = decoderFor(f.Type)
	}
	return func(st *decodeState, v Value, out reflect.Value) error {
		a, ok := v.(Array)
		if !ok {
			return mismatch(KindArray.String(), v)
		}
		if len(a) != len(decs) {
			return newErr(ErrArityMismatch, "got %d elements, want %d for %s", len(a), len(decs), fs.Name)
		}
		if err := st.enter(); err != nil {
			return err
		}
		defer st.leave()
		for i, dec := range decs {
			if err := dec(st, a[i], fs.Fields[i].GetWithAlloc(out)); err != nil {
				return atIndex(err, i)
			}
		}
		return nil
	}
}

func newEnumDecoder(fs *structInfo) decoderFunc {
	decs := map[string]decoderFunc{}
	for _, f := range fs.Fields {
		decs[f.Name] = decoderFor(f.Type.Elem())
	}
	return func(st *decodeState, v Value, out reflect.Value) error {
		name, payload, err := unwrapVariant(v)
		if err != nil {
			return err
		}
		f := fs.Field(name)
		if f == nil {
			return newErr(ErrUnknownVariant, "%s has no variant %q", fs.Name, name)
		}
		if err := st.enter(); err != nil {
			return err
		}
		defer st.leave()
		pv := reflect.New(f.Type.Elem())
		if err := decs[name](st, payload, pv.Elem()); err != nil {
			return atField(err, name)
		}
		f.GetWithAlloc(out).Set(pv)
		return nil
	}
}

func newRecordDecoder(fs *structInfo) decoderFunc {
	decs := make([]decoderFunc, len(fs.Fields))
	for i, f := range fs.Fields {
		decs[i] = decoderFor(f.Type)
	}
	var (
		restDec  decoderFunc
		restType reflect.Type
	)
	if fs.Rest != nil {
		restType = fs.Rest.Type
		restDec = decoderFor(restType.Elem())
	}

	return func(st *decodeState, v Value, out reflect.Value) error {
		s, ok := v.(Struct)
		if !ok {
			return mismatch(KindStruct.String(), v)
		}
		members, err := s.index()
		if err != nil {
			return err
		}
		if err := st.enter(); err != nil {
			return err
		}
		defer st.leave()

		matched := 0
		for i, dec := range decs {
			f := fs.Fields[i]
			mv, ok := members[f.Name]
			if !ok {
				if f.Optional {
					continue
				}
				return atField(newErr(ErrMissingField, "%s requires member %q", fs.Name, f.Name), f.Name)
			}
			matched++
			if err := dec(st, mv, f.GetWithAlloc(out)); err != nil {
				return atField(err, f.Name)
			}
		}

		if matched == len(members) {
			// Every member matched a field, fast path.
			return nil
		}
		var rest reflect.Value
		for _, m := range s {
			if fs.Field(m.Name) != nil {
				continue
			}
			switch {
			case restDec != nil:
				if !rest.IsValid() {
					rest = reflect.MakeMap(restType)
				}
				mv := reflect.New(restType.Elem()).Elem()
				if err := restDec(st, m.Value, mv); err != nil {
					return atField(err, m.Name)
				}
				rest.SetMapIndex(reflect.ValueOf(m.Name).Convert(restType.Key()), mv)
			case st.disallowUnknown:
				return atField(newErr(ErrUnknownField, "%s has no field for member %q", fs.Name, m.Name), m.Name)
			}
		}
		if rest.IsValid() {
			fs.Rest.GetWithAlloc(out).Set(rest)
		}
		return nil
	}
}

func newMapDecoder(t reflect.Type) (decoderFunc, error) {
	kt := t.Key()
	if !validMapKey(kt) {
		return nil, typeErr(t, "%w: %s cannot be a struct member name", ErrUnsupportedKey, kt)
	}
	kParse := mapKeyParser(kt)
	vt := t.Elem()
	vDec := decoderFor(vt)

	fn := func(st *decodeState, v Value, out reflect.Value) error {
		s, ok := v.(Struct)
		if !ok {
			return mismatch(KindStruct.String(), v)
		}
		if _, err := s.index(); err != nil {
			return err
		}
		if err := st.enter(); err != nil {
			return err
		}
		defer st.leave()

		ret := reflect.MakeMapWithSize(t, len(s))
		for _, m := range s {
			key, err := kParse(m.Name)
			if err != nil {
				return atKey(err, m.Name)
			}
			if ret.MapIndex(key).IsValid() {
				return atKey(newErr(ErrDuplicateField, "member %q is a second spelling of an earlier key", m.Name), m.Name)
			}
			val := reflect.New(vt).Elem()
			if err := vDec(st, m.Value, val); err != nil {
				return atKey(err, m.Name)
			}
			ret.SetMapIndex(key, val)
		}
		out.Set(ret)
		return nil
	}
	return fn, nil
}
