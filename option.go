package xmlrpc

// wrapOption returns the encoding of an optional value. A nil inner
// value is the absent option.
func wrapOption(inner Value) Value {
	if inner == nil {
		return Array{}
	}
	return Array{inner}
}

// unwrapOption returns the value held by the encoded option v, if
// any.
func unwrapOption(v Value) (inner Value, present bool, err error) {
	a, ok := v.(Array)
	if !ok {
		return nil, false, mismatch("option array", v)
	}
	switch len(a) {
	case 0:
		return nil, false, nil
	case 1:
		return a[0], true, nil
	default:
		return nil, false, newErr(ErrInvalidOptionShape, "option array has %d elements, want 0 or 1", len(a))
	}
}
