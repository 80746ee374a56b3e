package xmlrpc

// wrapVariant returns the encoding of the enum variant name carrying
// payload.
func wrapVariant(name string, payload Value) Value {
	return Struct{{Name: name, Value: payload}}
}

// unwrapVariant splits an encoded enum variant into its name and
// payload.
func unwrapVariant(v Value) (name string, payload Value, err error) {
	s, ok := v.(Struct)
	if !ok {
		return "", nil, mismatch("enum variant struct", v)
	}
	if len(s) != 1 {
		return "", nil, newErr(ErrInvalidVariantShape, "variant struct has %d members, want 1", len(s))
	}
	return s[0].Name, s[0].Value, nil
}

// unitValue returns the encoding of a unit value.
func unitValue() Value {
	return Struct{}
}

// checkUnit verifies that v is a valid encoding of a unit value.
func checkUnit(v Value) error {
	s, ok := v.(Struct)
	if !ok {
		return mismatch("empty struct", v)
	}
	if len(s) != 0 {
		return newErr(ErrInvalidUnitShape, "unit struct has %d members, want 0", len(s))
	}
	return nil
}
