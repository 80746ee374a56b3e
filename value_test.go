package xmlrpc

import (
	"errors"
	"testing"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{nil, nil, true},
		{Int(1), nil, false},
		{nil, Int(1), false},
		{Bool(true), Bool(true), true},
		{Bool(true), Bool(false), false},
		{Int(1), Int(1), true},
		{Int(1), Double(1), false},
		{Int(1), Str("1"), false},
		{Str("a"), Str("a"), true},
		{Double(1.5), Double(1.5), true},
		{Bytes("ab"), Bytes("ab"), true},
		{Bytes("ab"), Bytes("ba"), false},
		{Bytes(nil), Bytes{}, true},
		{Bytes{}, Str(""), false},
		{Array{}, Array(nil), true},
		{Array{Int(1), Str("a")}, Array{Int(1), Str("a")}, true},
		{Array{Int(1), Str("a")}, Array{Str("a"), Int(1)}, false},
		{Array{Int(1)}, Array{Int(1), Int(1)}, false},
		{Array{}, Struct{}, false},
		{Struct(nil), Struct{}, true},
		{Struct{{"a", Int(1)}}, Struct{{"a", Int(1)}}, true},
		{Struct{{"a", Int(1)}}, Struct{{"b", Int(1)}}, false},
		{Struct{{"a", Int(1)}}, Struct{{"a", Int(2)}}, false},
		{
			Struct{{"a", Int(1)}, {"b", Int(2)}},
			Struct{{"b", Int(2)}, {"a", Int(1)}},
			false,
		},
		{
			Struct{{"a", Array{Struct{{"x", Bytes("1")}}}}},
			Struct{{"a", Array{Struct{{"x", Bytes("1")}}}}},
			true,
		},
	}

	for _, tc := range tests {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if got := Equal(tc.b, tc.a); got != tc.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Bool(false), "boolean"},
		{Int(0), "i4"},
		{Str(""), "string"},
		{Double(0), "double"},
		{Bytes(nil), "base64"},
		{Array(nil), "array"},
		{Struct(nil), "struct"},
		{nil, "invalid"},
	}
	for _, tc := range tests {
		if got := kindOf(tc.v).String(); got != tc.want {
			t.Errorf("kindOf(%#v).String() = %q, want %q", tc.v, got, tc.want)
		}
	}
	if got, want := Kind(42).String(), "Kind(42)"; got != want {
		t.Errorf("Kind(42).String() = %q, want %q", got, want)
	}
}

func TestStructGet(t *testing.T) {
	s := Struct{{"a", Int(1)}, {"b", Str("two")}}
	if v, ok := s.Get("b"); !ok || !Equal(v, Str("two")) {
		t.Errorf(`Get("b") = %v, %v, want "two", true`, v, ok)
	}
	if v, ok := s.Get("c"); ok {
		t.Errorf(`Get("c") = %v, true, want not found`, v)
	}
	if _, ok := Struct(nil).Get("a"); ok {
		t.Error(`Struct(nil).Get("a") found a member`)
	}
}

func TestStructIndex(t *testing.T) {
	idx, err := Struct{{"a", Int(1)}, {"b", Int(2)}}.index()
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) != 2 || !Equal(idx["a"], Int(1)) || !Equal(idx["b"], Int(2)) {
		t.Fatalf("index() = %v", idx)
	}

	_, err = Struct{{"a", Int(1)}, {"b", Int(2)}, {"a", Int(3)}}.index()
	if !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("index() of duplicate members got err %v, want %v", err, ErrDuplicateField)
	}
}

func TestErrorString(t *testing.T) {
	err := atField(atIndex(newErr(ErrMissingField, "want %q", "x"), 2), "items")
	if got, want := err.Error(), `xmlrpc: missing field at .items[2]: want "x"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err = atKey(mismatch("i4", Str("")), "k")
	if got, want := err.Error(), `xmlrpc: type mismatch at ["k"]: want i4, got string`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := newErr(ErrDepthExceeded, "").Error(), "xmlrpc: maximum nesting depth exceeded"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
