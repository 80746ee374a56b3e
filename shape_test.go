package xmlrpc

import (
	"errors"
	"reflect"
	"testing"
)

func TestShapeOf(t *testing.T) {
	tests := []struct {
		in   reflect.Type
		want string
	}{
		{reflect.TypeFor[bool](), "bool"},
		{reflect.TypeFor[byte](), "int"},
		{reflect.TypeFor[int16](), "int"},
		{reflect.TypeFor[int32](), "int"},
		{reflect.TypeFor[uint16](), "int"},
		{reflect.TypeFor[uint32](), "str"},
		{reflect.TypeFor[int64](), "str"},
		{reflect.TypeFor[uint](), "str"},
		{reflect.TypeFor[float32](), "double"},
		{reflect.TypeFor[float64](), "double"},
		{reflect.TypeFor[string](), "str"},
		{reflect.TypeFor[Char](), "str"},
		{reflect.TypeFor[[]byte](), "bytes"},
		{reflect.TypeFor[[4]byte](), "bytes"},
		{reflect.TypeFor[[]string](), "[str]"},
		{reflect.TypeFor[[2]int32](), "[int;2]"},
		{reflect.TypeFor[[][]string](), "[[str]]"},
		{reflect.TypeFor[*int32](), "?int"},
		{reflect.TypeFor[**int32](), "??int"},
		{reflect.TypeFor[map[string]int64](), "{str:str}"},
		{reflect.TypeFor[map[int16]bool](), "{str:bool}"},
		{reflect.TypeFor[map[IPKey]string](), "{str:str}"},
		{reflect.TypeFor[any](), "any"},
		{reflect.TypeFor[Value](), "any"},
		{reflect.TypeFor[Int](), "int"},
		{reflect.TypeFor[Bytes](), "bytes"},
		{reflect.TypeFor[Array](), "[any]"},
		{reflect.TypeFor[Struct](), "{str:any}"},
		{reflect.TypeFor[SelfMarshalerVal](), "any"},
		{reflect.TypeFor[SelfMarshalerPtr](), "any"},
		{reflect.TypeFor[*SelfMarshalerPtr](), "?any"},

		{reflect.TypeFor[struct{}](), "{}"},
		{reflect.TypeFor[Unit](), "{}"},
		{reflect.TypeFor[Simple](), "{A:int,B:bool}"},
		{reflect.TypeFor[Nested](), "{A:int,B:{A:int,B:bool}}"},
		{reflect.TypeFor[Embedded](), "{A:int,B:bool,C:int}"},
		{reflect.TypeFor[EmbeddedShadow](), "{A:int,B:int}"},
		{reflect.TypeFor[Embedded_PVP](), "{A:int,B:bool,C:int,D:int}"},
		{reflect.TypeFor[Arrays](), "{A:[str],B:[{A:int,B:bool}],C:[[{A:int,B:{A:int,B:bool}}]]}"},
		{reflect.TypeFor[Tagged](), "{id:int,note:str}"},
		{reflect.TypeFor[WithOptional](), "{A:str,B:str,C:?int}"},
		{reflect.TypeFor[WithRest](), "{name:str,*:int}"},
		{reflect.TypeFor[WithValue](), "{Raw:any,Any:any}"},
		{reflect.TypeFor[Point](), "(double,double)"},
		{reflect.TypeFor[Segment](), "((double,double),(double,double))"},
		{reflect.TypeFor[Meters](), "double"},
		{reflect.TypeFor[Figure](), "<Circle:{radius:double}|Square:{side:double}|Dot:{}|Label:str|Segment:((double,double),(double,double))>"},
		{reflect.TypeFor[Drawing](), "{figures:[<Circle:{radius:double}|Square:{side:double}|Dot:{}|Label:str|Segment:((double,double),(double,double))>]}"},
		{reflect.TypeFor[List](), "{value:int,next:?@List}"},
		{reflect.TypeFor[[]List](), "[{value:int,next:?@List}]"},
	}

	for _, tc := range tests {
		got, err := ShapeOf(tc.in)
		if err != nil {
			t.Errorf("ShapeOf(%s) failed: %v", tc.in, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ShapeOf(%s) = %q, want %q", tc.in, got, tc.want)
		}
		if got.Type() != tc.in {
			t.Errorf("ShapeOf(%s).Type() = %s", tc.in, got.Type())
		}
	}
}

func TestShapeOfErrors(t *testing.T) {
	tests := []struct {
		in      reflect.Type
		wantErr error
	}{
		{nil, nil},
		{reflect.TypeFor[complex128](), nil},
		{reflect.TypeFor[chan int](), nil},
		{reflect.TypeFor[func() int](), nil},
		{reflect.TypeFor[[]func()](), nil},
		{reflect.TypeFor[map[Simple]bool](), ErrUnsupportedKey},
		{reflect.TypeFor[map[[2]int64]bool](), ErrUnsupportedKey},
		{reflect.TypeFor[map[any]bool](), ErrUnsupportedKey},
		{reflect.TypeFor[map[float64]bool](), ErrUnsupportedKey},
		{reflect.TypeFor[BadEnum](), nil},
		{reflect.TypeFor[TwoMarkers](), nil},
		{reflect.TypeFor[DupNames](), ErrDuplicateField},
		{reflect.TypeFor[struct{ F DupNames }](), ErrDuplicateField},
	}

	for _, tc := range tests {
		got, err := ShapeOf(tc.in)
		if err == nil {
			t.Errorf("ShapeOf(%v) = %q, want error", tc.in, got)
			continue
		}
		var te TypeError
		if !errors.As(err, &te) {
			t.Errorf("ShapeOf(%v) error %v is not a TypeError", tc.in, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("ShapeOf(%v) error %v is not %v", tc.in, err, tc.wantErr)
		}
		if !got.IsZero() {
			t.Errorf("ShapeOf(%v) returned non-zero shape %q alongside error", tc.in, got)
		}
	}
}

func TestShapeMatchesCodec(t *testing.T) {
	// Types with a shape can be encoded, and those without can't.
	vals := []any{
		Simple{1, true},
		Figure{Circle: &Circle{2}},
		&List{Value: 1},
		map[Simple]bool{},
		BadEnum{},
	}
	for _, v := range vals {
		_, shapeErr := ShapeOf(reflect.TypeOf(v))
		_, encErr := Marshal(v)
		if (shapeErr == nil) != (encErr == nil) {
			t.Errorf("%T: ShapeOf err=%v, Marshal err=%v", v, shapeErr, encErr)
		}
	}
}

func TestShapeFor(t *testing.T) {
	got, err := ShapeFor[Point]()
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "(double,double)" {
		t.Fatalf("ShapeFor[Point]() = %q, want %q", got, "(double,double)")
	}
	again, err := ShapeFor[Point]()
	if err != nil {
		t.Fatal(err)
	}
	if again != got {
		t.Fatalf("ShapeFor[Point]() is not stable: %v != %v", again, got)
	}
}
