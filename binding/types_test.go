package binding

import (
	"reflect"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffibridge/errors"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"u32", true},
		{"string", true},
		{"list<u8>", true},
		{"list<option<s32>>", true},
		{"tuple<u8, string>", true},
		{"result<u32, string>", true},
		{"result<_, string>", true},
		{"result<u64>", true},
		{"result", true},
		{"list<u8", false},
		{"list<u8, u8>", false},
		{"map<string, u8>", false},
		{"tuple<>", false},
		{"invalid-type-xyz", false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			_, err := ParseType(tc.input)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseType_Structure(t *testing.T) {
	typ, err := ParseType("list<option<u32>>")
	if err != nil {
		t.Fatal(err)
	}
	list, ok := typ.(*wit.TypeDef).Kind.(*wit.List)
	if !ok {
		t.Fatalf("kind = %T", typ.(*wit.TypeDef).Kind)
	}
	opt, ok := list.Type.(*wit.TypeDef).Kind.(*wit.Option)
	if !ok {
		t.Fatalf("element kind = %T", list.Type.(*wit.TypeDef).Kind)
	}
	if _, ok := opt.Type.(wit.U32); !ok {
		t.Errorf("option element = %T", opt.Type)
	}
}

func TestValue_RoundTrip(t *testing.T) {
	tests := []struct {
		value any
		typ   string
	}{
		{typ: "bool", value: true},
		{typ: "u8", value: uint8(200)},
		{typ: "s16", value: int16(-300)},
		{typ: "u32", value: uint32(7)},
		{typ: "s64", value: int64(-5)},
		{typ: "f32", value: float32(0.5)},
		{typ: "f64", value: 1.5},
		{typ: "string", value: "héllo"},
		{typ: "list<u8>", value: []byte{1, 2, 3}},
		{typ: "list<u32>", value: []any{uint32(1), uint32(2)}},
		{typ: "list<string>", value: []any{}},
		{typ: "option<u32>", value: uint32(3)},
		{typ: "option<u32>", value: nil},
		{typ: "list<option<s32>>", value: []any{int32(1), nil}},
		{typ: "tuple<u8, string>", value: []any{uint8(1), "x"}},
		{typ: "result<u32, string>", value: Case{Name: CaseOK, Value: uint32(1)}},
		{typ: "result<u32, string>", value: Case{Name: CaseErr, Value: "bad"}},
		{typ: "result", value: Case{Name: CaseErr}},
	}

	for _, tc := range tests {
		t.Run(tc.typ, func(t *testing.T) {
			v, err := For(tc.typ)
			if err != nil {
				t.Fatal(err)
			}
			data, err := v.Lower(tc.value)
			if err != nil {
				t.Fatalf("lower: %v", err)
			}
			got, err := v.Lift(data)
			if err != nil {
				t.Fatalf("lift: %v", err)
			}
			if !reflect.DeepEqual(got, tc.value) {
				t.Errorf("round trip = %#v, want %#v", got, tc.value)
			}
		})
	}
}

func TestValue_TopLevelStringIsRaw(t *testing.T) {
	v, err := For("string")
	if err != nil {
		t.Fatal(err)
	}
	data, err := v.Lower("abc")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc" {
		t.Errorf("lowered %v, want raw bytes", data)
	}

	nested, err := For("list<string>")
	if err != nil {
		t.Fatal(err)
	}
	data, err = nested.Lower([]any{"abc"})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 1, 0, 0, 0, 3, 'a', 'b', 'c'}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("lowered %v, want %v", data, want)
	}
}

func TestValue_TypeDefs(t *testing.T) {
	point := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.S32{}},
		{Name: "y", Type: wit.S32{}},
	}}}
	color := &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}}}}
	shape := &wit.TypeDef{Kind: &wit.Variant{Cases: []wit.Case{
		{Name: "circle", Type: wit.F64{}},
		{Name: "empty"},
	}}}

	tests := []struct {
		typ   wit.Type
		value any
		name  string
		want  []byte
	}{
		{
			name:  "record",
			typ:   point,
			value: map[string]any{"x": int32(1), "y": int32(-1)},
			want:  []byte{0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff},
		},
		{
			name:  "enum",
			typ:   color,
			value: "green",
			want:  []byte{0, 0, 0, 2},
		},
		{
			name:  "unit variant",
			typ:   shape,
			value: Case{Name: "empty"},
			want:  []byte{0, 0, 0, 2},
		},
		{
			name:  "payload variant",
			typ:   shape,
			value: Case{Name: "circle", Value: 2.0},
			want:  []byte{0, 0, 0, 1, 0x40, 0, 0, 0, 0, 0, 0, 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Of(tc.typ)
			if err != nil {
				t.Fatal(err)
			}
			data, err := v.Lower(tc.value)
			if err != nil {
				t.Fatalf("lower: %v", err)
			}
			if !reflect.DeepEqual(data, tc.want) {
				t.Errorf("lowered %v, want %v", data, tc.want)
			}
			got, err := v.Lift(data)
			if err != nil {
				t.Fatalf("lift: %v", err)
			}
			if !reflect.DeepEqual(got, tc.value) {
				t.Errorf("lifted %#v, want %#v", got, tc.value)
			}
		})
	}
}

func TestValue_Errors(t *testing.T) {
	t.Run("type mismatch", func(t *testing.T) {
		v, _ := For("u32")
		_, err := v.Lower("seven")
		if !errors.IsKind(err, errors.KindInvalidInput) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("bad optional tag", func(t *testing.T) {
		v, _ := For("option<u8>")
		_, err := v.Lift([]byte{2, 0})
		if !errors.IsKind(err, errors.KindUnexpectedOptionalTag) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		v, _ := For("u8")
		_, err := v.Lift([]byte{1, 2})
		if !errors.IsKind(err, errors.KindIncompleteData) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("missing record field", func(t *testing.T) {
		v, err := Of(&wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{{Name: "a", Type: wit.U8{}}}}})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := v.Lower(map[string]any{}); !errors.IsKind(err, errors.KindInvalidInput) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Of(&wit.TypeDef{Kind: &wit.Flags{Flags: []wit.Flag{{Name: "a"}}}})
		if !errors.IsKind(err, errors.KindUnsupported) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("unsupported field keeps kind", func(t *testing.T) {
		flags := &wit.TypeDef{Kind: &wit.Flags{Flags: []wit.Flag{{Name: "a"}}}}
		_, err := Of(&wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{{Name: "mode", Type: flags}}}})
		e, ok := errors.AsError(err)
		if !ok || e.Kind != errors.KindUnsupported || e.Phase != errors.PhaseLoad {
			t.Fatalf("error = %v", err)
		}
		if !strings.HasPrefix(e.Detail, "field mode: ") {
			t.Errorf("detail = %q", e.Detail)
		}
	})
}

func TestFlat(t *testing.T) {
	for _, s := range []string{"bool", "u8", "s32", "u64", "f32", "f64"} {
		typ, _ := ParseType(s)
		if !Flat(typ) {
			t.Errorf("%s should be flat", s)
		}
	}
	for _, s := range []string{"string", "list<u8>", "option<u8>"} {
		typ, _ := ParseType(s)
		if Flat(typ) {
			t.Errorf("%s should not be flat", s)
		}
	}
}
