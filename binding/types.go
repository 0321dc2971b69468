package binding

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffibridge/codec"
	"github.com/wippyai/ffibridge/errors"
)

// Case is the dynamic value of a variant or result: the case name and its
// payload, nil for unit cases.
type Case struct {
	Value any
	Name  string
}

// Result case names.
const (
	CaseOK  = "ok"
	CaseErr = "err"
)

// Value is a dynamic codec: a Wire over any with whole-buffer Lift and Lower.
// Strings and byte lists lift from and lower to their raw bytes, without the
// length prefix they carry inside composites.
type Value struct {
	codec.Wire[any]
	Type wit.Type
	raw  *raw
}

type raw struct {
	lift  func([]byte) (any, error)
	lower func(any) ([]byte, error)
}

type bufferCodec[T any] interface {
	Lift([]byte) (T, error)
	Lower(T) ([]byte, error)
}

func rawOf[T any](c bufferCodec[T]) *raw {
	return &raw{
		lift: func(data []byte) (any, error) {
			v, err := c.Lift(data)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		lower: func(v any) ([]byte, error) {
			x, ok := v.(T)
			if !ok {
				return nil, mismatch[T](v)
			}
			return c.Lower(x)
		},
	}
}

// Lift decodes data, which must be consumed entirely.
func (v Value) Lift(data []byte) (any, error) {
	if v.raw != nil {
		return v.raw.lift(data)
	}
	return codec.Decode(v.Wire, data)
}

// Lower encodes x.
func (v Value) Lower(x any) ([]byte, error) {
	if v.raw != nil {
		return v.raw.lower(x)
	}
	return codec.Encode(v.Wire, x)
}

// ParseType parses a WIT type string. Primitive names are resolved by
// wit.ParseType; list, option, tuple and result are built here.
func ParseType(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '<')
	if open < 0 {
		if s == "result" {
			return &wit.TypeDef{Kind: &wit.Result{}}, nil
		}
		t, err := wit.ParseType(s)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse type "+s)
		}
		return t, nil
	}
	if !strings.HasSuffix(s, ">") {
		return nil, errors.InvalidInput(errors.PhaseLoad, "unbalanced type "+s)
	}

	head := strings.TrimSpace(s[:open])
	args := splitParams(s[open+1 : len(s)-1])
	types := make([]wit.Type, len(args))
	for i, a := range args {
		if head == "result" && a == "_" {
			continue
		}
		t, err := ParseType(a)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}

	arity := func(n int) error {
		if len(types) != n {
			return errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("%s takes %d type arguments: %s", head, n, s))
		}
		return nil
	}
	switch head {
	case "list":
		if err := arity(1); err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: types[0]}}, nil
	case "option":
		if err := arity(1); err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: types[0]}}, nil
	case "tuple":
		if len(types) == 0 {
			return nil, errors.InvalidInput(errors.PhaseLoad, "empty tuple")
		}
		return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}, nil
	case "result":
		switch len(types) {
		case 1:
			return &wit.TypeDef{Kind: &wit.Result{OK: types[0]}}, nil
		case 2:
			return &wit.TypeDef{Kind: &wit.Result{OK: types[0], Err: types[1]}}, nil
		}
		return nil, errors.InvalidInput(errors.PhaseLoad, "result takes 1 or 2 type arguments: "+s)
	default:
		return nil, errors.Unsupported(errors.PhaseLoad, "type constructor "+head)
	}
}

// For parses s and returns its codec.
func For(s string) (Value, error) {
	t, err := ParseType(s)
	if err != nil {
		return Value{}, err
	}
	return Of(t)
}

// Of returns the codec of t.
func Of(t wit.Type) (Value, error) {
	w, err := wireOf(t)
	if err != nil {
		return Value{}, err
	}
	v := Value{Wire: w, Type: t}
	switch {
	case isString(t):
		v.raw = rawOf[string](codec.String)
	case isBytes(t):
		v.raw = rawOf[[]byte](codec.Bytes)
	}
	return v, nil
}

func isString(t wit.Type) bool {
	_, ok := t.(wit.String)
	return ok
}

func isBytes(t wit.Type) bool {
	if td, ok := t.(*wit.TypeDef); ok {
		if l, ok := td.Kind.(*wit.List); ok {
			_, ok = l.Type.(wit.U8)
			return ok
		}
	}
	return false
}

// Flat reports whether values of t cross the boundary as a single ABI word
// instead of a serialized buffer.
func Flat(t wit.Type) bool {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32,
		wit.U64, wit.S64, wit.F32, wit.F64:
		return true
	}
	return false
}

func wireOf(t wit.Type) (codec.Wire[any], error) {
	switch t := t.(type) {
	case wit.Bool:
		return dyn(codec.Bool), nil
	case wit.U8:
		return dyn(codec.Uint8), nil
	case wit.S8:
		return dyn(codec.Int8), nil
	case wit.U16:
		return dyn(codec.Uint16), nil
	case wit.S16:
		return dyn(codec.Int16), nil
	case wit.U32:
		return dyn(codec.Uint32), nil
	case wit.S32:
		return dyn(codec.Int32), nil
	case wit.U64:
		return dyn(codec.Uint64), nil
	case wit.S64:
		return dyn(codec.Int64), nil
	case wit.F32:
		return dyn(codec.Float32), nil
	case wit.F64:
		return dyn(codec.Float64), nil
	case wit.String:
		return dyn(codec.String), nil
	case *wit.TypeDef:
		return typeDefWire(t)
	case nil:
		return nil, errors.InvalidInput(errors.PhaseLoad, "missing type")
	default:
		return nil, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("type %s", typeName(t)))
	}
}

func typeDefWire(td *wit.TypeDef) (codec.Wire[any], error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			return dyn(codec.Bytes), nil
		}
		elem, err := wireOf(k.Type)
		if err != nil {
			return nil, err
		}
		return dyn(codec.SequenceOf(elem)), nil

	case *wit.Option:
		elem, err := wireOf(k.Type)
		if err != nil {
			return nil, err
		}
		return option{opt: codec.OptionalOf(elem)}, nil

	case *wit.Tuple:
		elems := make([]codec.Wire[any], len(k.Types))
		for i, et := range k.Types {
			w, err := wireOf(et)
			if err != nil {
				return nil, err
			}
			elems[i] = w
		}
		return tuple{elems: elems}, nil

	case *wit.Record:
		r := record{
			names: make([]string, len(k.Fields)),
			wires: make([]codec.Wire[any], len(k.Fields)),
		}
		for i, f := range k.Fields {
			w, err := wireOf(f.Type)
			if err != nil {
				return nil, annotate(errors.PhaseLoad, err, "field %s", f.Name)
			}
			r.names[i] = f.Name
			r.wires[i] = w
		}
		return r, nil

	case *wit.Enum:
		names := make([]string, len(k.Cases))
		for i, c := range k.Cases {
			names[i] = c.Name
		}
		return dyn(codec.EnumOf(names...)), nil

	case *wit.Variant:
		cases := make([]codec.Case[Case], len(k.Cases))
		for i, c := range k.Cases {
			vc, err := variantCase(c.Name, c.Type)
			if err != nil {
				return nil, annotate(errors.PhaseLoad, err, "case %s", c.Name)
			}
			cases[i] = vc
		}
		return dyn(codec.VariantOf(cases...)), nil

	case *wit.Result:
		ok, err := variantCase(CaseOK, k.OK)
		if err != nil {
			return nil, err
		}
		fail, err := variantCase(CaseErr, k.Err)
		if err != nil {
			return nil, err
		}
		return dyn(codec.VariantOf(ok, fail)), nil

	case wit.Type:
		// alias
		return wireOf(k)

	default:
		return nil, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("type %s", typeName(td)))
	}
}

func variantCase(name string, payload wit.Type) (codec.Case[Case], error) {
	match := func(c Case) bool { return c.Name == name }
	if payload == nil {
		return codec.UnitCase(Case{Name: name}, match), nil
	}
	w, err := wireOf(payload)
	if err != nil {
		return codec.Case[Case]{}, err
	}
	return codec.CaseOf(w,
		func(c Case) (any, bool) { return c.Value, match(c) },
		func(v any) Case { return Case{Name: name, Value: v} },
	), nil
}

func typeName(t any) string {
	if tn, ok := t.(interface{ TypeName() string }); ok {
		if n := tn.TypeName(); n != "" {
			return n
		}
	}
	return fmt.Sprintf("%T", t)
}
