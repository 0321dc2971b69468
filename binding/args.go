package binding

import (
	"fmt"
	"math"
	"unicode/utf8"

	"go.bytecodealliance.org/wit"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffibridge/errors"
)

// ParseArg parses a command line argument as a value of t. Strings are taken
// verbatim; everything else is read as YAML, so lists and records use flow
// syntax: [1, 2, 3] or {x: 1, y: 2}.
func ParseArg(t wit.Type, s string) (any, error) {
	if _, ok := t.(wit.String); ok {
		return s, nil
	}
	var raw any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return nil, errors.Wrap(errors.PhaseLower, errors.KindInvalidInput, err, "parse argument "+s)
	}
	return Coerce(t, raw)
}

// ParseArgs parses one argument per parameter of sig.
func ParseArgs(sig *Signature, args []string) ([]any, error) {
	if len(args) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseLower,
			fmt.Sprintf("%s takes %d arguments, got %d", sig.Name, len(sig.Params), len(args)))
	}
	out := make([]any, len(args))
	for i, p := range sig.Params {
		v, err := ParseArg(p.Type, args[i])
		if err != nil {
			return nil, annotate(errors.PhaseLower, err, "argument %s", p.Name)
		}
		out[i] = v
	}
	return out, nil
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func toInt[T integer](v any) (T, error) {
	switch x := v.(type) {
	case int:
		return fitSigned[T](int64(x))
	case int64:
		return fitSigned[T](x)
	case uint64:
		return fitUnsigned[T](x)
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x > math.MaxInt64 {
			return 0, errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("%v is not an integer", x))
		}
		return fitSigned[T](int64(x))
	default:
		return 0, mismatch[T](v)
	}
}

func fitSigned[T integer](x int64) (T, error) {
	y := T(x)
	if int64(y) != x || (x < 0) != (y < 0) {
		return 0, errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("%d overflows %T", x, y))
	}
	return y, nil
}

func fitUnsigned[T integer](x uint64) (T, error) {
	y := T(x)
	if uint64(y) != x || y < 0 {
		return 0, errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("%d overflows %T", x, y))
	}
	return y, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, mismatch[float64](v)
	}
}

// Coerce converts a loosely typed value, as produced by a YAML or JSON
// decoder, into the dynamic representation of t.
func Coerce(t wit.Type, v any) (any, error) {
	switch t := t.(type) {
	case wit.Bool:
		return as[bool](v)
	case wit.U8:
		return toInt[uint8](v)
	case wit.S8:
		return toInt[int8](v)
	case wit.U16:
		return toInt[uint16](v)
	case wit.S16:
		return toInt[int16](v)
	case wit.U32:
		return toInt[uint32](v)
	case wit.S32:
		return toInt[int32](v)
	case wit.U64:
		return toInt[uint64](v)
	case wit.S64:
		return toInt[int64](v)
	case wit.F32:
		f, err := toFloat(v)
		return float32(f), err
	case wit.F64:
		return toFloat(v)
	case wit.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		if v == nil {
			return nil, mismatch[string](v)
		}
		return fmt.Sprint(v), nil
	case *wit.TypeDef:
		return coerceTypeDef(t, v)
	default:
		return nil, errors.Unsupported(errors.PhaseLower, fmt.Sprintf("type %s", typeName(t)))
	}
}

func coerceTypeDef(td *wit.TypeDef, v any) (any, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			if s, ok := v.(string); ok {
				return []byte(s), nil
			}
		}
		items, err := as[[]any](v)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			if out[i], err = Coerce(k.Type, item); err != nil {
				return nil, annotate(errors.PhaseLower, err, "[%d]", i)
			}
		}
		if _, ok := k.Type.(wit.U8); ok {
			b := make([]byte, len(out))
			for i, x := range out {
				b[i] = x.(uint8)
			}
			return b, nil
		}
		return out, nil

	case *wit.Option:
		if v == nil {
			return nil, nil
		}
		return Coerce(k.Type, v)

	case *wit.Tuple:
		items, err := as[[]any](v)
		if err != nil {
			return nil, err
		}
		if len(items) != len(k.Types) {
			return nil, errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("tuple of %d, got %d values", len(k.Types), len(items)))
		}
		out := make([]any, len(items))
		for i, item := range items {
			if out[i], err = Coerce(k.Types[i], item); err != nil {
				return nil, annotate(errors.PhaseLower, err, "[%d]", i)
			}
		}
		return out, nil

	case *wit.Record:
		fields, err := as[map[string]any](v)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(k.Fields))
		for _, f := range k.Fields {
			fv, ok := fields[f.Name]
			if !ok {
				return nil, errors.InvalidInput(errors.PhaseLower, "missing record field "+f.Name)
			}
			if out[f.Name], err = Coerce(f.Type, fv); err != nil {
				return nil, annotate(errors.PhaseLower, err, "%s", f.Name)
			}
		}
		return out, nil

	case *wit.Enum:
		name, err := as[string](v)
		if err != nil {
			return nil, err
		}
		for _, c := range k.Cases {
			if c.Name == name {
				return name, nil
			}
		}
		return nil, errors.UnexpectedEnumCase(errors.PhaseLower, name)

	case *wit.Variant:
		cases := make(map[string]wit.Type, len(k.Cases))
		for _, c := range k.Cases {
			cases[c.Name] = c.Type
		}
		return coerceCase(cases, v)

	case *wit.Result:
		return coerceCase(map[string]wit.Type{CaseOK: k.OK, CaseErr: k.Err}, v)

	case wit.Type:
		return Coerce(k, v)

	default:
		return nil, errors.Unsupported(errors.PhaseLower, fmt.Sprintf("type %s", typeName(td)))
	}
}

// coerceCase accepts a bare case name for unit cases or a single-key map
// {name: payload}.
func coerceCase(cases map[string]wit.Type, v any) (any, error) {
	var (
		name    string
		payload any
	)
	switch x := v.(type) {
	case string:
		name = x
	case map[string]any:
		if len(x) != 1 {
			return nil, errors.InvalidInput(errors.PhaseLower, "case must have exactly one key")
		}
		for k, p := range x {
			name, payload = k, p
		}
	default:
		return nil, mismatch[map[string]any](v)
	}

	t, ok := cases[name]
	if !ok {
		return nil, errors.UnexpectedEnumCase(errors.PhaseLower, name)
	}
	if t == nil {
		return Case{Name: name}, nil
	}
	p, err := Coerce(t, payload)
	if err != nil {
		return nil, annotate(errors.PhaseLower, err, "%s", name)
	}
	return Case{Name: name, Value: p}, nil
}

// Plain converts a dynamic value into plain maps, slices and scalars for
// display. Byte lists become strings when they are valid UTF-8.
func Plain(v any) any {
	switch x := v.(type) {
	case Case:
		return map[string]any{x.Name: Plain(x.Value)}
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Plain(item)
		}
		return out
	default:
		return v
	}
}

// Format renders a dynamic value as YAML.
func Format(v any) (string, error) {
	out, err := yaml.Marshal(Plain(v))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// annotate prefixes the detail of err with where it occurred. Bridge errors
// keep their phase and kind; anything else becomes invalid input in phase.
func annotate(phase errors.Phase, err error, format string, args ...any) error {
	where := fmt.Sprintf(format, args...)
	e, ok := errors.AsError(err)
	if !ok {
		return errors.Wrap(phase, errors.KindInvalidInput, err, where)
	}
	detail := where
	if e.Detail != "" {
		detail = where + ": " + e.Detail
	}
	return errors.New(e.Phase, e.Kind).
		Symbol(e.Symbol).
		Value(e.Value).
		Detail("%s", detail).
		Cause(e.Cause).
		Build()
}
