package binding

import (
	"fmt"

	"github.com/wippyai/ffibridge/codec"
	"github.com/wippyai/ffibridge/errors"
)

// typed adapts a static wire to any-valued values of exactly type T.
type typed[T any] struct {
	w codec.Wire[T]
}

func dyn[T any](w codec.Wire[T]) codec.Wire[any] {
	return typed[T]{w: w}
}

func mismatch[T any](v any) error {
	var zero T
	return errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("expected %T, got %T", zero, v))
}

func (t typed[T]) Read(data []byte, off int) (any, int, error) {
	v, n, err := t.w.Read(data, off)
	if err != nil {
		return nil, 0, err
	}
	return v, n, nil
}

func (t typed[T]) Write(v any, data []byte, off int) (int, error) {
	x, ok := v.(T)
	if !ok {
		return 0, mismatch[T](v)
	}
	return t.w.Write(x, data, off)
}

func (t typed[T]) Size(v any) int {
	x, _ := v.(T)
	return t.w.Size(x)
}

// option maps nil to absent and anything else to present.
type option struct {
	opt codec.Optional[any]
}

func (o option) Read(data []byte, off int) (any, int, error) {
	p, n, err := o.opt.Read(data, off)
	if err != nil || p == nil {
		return nil, n, err
	}
	return *p, n, nil
}

func (o option) Write(v any, data []byte, off int) (int, error) {
	if v == nil {
		return o.opt.Write(nil, data, off)
	}
	return o.opt.Write(&v, data, off)
}

func (o option) Size(v any) int {
	if v == nil {
		return o.opt.Size(nil)
	}
	return o.opt.Size(&v)
}

// tuple is a fixed-length []any with one wire per position and no count prefix.
type tuple struct {
	elems []codec.Wire[any]
}

func (t tuple) Read(data []byte, off int) (any, int, error) {
	out := make([]any, len(t.elems))
	pos := off
	for i, w := range t.elems {
		v, n, err := w.Read(data, pos)
		if err != nil {
			return nil, 0, err
		}
		out[i] = v
		pos += n
	}
	return out, pos - off, nil
}

func (t tuple) Write(v any, data []byte, off int) (int, error) {
	vals, ok := v.([]any)
	if !ok {
		return 0, mismatch[[]any](v)
	}
	if len(vals) != len(t.elems) {
		return 0, errors.InvalidInput(errors.PhaseLower, fmt.Sprintf("tuple of %d, got %d values", len(t.elems), len(vals)))
	}
	pos := off
	for i, w := range t.elems {
		n, err := w.Write(vals[i], data, pos)
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos - off, nil
}

func (t tuple) Size(v any) int {
	vals, _ := v.([]any)
	n := 0
	for i, w := range t.elems {
		if i < len(vals) {
			n += w.Size(vals[i])
		}
	}
	return n
}

// record is a map[string]any written in field declaration order.
type record struct {
	names []string
	wires []codec.Wire[any]
}

func (r record) Read(data []byte, off int) (any, int, error) {
	out := make(map[string]any, len(r.names))
	pos := off
	for i, w := range r.wires {
		v, n, err := w.Read(data, pos)
		if err != nil {
			return nil, 0, err
		}
		out[r.names[i]] = v
		pos += n
	}
	return out, pos - off, nil
}

func (r record) Write(v any, data []byte, off int) (int, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		return 0, mismatch[map[string]any](v)
	}
	pos := off
	for i, w := range r.wires {
		fv, ok := fields[r.names[i]]
		if !ok {
			return 0, errors.InvalidInput(errors.PhaseLower, "missing record field "+r.names[i])
		}
		n, err := w.Write(fv, data, pos)
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos - off, nil
}

func (r record) Size(v any) int {
	fields, _ := v.(map[string]any)
	n := 0
	for i, w := range r.wires {
		n += w.Size(fields[r.names[i]])
	}
	return n
}
