package codec

import (
	"fmt"

	"github.com/wippyai/ffibridge/errors"
)

// Enum encodes a fieldless enum as its 1-based i32 discriminant.
type Enum[T comparable] struct {
	cases []T
}

// EnumOf returns the enum codec; cases are listed in declaration order.
func EnumOf[T comparable](cases ...T) Enum[T] {
	return Enum[T]{cases: cases}
}

func (e Enum[T]) Lift(data []byte) (T, error) { return Decode[T](e, data) }

func (e Enum[T]) Lower(v T) ([]byte, error) { return Encode[T](e, v) }

func (e Enum[T]) Size(T) int { return 4 }

func (e Enum[T]) Read(data []byte, off int) (T, int, error) {
	d, _, err := Int32.Read(data, off)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	if d < 1 || int(d) > len(e.cases) {
		var zero T
		return zero, 0, errors.UnexpectedEnumCase(errors.PhaseLift, d)
	}
	return e.cases[d-1], 4, nil
}

func (e Enum[T]) Write(v T, data []byte, off int) (int, error) {
	for i, c := range e.cases {
		if c == v {
			return Int32.Write(int32(i+1), data, off)
		}
	}
	return 0, errors.UnexpectedEnumCase(errors.PhaseLower, v)
}

// Case is one case of a variant codec over T.
type Case[T any] struct {
	read   func(data []byte, off int) (T, int, error)
	write  func(v T, data []byte, off int) (int, error)
	size   func(v T) (int, bool)
	unwind func(v T, data []byte, off int)
}

// CaseOf describes a case carrying a payload of type P. match extracts the
// payload when v is this case; build reconstructs v from a payload.
func CaseOf[T, P any](payload Wire[P], match func(T) (P, bool), build func(P) T) Case[T] {
	return Case[T]{
		read: func(data []byte, off int) (T, int, error) {
			p, n, err := payload.Read(data, off)
			if err != nil {
				var zero T
				return zero, 0, err
			}
			return build(p), n, nil
		},
		write: func(v T, data []byte, off int) (int, error) {
			p, _ := match(v)
			return payload.Write(p, data, off)
		},
		size: func(v T) (int, bool) {
			p, ok := match(v)
			if !ok {
				return 0, false
			}
			return payload.Size(p), true
		},
		unwind: func(v T, data []byte, off int) {
			p, _ := match(v)
			unwind(payload, p, data, off)
		},
	}
}

// UnitCase describes a case without payload.
func UnitCase[T any](value T, match func(T) bool) Case[T] {
	return Case[T]{
		read: func([]byte, int) (T, int, error) {
			return value, 0, nil
		},
		write: func(T, []byte, int) (int, error) {
			return 0, nil
		},
		size: func(v T) (int, bool) {
			return 0, match(v)
		},
		unwind: func(T, []byte, int) {},
	}
}

// Variant encodes a data-carrying enum as its 1-based i32 discriminant
// followed by the matching case's payload. Error enums use it too.
type Variant[T any] struct {
	cases []Case[T]
}

// VariantOf returns the variant codec; cases are listed in declaration order.
func VariantOf[T any](cases ...Case[T]) Variant[T] {
	return Variant[T]{cases: cases}
}

func (v Variant[T]) Lift(data []byte) (T, error) { return Decode[T](v, data) }

func (v Variant[T]) Lower(x T) ([]byte, error) { return Encode[T](v, x) }

func (v Variant[T]) Size(x T) int {
	for _, c := range v.cases {
		if n, ok := c.size(x); ok {
			return 4 + n
		}
	}
	return 4
}

func (v Variant[T]) Read(data []byte, off int) (T, int, error) {
	d, _, err := Int32.Read(data, off)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	if d < 1 || int(d) > len(v.cases) {
		var zero T
		return zero, 0, errors.UnexpectedEnumCase(errors.PhaseLift, d)
	}
	x, n, err := v.cases[d-1].read(data, off+4)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	return x, 4 + n, nil
}

func (v Variant[T]) Write(x T, data []byte, off int) (int, error) {
	for i, c := range v.cases {
		if _, ok := c.size(x); !ok {
			continue
		}
		if _, err := Int32.Write(int32(i+1), data, off); err != nil {
			return 0, err
		}
		n, err := c.write(x, data, off+4)
		if err != nil {
			return 0, err
		}
		return 4 + n, nil
	}
	return 0, errors.UnexpectedEnumCase(errors.PhaseLower, fmt.Sprintf("%T", x))
}

func (v Variant[T]) unwind(x T, data []byte, off int) {
	for _, c := range v.cases {
		if _, ok := c.size(x); ok {
			c.unwind(x, data, off+4)
			return
		}
	}
}
