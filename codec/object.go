package codec

import (
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/handle"
)

// Object passes a native object by pointer. Lift wraps the pointer in a Go
// proxy; lower extracts it. No bytes are copied.
type Object[T any] struct {
	wrap   func(ptr uint64) T
	unwrap func(T) uint64
}

// ObjectOf returns the object codec for proxies built by wrap.
func ObjectOf[T any](wrap func(ptr uint64) T, unwrap func(T) uint64) Object[T] {
	return Object[T]{wrap: wrap, unwrap: unwrap}
}

func (o Object[T]) Lift(ptr uint64) (T, error) {
	if ptr == 0 {
		var zero T
		return zero, errors.UnexpectedNullPointer(errors.PhaseLift)
	}
	return o.wrap(ptr), nil
}

func (o Object[T]) Lower(v T) (uint64, error) {
	ptr := o.unwrap(v)
	if ptr == 0 {
		return 0, errors.UnexpectedNullPointer(errors.PhaseLower)
	}
	return ptr, nil
}

func (o Object[T]) Size(T) int { return 8 }

func (o Object[T]) Read(data []byte, off int) (T, int, error) {
	ptr, n, err := Uint64.Read(data, off)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	v, err := o.Lift(ptr)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	return v, n, nil
}

func (o Object[T]) Write(v T, data []byte, off int) (int, error) {
	ptr, err := o.Lower(v)
	if err != nil {
		return 0, err
	}
	return Uint64.Write(ptr, data, off)
}

// Callback passes a Go object to native code as a handle in table. Lowering
// inserts the object; lifting resolves the handle. When a later part of the
// same encode fails, the inserted handle is revoked.
type Callback[T any] struct {
	table *handle.Table[T]
}

// CallbackOf returns the callback codec over table.
func CallbackOf[T any](table *handle.Table[T]) Callback[T] {
	return Callback[T]{table: table}
}

func (c Callback[T]) Lift(h uint64) (T, error) {
	return c.table.Get(handle.Handle(h))
}

func (c Callback[T]) Lower(v T) (uint64, error) {
	return uint64(c.table.Insert(v)), nil
}

func (c Callback[T]) Size(T) int { return 8 }

func (c Callback[T]) Read(data []byte, off int) (T, int, error) {
	h, n, err := Uint64.Read(data, off)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	v, err := c.Lift(h)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	return v, n, nil
}

func (c Callback[T]) Write(v T, data []byte, off int) (int, error) {
	if err := room(data, off, 8); err != nil {
		return 0, err
	}
	h, _ := c.Lower(v)
	return Uint64.Write(h, data, off)
}

func (c Callback[T]) unwind(_ T, data []byte, off int) {
	if h, _, err := Uint64.Read(data, off); err == nil {
		_ = c.table.Revoke(handle.Handle(h))
	}
}
