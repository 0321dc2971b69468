package ffi

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/native"
)

// Buffer is a native buffer owned by the host.
type Buffer struct {
	lib native.Library
	raw native.Buffer
}

// Wrap takes ownership of raw.
func Wrap(lib native.Library, raw native.Buffer) *Buffer {
	return &Buffer{lib: lib, raw: raw}
}

// Alloc allocates a native buffer with capacity of at least size bytes.
func Alloc(ctx context.Context, lib native.Library, size uint64) (*Buffer, error) {
	raw, err := Do(ctx, lib, nil, func(st *native.CallStatus) (native.Buffer, error) {
		return lib.BufferAlloc(ctx, size, st)
	})
	if err != nil {
		return nil, err
	}
	return Wrap(lib, raw), nil
}

// FromBytes copies data into a new native buffer. Empty data yields the empty
// buffer without a native call.
func FromBytes(ctx context.Context, lib native.Library, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return Wrap(lib, native.Buffer{}), nil
	}
	raw, err := Do(ctx, lib, nil, func(st *native.CallStatus) (native.Buffer, error) {
		return lib.BufferFromBytes(ctx, native.ForeignBytes{Data: data, Len: int32(len(data))}, st)
	})
	if err != nil {
		return nil, err
	}
	return Wrap(lib, raw), nil
}

// Raw returns the ABI value, for passing to a native call.
func (b *Buffer) Raw() native.Buffer { return b.raw }

// Len returns the payload length.
func (b *Buffer) Len() uint64 { return b.raw.Len }

// Capacity returns the allocated capacity.
func (b *Buffer) Capacity() uint64 { return b.raw.Capacity }

// AsHostBytes returns a read-only view of the payload. The view is valid until
// the buffer is freed.
func (b *Buffer) AsHostBytes() ([]byte, error) {
	if b.raw.Len == 0 {
		return nil, nil
	}
	return b.lib.Memory().Read(b.raw.Data, b.raw.Len)
}

// Free releases the buffer. The empty buffer needs no native call; a freed
// Buffer becomes the empty buffer.
func (b *Buffer) Free(ctx context.Context) error {
	if b.raw.Data == 0 {
		return nil
	}
	raw := b.raw
	b.raw = native.Buffer{}
	_, err := Do(ctx, b.lib, nil, func(st *native.CallStatus) (struct{}, error) {
		return struct{}{}, b.lib.BufferFree(ctx, raw, st)
	})
	return err
}

// Reserve grows the buffer so at least additional bytes fit after the payload.
// On success the receiver is invalidated and the returned Buffer owns the data.
func (b *Buffer) Reserve(ctx context.Context, additional uint64) (*Buffer, error) {
	raw, err := Do(ctx, b.lib, nil, func(st *native.CallStatus) (native.Buffer, error) {
		return b.lib.BufferReserve(ctx, b.raw, additional, st)
	})
	if err != nil {
		return nil, err
	}
	b.raw = native.Buffer{}
	return Wrap(b.lib, raw), nil
}

// Lifter lifts a value from its serialized form.
type Lifter[T any] interface {
	Lift([]byte) (T, error)
}

// Lowerer lowers a value to its serialized form.
type Lowerer[T any] interface {
	Lower(T) ([]byte, error)
}

// LiftBuffer lifts a value out of a buffer returned by a native call and
// frees the buffer, whether or not the lift succeeds.
func LiftBuffer[T any](ctx context.Context, lib native.Library, c Lifter[T], raw native.Buffer) (T, error) {
	return liftWith(ctx, lib, raw, c.Lift)
}

// LowerBuffer serializes v into a new native buffer whose ownership passes to
// the callee.
func LowerBuffer[T any](ctx context.Context, lib native.Library, c Lowerer[T], v T) (native.Buffer, error) {
	data, err := c.Lower(v)
	if err != nil {
		return native.Buffer{}, err
	}
	buf, err := FromBytes(ctx, lib, data)
	if err != nil {
		return native.Buffer{}, err
	}
	return buf.Raw(), nil
}

func liftWith[T any](ctx context.Context, lib native.Library, raw native.Buffer, lift func([]byte) (T, error)) (T, error) {
	b := Wrap(lib, raw)
	var (
		v   T
		err error
	)
	data, err := b.AsHostBytes()
	if err == nil {
		v, err = lift(data)
	}
	if freeErr := b.Free(ctx); freeErr != nil {
		if err != nil {
			Logger().Warn("free after failed lift", zap.Error(freeErr), zap.NamedError("lift", err))
		} else {
			err = freeErr
		}
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
