package ffi

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

// Object is the host-side proxy of a native object. Each call that passes the
// object clones the native reference; the original is freed once the proxy is
// destroyed and no call is in flight.
type Object struct {
	lib       native.Library
	clone     native.Func
	free      native.Func
	name      string
	pointer   uint64
	calls     atomic.Int64
	destroyed atomic.Bool
}

// NewObject wraps ptr. clone takes a pointer and returns a new reference;
// free releases one.
func NewObject(lib native.Library, name string, ptr uint64, clone, free native.Func) *Object {
	return &Object{
		lib:     lib,
		name:    name,
		pointer: ptr,
		clone:   clone,
		free:    free,
	}
}

// Pointer returns the wrapped native pointer.
func (o *Object) Pointer() uint64 { return o.pointer }

// Acquire returns a cloned pointer for one call. Every successful Acquire must
// be paired with Release.
func (o *Object) Acquire(ctx context.Context) (uint64, error) {
	for {
		n := o.calls.Load()
		if n <= -1 {
			return 0, errors.New(errors.PhaseLower, errors.KindUnexpectedNullPointer).
				Detail("%s object has already been destroyed", o.name).
				Build()
		}
		if n == math.MaxInt64 {
			return 0, errors.New(errors.PhaseLower, errors.KindBufferOverflow).
				Detail("%s object call counter would overflow", o.name).
				Build()
		}
		if o.calls.CompareAndSwap(n, n+1) {
			break
		}
	}

	res, err := Invoke(ctx, o.lib, o.clone, nil, o.pointer)
	if err != nil {
		_ = o.release(ctx)
		return 0, err
	}
	if len(res) == 0 || res[0] == 0 {
		_ = o.release(ctx)
		return 0, errors.UnexpectedNullPointer(errors.PhaseLift)
	}
	return res[0], nil
}

// Release ends a call started by Acquire.
func (o *Object) Release(ctx context.Context) error {
	return o.release(ctx)
}

// Destroy marks the proxy destroyed. The native object is freed now if no
// call is in flight, otherwise when the last call releases it. Destroy is
// idempotent.
func (o *Object) Destroy(ctx context.Context) error {
	if !o.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	return o.release(ctx)
}

func (o *Object) release(ctx context.Context) error {
	if o.calls.Add(-1) != -1 {
		return nil
	}
	_, err := Invoke(ctx, o.lib, o.free, nil, o.pointer)
	return err
}
