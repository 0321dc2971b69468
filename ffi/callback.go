package ffi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/handle"
	"github.com/wippyai/ffibridge/native"
)

// CallbackFree is the method index native code uses to release a callback
// handle.
const CallbackFree int32 = 0

// CallbackMethod implements one method of a callback interface. args holds
// the serialized arguments and the result is the serialized return value.
type CallbackMethod[T any] func(ctx context.Context, obj T, args []byte) ([]byte, error)

// VTable dispatches calls from native code to Go objects registered in a
// handle table. Method n (1-based) is methods[n-1]; method 0 frees the handle.
type VTable[T any] struct {
	table   *handle.Table[T]
	lowerFn func(error) ([]byte, bool)
	methods []CallbackMethod[T]
}

// NewVTable returns a dispatcher over table.
func NewVTable[T any](table *handle.Table[T], methods ...CallbackMethod[T]) *VTable[T] {
	return &VTable[T]{table: table, methods: methods}
}

// WithErrors sets the serializer for declared errors. Errors it does not
// recognize are reported as unexpected errors.
func (v *VTable[T]) WithErrors(lower func(error) ([]byte, bool)) *VTable[T] {
	v.lowerFn = lower
	return v
}

// Invoke runs method on the object behind h and returns the status code and
// its payload: the result on success, the serialized error for CallError,
// and a UTF-8 message for CallUnexpectedError.
func (v *VTable[T]) Invoke(ctx context.Context, h uint64, method int32, args []byte) (code int8, out []byte) {
	if method == CallbackFree {
		if _, err := v.table.Remove(handle.Handle(h)); err != nil {
			return native.CallUnexpectedError, []byte(err.Error())
		}
		return native.CallSuccess, nil
	}
	if method < 0 || int(method) > len(v.methods) {
		return native.CallUnexpectedError, fmt.Appendf(nil, "unknown callback method %d", method)
	}
	obj, err := v.table.Get(handle.Handle(h))
	if err != nil {
		return native.CallUnexpectedError, []byte(err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			Logger().Error("callback panicked", zap.Uint64("handle", h), zap.Int32("method", method), zap.Any("panic", r))
			code, out = native.CallUnexpectedError, fmt.Append(nil, r)
		}
	}()

	res, err := v.methods[method-1](ctx, obj, args)
	if err != nil {
		if v.lowerFn != nil {
			if data, ok := v.lowerFn(err); ok {
				return native.CallError, data
			}
		}
		return native.CallUnexpectedError, []byte(err.Error())
	}
	return native.CallSuccess, res
}
