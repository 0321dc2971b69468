package ffi

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/codec"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

// ErrorHandler decodes the application error carried by a CallError status.
// Lift owns buf and must free it.
type ErrorHandler interface {
	Lift(ctx context.Context, lib native.Library, buf native.Buffer) error
}

type nullErrorHandler struct{}

// NullErrorHandler is used for calls that declare no error type. It frees the
// error buffer without reading it.
var NullErrorHandler ErrorHandler = nullErrorHandler{}

func (nullErrorHandler) Lift(ctx context.Context, lib native.Library, buf native.Buffer) error {
	if err := Wrap(lib, buf).Free(ctx); err != nil {
		Logger().Warn("free error buffer", zap.Error(err))
	}
	return errors.UnexpectedCallError()
}

type typedErrors[E error] struct {
	wire codec.Wire[E]
}

// TypedErrors returns a handler that decodes errors of the declared type E.
func TypedErrors[E error](wire codec.Wire[E]) ErrorHandler {
	return typedErrors[E]{wire: wire}
}

func (h typedErrors[E]) Lift(ctx context.Context, lib native.Library, buf native.Buffer) error {
	v, err := liftWith(ctx, lib, buf, func(data []byte) (E, error) {
		return codec.Decode(h.wire, data)
	})
	if err != nil {
		return err
	}
	if any(v) == nil {
		return errors.UnexpectedCallError()
	}
	return v
}

// Check converts a call status into an error. A successful status is never
// inspected further.
func Check(ctx context.Context, lib native.Library, h ErrorHandler, st *native.CallStatus) error {
	switch st.Code {
	case native.CallSuccess:
		return nil
	case native.CallError:
		if h == nil {
			h = NullErrorHandler
		}
		return h.Lift(ctx, lib, st.ErrorBuf)
	case native.CallUnexpectedError:
		if st.ErrorBuf.IsEmpty() {
			if err := Wrap(lib, st.ErrorBuf).Free(ctx); err != nil {
				Logger().Warn("free panic buffer", zap.Error(err))
			}
			return errors.NativePanic("")
		}
		msg, err := liftWith(ctx, lib, st.ErrorBuf, codec.String.Lift)
		if err != nil {
			return errors.New(errors.PhaseCall, errors.KindNativePanic).
				Detail("undecodable panic message").
				Cause(err).
				Build()
		}
		return errors.NativePanic(msg)
	default:
		return errors.UnexpectedCallStatusCode(st.Code)
	}
}

// Do runs fn with a fresh call status and checks it. A transport error from fn
// is returned as is, without looking at the status.
func Do[T any](ctx context.Context, lib native.Library, h ErrorHandler, fn func(*native.CallStatus) (T, error)) (T, error) {
	var st native.CallStatus
	v, err := fn(&st)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := Check(ctx, lib, h, &st); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Invoke calls a native entry point with raw argument words.
func Invoke(ctx context.Context, lib native.Library, fn native.Func, h ErrorHandler, args ...uint64) ([]uint64, error) {
	return Do(ctx, lib, h, func(st *native.CallStatus) ([]uint64, error) {
		return fn(ctx, st, args...)
	})
}
