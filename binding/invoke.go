package binding

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/async"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/ffi"
	"github.com/wippyai/ffibridge/native"
)

// AppError is an application error a function reported through its call
// status, decoded with the declared error type.
type AppError struct {
	Value any
	Func  string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Func, e.Value)
}

type appErrors struct {
	value Value
	fn    string
}

func (h appErrors) Lift(ctx context.Context, lib native.Library, buf native.Buffer) error {
	v, err := ffi.LiftBuffer(ctx, lib, h.value, buf)
	if err != nil {
		return err
	}
	return &AppError{Func: h.fn, Value: v}
}

// plan holds the codecs of one signature.
type plan struct {
	sig    *Signature
	params []Value
	result wit.Type
	value  Value
	errors ffi.ErrorHandler
}

func planFor(sig *Signature) (*plan, error) {
	p := &plan{sig: sig, params: make([]Value, len(sig.Params))}
	for i, param := range sig.Params {
		if Flat(param.Type) {
			p.params[i].Type = param.Type
			continue
		}
		v, err := Of(param.Type)
		if err != nil {
			return nil, annotate(errors.PhaseLoad, err, "param %s", param.Name)
		}
		p.params[i] = v
	}

	ok, fail := sig.Returns()
	p.result = ok
	if ok != nil && !Flat(ok) {
		v, err := Of(ok)
		if err != nil {
			return nil, annotate(errors.PhaseLoad, err, "result")
		}
		p.value = v
	}
	if fail != nil {
		v, err := Of(fail)
		if err != nil {
			return nil, annotate(errors.PhaseLoad, err, "error type")
		}
		p.errors = appErrors{value: v, fn: sig.Name}
	}
	return p, nil
}

// lower converts args to ABI words. Buffers lowered before a failure are
// freed, since native code never sees them.
func (p *plan) lower(ctx context.Context, lib native.Library, args []any) ([]uint64, error) {
	if len(args) != len(p.params) {
		return nil, errors.InvalidInput(errors.PhaseLower,
			fmt.Sprintf("%s takes %d arguments, got %d", p.sig.Name, len(p.params), len(args)))
	}

	var (
		words   []uint64
		lowered []native.Buffer
	)
	for i, param := range p.params {
		var err error
		if param.Wire == nil {
			var w uint64
			if w, err = toWord(param.Type, args[i]); err == nil {
				words = append(words, w)
			}
		} else {
			var buf native.Buffer
			if buf, err = ffi.LowerBuffer(ctx, lib, param, args[i]); err == nil {
				lowered = append(lowered, buf)
				words = append(words, buf.Words()...)
			}
		}
		if err != nil {
			for _, buf := range lowered {
				if ferr := ffi.Wrap(lib, buf).Free(ctx); ferr != nil {
					ffi.Logger().Warn("free argument buffer", zap.Error(ferr))
				}
			}
			return nil, annotate(errors.PhaseLower, err, "argument %s", p.sig.Params[i].Name)
		}
	}
	return words, nil
}

func (p *plan) lift(ctx context.Context, lib native.Library, res []uint64) (any, error) {
	switch {
	case p.result == nil:
		return nil, nil
	case p.value.Wire == nil:
		if len(res) < 1 {
			return nil, errors.InvalidInput(errors.PhaseLift, p.sig.Name+" returned no value")
		}
		return fromWord(p.result, res[0]), nil
	default:
		if len(res) < 3 {
			return nil, errors.InvalidInput(errors.PhaseLift, p.sig.Name+" returned no buffer")
		}
		return ffi.LiftBuffer(ctx, lib, p.value, native.BufferFromWords(res))
	}
}

// discard frees a buffer result nobody will lift.
func (p *plan) discard(ctx context.Context, lib native.Library, res []uint64) {
	if p.value.Wire == nil || len(res) < 3 {
		return
	}
	if err := ffi.Wrap(lib, native.BufferFromWords(res)).Free(ctx); err != nil {
		ffi.Logger().Warn("free discarded result", zap.String("fn", p.sig.Name), zap.Error(err))
	}
}

// Invoke calls a sync function with dynamic arguments.
func Invoke(ctx context.Context, lib native.Library, sig *Signature, args []any) (any, error) {
	if sig.Async {
		return nil, errors.InvalidInput(errors.PhaseCall, sig.Name+" is async")
	}
	fn, err := lib.Func(sig.Name)
	if err != nil {
		return nil, err
	}
	p, err := planFor(sig)
	if err != nil {
		return nil, err
	}
	words, err := p.lower(ctx, lib, args)
	if err != nil {
		return nil, err
	}
	res, err := ffi.Invoke(ctx, lib, fn, p.errors, words...)
	if err != nil {
		return nil, err
	}
	return p.lift(ctx, lib, res)
}

// InvokeAsync starts an async function with dynamic arguments and drives it
// to completion on b. The start entry point returns the future handle.
func InvokeAsync(ctx context.Context, b *async.Bridge, lib native.Library, sig *Signature, args []any) (any, error) {
	if !sig.Async {
		return nil, errors.InvalidInput(errors.PhaseCall, sig.Name+" is not async")
	}
	start, err := lib.Func(sig.Name)
	if err != nil {
		return nil, err
	}
	funcs, err := lib.AsyncFunc(sig.Name)
	if err != nil {
		return nil, err
	}
	p, err := planFor(sig)
	if err != nil {
		return nil, err
	}
	words, err := p.lower(ctx, lib, args)
	if err != nil {
		return nil, err
	}

	return async.Call(ctx, b, async.Future[[]uint64, any]{
		Name: sig.Name,
		Start: func(ctx context.Context) (native.FutureHandle, error) {
			res, err := ffi.Invoke(ctx, lib, start, nil, words...)
			if err != nil {
				return 0, err
			}
			if len(res) != 1 {
				return 0, errors.InvalidInput(errors.PhaseAsync, sig.Name+" did not return a future handle")
			}
			return native.FutureHandle(res[0]), nil
		},
		Poll:     funcs.Poll,
		Complete: funcs.Complete,
		Free:     funcs.Free,
		Errors:   p.errors,
		Lift: func(raw []uint64) (any, error) {
			return p.lift(ctx, lib, raw)
		},
		Discard: func(ctx context.Context, raw []uint64) {
			p.discard(ctx, lib, raw)
		},
	})
}

func as[T any](v any) (T, error) {
	x, ok := v.(T)
	if !ok {
		return x, mismatch[T](v)
	}
	return x, nil
}

func toWord(t wit.Type, v any) (uint64, error) {
	switch t.(type) {
	case wit.Bool:
		b, err := as[bool](v)
		if b {
			return 1, err
		}
		return 0, err
	case wit.U8:
		x, err := as[uint8](v)
		return uint64(x), err
	case wit.S8:
		x, err := as[int8](v)
		return api.EncodeI32(int32(x)), err
	case wit.U16:
		x, err := as[uint16](v)
		return uint64(x), err
	case wit.S16:
		x, err := as[int16](v)
		return api.EncodeI32(int32(x)), err
	case wit.U32:
		x, err := as[uint32](v)
		return api.EncodeU32(x), err
	case wit.S32:
		x, err := as[int32](v)
		return api.EncodeI32(x), err
	case wit.U64:
		return as[uint64](v)
	case wit.S64:
		x, err := as[int64](v)
		return api.EncodeI64(x), err
	case wit.F32:
		x, err := as[float32](v)
		return api.EncodeF32(x), err
	case wit.F64:
		x, err := as[float64](v)
		return api.EncodeF64(x), err
	default:
		return 0, errors.Unsupported(errors.PhaseLower, fmt.Sprintf("%T as a single word", t))
	}
}

func fromWord(t wit.Type, w uint64) any {
	switch t.(type) {
	case wit.Bool:
		return w != 0
	case wit.U8:
		return uint8(w)
	case wit.S8:
		return int8(api.DecodeI32(w))
	case wit.U16:
		return uint16(w)
	case wit.S16:
		return int16(api.DecodeI32(w))
	case wit.U32:
		return api.DecodeU32(w)
	case wit.S32:
		return api.DecodeI32(w)
	case wit.U64:
		return w
	case wit.S64:
		return int64(w)
	case wit.F32:
		return api.DecodeF32(w)
	case wit.F64:
		return api.DecodeF64(w)
	default:
		return w
	}
}
