package runtime

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/async"
	"github.com/wippyai/ffibridge/binding"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/ffi"
	"github.com/wippyai/ffibridge/handle"
	"github.com/wippyai/ffibridge/internal/telemetry"
	"github.com/wippyai/ffibridge/native"
)

// Runtime ties a loaded native library to the state shared by its calls:
// the async bridge, host handle tables, logging and tracing.
type Runtime struct {
	lib      native.Library
	bridge   *async.Bridge
	logger   *zap.Logger
	provider trace.TracerProvider
	tracer   trace.Tracer
	observer async.Observer
	manifest *binding.Manifest
	tables   []namedTable
	closers  []func(context.Context) error
	// namespace labels spans
	namespace string
	mu        sync.Mutex
	closed    bool
}

type namedTable struct {
	close func() error
	name  string
}

// New creates a runtime for lib.
func New(lib native.Library, opts ...Option) (*Runtime, error) {
	if lib == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "library is nil")
	}

	r := &Runtime{
		lib:    lib,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tracer = telemetry.Tracer(r.provider)
	r.bridge = async.NewBridge(lib,
		async.WithLogger(r.logger.Named("async")),
		async.WithObserver(r.observe),
	)
	return r, nil
}

// Library returns the native library.
func (r *Runtime) Library() native.Library {
	return r.lib
}

// Bridge returns the async bridge shared by every async call of the runtime.
func (r *Runtime) Bridge() *async.Bridge {
	return r.bridge
}

// Manifest returns the declared signatures, or nil.
func (r *Runtime) Manifest() *binding.Manifest {
	return r.manifest
}

// Logger returns the runtime logger.
func (r *Runtime) Logger() *zap.Logger {
	return r.logger
}

func (r *Runtime) observe(name string, state async.State) {
	r.logger.Debug("async session", zap.String("fn", name), zap.Stringer("state", state))
	if r.observer != nil {
		r.observer(name, state)
	}
}

func (r *Runtime) span(ctx context.Context, name string, isAsync bool) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		telemetry.StringAttr(telemetry.AttrFunction, name),
		telemetry.BoolAttr(telemetry.AttrAsync, isAsync),
	}
	if r.namespace != "" {
		attrs = append(attrs, telemetry.StringAttr(telemetry.AttrNamespace, r.namespace))
	}
	return r.tracer.Start(ctx, "ffi "+name, trace.WithAttributes(attrs...))
}

func (r *Runtime) finish(span trace.Span, name string, err error) {
	telemetry.End(span, err)
	switch {
	case err == nil:
		r.logger.Debug("call", zap.String("fn", name))
	case errors.Internal(err):
		r.logger.Warn("call failed", zap.String("fn", name), zap.Error(err))
	default:
		r.logger.Debug("call returned error", zap.String("fn", name), zap.Error(err))
	}
}

// Call runs a status-checked native call. errs decodes application errors;
// nil means the function declares none.
func Call[T any](ctx context.Context, r *Runtime, name string, errs ffi.ErrorHandler, fn func(*native.CallStatus) (T, error)) (T, error) {
	ctx, span := r.span(ctx, name, false)
	v, err := ffi.Do(ctx, r.lib, errs, fn)
	r.finish(span, name, err)
	return v, err
}

// CallAsync drives a native future to completion on the runtime's bridge.
func CallAsync[F, T any](ctx context.Context, r *Runtime, f async.Future[F, T]) (T, error) {
	ctx, span := r.span(ctx, f.Name, true)
	v, err := async.Call(ctx, r.bridge, f)
	r.finish(span, f.Name, err)
	return v, err
}

// Invoke calls a function declared in the manifest with dynamic arguments,
// sync or async as declared.
func (r *Runtime) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	if r.manifest == nil {
		return nil, errors.InvalidInput(errors.PhaseCall, "no manifest loaded")
	}
	sig, err := r.manifest.Lookup(name)
	if err != nil {
		return nil, err
	}

	ctx, span := r.span(ctx, sig.Name, sig.Async)
	var v any
	if sig.Async {
		v, err = binding.InvokeAsync(ctx, r.bridge, r.lib, sig, args)
	} else {
		v, err = binding.Invoke(ctx, r.lib, sig, args)
	}
	r.finish(span, sig.Name, err)
	return v, err
}

// InvokeText is Invoke with arguments given as text and parsed against the
// declared parameter types.
func (r *Runtime) InvokeText(ctx context.Context, name string, args ...string) (any, error) {
	if r.manifest == nil {
		return nil, errors.InvalidInput(errors.PhaseCall, "no manifest loaded")
	}
	sig, err := r.manifest.Lookup(name)
	if err != nil {
		return nil, err
	}
	values, err := binding.ParseArgs(sig, args)
	if err != nil {
		return nil, err
	}
	return r.Invoke(ctx, sig.Name, values...)
}

// NewCallbackTable creates a handle table owned by r. Table events are
// logged at debug and the table is closed with the runtime.
func NewCallbackTable[T any](r *Runtime, name string) *handle.Table[T] {
	t := handle.NewTable[T]()
	logger := r.logger.With(zap.String("table", name))
	t.Subscribe(handle.ObserverFunc(func(e handle.Event) {
		logger.Debug("handle", zap.Stringer("event", e.Type), zap.Uint64("handle", uint64(e.Handle)))
	}))

	r.mu.Lock()
	r.tables = append(r.tables, namedTable{name: name, close: t.Close})
	r.mu.Unlock()
	return t
}

// Close refuses new async calls and waits for open sessions, then closes the
// runtime's handle tables and releases resources the runtime owns. If ctx
// ends before the sessions drain, nothing is released and ctx's error is
// returned; call Close again to finish.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tables := r.tables
	r.tables = nil
	r.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if err := r.bridge.Close(ctx); err != nil {
		r.logger.Warn("close deferred, async sessions still draining", zap.Int("active", r.bridge.Active()))
		r.mu.Lock()
		r.closed = false
		r.tables = append(tables, r.tables...)
		r.mu.Unlock()
		return err
	}
	for _, t := range tables {
		if err := t.close(); err != nil {
			r.logger.Warn("close handle table", zap.String("table", t.name), zap.Error(err))
			keep(err)
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		keep(r.closers[i](context.WithoutCancel(ctx)))
	}
	return first
}
