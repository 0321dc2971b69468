package runtime

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/async"
	"github.com/wippyai/ffibridge/binding"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger. The async bridge and handle tables
// created by the runtime log through it too.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracerProvider sets the provider spans are started on. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runtime) { r.provider = tp }
}

// WithObserver reports async session state transitions.
func WithObserver(o async.Observer) Option {
	return func(r *Runtime) { r.observer = o }
}

// WithManifest declares the signatures available to Invoke.
func WithManifest(m *binding.Manifest) Option {
	return func(r *Runtime) { r.manifest = m }
}

// WithNamespace labels spans with the library namespace.
func WithNamespace(ns string) Option {
	return func(r *Runtime) { r.namespace = ns }
}

// withCloser registers fn to run last in Close.
func withCloser(fn func(context.Context) error) Option {
	return func(r *Runtime) { r.closers = append(r.closers, fn) }
}
