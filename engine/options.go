package engine

import "go.uber.org/zap"

type options struct {
	logger           *zap.Logger
	namespace        string
	memoryLimitPages uint32
	wasi             bool
}

// Option configures how a library is loaded.
type Option func(*options)

// WithNamespace sets the namespace the library's symbols are derived from.
// Required.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithMemoryLimitPages caps linear memory in 64KiB pages.
// 0 means the wazero default (65536 pages = 4GiB).
// 256 = 16MiB, 1024 = 64MiB, 4096 = 256MiB.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.memoryLimitPages = pages }
}

// WithLogger sets the library logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWASI instantiates wasi_snapshot_preview1 before the library, for
// native code built against a WASI target.
func WithWASI(enabled bool) Option {
	return func(o *options) { o.wasi = enabled }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	return o
}
