package async

import (
	"context"
	goerrors "errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/ffi"
	"github.com/wippyai/ffibridge/handle"
	"github.com/wippyai/ffibridge/native"
)

// Future describes one call of a native async function. F is the raw result
// returned by Complete and T the lifted result.
type Future[F, T any] struct {
	// Start begins the operation and returns its handle.
	Start func(ctx context.Context) (native.FutureHandle, error)
	Poll  native.PollFunc
	// Complete fetches the result of a ready future.
	Complete func(ctx context.Context, fut native.FutureHandle, st *native.CallStatus) (F, error)
	Free     native.FreeFunc
	Lift     func(F) (T, error)
	// Errors decodes application errors reported by Complete. Nil means the
	// function declares none.
	Errors ffi.ErrorHandler
	// Discard releases a raw result nobody is waiting for, such as a
	// returned buffer. Optional.
	Discard func(ctx context.Context, raw F)
	Name    string
}

// Bridge owns the continuation table shared by all sessions of one library.
type Bridge struct {
	lib      native.Library
	wakers   *handle.Table[chan int8]
	logger   *zap.Logger
	observer Observer
	sessions sync.WaitGroup
	active   atomic.Int64
	mu       sync.Mutex
	closed   bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithObserver reports session state transitions.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// NewBridge creates a bridge for lib.
func NewBridge(lib native.Library, opts ...Option) *Bridge {
	b := &Bridge{
		lib:    lib,
		wakers: handle.NewTable[chan int8](),
		logger: Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Active returns the number of sessions whose future has not been freed yet,
// detached ones included.
func (b *Bridge) Active() int {
	return int(b.active.Load())
}

// Close refuses new sessions, then blocks until every open session, detached
// ones included, has been freed or ctx ends. It may be called more than once.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire reserves a session slot before a future is started. The slot is
// released when the session is freed.
func (b *Bridge) acquire(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New(errors.PhaseAsync, errors.KindInvalidInput).
			Symbol(name).
			Detail("bridge closed").
			Build()
	}
	b.sessions.Add(1)
	return nil
}

// continuation is handed to every poll call. It may run on any goroutine.
func (b *Bridge) continuation(data uint64, poll int8) {
	wake, err := b.wakers.Get(handle.Handle(data))
	if err != nil {
		b.logger.Warn("continuation for unknown session", zap.Uint64("token", data), zap.Int8("poll", poll))
		return
	}
	select {
	case wake <- poll:
	default:
		b.logger.Warn("duplicate continuation", zap.Uint64("token", data), zap.Int8("poll", poll))
	}
}

// Call runs f to completion. See the package documentation for the protocol
// and for what happens when ctx ends first.
func Call[F, T any](ctx context.Context, b *Bridge, f Future[F, T]) (T, error) {
	var zero T

	if err := b.acquire(f.Name); err != nil {
		return zero, err
	}
	fut, err := f.Start(ctx)
	if err != nil {
		b.sessions.Done()
		return zero, err
	}
	s := b.open(f.Name, fut)

	detached := false
	defer func() {
		if !detached {
			s.close(ctx, f.Free)
		}
	}()

	if err := s.wait(ctx, f.Poll); err != nil {
		if ctx.Err() != nil && goerrors.Is(err, ctx.Err()) {
			detached = true
			drain(ctx, b, s, f)
		}
		return zero, err
	}

	raw, err := complete(ctx, b, s, f)
	if err != nil {
		return zero, err
	}
	return f.Lift(raw)
}

func complete[F, T any](ctx context.Context, b *Bridge, s *session, f Future[F, T]) (F, error) {
	raw, err := ffi.Do(ctx, b.lib, f.Errors, func(st *native.CallStatus) (F, error) {
		return f.Complete(ctx, s.fut, st)
	})
	s.set(StateCompleted)
	return raw, err
}

// drain finishes an abandoned session in the background.
func drain[F, T any](parent context.Context, b *Bridge, s *session, f Future[F, T]) {
	b.logger.Warn("async call abandoned, draining in background",
		zap.String("fn", s.name), zap.Uint64("future", uint64(s.fut)), zap.Int("polls", s.polls))

	go func() {
		ctx := context.WithoutCancel(parent)
		defer s.close(ctx, f.Free)

		if err := s.wait(ctx, f.Poll); err != nil {
			b.logger.Warn("drain poll failed", zap.String("fn", s.name), zap.Error(err))
			return
		}
		raw, err := complete(ctx, b, s, f)
		if err != nil {
			b.logger.Debug("drained call failed", zap.String("fn", s.name), zap.Error(err))
			return
		}
		if f.Discard != nil {
			f.Discard(ctx, raw)
		}
	}()
}
