package nativetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

// Future simulates an in-flight native async operation. It answers the first
// Pending polls with PollMaybeReady and later ones with PollReady.
type Future struct {
	lib       *Library
	complete  HandlerFunc
	parked    func()
	handle    native.FutureHandle
	pending   int
	polls     int
	completes int
	frees     int
	deferred  bool
	held      bool
	mu        sync.Mutex
}

// FutureOption configures a Future.
type FutureOption func(*Future)

// Deferred delivers wakes from a separate goroutine, the way a native
// executor thread would.
func Deferred() FutureOption {
	return func(f *Future) { f.deferred = true }
}

// Held parks every wake until Release is called.
func Held() FutureOption {
	return func(f *Future) { f.held = true }
}

// NewFuture registers a future that becomes ready after pending not-ready
// wakes and then produces its result through complete.
func (l *Library) NewFuture(pending int, complete HandlerFunc, opts ...FutureOption) *Future {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextFuture++
	f := &Future{
		lib:      l,
		complete: complete,
		handle:   native.FutureHandle(l.nextFuture),
		pending:  pending,
	}
	for _, opt := range opts {
		opt(f)
	}
	l.futures[f.handle] = f
	return f
}

// Handle returns the future's native handle.
func (f *Future) Handle() native.FutureHandle { return f.handle }

// Polls returns the number of poll calls received.
func (f *Future) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// Completes returns the number of complete calls received.
func (f *Future) Completes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes
}

// Frees returns the number of free calls received.
func (f *Future) Frees() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frees
}

// Release stops holding wakes and delivers a parked one, if any.
func (f *Future) Release() {
	f.mu.Lock()
	f.held = false
	wake := f.parked
	f.parked = nil
	f.mu.Unlock()
	if wake != nil {
		wake()
	}
}

func (f *Future) poll(cont native.ContinuationFunc, data uint64) {
	f.mu.Lock()
	f.polls++
	result := native.PollReady
	if f.polls <= f.pending {
		result = native.PollMaybeReady
	}
	wake := func() { cont(data, result) }
	if f.deferred {
		inline := wake
		wake = func() { go inline() }
	}
	if f.held {
		f.parked = wake
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	wake()
}

// AsyncFunc returns the poll, complete and free entry points shared by all
// futures of this library.
func (l *Library) AsyncFunc(string) (native.AsyncFuncs, error) {
	return native.AsyncFuncs{
		Poll: func(_ context.Context, h native.FutureHandle, cont native.ContinuationFunc, data uint64) error {
			f, err := l.future(h)
			if err != nil {
				return err
			}
			f.poll(cont, data)
			return nil
		},
		Complete: func(ctx context.Context, h native.FutureHandle, st *native.CallStatus) (res []uint64, err error) {
			f, err := l.future(h)
			if err != nil {
				return nil, err
			}
			f.mu.Lock()
			f.completes++
			f.mu.Unlock()
			defer func() {
				if r := recover(); r != nil {
					l.Panic(st, fmt.Sprint(r))
					res = nil
				}
			}()
			return f.complete(ctx, st, nil), nil
		},
		Free: func(_ context.Context, h native.FutureHandle) error {
			f, err := l.future(h)
			if err != nil {
				return err
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.frees++
			if f.frees > 1 {
				return errors.New(errors.PhaseAsync, errors.KindStaleHandle).
					Detail("future %d freed %d times", h, f.frees).
					Build()
			}
			return nil
		},
	}, nil
}

func (l *Library) future(h native.FutureHandle) (*Future, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.futures[h]
	if !ok {
		return nil, errors.New(errors.PhaseAsync, errors.KindStaleHandle).
			Detail("unknown future %d", h).
			Build()
	}
	return f, nil
}
