package async

import (
	"context"
	goerrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/ffibridge/codec"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/ffi"
	"github.com/wippyai/ffibridge/native"
	"github.com/wippyai/ffibridge/native/nativetest"
)

func computeCall(t *testing.T, lib *nativetest.Library, fut *nativetest.Future) Future[[]uint64, uint64] {
	t.Helper()
	funcs, err := lib.AsyncFunc("compute")
	if err != nil {
		t.Fatal(err)
	}
	return Future[[]uint64, uint64]{
		Name: "compute",
		Start: func(context.Context) (native.FutureHandle, error) {
			return fut.Handle(), nil
		},
		Poll:     funcs.Poll,
		Complete: funcs.Complete,
		Free:     funcs.Free,
		Lift: func(raw []uint64) (uint64, error) {
			return raw[0], nil
		},
	}
}

func returns(v uint64) nativetest.HandlerFunc {
	return func(context.Context, *native.CallStatus, []uint64) []uint64 {
		return []uint64{v}
	}
}

func TestCall_ReadyOnFirstPoll(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(0, returns(42))
	b := NewBridge(lib)

	got, err := Call(context.Background(), b, computeCall(t, lib, fut))
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if fut.Polls() != 1 || fut.Completes() != 1 || fut.Frees() != 1 {
		t.Errorf("polls=%d completes=%d frees=%d", fut.Polls(), fut.Completes(), fut.Frees())
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d", b.Active())
	}
}

func TestCall_PollsUntilReady(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []nativetest.FutureOption
	}{
		{name: "inline wakes"},
		{name: "wakes from another goroutine", opts: []nativetest.FutureOption{nativetest.Deferred()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			const notReady = 5
			lib := nativetest.New()
			var fut *nativetest.Future
			fut = lib.NewFuture(notReady, func(context.Context, *native.CallStatus, []uint64) []uint64 {
				if fut.Polls() != notReady+1 {
					t.Errorf("complete ran after %d polls, before READY", fut.Polls())
				}
				return []uint64{7}
			}, tt.opts...)

			got, err := Call(context.Background(), NewBridge(lib), computeCall(t, lib, fut))
			if err != nil {
				t.Fatal(err)
			}
			if got != 7 {
				t.Errorf("result = %d", got)
			}
			if fut.Polls() != notReady+1 {
				t.Errorf("polls = %d, want %d", fut.Polls(), notReady+1)
			}
			if fut.Frees() != 1 {
				t.Errorf("frees = %d, want 1", fut.Frees())
			}
		})
	}
}

func TestCall_StateTransitions(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(2, returns(1))

	var states []State
	b := NewBridge(lib, WithObserver(func(name string, s State) {
		if name != "compute" {
			t.Errorf("observer name = %q", name)
		}
		states = append(states, s)
	}))

	if _, err := Call(context.Background(), b, computeCall(t, lib, fut)); err != nil {
		t.Fatal(err)
	}
	want := []State{StateStarted, StateWaiting, StateReady, StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

type fetchError struct{ Code int32 }

func (e fetchError) Error() string { return "fetch failed" }

var fetchErrorCodec = codec.RecordOf(
	codec.FieldOf("code", codec.Int32, func(e *fetchError) int32 { return e.Code }, func(e *fetchError, v int32) { e.Code = v }),
)

func TestCall_FreeOnApplicationError(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(1, func(_ context.Context, st *native.CallStatus, _ []uint64) []uint64 {
		data, _ := fetchErrorCodec.Lower(fetchError{Code: 404})
		lib.Fail(st, data)
		return nil
	})
	call := computeCall(t, lib, fut)
	call.Errors = ffi.TypedErrors[fetchError](fetchErrorCodec)

	_, err := Call(context.Background(), NewBridge(lib), call)
	var fe fetchError
	if !goerrors.As(err, &fe) || fe.Code != 404 {
		t.Fatalf("error = %v, want fetchError{404}", err)
	}
	if fut.Frees() != 1 {
		t.Errorf("frees = %d, want 1", fut.Frees())
	}
	if n := lib.LiveBuffers(); n != 0 {
		t.Errorf("LiveBuffers() = %d", n)
	}
}

func TestCall_FreeOnPanic(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(0, func(context.Context, *native.CallStatus, []uint64) []uint64 {
		panic("worker died")
	})

	_, err := Call(context.Background(), NewBridge(lib), computeCall(t, lib, fut))
	var be *errors.Error
	if !goerrors.As(err, &be) || be.Kind != errors.KindNativePanic || be.Message() != "worker died" {
		t.Fatalf("error = %v", err)
	}
	if fut.Frees() != 1 {
		t.Errorf("frees = %d, want 1", fut.Frees())
	}
}

func TestCall_FreeOnLiftError(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(0, returns(0))
	call := computeCall(t, lib, fut)
	liftErr := goerrors.New("bad value")
	call.Lift = func([]uint64) (uint64, error) { return 0, liftErr }

	_, err := Call(context.Background(), NewBridge(lib), call)
	if !goerrors.Is(err, liftErr) {
		t.Fatalf("error = %v", err)
	}
	if fut.Frees() != 1 {
		t.Errorf("frees = %d, want 1", fut.Frees())
	}
}

func TestCall_StartFailure(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(0, returns(0))
	call := computeCall(t, lib, fut)
	startErr := errors.NativePanic("no executor")
	call.Start = func(context.Context) (native.FutureHandle, error) { return 0, startErr }

	b := NewBridge(lib)
	if _, err := Call(context.Background(), b, call); !goerrors.Is(err, startErr) {
		t.Fatalf("error = %v", err)
	}
	if fut.Polls() != 0 || fut.Frees() != 0 {
		t.Errorf("polls=%d frees=%d, want none", fut.Polls(), fut.Frees())
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d", b.Active())
	}
}

func TestCall_CancelDrainsInBackground(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(0, returns(99), nativetest.Held())
	call := computeCall(t, lib, fut)

	var (
		mu        sync.Mutex
		discarded []uint64
	)
	call.Discard = func(_ context.Context, raw []uint64) {
		mu.Lock()
		defer mu.Unlock()
		discarded = raw
	}

	b := NewBridge(lib)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for fut.Polls() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := Call(ctx, b, call)
	if !goerrors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if b.Active() != 1 {
		t.Fatalf("Active() = %d, want the detached session", b.Active())
	}
	if fut.Frees() != 0 {
		t.Fatal("future freed before it was ready")
	}

	fut.Release()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := b.Close(waitCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if fut.Polls() != 1 || fut.Completes() != 1 || fut.Frees() != 1 {
		t.Errorf("polls=%d completes=%d frees=%d", fut.Polls(), fut.Completes(), fut.Frees())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(discarded) != 1 || discarded[0] != 99 {
		t.Errorf("discarded = %v", discarded)
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d after drain", b.Active())
	}
}

func TestCall_Concurrent(t *testing.T) {
	lib := nativetest.New()
	b := NewBridge(lib)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fut := lib.NewFuture(i%4, returns(uint64(i)), nativetest.Deferred())
			got, err := Call(context.Background(), b, computeCall(t, lib, fut))
			if err != nil {
				t.Error(err)
				return
			}
			if got != uint64(i) {
				t.Errorf("session %d got %d", i, got)
			}
			if fut.Frees() != 1 {
				t.Errorf("session %d frees = %d", i, fut.Frees())
			}
		}()
	}
	wg.Wait()

	if b.Active() != 0 {
		t.Errorf("Active() = %d", b.Active())
	}
}

func TestContinuation_UnknownToken(t *testing.T) {
	b := NewBridge(nativetest.New())
	// Must not panic or block.
	b.continuation(12345, native.PollReady)
}

func TestBridge_CloseRefusesNewCalls(t *testing.T) {
	b := NewBridge(nativetest.New())
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	started := false
	_, err := Call(context.Background(), b, Future[[]uint64, uint64]{
		Name: "compute",
		Start: func(context.Context) (native.FutureHandle, error) {
			started = true
			return 0, nil
		},
	})
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
	if started {
		t.Error("future started on a closed bridge")
	}
	if b.Active() != 0 {
		t.Errorf("Active() = %d", b.Active())
	}
}

func TestBridge_CloseWaitsForOpenSessions(t *testing.T) {
	lib := nativetest.New()
	fut := lib.NewFuture(0, returns(7), nativetest.Held())
	b := NewBridge(lib)

	type result struct {
		v   uint64
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := Call(context.Background(), b, computeCall(t, lib, fut))
		done <- result{v, err}
	}()
	for fut.Polls() == 0 {
		time.Sleep(time.Millisecond)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Close(short); !goerrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close with open session = %v, want deadline exceeded", err)
	}

	fut.Release()
	r := <-done
	if r.err != nil || r.v != 7 {
		t.Fatalf("Call = %d, %v", r.v, r.err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := b.Close(waitCtx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if fut.Frees() != 1 {
		t.Errorf("frees = %d", fut.Frees())
	}
}
