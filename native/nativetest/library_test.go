package nativetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/wippyai/ffibridge/native"
)

func TestLibrary_BufferLifecycle(t *testing.T) {
	ctx := context.Background()
	lib := New()
	var st native.CallStatus

	buf, err := lib.BufferFromBytes(ctx, native.ForeignBytes{Data: []byte("hello"), Len: 5}, &st)
	if err != nil || st.Code != native.CallSuccess {
		t.Fatalf("BufferFromBytes: %v, status %d", err, st.Code)
	}
	if buf.Len != 5 || buf.Capacity < 5 {
		t.Fatalf("buffer = %+v", buf)
	}
	if got := lib.Bytes(buf); !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Bytes() = %q", got)
	}

	grown, err := lib.BufferReserve(ctx, buf, 100, &st)
	if err != nil || st.Code != native.CallSuccess {
		t.Fatalf("BufferReserve: %v, status %d", err, st.Code)
	}
	if grown.Capacity < 105 || grown.Len != 5 {
		t.Errorf("grown = %+v", grown)
	}
	if got := lib.Bytes(grown); !bytes.Equal(got, []byte("hello")) {
		t.Errorf("contents after reserve = %q", got)
	}

	if err := lib.BufferFree(ctx, grown, &st); err != nil || st.Code != native.CallSuccess {
		t.Fatalf("BufferFree: %v, status %d", err, st.Code)
	}
	if n := lib.LiveBuffers(); n != 0 {
		t.Errorf("LiveBuffers() = %d, want 0", n)
	}
}

func TestLibrary_DoubleFree(t *testing.T) {
	ctx := context.Background()
	lib := New()
	buf := lib.NewBuffer([]byte{1, 2, 3})

	var st native.CallStatus
	_ = lib.BufferFree(ctx, buf, &st)
	if st.Code != native.CallSuccess {
		t.Fatalf("first free status = %d", st.Code)
	}

	st = native.CallStatus{}
	_ = lib.BufferFree(ctx, buf, &st)
	if st.Code != native.CallUnexpectedError {
		t.Fatalf("second free status = %d, want %d", st.Code, native.CallUnexpectedError)
	}
}

func TestLibrary_AllocLimit(t *testing.T) {
	lib := New()
	lib.SetAllocLimit(8)

	var st native.CallStatus
	_, _ = lib.BufferAlloc(context.Background(), 64, &st)
	if st.Code != native.CallUnexpectedError {
		t.Fatalf("status = %d, want unexpected error", st.Code)
	}
	if msg := lib.Bytes(st.ErrorBuf); !bytes.Contains(msg, []byte("exceeds limit")) {
		t.Errorf("message = %q", msg)
	}
}

func TestLibrary_HandlerPanic(t *testing.T) {
	lib := New()
	lib.Register("explode", func(context.Context, *native.CallStatus, []uint64) []uint64 {
		panic("boom")
	})

	fn, err := lib.Func("explode")
	if err != nil {
		t.Fatal(err)
	}
	var st native.CallStatus
	if _, err := fn(context.Background(), &st); err != nil {
		t.Fatalf("transport error: %v", err)
	}
	if st.Code != native.CallUnexpectedError {
		t.Fatalf("status = %d", st.Code)
	}
	if got := string(lib.Bytes(st.ErrorBuf)); got != "boom" {
		t.Errorf("message = %q, want boom", got)
	}
}

func TestLibrary_UnknownFunc(t *testing.T) {
	if _, err := New().Func("missing"); err == nil {
		t.Fatal("expected error for unknown function")
	}
}

func TestFuture_Polling(t *testing.T) {
	ctx := context.Background()
	lib := New()
	fut := lib.NewFuture(2, func(context.Context, *native.CallStatus, []uint64) []uint64 {
		return []uint64{7}
	})
	funcs, err := lib.AsyncFunc("anything")
	if err != nil {
		t.Fatal(err)
	}

	var got []int8
	cont := func(data uint64, poll int8) {
		if data != 99 {
			t.Errorf("data = %d, want 99", data)
		}
		got = append(got, poll)
	}
	for range 3 {
		if err := funcs.Poll(ctx, fut.Handle(), cont, 99); err != nil {
			t.Fatal(err)
		}
	}
	want := []int8{native.PollMaybeReady, native.PollMaybeReady, native.PollReady}
	if !bytes.Equal(int8sToBytes(got), int8sToBytes(want)) {
		t.Errorf("poll results = %v, want %v", got, want)
	}

	var st native.CallStatus
	res, err := funcs.Complete(ctx, fut.Handle(), &st)
	if err != nil || len(res) != 1 || res[0] != 7 {
		t.Errorf("Complete = %v, %v", res, err)
	}
	if err := funcs.Free(ctx, fut.Handle()); err != nil {
		t.Fatal(err)
	}
	if err := funcs.Free(ctx, fut.Handle()); err == nil {
		t.Error("second free should be reported")
	}
	if fut.Frees() != 2 || fut.Polls() != 3 || fut.Completes() != 1 {
		t.Errorf("counts polls=%d completes=%d frees=%d", fut.Polls(), fut.Completes(), fut.Frees())
	}
}

func TestFuture_Held(t *testing.T) {
	lib := New()
	fut := lib.NewFuture(0, nil, Held())
	funcs, _ := lib.AsyncFunc("")

	woke := 0
	_ = funcs.Poll(context.Background(), fut.Handle(), func(uint64, int8) { woke++ }, 1)
	if woke != 0 {
		t.Fatal("held future woke before Release")
	}
	fut.Release()
	if woke != 1 {
		t.Fatalf("woke = %d after Release, want 1", woke)
	}
}

func TestArena_Bounds(t *testing.T) {
	lib := New()
	mem := lib.Memory()
	if _, err := mem.Read(0, 4); err == nil {
		t.Error("read of null page should fail")
	}
	buf := lib.NewBuffer([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	if err := mem.WriteU32(buf.Data, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	v, err := mem.ReadU32(buf.Data)
	if err != nil || v != 0xdeadbeef {
		t.Errorf("ReadU32 = %x, %v", v, err)
	}
	if _, err := mem.Read(buf.Data, 1<<20); err == nil {
		t.Error("read past end should fail")
	}
}

func int8sToBytes(v []int8) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}
