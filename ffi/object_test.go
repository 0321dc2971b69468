package ffi

import (
	"context"
	"sync"
	"testing"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
	"github.com/wippyai/ffibridge/native/nativetest"
)

type refCounts struct {
	clones int
	frees  map[uint64]int
	mu     sync.Mutex
}

func newObjectLib(t *testing.T) (*nativetest.Library, *refCounts, native.Func, native.Func) {
	t.Helper()
	lib := nativetest.New()
	rc := &refCounts{frees: make(map[uint64]int)}
	lib.Register("clone_counter", func(_ context.Context, _ *native.CallStatus, args []uint64) []uint64 {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		rc.clones++
		return []uint64{args[0]}
	})
	lib.Register("free_counter", func(_ context.Context, _ *native.CallStatus, args []uint64) []uint64 {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		rc.frees[args[0]]++
		return nil
	})
	clone, err := lib.Func("clone_counter")
	if err != nil {
		t.Fatal(err)
	}
	free, err := lib.Func("free_counter")
	if err != nil {
		t.Fatal(err)
	}
	return lib, rc, clone, free
}

func TestObject_DestroyIdle(t *testing.T) {
	ctx := context.Background()
	lib, rc, clone, free := newObjectLib(t)
	obj := NewObject(lib, "Counter", 0x1000, clone, free)

	if err := obj.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if err := obj.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if rc.frees[0x1000] != 1 {
		t.Fatalf("frees = %d, want exactly 1", rc.frees[0x1000])
	}
	if _, err := obj.Acquire(ctx); !errors.IsKind(err, errors.KindUnexpectedNullPointer) {
		t.Fatalf("Acquire after Destroy = %v", err)
	}
}

func TestObject_DestroyDuringCall(t *testing.T) {
	ctx := context.Background()
	lib, rc, clone, free := newObjectLib(t)
	obj := NewObject(lib, "Counter", 0x2000, clone, free)

	ptr, err := obj.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ptr != 0x2000 || rc.clones != 1 {
		t.Fatalf("Acquire = %x, clones %d", ptr, rc.clones)
	}

	if err := obj.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if rc.frees[0x2000] != 0 {
		t.Fatal("object freed while a call was in flight")
	}

	if err := obj.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if rc.frees[0x2000] != 1 {
		t.Fatalf("frees = %d after last release, want 1", rc.frees[0x2000])
	}
}

func TestObject_ConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	lib, rc, clone, free := newObjectLib(t)
	obj := NewObject(lib, "Counter", 0x3000, clone, free)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := obj.Acquire(ctx); err != nil {
				t.Error(err)
				return
			}
			if err := obj.Release(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if err := obj.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if rc.clones != 16 || rc.frees[0x3000] != 1 {
		t.Fatalf("clones = %d, frees = %d", rc.clones, rc.frees[0x3000])
	}
}
