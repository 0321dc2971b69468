package nativetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wippyai/ffibridge"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

// base is the first address handed out; lower addresses are never valid.
const base = 16

// HandlerFunc implements a native function. It may write st and returns the
// raw result words.
type HandlerFunc func(ctx context.Context, st *native.CallStatus, args []uint64) []uint64

// Library is an in-process native library.
type Library struct {
	live       map[uint64]uint64
	funcs      map[string]HandlerFunc
	futures    map[native.FutureHandle]*Future
	contract   contract
	mem        []byte
	allocLimit uint64
	nextFuture uint64
	allocs     int
	frees      int
	mu         sync.Mutex
}

var _ native.Library = (*Library)(nil)

// New creates an empty library.
func New() *Library {
	return &Library{
		live:    make(map[uint64]uint64),
		funcs:   make(map[string]HandlerFunc),
		futures: make(map[native.FutureHandle]*Future),
		mem:     make([]byte, base),
	}
}

// Register installs a function under name.
func (l *Library) Register(name string, fn HandlerFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[name] = fn
}

// SetAllocLimit makes allocations larger than n bytes fail with an
// unexpected-error status. Zero removes the limit.
func (l *Library) SetAllocLimit(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allocLimit = n
}

// Memory returns the arena view.
func (l *Library) Memory() ffibridge.Memory {
	return arena{l: l}
}

// BufferAlloc allocates a buffer with capacity size.
func (l *Library) BufferAlloc(_ context.Context, size uint64, st *native.CallStatus) (native.Buffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allocLimit > 0 && size > l.allocLimit {
		l.panicLocked(st, fmt.Sprintf("allocation of %d bytes exceeds limit", size))
		return native.Buffer{}, nil
	}
	if size == 0 {
		return native.Buffer{}, nil
	}
	return native.Buffer{Capacity: size, Data: l.allocLocked(size)}, nil
}

// BufferFromBytes copies data into a new buffer.
func (l *Library) BufferFromBytes(ctx context.Context, data native.ForeignBytes, st *native.CallStatus) (native.Buffer, error) {
	buf, err := l.BufferAlloc(ctx, uint64(data.Len), st)
	if err != nil || st.Code != native.CallSuccess {
		return buf, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	copy(l.mem[buf.Data:], data.Data[:data.Len])
	buf.Len = uint64(data.Len)
	return buf, nil
}

// BufferFree releases buf. Freeing an unknown buffer is reported as a panic
// status so tests catch double frees.
func (l *Library) BufferFree(_ context.Context, buf native.Buffer, st *native.CallStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if buf.Data == 0 {
		return nil
	}
	if _, ok := l.live[buf.Data]; !ok {
		l.panicLocked(st, fmt.Sprintf("free of unknown buffer at %d", buf.Data))
		return nil
	}
	delete(l.live, buf.Data)
	l.frees++
	return nil
}

// BufferReserve grows buf so that at least additional bytes fit after Len.
func (l *Library) BufferReserve(_ context.Context, buf native.Buffer, additional uint64, st *native.CallStatus) (native.Buffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if buf.Capacity-buf.Len >= additional {
		return buf, nil
	}
	size := buf.Len + additional
	if l.allocLimit > 0 && size > l.allocLimit {
		l.panicLocked(st, fmt.Sprintf("allocation of %d bytes exceeds limit", size))
		return native.Buffer{}, nil
	}
	addr := l.allocLocked(size)
	if buf.Data != 0 {
		copy(l.mem[addr:addr+buf.Len], l.mem[buf.Data:buf.Data+buf.Len])
		delete(l.live, buf.Data)
		l.frees++
	}
	return native.Buffer{Capacity: size, Len: buf.Len, Data: addr}, nil
}

// Func resolves a registered function.
func (l *Library) Func(name string) (native.Func, error) {
	l.mu.Lock()
	h, ok := l.funcs[name]
	l.mu.Unlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "function", name)
	}
	return func(ctx context.Context, st *native.CallStatus, args ...uint64) (res []uint64, err error) {
		defer func() {
			if r := recover(); r != nil {
				l.Panic(st, fmt.Sprint(r))
				res = nil
			}
		}()
		return h(ctx, st, args), nil
	}, nil
}

// NewBuffer returns a native-owned buffer holding a copy of data.
func (l *Library) NewBuffer(data []byte) native.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bufferLocked(data)
}

// Bytes returns a copy of buf's contents.
func (l *Library) Bytes(buf native.Buffer) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]byte, buf.Len)
	copy(out, l.mem[buf.Data:buf.Data+buf.Len])
	return out
}

// Fail reports an application error whose serialized form is payload.
func (l *Library) Fail(st *native.CallStatus, payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st.Code = native.CallError
	st.ErrorBuf = l.bufferLocked(payload)
}

// Panic reports a caught native panic. An empty msg leaves the error buffer empty.
func (l *Library) Panic(st *native.CallStatus, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.panicLocked(st, msg)
}

// LiveBuffers returns the number of allocated, unfreed buffers.
func (l *Library) LiveBuffers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Allocs returns the total number of buffer allocations.
func (l *Library) Allocs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocs
}

// Frees returns the total number of buffers released.
func (l *Library) Frees() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frees
}

func (l *Library) panicLocked(st *native.CallStatus, msg string) {
	st.Code = native.CallUnexpectedError
	st.ErrorBuf = native.Buffer{}
	if msg != "" {
		st.ErrorBuf = l.bufferLocked([]byte(msg))
	}
}

func (l *Library) bufferLocked(data []byte) native.Buffer {
	if len(data) == 0 {
		return native.Buffer{}
	}
	n := uint64(len(data))
	addr := l.allocLocked(n)
	copy(l.mem[addr:], data)
	return native.Buffer{Capacity: n, Len: n, Data: addr}
}

func (l *Library) allocLocked(size uint64) uint64 {
	addr := uint64(len(l.mem))
	l.mem = append(l.mem, make([]byte, size)...)
	l.live[addr] = size
	l.allocs++
	return addr
}
