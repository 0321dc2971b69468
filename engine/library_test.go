package engine

import (
	"context"
	goerrors "errors"
	"sync/atomic"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ffibridge/async"
	"github.com/wippyai/ffibridge/codec"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/ffi"
	"github.com/wippyai/ffibridge/native"
)

// memoryWASM is a module exporting one page of memory as "memory".
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func status(code int32, buf native.Buffer) []uint64 {
	return []uint64{uint64(uint32(code)), buf.Capacity, buf.Len, buf.Data}
}

// fakeNative is a native library written as a wazero host module over a
// separate memory module, namespace "t".
type fakeNative struct {
	mem    api.Memory
	next   uint64
	allocs atomic.Int32
	frees  atomic.Int32
	polls  atomic.Int32
	freed  atomic.Int32
}

func (f *fakeNative) alloc(size uint64) native.Buffer {
	if size == 0 {
		return native.Buffer{}
	}
	addr := f.next
	f.next += size
	f.allocs.Add(1)
	return native.Buffer{Capacity: size, Data: addr}
}

func (f *fakeNative) fn(b wazero.HostModuleBuilder, name string, params, results []api.ValueType, fn func(ctx context.Context, stack []uint64)) wazero.HostModuleBuilder {
	return b.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
			fn(ctx, stack)
		}), params, results).
		Export(name)
}

func withStatus(results ...api.ValueType) []api.ValueType {
	return append(results, i32, i64, i64, i64)
}

func newTestLibrary(t *testing.T) (*Library, *fakeNative) {
	t.Helper()
	ctx := context.Background()

	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	host, err := NewHost(ctx, rt, nil)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}
	memMod, err := rt.Instantiate(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("memory module: %v", err)
	}

	f := &fakeNative{mem: memMod.ExportedMemory("memory"), next: 1024}
	cont := func(ctx context.Context, data uint64, poll int32) {
		fn := rt.Module(HostModule).ExportedFunction(HostContinuation)
		if _, err := fn.Call(ctx, data, uint64(uint32(poll))); err != nil {
			t.Errorf("continuation: %v", err)
		}
	}

	b := rt.NewHostModuleBuilder("t")
	b = f.fn(b, "ffi_t_buffer_alloc", []api.ValueType{i64}, withStatus(i64, i64, i64), func(_ context.Context, stack []uint64) {
		buf := f.alloc(stack[0])
		copy(stack, append(buf.Words(), status(0, native.Buffer{})...))
	})
	b = f.fn(b, "ffi_t_buffer_free", []api.ValueType{i64, i64, i64}, withStatus(), func(_ context.Context, stack []uint64) {
		if stack[2] != 0 {
			f.frees.Add(1)
		}
		copy(stack, status(0, native.Buffer{}))
	})
	b = f.fn(b, "ffi_t_buffer_reserve", []api.ValueType{i64, i64, i64, i64}, withStatus(i64, i64, i64), func(_ context.Context, stack []uint64) {
		buf := native.BufferFromWords(stack[:3])
		if buf.Capacity-buf.Len < stack[3] {
			grown := f.alloc(buf.Len + stack[3])
			data, _ := f.mem.Read(uint32(buf.Data), uint32(buf.Len))
			f.mem.Write(uint32(grown.Data), data)
			grown.Len = buf.Len
			buf = grown
		}
		copy(stack, append(buf.Words(), status(0, native.Buffer{})...))
	})
	b = f.fn(b, "ffi_t_contract_version", nil, []api.ValueType{i32}, func(_ context.Context, stack []uint64) {
		stack[0] = 26
	})
	b = f.fn(b, "t_checksum_add", nil, []api.ValueType{i32}, func(_ context.Context, stack []uint64) {
		stack[0] = 1234
	})
	b = f.fn(b, "t_fn_add", []api.ValueType{i64, i64}, withStatus(i64), func(_ context.Context, stack []uint64) {
		sum := stack[0] + stack[1]
		copy(stack, append([]uint64{sum}, status(0, native.Buffer{})...))
	})
	b = f.fn(b, "t_fn_fail", nil, withStatus(), func(_ context.Context, stack []uint64) {
		buf := f.alloc(4)
		f.mem.Write(uint32(buf.Data), []byte("nope"))
		buf.Len = 4
		copy(stack, status(int32(native.CallError), buf))
	})
	b = f.fn(b, "t_fn_trap", nil, withStatus(), func(context.Context, []uint64) {
		panic("unreachable")
	})
	b = f.fn(b, "t_fn_fetch_poll", []api.ValueType{i64, i64}, nil, func(ctx context.Context, stack []uint64) {
		poll := int32(native.PollMaybeReady)
		if f.polls.Add(1) > 1 {
			poll = int32(native.PollReady)
		}
		cont(ctx, stack[1], poll)
	})
	b = f.fn(b, "t_fn_fetch_complete", []api.ValueType{i64}, withStatus(i64), func(_ context.Context, stack []uint64) {
		copy(stack, append([]uint64{stack[0] * 10}, status(0, native.Buffer{})...))
	})
	b = f.fn(b, "t_fn_fetch_free", []api.ValueType{i64}, nil, func(context.Context, []uint64) {
		f.freed.Add(1)
	})

	mod, err := b.Instantiate(ctx)
	if err != nil {
		t.Fatalf("native module: %v", err)
	}

	lib, err := Bind(host, mod, f.mem, WithNamespace("t"))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return lib, f
}

func TestLibrary_BufferRoundTrip(t *testing.T) {
	ctx := context.Background()
	lib, f := newTestLibrary(t)

	raw, err := ffi.LowerBuffer(ctx, lib, codec.String, "hello wasm")
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if raw.Len != 10 || raw.Data == 0 {
		t.Fatalf("buffer = %+v", raw)
	}

	got, err := lib.Memory().Read(raw.Data, raw.Len)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello wasm" {
		t.Errorf("memory = %q", got)
	}

	s, err := ffi.LiftBuffer(ctx, lib, codec.String, raw)
	if err != nil {
		t.Fatalf("lift: %v", err)
	}
	if s != "hello wasm" {
		t.Errorf("lifted %q", s)
	}
	if f.allocs.Load() != 1 || f.frees.Load() != 1 {
		t.Errorf("allocs=%d frees=%d", f.allocs.Load(), f.frees.Load())
	}
}

func TestLibrary_EmptyFromBytes(t *testing.T) {
	lib, f := newTestLibrary(t)

	var st native.CallStatus
	buf, err := lib.BufferFromBytes(context.Background(), native.ForeignBytes{}, &st)
	if err != nil {
		t.Fatal(err)
	}
	if buf != (native.Buffer{}) || st.Code != native.CallSuccess {
		t.Errorf("buf=%+v status=%+v", buf, st)
	}
	if f.allocs.Load() != 0 {
		t.Errorf("allocs = %d", f.allocs.Load())
	}
}

func TestLibrary_Reserve(t *testing.T) {
	ctx := context.Background()
	lib, _ := newTestLibrary(t)

	buf, err := ffi.FromBytes(ctx, lib, []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	grown, err := buf.Reserve(ctx, 16)
	if err != nil {
		t.Fatal(err)
	}
	if grown.Capacity() < 19 || grown.Len() != 3 {
		t.Errorf("grown cap=%d len=%d", grown.Capacity(), grown.Len())
	}
	data, err := grown.AsHostBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\x01\x02\x03" {
		t.Errorf("data = %v", data)
	}
}

func TestLibrary_Func(t *testing.T) {
	ctx := context.Background()
	lib, f := newTestLibrary(t)

	t.Run("success", func(t *testing.T) {
		fn, err := lib.Func("add")
		if err != nil {
			t.Fatal(err)
		}
		res, err := ffi.Invoke(ctx, lib, fn, nil, 40, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 1 || res[0] != 42 {
			t.Errorf("res = %v", res)
		}
	})

	t.Run("application error without handler", func(t *testing.T) {
		fn, err := lib.Func("fail")
		if err != nil {
			t.Fatal(err)
		}
		before := f.frees.Load()
		_, err = ffi.Invoke(ctx, lib, fn, nil)
		if !errors.IsKind(err, errors.KindUnexpectedCallError) {
			t.Fatalf("error = %v", err)
		}
		if f.frees.Load() != before+1 {
			t.Error("error buffer was not freed")
		}
	})

	t.Run("trap", func(t *testing.T) {
		fn, err := lib.Func("trap")
		if err != nil {
			t.Fatal(err)
		}
		_, err = ffi.Invoke(ctx, lib, fn, nil)
		if !errors.IsKind(err, errors.KindNativePanic) {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := lib.Func("nope")
		if !errors.IsKind(err, errors.KindNotFound) {
			t.Fatalf("error = %v", err)
		}
	})
}

func TestLibrary_Async(t *testing.T) {
	ctx := context.Background()
	lib, f := newTestLibrary(t)

	funcs, err := lib.AsyncFunc("fetch")
	if err != nil {
		t.Fatal(err)
	}
	got, err := async.Call(ctx, async.NewBridge(lib), async.Future[[]uint64, uint64]{
		Name: "fetch",
		Start: func(context.Context) (native.FutureHandle, error) {
			return 7, nil
		},
		Poll:     funcs.Poll,
		Complete: funcs.Complete,
		Free:     funcs.Free,
		Lift: func(raw []uint64) (uint64, error) {
			return raw[0], nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 70 {
		t.Errorf("result = %d, want 70", got)
	}
	if f.polls.Load() != 2 || f.freed.Load() != 1 {
		t.Errorf("polls=%d freed=%d", f.polls.Load(), f.freed.Load())
	}
	if n := lib.Host().Pending(); n != 0 {
		t.Errorf("host pending = %d", n)
	}

	if _, err := lib.AsyncFunc("add"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("AsyncFunc(add) error = %v", err)
	}
}

func TestLibrary_Contract(t *testing.T) {
	ctx := context.Background()
	lib, _ := newTestLibrary(t)

	v, err := lib.ContractVersion(ctx)
	if err != nil || v != 26 {
		t.Errorf("ContractVersion() = %d, %v", v, err)
	}
	sum, err := lib.Checksum(ctx, "add")
	if err != nil || sum != 1234 {
		t.Errorf("Checksum(add) = %d, %v", sum, err)
	}
	if _, err := lib.Checksum(ctx, "missing"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("Checksum(missing) error = %v", err)
	}
}

func TestLibrary_Exports(t *testing.T) {
	lib, _ := newTestLibrary(t)

	roles := make(map[string]native.Role)
	for _, e := range lib.Exports() {
		roles[e.Symbol] = e.Role
	}
	want := map[string]native.Role{
		"ffi_t_buffer_alloc":     native.RoleBuffer,
		"ffi_t_contract_version": native.RoleContract,
		"t_checksum_add":         native.RoleChecksum,
		"t_fn_add":               native.RoleFunction,
		"t_fn_fetch_poll":        native.RolePoll,
		"t_fn_fetch_complete":    native.RoleComplete,
		"t_fn_fetch_free":        native.RoleFree,
	}
	for sym, role := range want {
		if roles[sym] != role {
			t.Errorf("%s role = %v, want %v", sym, roles[sym], role)
		}
	}

	fns := lib.Functions()
	if len(fns) != 3 || fns[0] != "add" || fns[1] != "fail" || fns[2] != "trap" {
		t.Errorf("Functions() = %v", fns)
	}
	asyncFns := lib.AsyncFunctions()
	if len(asyncFns) != 1 || asyncFns[0] != "fetch" {
		t.Errorf("AsyncFunctions() = %v", asyncFns)
	}
}

func TestMemory_Bounds(t *testing.T) {
	lib, _ := newTestLibrary(t)
	mem := lib.Memory()

	if err := mem.WriteU32(100, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if v, err := mem.ReadU32(100); err != nil || v != 0xdeadbeef {
		t.Errorf("ReadU32 = %x, %v", v, err)
	}
	if _, err := mem.Read(65530, 16); err == nil {
		t.Error("read past the end of memory succeeded")
	}
	if _, err := mem.Read(1<<33, 1); err == nil {
		t.Error("read beyond 32-bit range succeeded")
	}
	if err := mem.WriteU64(1<<32, 1); err == nil {
		t.Error("write beyond 32-bit range succeeded")
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("namespace required", func(t *testing.T) {
		_, err := Load(ctx, memoryWASM)
		if !errors.IsKind(err, errors.KindInvalidInput) {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("invalid module", func(t *testing.T) {
		_, err := Load(ctx, []byte("not wasm"), WithNamespace("x"))
		var be *errors.Error
		if !goerrors.As(err, &be) || be.Phase != errors.PhaseLoad {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("memory only", func(t *testing.T) {
		lib, err := Load(ctx, memoryWASM, WithNamespace("m"), WithMemoryLimitPages(16))
		if err != nil {
			t.Fatal(err)
		}
		defer lib.Close(ctx)

		if n := len(lib.Exports()); n != 0 {
			t.Errorf("exports = %d", n)
		}
		if size := lib.Memory().(*Memory).Size(); size != 65536 {
			t.Errorf("memory size = %d", size)
		}
		if _, err := lib.Func("anything"); !errors.IsKind(err, errors.KindNotFound) {
			t.Errorf("Func error = %v", err)
		}
	})
}
