package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/ffibridge"
	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

// Library is a native library running as a WebAssembly module.
//
// Entry points return their results followed by the call status as four
// words: code (i32), then the error buffer's capacity, length and data
// (i64 each). Calls into one module instance are serialized.
type Library struct {
	mod     api.Module
	mem     *Memory
	host    *Host
	runtime wazero.Runtime // owned, nil for Bind
	logger  *zap.Logger
	symbols native.Symbols
	mu      sync.Mutex
}

var (
	_ native.Library  = (*Library)(nil)
	_ native.Contract = (*Library)(nil)
)

// Load compiles and instantiates a native library in a runtime of its own.
func Load(ctx context.Context, wasm []byte, opts ...Option) (*Library, error) {
	o := newOptions(opts)
	if o.namespace == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "namespace is required")
	}

	cfg := wazero.NewRuntimeConfig()
	if o.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	lib, err := load(ctx, rt, wasm, o)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	lib.runtime = rt
	return lib, nil
}

func load(ctx context.Context, rt wazero.Runtime, wasm []byte, o options) (*Library, error) {
	host, err := NewHost(ctx, rt, o.logger)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	if o.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return nil, errors.Instantiation(err)
		}
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(o.namespace).
		WithStartFunctions("_initialize")
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	mem := mod.ExportedMemory("memory")
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "memory export", "memory")
	}
	o.logger.Debug("native library loaded",
		zap.String("namespace", o.namespace),
		zap.Int("exports", len(mod.ExportedFunctionDefinitions())),
		zap.Uint32("memory_bytes", mem.Size()))
	return bind(host, mod, mem, o), nil
}

// Bind wraps an already instantiated module. mem is usually the module's
// own memory export. Closing the library closes mod only.
func Bind(host *Host, mod api.Module, mem api.Memory, opts ...Option) (*Library, error) {
	o := newOptions(opts)
	if o.namespace == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "namespace is required")
	}
	if host == nil || mod == nil || mem == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "host, module and memory are required")
	}
	return bind(host, mod, mem, o), nil
}

func bind(host *Host, mod api.Module, mem api.Memory, o options) *Library {
	return &Library{
		mod:     mod,
		mem:     &Memory{Mem: mem},
		host:    host,
		logger:  o.logger,
		symbols: native.Symbols{Namespace: o.namespace},
	}
}

// Memory returns the module's linear memory.
func (l *Library) Memory() ffibridge.Memory {
	return l.mem
}

// Symbols returns the symbol naming of the library's namespace.
func (l *Library) Symbols() native.Symbols {
	return l.symbols
}

// Host returns the continuation router of the library's runtime.
func (l *Library) Host() *Host {
	return l.host
}

// invoke calls an export and returns its raw results.
func (l *Library) invoke(ctx context.Context, sym string, args ...uint64) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn := l.mod.ExportedFunction(sym)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", sym)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(errors.PhaseCall, errors.KindNativePanic).
			Symbol(sym).
			Detail("trap").
			Cause(err).
			Build()
	}
	return res, nil
}

// call invokes a status-returning export and splits off the status.
// want < 0 accepts any number of leading results.
func (l *Library) call(ctx context.Context, sym string, st *native.CallStatus, want int, args ...uint64) ([]uint64, error) {
	res, err := l.invoke(ctx, sym, args...)
	if err != nil {
		return nil, err
	}
	n := len(res) - native.StatusWords
	if n < 0 || (want >= 0 && n != want) {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Symbol(sym).
			Detail("%d results, want %d plus status", len(res), want).
			Build()
	}
	*st = native.StatusFromWords(res[n:])
	return res[:n], nil
}

// BufferAlloc calls ffi_<ns>_buffer_alloc(size i64).
func (l *Library) BufferAlloc(ctx context.Context, size uint64, st *native.CallStatus) (native.Buffer, error) {
	res, err := l.call(ctx, l.symbols.Buffer(native.OpAlloc), st, 3, size)
	if err != nil {
		return native.Buffer{}, err
	}
	return native.BufferFromWords(res), nil
}

// BufferFromBytes allocates a buffer and copies data into it. A module has no
// way to read host memory, so the copy happens from the host side.
func (l *Library) BufferFromBytes(ctx context.Context, data native.ForeignBytes, st *native.CallStatus) (native.Buffer, error) {
	n := int(data.Len)
	if n < 0 || n > len(data.Data) {
		return native.Buffer{}, errors.InvalidInput(errors.PhaseBuffer, "foreign bytes length out of range")
	}

	buf, err := l.BufferAlloc(ctx, uint64(n), st)
	if err != nil || st.Code != native.CallSuccess || n == 0 {
		return buf, err
	}
	if err := l.mem.Write(buf.Data, data.Data[:n]); err != nil {
		var scratch native.CallStatus
		if ferr := l.BufferFree(ctx, buf, &scratch); ferr != nil {
			l.logger.Warn("free buffer after failed copy", zap.Error(ferr))
		}
		return native.Buffer{}, errors.Wrap(errors.PhaseBuffer, errors.KindBufferOverflow, err, "copy into native buffer")
	}
	buf.Len = uint64(n)
	return buf, nil
}

// BufferFree calls ffi_<ns>_buffer_free(cap, len, data).
func (l *Library) BufferFree(ctx context.Context, buf native.Buffer, st *native.CallStatus) error {
	_, err := l.call(ctx, l.symbols.Buffer(native.OpFree), st, 0, buf.Words()...)
	return err
}

// BufferReserve calls ffi_<ns>_buffer_reserve(cap, len, data, additional).
func (l *Library) BufferReserve(ctx context.Context, buf native.Buffer, additional uint64, st *native.CallStatus) (native.Buffer, error) {
	res, err := l.call(ctx, l.symbols.Buffer(native.OpReserve), st, 3, append(buf.Words(), additional)...)
	if err != nil {
		return native.Buffer{}, err
	}
	return native.BufferFromWords(res), nil
}

// Func resolves <ns>_fn_<name>.
func (l *Library) Func(name string) (native.Func, error) {
	sym := l.symbols.Function(name)
	if l.mod.ExportedFunction(sym) == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "function", sym)
	}
	return func(ctx context.Context, st *native.CallStatus, args ...uint64) ([]uint64, error) {
		l.logger.Debug("native call", zap.String("symbol", sym), zap.Int("args", len(args)))
		return l.call(ctx, sym, st, -1, args...)
	}, nil
}

// AsyncFunc resolves the poll, complete and free entry points of name.
// Poll passes a host token as the continuation data; the module hands it
// back through the ffibridge.continuation import.
func (l *Library) AsyncFunc(name string) (native.AsyncFuncs, error) {
	pollSym, completeSym, freeSym := l.symbols.Async(name)
	for _, sym := range []string{pollSym, completeSym, freeSym} {
		if l.mod.ExportedFunction(sym) == nil {
			return native.AsyncFuncs{}, errors.NotFound(errors.PhaseLoad, "async entry point", sym)
		}
	}

	return native.AsyncFuncs{
		Poll: func(ctx context.Context, fut native.FutureHandle, cont native.ContinuationFunc, data uint64) error {
			token := l.host.expect(cont, data)
			if _, err := l.invoke(ctx, pollSym, uint64(fut), token); err != nil {
				l.host.forget(token)
				return err
			}
			return nil
		},
		Complete: func(ctx context.Context, fut native.FutureHandle, st *native.CallStatus) ([]uint64, error) {
			return l.call(ctx, completeSym, st, -1, uint64(fut))
		},
		Free: func(ctx context.Context, fut native.FutureHandle) error {
			_, err := l.invoke(ctx, freeSym, uint64(fut))
			return err
		},
	}, nil
}

// ContractVersion calls ffi_<ns>_contract_version.
func (l *Library) ContractVersion(ctx context.Context) (uint32, error) {
	res, err := l.invoke(ctx, l.symbols.ContractVersion())
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Symbol(l.symbols.ContractVersion()).
			Detail("%d results, want 1", len(res)).
			Build()
	}
	return uint32(res[0]), nil
}

// Checksum calls <ns>_checksum_<name>.
func (l *Library) Checksum(ctx context.Context, name string) (uint16, error) {
	sym := l.symbols.Checksum(name)
	res, err := l.invoke(ctx, sym)
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Symbol(sym).
			Detail("%d results, want 1", len(res)).
			Build()
	}
	return uint16(res[0]), nil
}

// Close releases the module, and the runtime when the library owns it.
func (l *Library) Close(ctx context.Context) error {
	if l.runtime != nil {
		return l.runtime.Close(ctx)
	}
	return l.mod.Close(ctx)
}
