package native

import (
	"context"

	"github.com/wippyai/ffibridge"
)

// Func is a status-checked native entry point. Arguments and results are raw
// ABI words; a Buffer occupies three consecutive words. A non-nil error means
// the call did not complete at the transport level (trap, missing memory) and
// the status was not written.
type Func func(ctx context.Context, status *CallStatus, args ...uint64) ([]uint64, error)

// PollFunc asks native code to invoke cont with data when fut can progress.
type PollFunc func(ctx context.Context, fut FutureHandle, cont ContinuationFunc, data uint64) error

// CompleteFunc retrieves the result of a ready future.
type CompleteFunc func(ctx context.Context, fut FutureHandle, status *CallStatus) ([]uint64, error)

// FreeFunc releases a future handle.
type FreeFunc func(ctx context.Context, fut FutureHandle) error

// AsyncFuncs are the three entry points derived from an async function's name.
type AsyncFuncs struct {
	Poll     PollFunc
	Complete CompleteFunc
	Free     FreeFunc
}

// Library is a loaded native library.
type Library interface {
	// Memory returns the host view of native memory.
	Memory() ffibridge.Memory

	BufferAlloc(ctx context.Context, size uint64, status *CallStatus) (Buffer, error)
	BufferFromBytes(ctx context.Context, data ForeignBytes, status *CallStatus) (Buffer, error)
	BufferFree(ctx context.Context, buf Buffer, status *CallStatus) error
	BufferReserve(ctx context.Context, buf Buffer, additional uint64, status *CallStatus) (Buffer, error)

	// Func resolves a declared function's entry point.
	Func(name string) (Func, error)

	// AsyncFunc resolves the poll, complete and free entry points of a
	// declared async function.
	AsyncFunc(name string) (AsyncFuncs, error)
}

// Contract is implemented by libraries that report the bridge contract
// version and per-function API checksums they were generated against.
type Contract interface {
	ContractVersion(ctx context.Context) (uint32, error)
	Checksum(ctx context.Context, name string) (uint16, error)
}
