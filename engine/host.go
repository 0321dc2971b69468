package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/native"
)

// Host module imported by native libraries.
const (
	HostModule       = "ffibridge"
	HostContinuation = "continuation"
)

type waiter struct {
	cont native.ContinuationFunc
	data uint64
}

// Host routes continuation imports back to the poll that registered them.
// Native code receives a host token instead of the caller's data so that
// several bridges can share one runtime.
type Host struct {
	logger  *zap.Logger
	pending map[uint64]waiter
	next    uint64
	mu      sync.Mutex
}

// NewHost instantiates the host module in rt. It must run before any
// native module importing it is instantiated.
func NewHost(ctx context.Context, rt wazero.Runtime, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = Logger()
	}
	h := &Host{
		logger:  logger,
		pending: make(map[uint64]waiter),
	}

	_, err := rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			h.wake(stack[0], int8(int32(uint32(stack[1]))))
		}), []api.ValueType{api.ValueTypeI64, api.ValueTypeI32}, nil).
		Export(HostContinuation).
		Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// expect registers cont for the next wake and returns the token to hand to
// native code.
func (h *Host) expect(cont native.ContinuationFunc, data uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.pending[h.next] = waiter{cont: cont, data: data}
	return h.next
}

// forget drops a registration whose poll failed before native code saw it.
func (h *Host) forget(token uint64) {
	h.mu.Lock()
	delete(h.pending, token)
	h.mu.Unlock()
}

func (h *Host) wake(token uint64, poll int8) {
	h.mu.Lock()
	w, ok := h.pending[token]
	delete(h.pending, token)
	h.mu.Unlock()

	if !ok {
		h.logger.Warn("continuation with unknown token", zap.Uint64("token", token), zap.Int8("poll", poll))
		return
	}
	w.cont(w.data, poll)
}

// Pending returns the number of polls still waiting for a wake.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
