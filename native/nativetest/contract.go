package nativetest

import (
	"context"
	"sync"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
)

type contract struct {
	checksums map[string]uint16
	version   uint32
	mu        sync.Mutex
}

var _ native.Contract = (*Library)(nil)

// SetContract sets the contract version and API checksums the library reports.
func (l *Library) SetContract(version uint32, checksums map[string]uint16) {
	l.contract.mu.Lock()
	defer l.contract.mu.Unlock()
	l.contract.version = version
	l.contract.checksums = checksums
}

// ContractVersion returns the version set by SetContract.
func (l *Library) ContractVersion(context.Context) (uint32, error) {
	l.contract.mu.Lock()
	defer l.contract.mu.Unlock()
	return l.contract.version, nil
}

// Checksum returns the checksum of name set by SetContract.
func (l *Library) Checksum(_ context.Context, name string) (uint16, error) {
	l.contract.mu.Lock()
	defer l.contract.mu.Unlock()
	sum, ok := l.contract.checksums[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseLoad, "checksum", name)
	}
	return sum, nil
}
