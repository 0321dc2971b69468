package nativetest

import (
	"encoding/binary"

	"github.com/wippyai/ffibridge"
	"github.com/wippyai/ffibridge/errors"
)

// arena exposes Library memory. Reads return copies; the arena may move when
// it grows.
type arena struct {
	l *Library
}

var (
	_ ffibridge.Memory      = arena{}
	_ ffibridge.MemorySizer = arena{}
)

func (a arena) span(addr, n uint64) error {
	if addr < base || addr+n < addr || addr+n > uint64(len(a.l.mem)) {
		return errors.BufferOverflow(errors.PhaseBuffer, int(addr), int(n), len(a.l.mem))
	}
	return nil
}

func (a arena) Read(addr, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	a.l.mu.Lock()
	defer a.l.mu.Unlock()
	if err := a.span(addr, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, a.l.mem[addr:addr+length])
	return out, nil
}

func (a arena) Write(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	a.l.mu.Lock()
	defer a.l.mu.Unlock()
	if err := a.span(addr, uint64(len(data))); err != nil {
		return err
	}
	copy(a.l.mem[addr:], data)
	return nil
}

func (a arena) ReadU8(addr uint64) (uint8, error) {
	b, err := a.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (a arena) ReadU32(addr uint64) (uint32, error) {
	b, err := a.Read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (a arena) ReadU64(addr uint64) (uint64, error) {
	b, err := a.Read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (a arena) WriteU8(addr uint64, value uint8) error {
	return a.Write(addr, []byte{value})
}

func (a arena) WriteU32(addr uint64, value uint32) error {
	return a.Write(addr, binary.LittleEndian.AppendUint32(nil, value))
}

func (a arena) WriteU64(addr uint64, value uint64) error {
	return a.Write(addr, binary.LittleEndian.AppendUint64(nil, value))
}

func (a arena) Size() uint64 {
	a.l.mu.Lock()
	defer a.l.mu.Unlock()
	return uint64(len(a.l.mem))
}
