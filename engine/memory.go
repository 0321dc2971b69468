package engine

import (
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ffibridge"
)

// Memory adapts a wazero linear memory to ffibridge.Memory. Native
// addresses are 64-bit on the host side; anything past 4GiB is out of
// bounds for a 32-bit module.
type Memory struct {
	Mem api.Memory
}

var (
	_ ffibridge.Memory      = (*Memory)(nil)
	_ ffibridge.MemorySizer = (*Memory)(nil)
)

func offset(addr, length uint64) (uint32, error) {
	if addr > math.MaxUint32 || length > math.MaxUint32 || addr+length > math.MaxUint32 {
		return 0, fmt.Errorf("memory access out of 32-bit range: offset=%d, length=%d", addr, length)
	}
	return uint32(addr), nil
}

// Read copies length bytes starting at addr.
func (m *Memory) Read(addr, length uint64) ([]byte, error) {
	off, err := offset(addr, length)
	if err != nil {
		return nil, err
	}
	data, ok := m.Mem.Read(off, uint32(length))
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", addr, length)
	}
	// wazero returns a view of linear memory, which a later grow may move.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write copies data into memory at addr.
func (m *Memory) Write(addr uint64, data []byte) error {
	off, err := offset(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	if !m.Mem.Write(off, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", addr, len(data))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Memory) ReadU8(addr uint64) (uint8, error) {
	off, err := offset(addr, 1)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadByte(off)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", addr)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(addr uint64) (uint32, error) {
	off, err := offset(addr, 4)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint32Le(off)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", addr)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(addr uint64) (uint64, error) {
	off, err := offset(addr, 8)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint64Le(off)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", addr)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Memory) WriteU8(addr uint64, value uint8) error {
	off, err := offset(addr, 1)
	if err != nil {
		return err
	}
	if !m.Mem.WriteByte(off, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", addr)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(addr uint64, value uint32) error {
	off, err := offset(addr, 4)
	if err != nil {
		return err
	}
	if !m.Mem.WriteUint32Le(off, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", addr)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(addr uint64, value uint64) error {
	off, err := offset(addr, 8)
	if err != nil {
		return err
	}
	if !m.Mem.WriteUint64Le(off, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", addr)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint64 {
	return uint64(m.Mem.Size())
}
