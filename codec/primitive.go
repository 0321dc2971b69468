package codec

import (
	"encoding/binary"
	"math"
)

// Primitive is a fixed-width codec whose FFI form is the value itself.
type Primitive[T any] struct {
	get   func([]byte) T
	put   func([]byte, T)
	width int
}

// Lift is the identity.
func (p Primitive[T]) Lift(v T) (T, error) { return v, nil }

// Lower is the identity.
func (p Primitive[T]) Lower(v T) (T, error) { return v, nil }

func (p Primitive[T]) Size(T) int { return p.width }

func (p Primitive[T]) Read(data []byte, off int) (T, int, error) {
	if err := need(data, off, p.width); err != nil {
		var zero T
		return zero, 0, err
	}
	return p.get(data[off:]), p.width, nil
}

func (p Primitive[T]) Write(v T, data []byte, off int) (int, error) {
	if err := room(data, off, p.width); err != nil {
		return 0, err
	}
	p.put(data[off:], v)
	return p.width, nil
}

var be = binary.BigEndian

var (
	Bool = Primitive[bool]{
		width: 1,
		get:   func(b []byte) bool { return b[0] != 0 },
		put: func(b []byte, v bool) {
			b[0] = 0
			if v {
				b[0] = 1
			}
		},
	}
	Int8 = Primitive[int8]{
		width: 1,
		get:   func(b []byte) int8 { return int8(b[0]) },
		put:   func(b []byte, v int8) { b[0] = byte(v) },
	}
	Uint8 = Primitive[uint8]{
		width: 1,
		get:   func(b []byte) uint8 { return b[0] },
		put:   func(b []byte, v uint8) { b[0] = v },
	}
	Int16 = Primitive[int16]{
		width: 2,
		get:   func(b []byte) int16 { return int16(be.Uint16(b)) },
		put:   func(b []byte, v int16) { be.PutUint16(b, uint16(v)) },
	}
	Uint16 = Primitive[uint16]{
		width: 2,
		get:   be.Uint16,
		put:   be.PutUint16,
	}
	Int32 = Primitive[int32]{
		width: 4,
		get:   func(b []byte) int32 { return int32(be.Uint32(b)) },
		put:   func(b []byte, v int32) { be.PutUint32(b, uint32(v)) },
	}
	Uint32 = Primitive[uint32]{
		width: 4,
		get:   be.Uint32,
		put:   be.PutUint32,
	}
	Int64 = Primitive[int64]{
		width: 8,
		get:   func(b []byte) int64 { return int64(be.Uint64(b)) },
		put:   func(b []byte, v int64) { be.PutUint64(b, uint64(v)) },
	}
	Uint64 = Primitive[uint64]{
		width: 8,
		get:   be.Uint64,
		put:   be.PutUint64,
	}
	Float32 = Primitive[float32]{
		width: 4,
		get:   func(b []byte) float32 { return math.Float32frombits(be.Uint32(b)) },
		put:   func(b []byte, v float32) { be.PutUint32(b, math.Float32bits(v)) },
	}
	Float64 = Primitive[float64]{
		width: 8,
		get:   func(b []byte) float64 { return math.Float64frombits(be.Uint64(b)) },
		put:   func(b []byte, v float64) { be.PutUint64(b, math.Float64bits(v)) },
	}
)
