package codec

import (
	"math"

	"github.com/wippyai/ffibridge/errors"
)

// Wire reads and writes values of T inside a larger byte sequence.
type Wire[T any] interface {
	// Read decodes a value at off and returns it with the number of bytes consumed.
	Read(data []byte, off int) (T, int, error)
	// Write encodes v at off and returns the number of bytes written.
	Write(v T, data []byte, off int) (int, error)
	// Size returns the encoded length of v.
	Size(v T) int
}

// Codec converts between T and its FFI form F, the value that crosses the
// call boundary directly (a primitive, a pointer, or serialized bytes).
type Codec[T, F any] interface {
	Wire[T]
	Lift(F) (T, error)
	Lower(T) (F, error)
}

// Encode lowers v into a byte slice sized by w.Size.
func Encode[T any](w Wire[T], v T) ([]byte, error) {
	n := w.Size(v)
	data := make([]byte, n)
	written, err := w.Write(v, data, 0)
	if err != nil {
		return nil, err
	}
	if written != n {
		unwind(w, v, data, 0)
		return nil, errors.New(errors.PhaseLower, errors.KindBufferOverflow).
			Detail("wrote %d bytes, size reported %d", written, n).
			Build()
	}
	return data, nil
}

// Decode lifts a value that must occupy all of data.
func Decode[T any](w Wire[T], data []byte) (T, error) {
	v, n, err := w.Read(data, 0)
	if err != nil {
		var zero T
		return zero, err
	}
	if n != len(data) {
		var zero T
		return zero, errors.IncompleteData(n, len(data))
	}
	return v, nil
}

// unwinder is implemented by wire codecs whose Write has effects beyond the
// bytes written. unwind reverts a completed Write of v at off.
type unwinder[T any] interface {
	unwind(v T, data []byte, off int)
}

// unwind reverts a completed w.Write of v at off. A failed Write has already
// reverted itself, so composites unwind only the parts written before it.
func unwind[T any](w Wire[T], v T, data []byte, off int) {
	if u, ok := w.(unwinder[T]); ok {
		u.unwind(v, data, off)
	}
}

// need checks that n bytes can be read at off.
func need(data []byte, off, n int) error {
	if off < 0 || n < 0 || off > len(data)-n {
		return errors.BufferOverflow(errors.PhaseLift, off, n, len(data))
	}
	return nil
}

// room checks that n bytes can be written at off.
func room(data []byte, off, n int) error {
	if off < 0 || n < 0 || off > len(data)-n {
		return errors.BufferOverflow(errors.PhaseLower, off, n, len(data))
	}
	return nil
}

// readLength reads an i32 length or count prefix.
func readLength(data []byte, off int) (int, error) {
	n, _, err := Int32.Read(data, off)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New(errors.PhaseLift, errors.KindBufferOverflow).
			Detail("negative length %d at offset %d", n, off).
			Value(n).
			Build()
	}
	return int(n), nil
}

// writeLength writes an i32 length or count prefix.
func writeLength(n int, data []byte, off int) (int, error) {
	if n > math.MaxInt32 {
		return 0, errors.New(errors.PhaseLower, errors.KindBufferOverflow).
			Detail("length %d exceeds i32", n).
			Value(n).
			Build()
	}
	return Int32.Write(int32(n), data, off)
}
