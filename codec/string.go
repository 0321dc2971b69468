package codec

import (
	"unicode/utf8"

	"github.com/wippyai/ffibridge/errors"
)

// StringCodec encodes UTF-8 text. Its FFI form is the raw UTF-8 bytes with
// no length prefix; inside composites it carries an i32 length prefix.
type StringCodec struct{}

// String is the string codec.
var String StringCodec

func (StringCodec) Lift(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseLift, data)
	}
	return string(data), nil
}

func (StringCodec) Lower(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errors.InvalidUTF8(errors.PhaseLower, []byte(s))
	}
	return []byte(s), nil
}

func (StringCodec) Size(s string) int { return 4 + len(s) }

func (StringCodec) Read(data []byte, off int) (string, int, error) {
	n, err := readLength(data, off)
	if err != nil {
		return "", 0, err
	}
	if err := need(data, off+4, n); err != nil {
		return "", 0, err
	}
	payload := data[off+4 : off+4+n]
	if !utf8.Valid(payload) {
		return "", 0, errors.InvalidUTF8(errors.PhaseLift, payload)
	}
	return string(payload), 4 + n, nil
}

func (StringCodec) Write(s string, data []byte, off int) (int, error) {
	if !utf8.ValidString(s) {
		return 0, errors.InvalidUTF8(errors.PhaseLower, []byte(s))
	}
	if err := room(data, off, 4+len(s)); err != nil {
		return 0, err
	}
	if _, err := writeLength(len(s), data, off); err != nil {
		return 0, err
	}
	copy(data[off+4:], s)
	return 4 + len(s), nil
}

// BytesCodec encodes raw bytes the way StringCodec encodes text, without
// UTF-8 validation.
type BytesCodec struct{}

// Bytes is the byte slice codec.
var Bytes BytesCodec

// Lift returns a copy of data.
func (BytesCodec) Lift(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (BytesCodec) Lower(v []byte) ([]byte, error) { return v, nil }

func (BytesCodec) Size(v []byte) int { return 4 + len(v) }

func (BytesCodec) Read(data []byte, off int) ([]byte, int, error) {
	n, err := readLength(data, off)
	if err != nil {
		return nil, 0, err
	}
	if err := need(data, off+4, n); err != nil {
		return nil, 0, err
	}
	out := make([]byte, n)
	copy(out, data[off+4:])
	return out, 4 + n, nil
}

func (BytesCodec) Write(v []byte, data []byte, off int) (int, error) {
	if err := room(data, off, 4+len(v)); err != nil {
		return 0, err
	}
	if _, err := writeLength(len(v), data, off); err != nil {
		return 0, err
	}
	copy(data[off+4:], v)
	return 4 + len(v), nil
}
