package codec

import (
	"github.com/wippyai/ffibridge/errors"
)

// Optional encodes *T as a presence tag followed by the value.
type Optional[T any] struct {
	elem Wire[T]
}

// OptionalOf returns the optional codec over elem.
func OptionalOf[T any](elem Wire[T]) Optional[T] {
	return Optional[T]{elem: elem}
}

func (o Optional[T]) Lift(data []byte) (*T, error) { return Decode[*T](o, data) }

func (o Optional[T]) Lower(v *T) ([]byte, error) { return Encode[*T](o, v) }

func (o Optional[T]) Size(v *T) int {
	if v == nil {
		return 1
	}
	return 1 + o.elem.Size(*v)
}

func (o Optional[T]) Read(data []byte, off int) (*T, int, error) {
	tag, _, err := Int8.Read(data, off)
	if err != nil {
		return nil, 0, err
	}
	switch tag {
	case 0:
		return nil, 1, nil
	case 1:
		v, n, err := o.elem.Read(data, off+1)
		if err != nil {
			return nil, 0, err
		}
		return &v, 1 + n, nil
	default:
		return nil, 0, errors.UnexpectedOptionalTag(tag)
	}
}

func (o Optional[T]) Write(v *T, data []byte, off int) (int, error) {
	if v == nil {
		return Int8.Write(0, data, off)
	}
	if _, err := Int8.Write(1, data, off); err != nil {
		return 0, err
	}
	n, err := o.elem.Write(*v, data, off+1)
	if err != nil {
		return 0, err
	}
	return 1 + n, nil
}

func (o Optional[T]) unwind(v *T, data []byte, off int) {
	if v != nil {
		unwind(o.elem, *v, data, off+1)
	}
}

// Sequence encodes []T as an element count followed by the elements in order.
// An empty sequence lifts to a non-nil empty slice.
type Sequence[T any] struct {
	elem Wire[T]
}

// SequenceOf returns the sequence codec over elem.
func SequenceOf[T any](elem Wire[T]) Sequence[T] {
	return Sequence[T]{elem: elem}
}

func (s Sequence[T]) Lift(data []byte) ([]T, error) { return Decode[[]T](s, data) }

func (s Sequence[T]) Lower(v []T) ([]byte, error) { return Encode[[]T](s, v) }

func (s Sequence[T]) Size(v []T) int {
	n := 4
	for _, e := range v {
		n += s.elem.Size(e)
	}
	return n
}

func (s Sequence[T]) Read(data []byte, off int) ([]T, int, error) {
	count, err := readLength(data, off)
	if err != nil {
		return nil, 0, err
	}
	// A hostile count must not drive the allocation.
	out := make([]T, 0, min(count, len(data)-off-4))
	pos := off + 4
	for range count {
		v, n, err := s.elem.Read(data, pos)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return nil, 0, zeroWidth(errors.PhaseLift, count)
		}
		out = append(out, v)
		pos += n
	}
	return out, pos - off, nil
}

func (s Sequence[T]) Write(v []T, data []byte, off int) (int, error) {
	if _, err := writeLength(len(v), data, off); err != nil {
		return 0, err
	}
	pos := off + 4
	for i, e := range v {
		if s.elem.Size(e) == 0 {
			s.unwindElems(v[:i], data, off)
			return 0, zeroWidth(errors.PhaseLower, len(v))
		}
		n, err := s.elem.Write(e, data, pos)
		if err != nil {
			s.unwindElems(v[:i], data, off)
			return 0, err
		}
		pos += n
	}
	return pos - off, nil
}

func (s Sequence[T]) unwind(v []T, data []byte, off int) {
	s.unwindElems(v, data, off)
}

// unwindElems reverts the elements of v written at off.
func (s Sequence[T]) unwindElems(v []T, data []byte, off int) {
	pos := off + 4
	for _, e := range v {
		unwind(s.elem, e, data, pos)
		pos += s.elem.Size(e)
	}
}

// Map encodes map[K]V as an entry count followed by key/value pairs.
type Map[K comparable, V any] struct {
	key   Wire[K]
	value Wire[V]
}

// MapOf returns the map codec over key and value.
func MapOf[K comparable, V any](key Wire[K], value Wire[V]) Map[K, V] {
	return Map[K, V]{key: key, value: value}
}

func (m Map[K, V]) Lift(data []byte) (map[K]V, error) { return Decode[map[K]V](m, data) }

func (m Map[K, V]) Lower(v map[K]V) ([]byte, error) { return Encode[map[K]V](m, v) }

func (m Map[K, V]) Size(v map[K]V) int {
	n := 4
	for k, e := range v {
		n += m.key.Size(k) + m.value.Size(e)
	}
	return n
}

func (m Map[K, V]) Read(data []byte, off int) (map[K]V, int, error) {
	count, err := readLength(data, off)
	if err != nil {
		return nil, 0, err
	}
	out := make(map[K]V, min(count, len(data)-off-4))
	pos := off + 4
	for range count {
		k, n, err := m.key.Read(data, pos)
		if err != nil {
			return nil, 0, err
		}
		pos += n
		v, vn, err := m.value.Read(data, pos)
		if err != nil {
			return nil, 0, err
		}
		if n+vn == 0 {
			return nil, 0, zeroWidth(errors.PhaseLift, count)
		}
		pos += vn
		out[k] = v
	}
	return out, pos - off, nil
}

func (m Map[K, V]) Write(v map[K]V, data []byte, off int) (int, error) {
	if _, err := writeLength(len(v), data, off); err != nil {
		return 0, err
	}
	pos := off + 4
	written := 0
	for k, e := range v {
		if m.key.Size(k)+m.value.Size(e) == 0 {
			m.unwindEntries(v, written, data, off)
			return 0, zeroWidth(errors.PhaseLower, len(v))
		}
		keyPos := pos
		n, err := m.key.Write(k, data, pos)
		if err != nil {
			m.unwindEntries(v, written, data, off)
			return 0, err
		}
		pos += n
		n, err = m.value.Write(e, data, pos)
		if err != nil {
			unwind(m.key, k, data, keyPos)
			m.unwindEntries(v, written, data, off)
			return 0, err
		}
		pos += n
		written++
	}
	return pos - off, nil
}

func (m Map[K, V]) unwind(v map[K]V, data []byte, off int) {
	m.unwindEntries(v, len(v), data, off)
}

// unwindEntries reverts the first count entries written at off. Map order is
// not stable, so the keys are read back from data.
func (m Map[K, V]) unwindEntries(v map[K]V, count int, data []byte, off int) {
	pos := off + 4
	for range count {
		k, n, err := m.key.Read(data, pos)
		if err != nil {
			return
		}
		e := v[k]
		unwind(m.key, k, data, pos)
		pos += n
		unwind(m.value, e, data, pos)
		pos += m.value.Size(e)
	}
}

// zeroWidth rejects sequences and maps whose entries occupy no bytes. Their
// count alone would drive the decode loop.
func zeroWidth(phase errors.Phase, count int) *errors.Error {
	return errors.New(phase, errors.KindUnsupported).
		Detail("zero-width entries in a collection of %d", count).
		Value(count).
		Build()
}
