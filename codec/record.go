package codec

// Field is one field of a record codec over T.
type Field[T any] struct {
	read   func(data []byte, off int, dst *T) (int, error)
	write  func(src *T, data []byte, off int) (int, error)
	size   func(src *T) int
	unwind func(src *T, data []byte, off int)
	name   string
}

// Name returns the declared field name.
func (f Field[T]) Name() string { return f.name }

// FieldOf describes a record field of type V accessed through get and set.
func FieldOf[T, V any](name string, w Wire[V], get func(*T) V, set func(*T, V)) Field[T] {
	return Field[T]{
		name: name,
		read: func(data []byte, off int, dst *T) (int, error) {
			v, n, err := w.Read(data, off)
			if err != nil {
				return 0, err
			}
			set(dst, v)
			return n, nil
		},
		write: func(src *T, data []byte, off int) (int, error) {
			return w.Write(get(src), data, off)
		},
		size: func(src *T) int {
			return w.Size(get(src))
		},
		unwind: func(src *T, data []byte, off int) {
			unwind(w, get(src), data, off)
		},
	}
}

// Record encodes T as its fields in declaration order.
type Record[T any] struct {
	fields []Field[T]
}

// RecordOf returns the record codec with the given field order.
func RecordOf[T any](fields ...Field[T]) Record[T] {
	return Record[T]{fields: fields}
}

// Fields returns the declared fields.
func (r Record[T]) Fields() []Field[T] { return r.fields }

func (r Record[T]) Lift(data []byte) (T, error) { return Decode[T](r, data) }

func (r Record[T]) Lower(v T) ([]byte, error) { return Encode[T](r, v) }

func (r Record[T]) Size(v T) int {
	n := 0
	for _, f := range r.fields {
		n += f.size(&v)
	}
	return n
}

func (r Record[T]) Read(data []byte, off int) (T, int, error) {
	var v T
	pos := off
	for _, f := range r.fields {
		n, err := f.read(data, pos, &v)
		if err != nil {
			var zero T
			return zero, 0, err
		}
		pos += n
	}
	return v, pos - off, nil
}

func (r Record[T]) Write(v T, data []byte, off int) (int, error) {
	pos := off
	for i, f := range r.fields {
		n, err := f.write(&v, data, pos)
		if err != nil {
			r.unwindFields(&v, i, data, off)
			return 0, err
		}
		pos += n
	}
	return pos - off, nil
}

func (r Record[T]) unwind(v T, data []byte, off int) {
	r.unwindFields(&v, len(r.fields), data, off)
}

// unwindFields reverts the first n fields written at off.
func (r Record[T]) unwindFields(v *T, n int, data []byte, off int) {
	pos := off
	for _, f := range r.fields[:n] {
		f.unwind(v, data, pos)
		pos += f.size(v)
	}
}
