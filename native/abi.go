package native

// Buffer is a native-owned byte region: {capacity, length, data}.
// Data is a native address; the zero Buffer is the empty buffer.
// Exactly one side owns a Buffer at any time.
type Buffer struct {
	Capacity uint64
	Len      uint64
	Data     uint64
}

// IsEmpty reports whether the buffer carries no payload.
func (b Buffer) IsEmpty() bool {
	return b.Len == 0
}

// Words flattens the buffer into ABI argument order.
func (b Buffer) Words() []uint64 {
	return []uint64{b.Capacity, b.Len, b.Data}
}

// BufferFromWords is the inverse of Words.
func BufferFromWords(w []uint64) Buffer {
	return Buffer{Capacity: w[0], Len: w[1], Data: w[2]}
}

// ForeignBytes is a host-owned byte slice lent to the native side for the
// duration of a fromBytes call.
type ForeignBytes struct {
	Data []byte
	Len  int32
}

// Call status codes.
const (
	CallSuccess         int8 = 0
	CallError           int8 = 1
	CallUnexpectedError int8 = 2
)

// CallStatus is the out-parameter of every status-checked native call.
// The ErrorBuf becomes host-owned once the host inspects it.
type CallStatus struct {
	ErrorBuf Buffer
	Code     int8
}

// StatusWords is the number of trailing result words a status-returning
// entry point produces: code, then the error buffer.
const StatusWords = 4

// StatusFromWords decodes the trailing status words of a result vector.
func StatusFromWords(w []uint64) CallStatus {
	return CallStatus{
		Code:     int8(int32(uint32(w[0]))),
		ErrorBuf: BufferFromWords(w[1:4]),
	}
}

// Words flattens the status into result order.
func (s CallStatus) Words() []uint64 {
	return []uint64{uint64(uint32(int32(s.Code))), s.ErrorBuf.Capacity, s.ErrorBuf.Len, s.ErrorBuf.Data}
}

// FutureHandle is an opaque native token for one in-flight async operation.
type FutureHandle uint64

// Poll results delivered to a continuation.
const (
	PollReady      int8 = 0
	PollMaybeReady int8 = 1
)

// ContinuationFunc is invoked by native code, possibly from a foreign thread,
// when an async operation can make progress.
type ContinuationFunc func(data uint64, poll int8)
