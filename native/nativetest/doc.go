// Package nativetest provides an in-process native.Library for tests.
//
// Memory is a growable arena addressed by offset, with address 0 reserved as
// null. Every buffer allocation and free is counted, so tests can assert that
// a code path released everything it was handed:
//
//	lib := nativetest.New()
//	lib.Register("greet", func(ctx context.Context, st *native.CallStatus, args []uint64) []uint64 {
//	    return lib.NewBuffer([]byte("hi")).Words()
//	})
//	...
//	if n := lib.LiveBuffers(); n != 0 {
//	    t.Fatalf("%d buffers leaked", n)
//	}
//
// Handlers that panic are reported to the caller as CallUnexpectedError with
// the panic value as message, the way a native library reports a caught panic.
// Futures simulate native async operations with a configurable number of
// not-ready wakes.
package nativetest
