// Package native defines the C-compatible surface of a native library as seen
// from Go: buffer and call status layouts, async operation handles, the
// continuation callback signature, and the deterministic symbol names a
// generated library exports.
//
// A Library is anything that can run those entry points. The engine package
// provides one backed by a WebAssembly build of the library; the nativetest
// package provides an in-process one for tests.
package native
