// Package ffibridge is the runtime half of a generated foreign function binding:
// the part that lets Go call into a compiled native library across a stable
// C-compatible boundary.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	ffibridge/           Root package with the native Memory interface
//	├── native/          C ABI layouts: Buffer, CallStatus, futures, symbol names
//	│   └── nativetest/  In-process native library for tests
//	├── codec/           Lift/lower/read/write/size for every declared type
//	├── ffi/             Buffer ownership, status-checked calls, objects, callbacks
//	├── handle/          Handle tables for host objects referenced by native code
//	├── async/           Poll/continuation/complete/free protocol for native futures
//	├── engine/          wazero-backed native library (WebAssembly builds)
//	├── binding/         Codec selection from declared type strings
//	├── runtime/         Bridge lifetime: library, tables, logging, tracing
//	├── config/          YAML configuration
//	├── errors/          Structured error types
//	├── internal/
//	│   └── telemetry/   OpenTelemetry setup and span helpers
//	└── cmd/run/         CLI and interactive explorer for .wasm libraries
//
// # Quick Start
//
// Call a native function that takes and returns a string:
//
//	lib, err := engine.Load(ctx, wasmBytes, engine.WithNamespace("mylib"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.New(lib)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	greet, err := lib.Func("greet")
//	...
//	arg, err := ffi.LowerBuffer(ctx, lib, codec.String, "World")
//	...
//	out, err := runtime.Call(ctx, rt, "greet", nil, func(st *native.CallStatus) (native.Buffer, error) {
//	    res, err := greet(ctx, st, arg.Words()...)
//	    return native.BufferFromWords(res), err
//	})
//	...
//	s, err := ffi.LiftBuffer(ctx, lib, codec.String, out)
//
// # Ownership
//
// A native Buffer has exactly one owner. Buffers produced by a call belong to the
// host and are freed by the lift helpers on every path, including errors.
//
// # Thread Safety
//
// Runtime, handle tables and the async bridge are safe for concurrent use.
// Codecs are stateless values.
package ffibridge
