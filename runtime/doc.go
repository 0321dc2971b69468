// Package runtime is the entry point for calling a loaded native library.
//
// A Runtime owns the state every call of one library shares: the async
// bridge that routes continuations, handle tables for host objects passed to
// native code, the logger and the tracer.
//
//	lib, err := engine.Load(ctx, wasm, engine.WithNamespace("mylib"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := runtime.New(lib, runtime.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
// # Typed Calls
//
// Generated bindings call through Call and CallAsync, which add a span and
// check the call status:
//
//	n, err := runtime.Call(ctx, rt, "add", nil, func(st *native.CallStatus) (uint32, error) {
//	    res, err := add(ctx, st, 2, 3)
//	    return uint32(res[0]), err
//	})
//
// # Dynamic Calls
//
// With a manifest (WithManifest or config library.manifest) functions can be
// called by name with Go values or text:
//
//	v, err := rt.Invoke(ctx, "greet", "World")
//	v, err := rt.InvokeText(ctx, "sum_pairs", "[[1, 2], [3, 4]]", "null")
//
// # Configuration
//
// FromConfig loads the library named in a config.Config, sets up zap logging
// and OpenTelemetry tracing, and verifies the library contract.
//
// # Shutdown
//
// Close waits for async calls abandoned by cancelled contexts to drain, then
// closes handle tables and everything the runtime owns.
package runtime
