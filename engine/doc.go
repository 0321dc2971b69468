// Package engine runs a native library compiled to WebAssembly on wazero and
// exposes it as a native.Library.
//
// # Exports
//
// A library built for namespace ns exports:
//
//	ffi_<ns>_buffer_alloc(size i64) -> (cap, len, data i64, status...)
//	ffi_<ns>_buffer_free(cap, len, data i64) -> (status...)
//	ffi_<ns>_buffer_reserve(cap, len, data, additional i64) -> (cap, len, data i64, status...)
//	ffi_<ns>_contract_version() -> i32
//	<ns>_checksum_<name>() -> i32
//	<ns>_fn_<name>(args...) -> (results..., status...)
//	<ns>_fn_<name>_poll(future, data i64)
//	<ns>_fn_<name>_complete(future i64) -> (results..., status...)
//	<ns>_fn_<name>_free(future i64)
//
// where status is (code i32, cap i64, len i64, data i64). fromBytes has no
// export: the host allocates and copies into linear memory itself.
//
// # Continuations
//
// The library imports ffibridge.continuation(data i64, poll i32). Each poll
// registers the caller's continuation with the Host and passes a host token
// as data; the import resolves the token and wakes the caller.
//
// # Usage
//
//	lib, err := engine.Load(ctx, wasmBytes,
//	    engine.WithNamespace("mylib"),
//	    engine.WithMemoryLimitPages(1024))
//	if err != nil {
//	    return err
//	}
//	defer lib.Close(ctx)
//
//	for _, e := range lib.Exports() {
//	    fmt.Println(e.Role, e.Symbol, e.Signature())
//	}
package engine
