// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Internal kinds cover wire contract violations, stale handles and native panics;
// application errors decoded from a call status are returned as the declared Go type
// and never wrapped in this package's Error.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLift, errors.KindUnexpectedEnumCase).
//		Symbol("mylib_parse_color").
//		Detail("discriminant %d", 7).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.StaleHandle(42)
//	err := errors.NativePanic("boom")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
