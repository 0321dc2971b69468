// Package async drives native async operations to completion.
//
// A native async function returns a future handle. The bridge polls it with a
// continuation; native code invokes the continuation, from any thread, when
// the future may have progressed. PollMaybeReady means poll again; PollReady
// means the result can be fetched with the status-checked complete call. The
// future handle is freed exactly once afterwards, whatever the outcome.
//
//	STARTED -> WAITING -> READY -> COMPLETED
//	              ^   |
//	              +---+  PollMaybeReady
//
// The continuation only signals a channel. Polling and completion happen on
// the goroutine that called Call.
//
// # Cancellation
//
// Native operations are not interrupted. When ctx ends while a session is
// waiting, Call returns ctx.Err() at once and the session continues detached:
// it is polled to readiness, completed, its raw result handed to the Future's
// Discard function, and freed. Bridge.Close refuses new calls and blocks until
// every open session, detached ones included, has been freed.
package async
