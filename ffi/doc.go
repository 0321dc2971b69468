// Package ffi implements the call-site half of the bridge: owning native
// buffers, running status-checked native calls, and managing object and
// callback references that cross the boundary.
//
// # Status-checked calls
//
// Every native call takes a CallStatus. Do creates one, runs the call and
// turns the status into an error:
//
//	CallSuccess          result is valid; the error buffer is never read
//	CallError            the ErrorHandler decodes the declared error type
//	CallUnexpectedError  native panic, with the message when one was sent
//	anything else        internal error naming the code
//
// # Buffer ownership
//
// A Buffer returned by a call belongs to the caller. LiftBuffer and the error
// handlers free what they are given on every path.
package ffi
