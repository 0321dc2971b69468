package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseLift   Phase = "lift"   // native to Go
	PhaseLower  Phase = "lower"  // Go to native
	PhaseCall   Phase = "call"   // status-checked native calls
	PhaseAsync  Phase = "async"  // async session protocol
	PhaseHandle Phase = "handle" // handle table lookups
	PhaseBuffer Phase = "buffer" // buffer primitives
	PhaseLoad   Phase = "load"   // library loading and binding
	PhaseConfig Phase = "config" // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindBufferOverflow           Kind = "buffer_overflow"
	KindIncompleteData           Kind = "incomplete_data"
	KindUnexpectedOptionalTag    Kind = "unexpected_optional_tag"
	KindUnexpectedEnumCase       Kind = "unexpected_enum_case"
	KindUnexpectedNullPointer    Kind = "unexpected_null_pointer"
	KindUnexpectedCallStatusCode Kind = "unexpected_call_status_code"
	KindUnexpectedCallError      Kind = "unexpected_call_error"
	KindStaleHandle              Kind = "stale_handle"
	KindNativePanic              Kind = "native_panic"

	KindInvalidUTF8      Kind = "invalid_utf8"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindUnsupported      Kind = "unsupported"
	KindContractMismatch Kind = "contract_mismatch"
	KindInstantiation    Kind = "instantiation"
)

// internalKinds are the kinds a generated binding surfaces as internal errors.
var internalKinds = map[Kind]bool{
	KindBufferOverflow:           true,
	KindIncompleteData:           true,
	KindUnexpectedOptionalTag:    true,
	KindUnexpectedEnumCase:       true,
	KindUnexpectedNullPointer:    true,
	KindUnexpectedCallStatusCode: true,
	KindUnexpectedCallError:      true,
	KindStaleHandle:              true,
	KindNativePanic:              true,
}

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Symbol string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" in ")
		b.WriteString(e.Symbol)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Message returns the detail text alone. For native panics this is the
// message the native side reported.
func (e *Error) Message() string {
	return e.Detail
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Symbol sets the native symbol involved
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// AsError returns the first bridge *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err has a bridge *Error of the given kind in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Internal reports whether err is a bridge internal error: a wire contract
// violation, a stale handle, or a native panic.
func Internal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return internalKinds[e.Kind]
	}
	return false
}

// Convenience constructors for the internal error kinds

// BufferOverflow creates an error for reads or writes past the end of a buffer
func BufferOverflow(phase Phase, off, want, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBufferOverflow,
		Detail: fmt.Sprintf("need %d bytes at offset %d, buffer holds %d", want, off, have),
		Value:  off,
	}
}

// IncompleteData creates an error for trailing bytes left after a lift
func IncompleteData(consumed, total int) *Error {
	return &Error{
		Phase:  PhaseLift,
		Kind:   KindIncompleteData,
		Detail: fmt.Sprintf("%d trailing bytes after lift (consumed %d of %d)", total-consumed, consumed, total),
		Value:  total - consumed,
	}
}

// UnexpectedOptionalTag creates an error for an optional presence byte other than 0 or 1
func UnexpectedOptionalTag(tag int8) *Error {
	return &Error{
		Phase:  PhaseLift,
		Kind:   KindUnexpectedOptionalTag,
		Detail: fmt.Sprintf("optional tag %d", tag),
		Value:  tag,
	}
}

// UnexpectedEnumCase creates an error for an unknown enum discriminant or value
func UnexpectedEnumCase(phase Phase, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedEnumCase,
		Detail: fmt.Sprintf("enum case %v", value),
		Value:  value,
	}
}

// UnexpectedNullPointer creates an error for a null object pointer
func UnexpectedNullPointer(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedNullPointer,
		Detail: "null pointer",
	}
}

// UnexpectedCallStatusCode creates an error naming an unknown status code
func UnexpectedCallStatusCode(code int8) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindUnexpectedCallStatusCode,
		Detail: fmt.Sprintf("status code %d", code),
		Value:  code,
	}
}

// UnexpectedCallError creates the error returned when a call fails with an
// application error but no handler is available to decode it
func UnexpectedCallError() *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindUnexpectedCallError,
		Detail: "unexpected CALL_ERROR",
	}
}

// StaleHandle creates an error for a handle with no live entry
func StaleHandle(h uint64) *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("handle %d", h),
		Value:  h,
	}
}

// NativePanic creates an error for a native fault. msg may be empty.
func NativePanic(msg string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativePanic,
		Detail: msg,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Symbol: name,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// ContractMismatch creates an error for a library built against a different
// bridge contract or API checksum
func ContractMismatch(symbol string, want, got uint64) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindContractMismatch,
		Symbol: symbol,
		Detail: fmt.Sprintf("expected %d, library reports %d", want, got),
		Value:  got,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a library loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
