package native

import "strings"

// Buffer primitive operation names
const (
	OpAlloc     = "alloc"
	OpFromBytes = "from_bytes"
	OpFree      = "free"
	OpReserve   = "reserve"
)

// Suffixes of the entry points derived from an async function
const (
	suffixPoll     = "_poll"
	suffixComplete = "_complete"
	suffixFree     = "_free"
)

// Role classifies an exported symbol.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleBuffer
	RoleFunction
	RolePoll
	RoleComplete
	RoleFree
	RoleObjectClone
	RoleObjectFree
	RoleContract
	RoleChecksum
)

var roleNames = [...]string{
	RoleUnknown:     "unknown",
	RoleBuffer:      "buffer",
	RoleFunction:    "function",
	RolePoll:        "poll",
	RoleComplete:    "complete",
	RoleFree:        "free",
	RoleObjectClone: "clone",
	RoleObjectFree:  "object-free",
	RoleContract:    "contract",
	RoleChecksum:    "checksum",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Symbols derives the exported symbol names of a library namespace.
//
//	ffi_<ns>_buffer_<op>          buffer primitives
//	ffi_<ns>_contract_version     bridge contract version
//	<ns>_fn_<name>                function entry point
//	<ns>_fn_<name>_poll           async poll (also _complete, _free)
//	<ns>_clone_<object>           object clone
//	<ns>_free_<object>            object free
//	<ns>_checksum_<name>          API checksum of a declared function
type Symbols struct {
	Namespace string
}

// Buffer returns the symbol of a buffer primitive.
func (s Symbols) Buffer(op string) string {
	return "ffi_" + s.Namespace + "_buffer_" + op
}

// ContractVersion returns the contract version symbol.
func (s Symbols) ContractVersion() string {
	return "ffi_" + s.Namespace + "_contract_version"
}

// Function returns the entry point of a declared function.
func (s Symbols) Function(name string) string {
	return s.Namespace + "_fn_" + name
}

// Async returns the poll, complete and free symbols derived from name.
func (s Symbols) Async(name string) (poll, complete, free string) {
	fn := s.Function(name)
	return fn + suffixPoll, fn + suffixComplete, fn + suffixFree
}

// ObjectClone returns the clone symbol of a declared object.
func (s Symbols) ObjectClone(object string) string {
	return s.Namespace + "_clone_" + object
}

// ObjectFree returns the free symbol of a declared object.
func (s Symbols) ObjectFree(object string) string {
	return s.Namespace + "_free_" + object
}

// Checksum returns the checksum symbol of a declared function.
func (s Symbols) Checksum(name string) string {
	return s.Namespace + "_checksum_" + name
}

// Classify reports the role of an exported symbol and the declared name it
// belongs to. Symbols outside the namespace are RoleUnknown.
//
// Examples (namespace "math"):
//   - "ffi_math_buffer_alloc" -> RoleBuffer, "alloc"
//   - "math_fn_add" -> RoleFunction, "add"
//   - "math_fn_fetch_poll" -> RolePoll, "fetch"
//   - "math_checksum_add" -> RoleChecksum, "add"
func (s Symbols) Classify(symbol string) (Role, string) {
	if symbol == s.ContractVersion() {
		return RoleContract, ""
	}
	if rest, ok := strings.CutPrefix(symbol, "ffi_"+s.Namespace+"_buffer_"); ok {
		return RoleBuffer, rest
	}
	if rest, ok := strings.CutPrefix(symbol, s.Namespace+"_checksum_"); ok {
		return RoleChecksum, rest
	}
	if rest, ok := strings.CutPrefix(symbol, s.Namespace+"_clone_"); ok {
		return RoleObjectClone, rest
	}
	if rest, ok := strings.CutPrefix(symbol, s.Namespace+"_free_"); ok {
		return RoleObjectFree, rest
	}
	rest, ok := strings.CutPrefix(symbol, s.Namespace+"_fn_")
	if !ok || rest == "" {
		return RoleUnknown, ""
	}
	if name, ok := strings.CutSuffix(rest, suffixPoll); ok && name != "" {
		return RolePoll, name
	}
	if name, ok := strings.CutSuffix(rest, suffixComplete); ok && name != "" {
		return RoleComplete, name
	}
	if name, ok := strings.CutSuffix(rest, suffixFree); ok && name != "" {
		return RoleFree, name
	}
	return RoleFunction, rest
}
