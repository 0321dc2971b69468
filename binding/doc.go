// Package binding selects codecs from declared type strings and invokes
// native functions whose signatures are only known at run time.
//
// Types use WIT syntax. Primitive names are resolved by
// go.bytecodealliance.org/wit and generic forms become wit.TypeDef values:
//
//	u32, s64, f64, bool, string
//	list<T>, option<T>, tuple<A, B>, result<T, E>
//
// Records, enums and variants are supported when built as wit.TypeDef values.
// Values are represented dynamically:
//
//	bool, u8..u64, s8..s64   bool, uint8..uint64, int8..int64
//	f32, f64                 float32, float64
//	string                   string
//	list<u8>                 []byte
//	list<T>, tuple<...>      []any
//	option<T>                nil or the value
//	record                   map[string]any
//	enum                     case name (string)
//	variant, result          Case
//
// A manifest declares functions one per line:
//
//	add: func(a: u64, b: u64) -> u64;
//	greet: func(name: string) -> string;
//	fetch: async func(url: string) -> result<string, string>;
//
// A result<T, E> return means the function reports E values through the
// call status; they surface as *AppError.
package binding
