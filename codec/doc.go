// Package codec implements the wire format shared by Go and the native side.
//
// Every declared type has a codec value built at compile time from the
// constructors in this package. Composite codecs delegate to their element
// codecs; nothing is discovered at runtime.
//
// # Wire Format
//
// All integers are big-endian.
//
//	bool, ints, floats   fixed width, identity lift/lower
//	string, bytes        i32 length, payload
//	sequence<T>          i32 count, elements in order
//	map<K, V>            i32 count, key/value pairs
//	optional<T>          i8 tag (0 absent, 1 present), value if present
//	record               fields in declaration order
//	enum / variant       i32 discriminant (1-based), payload
//	object               u64 native pointer
//	callback             u64 handle into a handle table
//	duration             u64 seconds, u32 nanoseconds
//	timestamp            i64 seconds (signed), u32 nanoseconds
//
// Reading past the end of the input is a buffer overflow; a top-level lift
// that leaves bytes unread fails with incomplete data. Neither returns a
// partial value.
//
// # Usage
//
//	type Point struct{ X, Y float64 }
//
//	var pointCodec = codec.RecordOf(
//	    codec.FieldOf("x", codec.Float64, func(p *Point) float64 { return p.X }, func(p *Point, v float64) { p.X = v }),
//	    codec.FieldOf("y", codec.Float64, func(p *Point) float64 { return p.Y }, func(p *Point, v float64) { p.Y = v }),
//	)
//
//	data, err := pointCodec.Lower(Point{1, 2})
//	p, err := pointCodec.Lift(data)
package codec
