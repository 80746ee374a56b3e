// Package xmlrpc converts between Go values and XML-RPC values.
//
// XML-RPC has a small value model: booleans, 32-bit integers,
// strings, doubles, base64 byte strings, arrays and structs. This
// package represents those values as [Value] trees, and maps them to
// and from Go's much richer type system with [Marshal] and
// [Unmarshal].
//
// Parsing and rendering the XML text of XML-RPC documents, and
// carrying them over HTTP, are outside the scope of this package. It
// operates purely on [Value] trees, and on the [Request] and
// [Response] envelopes that carry them.
//
// # Lossy mappings
//
// Several Go types share one XML-RPC encoding, so Value trees don't
// describe themselves fully. Decoding is type-directed: the Go type
// being decoded into determines how to read a Value. The main
// ambiguities are:
//
//   - Integers wider than 32 bits, and unsigned 32-bit integers, may
//     not fit in an i4. They encode as strings holding the decimal
//     value. Decoding a string into an integer type parses it back.
//   - Optional values (Go pointers) encode as an array of zero or
//     one elements. A nil pointer and an empty slice have the same
//     encoding.
//   - Structs with no exported fields encode as an empty struct,
//     which is also the encoding of an empty map.
//   - Enums (see [Enum]) encode as a struct with a single member,
//     which is also the encoding of a one-entry map.
//   - Map keys encode as struct member names, and are parsed back
//     into the map's key type when decoding.
//
// [Shape] and [ShapeOf] describe the encoding of a Go type in a
// compact notation, which is useful for documenting an API or for
// debugging mismatches.
//
// # Struct tags
//
// The encoding of struct fields can be customized with "xmlrpc"
// struct tags:
//
//	type Item struct {
//	    // Encodes as member "id".
//	    ID int32 `xmlrpc:"id"`
//	    // Never encoded or decoded.
//	    Cache []byte `xmlrpc:"-"`
//	    // May be missing when decoding.
//	    Note string `xmlrpc:"note,optional"`
//	    // Collects members with no matching field.
//	    Extra map[string]any `xmlrpc:",rest"`
//	}
//
// # Debugging
//
// Use [SetDebugLogger] to get a trace of how each Go type gets mapped
// to XML-RPC values.
package xmlrpc
