// Package serializer provides element serialization capabilities for the
// btree engine. It defines a common interface and multiple implementations
// for converting keys and values to and from their on-disk representation,
// and for imposing the total order the engine indexes by.
//
// The package focuses on:
//   - Providing a consistent interface for different element types
//   - Self-delimiting encodings so the engine never needs per-record framing
//   - Deriving the key comparator from the key serializer so order on disk
//     and order in the tree can never diverge
//
// Key Components:
//
//   - ElementSerializer: Core interface that all serializer implementations
//     must satisfy. Serialize produces a self-delimiting byte sequence,
//     Deserialize reads exactly that sequence back from a BufferHandler,
//     and Compare provides the total order over the element type.
//
//   - BufferHandler: A pull-based reader over an underlying stream feeding
//     a fixed-size intermediate buffer. Serializers read exactly the number
//     of bytes they need; refills from the stream happen on demand. A clean
//     end-of-stream on an element boundary surfaces as io.EOF, a truncated
//     element as io.ErrUnexpectedEOF.
//
//   - int64SerializerImpl: Fixed 8 byte big-endian encoding with numeric
//     ordering. The natural choice for integer keys.
//
//   - stringSerializerImpl: 4 byte big-endian length prefix followed by the
//     raw UTF-8 bytes, ordered lexicographically.
//
//   - bytesSerializerImpl: 4 byte big-endian length prefix followed by the
//     raw bytes, ordered with bytes.Compare. Used for opaque values.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization. The
//	BufferHandler carries read state and is single-threaded.
package serializer
