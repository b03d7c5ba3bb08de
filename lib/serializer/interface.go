package serializer

// ElementSerializer is the interface for all key and value serializers
// used by the btree engine. A serializer converts elements to and from
// their on-disk byte representation and additionally provides the total
// order over the element type.
type ElementSerializer[T any] interface {
	// Serialize serializes an element into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(element T) ([]byte, error)
	// Deserialize reads exactly as many bytes from the BufferHandler as
	// Serialize wrote for one element and reconstructs the element.
	// It returns io.EOF if the stream is exhausted before the first byte
	// and io.ErrUnexpectedEOF if it ends in the middle of an element.
	Deserialize(bh *BufferHandler) (T, error)
	// Compare imposes the total order over the element type.
	// It returns a negative number if a < b, zero if a == b and a
	// positive number if a > b.
	Compare(a, b T) int
}
