package serializer

import (
	"encoding/binary"
)

// NewInt64Serializer creates a serializer for int64 elements using a
// fixed 8 byte big-endian encoding
func NewInt64Serializer() ElementSerializer[int64] {
	return &int64SerializerImpl{}
}

// int64SerializerImpl implements ElementSerializer[int64]
type int64SerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ElementSerializer)
// --------------------------------------------------------------------------

func (s int64SerializerImpl) Serialize(element int64) ([]byte, error) {
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, uint64(element))
	return result, nil
}

func (s int64SerializerImpl) Deserialize(bh *BufferHandler) (int64, error) {
	in, err := bh.Read(8)
	if err != nil {
		return 0, err
	}

	return int64(binary.BigEndian.Uint64(in)), nil
}

func (s int64SerializerImpl) Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
