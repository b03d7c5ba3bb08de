package serializer

import (
	"bytes"
	"encoding/binary"
	"io"
)

// NewBytesSerializer creates a serializer for raw []byte elements using a
// 4 byte big-endian length prefix followed by the bytes themselves
func NewBytesSerializer() ElementSerializer[[]byte] {
	return &bytesSerializerImpl{}
}

// bytesSerializerImpl implements ElementSerializer[[]byte]
type bytesSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ElementSerializer)
// --------------------------------------------------------------------------

func (s bytesSerializerImpl) Serialize(element []byte) ([]byte, error) {
	result := make([]byte, 4+len(element))

	binary.BigEndian.PutUint32(result[0:4], uint32(len(element)))
	copy(result[4:], element)

	return result, nil
}

func (s bytesSerializerImpl) Deserialize(bh *BufferHandler) ([]byte, error) {
	header, err := bh.Read(4)
	if err != nil {
		return nil, err
	}

	length := int(binary.BigEndian.Uint32(header))
	if length == 0 {
		return []byte{}, nil
	}

	data, err := bh.Read(length)
	if err == io.EOF {
		// The length prefix was read, so the element is truncated
		return nil, io.ErrUnexpectedEOF
	}

	return data, err
}

func (s bytesSerializerImpl) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}
