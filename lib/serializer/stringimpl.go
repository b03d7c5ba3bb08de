package serializer

import (
	"encoding/binary"
	"io"
	"strings"
)

// NewStringSerializer creates a serializer for string elements using a
// 4 byte big-endian length prefix followed by the raw UTF-8 bytes
func NewStringSerializer() ElementSerializer[string] {
	return &stringSerializerImpl{}
}

// stringSerializerImpl implements ElementSerializer[string]
type stringSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ElementSerializer)
// --------------------------------------------------------------------------

func (s stringSerializerImpl) Serialize(element string) ([]byte, error) {
	data := []byte(element)
	result := make([]byte, 4+len(data))

	binary.BigEndian.PutUint32(result[0:4], uint32(len(data)))
	copy(result[4:], data)

	return result, nil
}

func (s stringSerializerImpl) Deserialize(bh *BufferHandler) (string, error) {
	header, err := bh.Read(4)
	if err != nil {
		return "", err
	}

	length := int(binary.BigEndian.Uint32(header))
	if length == 0 {
		return "", nil
	}

	data, err := bh.Read(length)
	if err == io.EOF {
		// The length prefix was read, so the element is truncated
		return "", io.ErrUnexpectedEOF
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func (s stringSerializerImpl) Compare(a, b string) int {
	return strings.Compare(a, b)
}
