package serializer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt64Serializer(t *testing.T) {
	s := NewInt64Serializer()

	values := []int64{0, 1, -1, 255, -255, 1 << 40, -(1 << 40), 1<<63 - 1, -(1 << 62)}

	for _, value := range values {
		data, err := s.Serialize(value)
		require.NoError(t, err)
		require.Len(t, data, 8)

		back, err := s.Deserialize(NewBufferHandlerFromBytes(data))
		require.NoError(t, err)
		require.Equal(t, value, back)
	}
}

func TestInt64SerializerCompare(t *testing.T) {
	s := NewInt64Serializer()

	require.Negative(t, s.Compare(-1, 1))
	require.Positive(t, s.Compare(1, -1))
	require.Zero(t, s.Compare(42, 42))
}

func TestStringSerializer(t *testing.T) {
	s := NewStringSerializer()

	values := []string{"", "a", "hello world", "käse", "\x00\x01\x02"}

	for _, value := range values {
		data, err := s.Serialize(value)
		require.NoError(t, err)
		require.Len(t, data, 4+len(value))

		back, err := s.Deserialize(NewBufferHandlerFromBytes(data))
		require.NoError(t, err)
		require.Equal(t, value, back)
	}
}

func TestBytesSerializer(t *testing.T) {
	s := NewBytesSerializer()

	values := [][]byte{{}, {0x00}, []byte("payload"), {0xFF, 0x00, 0x80}}

	for _, value := range values {
		data, err := s.Serialize(value)
		require.NoError(t, err)

		back, err := s.Deserialize(NewBufferHandlerFromBytes(data))
		require.NoError(t, err)
		require.Equal(t, value, back)
	}
}

func TestSerializerStream(t *testing.T) {
	// Several elements back to back must round-trip through one handler,
	// each Deserialize consuming exactly one element.
	keySer := NewInt64Serializer()
	valSer := NewStringSerializer()

	var stream []byte
	for i := int64(0); i < 10; i++ {
		k, err := keySer.Serialize(i)
		require.NoError(t, err)
		v, err := valSer.Serialize("value")
		require.NoError(t, err)
		stream = append(stream, k...)
		stream = append(stream, v...)
	}

	bh := NewBufferHandlerFromBytes(stream)
	for i := int64(0); i < 10; i++ {
		k, err := keySer.Deserialize(bh)
		require.NoError(t, err)
		require.Equal(t, i, k)

		v, err := valSer.Deserialize(bh)
		require.NoError(t, err)
		require.Equal(t, "value", v)
	}
}
