package serializer

import (
	"bytes"
	"io"
)

// defaultBufferSize is the size of the intermediate buffer used when none
// is given explicitly (64 KB, enough for several pages worth of entries)
const defaultBufferSize = 64 * 1024

// --------------------------------------------------------------------------
// BufferHandler
// --------------------------------------------------------------------------

// BufferHandler is a pull-based reader over an underlying stream (typically
// a data or journal file) feeding a fixed-size intermediate buffer. It is
// handed to serializers so that they can read exactly the number of bytes
// they need without caring about buffer refills.
//
// Thread-safety: a BufferHandler is single-threaded and must not be shared
// between goroutines.
type BufferHandler struct {
	reader io.Reader // The underlying stream
	buffer []byte    // The fixed intermediate buffer
	pos    int       // Read position within buffer
	limit  int       // Number of valid bytes in buffer
}

// NewBufferHandler creates a BufferHandler reading from the given stream
// with a fixed intermediate buffer of bufferSize bytes.
func NewBufferHandler(r io.Reader, bufferSize int) *BufferHandler {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	return &BufferHandler{
		reader: r,
		buffer: make([]byte, bufferSize),
	}
}

// NewBufferHandlerFromBytes creates a BufferHandler reading from an
// in-memory byte slice. Mostly useful for tests and journal replay of
// already loaded data.
func NewBufferHandlerFromBytes(b []byte) *BufferHandler {
	return NewBufferHandler(bytes.NewReader(b), len(b)+1)
}

// Read returns the next n bytes from the stream, refilling the
// intermediate buffer from the underlying reader on demand.
//
// End-of-stream is signaled with io.EOF when it falls exactly on an
// element boundary (no byte of the requested read was available). A
// stream that ends in the middle of the requested read returns
// io.ErrUnexpectedEOF instead, which callers treat as corruption.
func (bh *BufferHandler) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, io.ErrUnexpectedEOF
	}

	result := make([]byte, 0, n)

	for len(result) < n {
		// Serve from the buffer first
		if bh.pos < bh.limit {
			available := bh.limit - bh.pos
			needed := n - len(result)
			if available > needed {
				available = needed
			}

			result = append(result, bh.buffer[bh.pos:bh.pos+available]...)
			bh.pos += available
			continue
		}

		// Buffer exhausted, refill from the stream
		read, err := bh.reader.Read(bh.buffer)
		bh.pos = 0
		bh.limit = read

		if read == 0 && err != nil {
			if err == io.EOF {
				if len(result) == 0 {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}

	return result, nil
}
