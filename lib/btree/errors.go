package btree

import "errors"

// Errors returned by the engine boundary. The structural page algorithms
// never return errors themselves; they communicate through result variants.
var (
	// ErrKeyNotFound is returned by Get when the key is absent from the tree
	ErrKeyNotFound = errors.New("key not found")

	// ErrNilKey is returned by mutating operations called with a nil key
	ErrNilKey = errors.New("key must not be nil")

	// ErrNilValue is returned by DeleteValue when called with a nil value
	ErrNilValue = errors.New("value must not be nil")

	// ErrClosed is returned by all operations after Close has been called
	ErrClosed = errors.New("btree is closed")

	// ErrNoSerializer is returned by the factory when a serializer is missing
	ErrNoSerializer = errors.New("key and value serializers must not be nil")
)
