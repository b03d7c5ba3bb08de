package btree

// ValueHolder wraps the value(s) associated with one key inside a leaf.
// The single-value holder is what the engine uses by default; the
// multi-value holder supports duplicate-key configurations where one key
// maps to an ordered set of values.
//
// Holders are immutable once stored in a page: Add returns a new holder
// rather than mutating in place, preserving the copy-on-write guarantee
// for concurrent readers.
type ValueHolder[V any] interface {
	// Get returns the first (or only) value
	Get() V
	// Values returns all values held for the key
	Values() []V
	// Add returns a new holder with the given value added
	Add(value V) ValueHolder[V]
	// NbValues returns the number of values held
	NbValues() int
}

// --------------------------------------------------------------------------
// Single value holder
// --------------------------------------------------------------------------

// singleValueHolder holds exactly one value
type singleValueHolder[V any] struct {
	value V
}

// newSingleValueHolder wraps one value
func newSingleValueHolder[V any](value V) ValueHolder[V] {
	return singleValueHolder[V]{value: value}
}

func (h singleValueHolder[V]) Get() V {
	return h.value
}

func (h singleValueHolder[V]) Values() []V {
	return []V{h.value}
}

func (h singleValueHolder[V]) Add(value V) ValueHolder[V] {
	return multiValueHolder[V]{values: []V{h.value, value}}
}

func (h singleValueHolder[V]) NbValues() int {
	return 1
}

// --------------------------------------------------------------------------
// Multi value holder
// --------------------------------------------------------------------------

// multiValueHolder holds an ordered set of values for one key. Large sets
// could be moved into a dedicated sub-tree behind this same interface; the
// slice-backed variant is sufficient for the in-memory engine.
type multiValueHolder[V any] struct {
	values []V
}

func (h multiValueHolder[V]) Get() V {
	return h.values[0]
}

func (h multiValueHolder[V]) Values() []V {
	result := make([]V, len(h.values))
	copy(result, h.values)
	return result
}

func (h multiValueHolder[V]) Add(value V) ValueHolder[V] {
	values := make([]V, len(h.values)+1)
	copy(values, h.values)
	values[len(h.values)] = value
	return multiValueHolder[V]{values: values}
}

func (h multiValueHolder[V]) NbValues() int {
	return len(h.values)
}
