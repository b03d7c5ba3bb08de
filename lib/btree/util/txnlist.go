package util

import (
	"sync"
)

// TxnList is a FIFO of elements appended by many producers and walked from
// the head by a single consumer. The btree engine uses one instance as the
// read-transaction registry: every read entry point appends, the reaper
// walks from the head and stops at the first still-live element.
//
// Unlike MPSC the consumer needs to look at the head without committing to
// remove it, so the list is guarded by a mutex around the structural
// operations rather than delivered through a channel.
type TxnList[T interface{}] struct {
	mu    sync.Mutex
	first *listNode[T]
	last  *listNode[T]
	size  int
}

type listNode[T interface{}] struct {
	value *T
	next  *listNode[T]
}

// NewTxnList creates an empty list
func NewTxnList[T interface{}]() *TxnList[T] {
	return &TxnList[T]{}
}

// Append adds an element at the tail.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *TxnList[T]) Append(value *T) {
	if value == nil {
		return
	}

	n := &listNode[T]{value: value}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last == nil {
		l.first = n
		l.last = n
	} else {
		l.last.next = n
		l.last = n
	}
	l.size++
}

// Peek returns the head element without removing it, or nil if the list
// is empty.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *TxnList[T]) Peek() *T {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.first == nil {
		return nil
	}

	return l.first.value
}

// Poll removes and returns the head element, or nil if the list is empty.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *TxnList[T]) Poll() *T {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.first == nil {
		return nil
	}

	n := l.first
	l.first = n.next
	if l.first == nil {
		l.last = nil
	}
	l.size--

	// help go gc
	n.next = nil

	return n.value
}

// Clear removes all elements and returns them in FIFO order.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *TxnList[T]) Clear() []*T {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]*T, 0, l.size)
	for n := l.first; n != nil; n = n.next {
		result = append(result, n.value)
	}

	l.first = nil
	l.last = nil
	l.size = 0

	return result
}

// Len returns the number of elements currently in the list.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *TxnList[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.size
}
