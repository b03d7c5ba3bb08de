package btree

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transaction is a read-transaction handle pinning a root page and the
// revision it was published under. As long as the transaction is held, the
// pinned root and every page reachable from it stay valid, regardless of
// concurrent mutations.
//
// A transaction that is not closed explicitly is closed by the reaper once
// it is older than the tree's read timeout.
type Transaction[K any, V any] struct {
	id           uuid.UUID
	rootPage     page[K, V]
	revision     int64
	creationDate time.Time
	closed       atomic.Bool
}

// newTransaction pins the given root at the given revision
func newTransaction[K any, V any](root page[K, V], revision int64) *Transaction[K, V] {
	return &Transaction[K, V]{
		id:           uuid.New(),
		rootPage:     root,
		revision:     revision,
		creationDate: time.Now(),
	}
}

// ID returns the unique transaction id (diagnostics only)
func (t *Transaction[K, V]) ID() uuid.UUID {
	return t.id
}

// Revision returns the revision the pinned root was published under
func (t *Transaction[K, V]) Revision() int64 {
	return t.revision
}

// CreationDate returns the instant the transaction was opened
func (t *Transaction[K, V]) CreationDate() time.Time {
	return t.creationDate
}

// Close marks the transaction closed. Closing is idempotent. Cursors still
// holding pages of the snapshot remain usable; the pages stay valid until
// the cursors themselves are dropped.
func (t *Transaction[K, V]) Close() {
	t.closed.Store(true)
}

// IsClosed returns whether the transaction has been closed
func (t *Transaction[K, V]) IsClosed() bool {
	return t.closed.Load()
}
