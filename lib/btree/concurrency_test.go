package btree

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/bKV/lib/serializer"
	"github.com/stretchr/testify/require"
)

// newReapingTree creates a tree whose reaper cycles every 50ms, so that
// transaction expiry is observable within a test
func newReapingTree(t *testing.T) *BTree[int64, string] {
	t.Helper()

	tree, err := New(Config[int64, string]{
		Name:            "reaping",
		PageSize:        4,
		ReadTimeout:     50 * time.Millisecond,
		KeySerializer:   serializer.NewInt64Serializer(),
		ValueSerializer: serializer.NewStringSerializer(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })

	return tree
}

// Readers traverse stable snapshots while a writer churns the tree
func TestConcurrentReadersOneWriter(t *testing.T) {
	tree := newTestTree(t, 4)

	for i := int64(0); i < 500; i++ {
		tree.Insert(i, fmt.Sprintf("%d", i))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writer: keeps inserting and deleting
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(500); ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			tree.Insert(i, "w")
			tree.Delete(i - 250)
		}
	}()

	// Readers: every cursor must observe a sorted, consistent snapshot
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				cursor, err := tree.Browse()
				if err != nil {
					t.Error(err)
					return
				}

				var previous int64 = -1
				for cursor.HasNext() {
					tuple, ok := cursor.Next()
					if !ok {
						break
					}
					if tuple.Key <= previous {
						t.Errorf("snapshot out of order: %d after %d", tuple.Key, previous)
						cursor.Close()
						return
					}
					previous = tuple.Key
				}
				cursor.Close()
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(stop)
	wg.Wait()

	checkInvariants(t, tree)
}

// Concurrent writers are serialized by the writer lock; the count and the
// content stay exact
func TestConcurrentWriters(t *testing.T) {
	tree := newTestTree(t, 16)

	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			base := int64(w * perWriter)
			for i := int64(0); i < perWriter; i++ {
				tree.Insert(base+i, "v")
			}
		}(w)
	}
	wg.Wait()

	require.EqualValues(t, writers*perWriter, tree.NbElems())
	checkInvariants(t, tree)
}

// The reaper closes transactions that outlive the read timeout; cursors
// holding reaped transactions keep working on their pinned pages
func TestReaperClosesExpiredTransactions(t *testing.T) {
	tree := newReapingTree(t)

	for i := int64(0); i < 10; i++ {
		tree.Insert(i, "v")
	}

	cursor, err := tree.Browse()
	require.NoError(t, err)

	transaction := cursor.Transaction()
	require.False(t, transaction.IsClosed())

	require.Eventually(t, transaction.IsClosed, 5*time.Second, 10*time.Millisecond,
		"the reaper never closed the expired transaction")

	// The pinned pages stay valid for the cursor
	count := 0
	for cursor.HasNext() {
		_, ok := cursor.Next()
		require.True(t, ok)
		count++
	}
	require.Equal(t, 10, count)

	cursor.Close()
}

// Transactions closed by their owner are removed from the FIFO without
// being counted as reaped
func TestClosedTransactionsAreCollected(t *testing.T) {
	tree := newReapingTree(t)

	tree.Insert(1, "v")

	for i := 0; i < 10; i++ {
		cursor, err := tree.Browse()
		require.NoError(t, err)
		cursor.Close()
	}

	require.Eventually(t, func() bool {
		return tree.readTransactions.Len() == 0
	}, 5*time.Second, 10*time.Millisecond, "the reaper never drained closed transactions")
}

// After Close every entry point reports ErrClosed
func TestOperationsAfterClose(t *testing.T) {
	tree := newTestTree(t, 4)
	tree.Insert(1, "v")

	require.NoError(t, tree.Close())
	// Closing twice is fine
	require.NoError(t, tree.Close())

	_, _, err := tree.Insert(2, "v")
	require.ErrorIs(t, err, ErrClosed)

	_, _, err = tree.Delete(1)
	require.ErrorIs(t, err, ErrClosed)

	_, err = tree.Get(1)
	require.ErrorIs(t, err, ErrClosed)

	_, err = tree.Exist(1)
	require.ErrorIs(t, err, ErrClosed)

	_, err = tree.Browse()
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, tree.Flush(), ErrClosed)
}
