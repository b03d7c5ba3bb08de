package btree

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/bKV/lib/serializer"
	"github.com/stretchr/testify/require"
)

func newDiskTree(t *testing.T, dir string) *BTree[int64, string] {
	t.Helper()

	tree, err := New(Config[int64, string]{
		Name:            "persist",
		Directory:       dir,
		PageSize:        4,
		KeySerializer:   serializer.NewInt64Serializer(),
		ValueSerializer: serializer.NewStringSerializer(),
	})
	require.NoError(t, err)

	return tree
}

// waitForJournal polls until the journal file holds at least size bytes.
// The journal goroutine fsyncs every record, so the size becomes visible
// shortly after the mutation returns.
func waitForJournal(t *testing.T, path string, size int64) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if info, err := os.Stat(path); err == nil && info.Size() >= size {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("journal %s never reached %d bytes", path, size)
}

// Flush, close, reopen: the tree contents round-trip through the data
// file
func TestFlushReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()

	tree := newDiskTree(t, dir)
	for i := int64(0); i < 100; i++ {
		tree.Insert(i, fmt.Sprintf("value-%d", i))
	}
	require.NoError(t, tree.Flush())
	require.NoError(t, tree.Close())

	reopened := newDiskTree(t, dir)
	defer reopened.Close()

	require.EqualValues(t, 100, reopened.NbElems())

	cursor, err := reopened.Browse()
	require.NoError(t, err)
	defer cursor.Close()

	for i := int64(0); i < 100; i++ {
		tuple, ok := cursor.Next()
		require.True(t, ok)
		require.Equal(t, i, tuple.Key)
		require.Equal(t, fmt.Sprintf("value-%d", i), tuple.Value)
	}
	_, ok := cursor.Next()
	require.False(t, ok)
}

// Data file layout: 8 byte big-endian count, then the sorted key/value
// pairs
func TestDataFileLayout(t *testing.T) {
	dir := t.TempDir()

	tree := newDiskTree(t, dir)
	tree.Insert(1, "a")
	tree.Insert(2, "b")
	require.NoError(t, tree.Flush())

	data, err := os.ReadFile(tree.File())
	require.NoError(t, err)
	require.EqualValues(t, 2, binary.BigEndian.Uint64(data[:8]))

	bh := serializer.NewBufferHandlerFromBytes(data[8:])
	keySer := serializer.NewInt64Serializer()
	valSer := serializer.NewStringSerializer()

	key, err := keySer.Deserialize(bh)
	require.NoError(t, err)
	require.EqualValues(t, 1, key)
	value, err := valSer.Deserialize(bh)
	require.NoError(t, err)
	require.Equal(t, "a", value)

	key, err = keySer.Deserialize(bh)
	require.NoError(t, err)
	require.EqualValues(t, 2, key)

	require.NoError(t, tree.Close())
}

// Mutations after a flush survive a crash through journal replay: insert,
// flush, insert more, drop the tree without closing, reopen
func TestCrashRecoveryThroughJournal(t *testing.T) {
	dir := t.TempDir()

	tree := newDiskTree(t, dir)
	tree.Insert(1, "a")
	tree.Insert(2, "b")
	require.NoError(t, tree.Flush())

	tree.Insert(3, "c")
	// tag + 8 byte key + length-prefixed 1 byte value
	waitForJournal(t, tree.Journal(), 14)

	// Simulated crash: the tree is abandoned, Close is never called.
	// The journal goroutine already forced the record to disk.
	journalPath := tree.Journal()

	reopened := newDiskTree(t, dir)
	defer reopened.Close()

	require.EqualValues(t, 3, reopened.NbElems())
	for key, expected := range map[int64]string{1: "a", 2: "b", 3: "c"} {
		value, err := reopened.Get(key)
		require.NoError(t, err)
		require.Equal(t, expected, value)
	}

	// Replay completion truncates the journal
	info, err := os.Stat(journalPath)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

// Deletions are journaled too
func TestJournalReplaysDeletions(t *testing.T) {
	dir := t.TempDir()

	tree := newDiskTree(t, dir)
	tree.Insert(1, "a")
	tree.Insert(2, "b")
	require.NoError(t, tree.Flush())

	tree.Delete(1)
	tree.Insert(4, "d")
	// deletion record (9 bytes) plus addition record (14 bytes)
	waitForJournal(t, tree.Journal(), 23)

	reopened := newDiskTree(t, dir)
	defer reopened.Close()

	require.EqualValues(t, 2, reopened.NbElems())
	_, err := reopened.Get(1)
	require.ErrorIs(t, err, ErrKeyNotFound)

	value, err := reopened.Get(4)
	require.NoError(t, err)
	require.Equal(t, "d", value)
}

// Opening a data file that already contains the journaled modifications
// yields the same tree as replaying them (replay idempotence)
func TestJournalReplayIdempotence(t *testing.T) {
	dirReplayed := t.TempDir()
	dirFlushed := t.TempDir()

	build := func(dir string, flushLast bool) {
		tree := newDiskTree(t, dir)
		tree.Insert(1, "a")
		tree.Insert(2, "b")
		require.NoError(t, tree.Flush())
		tree.Insert(3, "c")
		tree.Delete(1)
		if flushLast {
			require.NoError(t, tree.Flush())
			require.NoError(t, tree.Close())
		} else {
			// addition record (14 bytes) plus deletion record (9 bytes)
			waitForJournal(t, tree.Journal(), 23)
		}
	}

	build(dirReplayed, false)
	build(dirFlushed, true)

	replayed := newDiskTree(t, dirReplayed)
	defer replayed.Close()
	flushed := newDiskTree(t, dirFlushed)
	defer flushed.Close()

	require.Equal(t, flushed.NbElems(), replayed.NbElems())

	rc, err := replayed.Browse()
	require.NoError(t, err)
	defer rc.Close()
	fc, err := flushed.Browse()
	require.NoError(t, err)
	defer fc.Close()

	for {
		rt, rok := rc.Next()
		ft, fok := fc.Next()
		require.Equal(t, fok, rok)
		if !rok {
			break
		}
		require.Equal(t, ft, rt)
	}
}

// A journal truncated mid-record (crash during a write) replays its
// intact prefix and discards the tail
func TestTruncatedJournalReplay(t *testing.T) {
	dir := t.TempDir()

	tree := newDiskTree(t, dir)
	tree.Insert(1, "a")
	require.NoError(t, tree.Flush())
	tree.Insert(2, "b")
	waitForJournal(t, tree.Journal(), 14)
	journalPath := tree.Journal()

	// Cut the last record short
	info, err := os.Stat(journalPath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(journalPath, info.Size()-3))

	reopened := newDiskTree(t, dir)
	defer reopened.Close()

	// Key 1 came from the data file; the truncated record for key 2 is
	// discarded
	_, err = reopened.Get(1)
	require.NoError(t, err)
	_, err = reopened.Get(2)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

// Flush leaves no temporary files behind
func TestCheckpointCleansUp(t *testing.T) {
	dir := t.TempDir()

	tree := newDiskTree(t, dir)
	defer tree.Close()

	for i := int64(0); i < 20; i++ {
		tree.Insert(i, "v")
		if i%5 == 0 {
			require.NoError(t, tree.Flush())
		}
	}
	require.NoError(t, tree.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		require.NotContains(t, []string{".tmp", ".bak"}, ext, "leftover checkpoint file %s", entry.Name())
	}
}

// In-memory trees ignore Flush and never touch the filesystem
func TestInMemoryFlushIsNoop(t *testing.T) {
	tree, err := NewInMemory("mem", serializer.NewInt64Serializer(), serializer.NewStringSerializer())
	require.NoError(t, err)
	defer tree.Close()

	tree.Insert(1, "a")
	require.NoError(t, tree.Flush())
	require.True(t, tree.IsInMemory())
	require.Empty(t, tree.File())
}
