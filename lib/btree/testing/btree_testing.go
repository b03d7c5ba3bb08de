package testing

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/bKV/lib/btree"
)

// TreeFactory is a function that creates a new int64 -> string tree
type TreeFactory func() *btree.BTree[int64, string]

// RunBTreeTests runs a comprehensive test suite against a tree factory.
func RunBTreeTests(t *testing.T, name string, factory TreeFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("Replace", func(t *testing.T) {
			testReplace(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("DeleteAbsent", func(t *testing.T) {
			testDeleteAbsent(t, factory())
		})

		t.Run("DeleteValue", func(t *testing.T) {
			testDeleteValue(t, factory())
		})

		t.Run("Exist", func(t *testing.T) {
			testExist(t, factory())
		})

		t.Run("BrowseOrder", func(t *testing.T) {
			testBrowseOrder(t, factory())
		})

		t.Run("BrowseFrom", func(t *testing.T) {
			testBrowseFrom(t, factory())
		})

		t.Run("SnapshotIsolation", func(t *testing.T) {
			testSnapshotIsolation(t, factory())
		})

		t.Run("Count", func(t *testing.T) {
			testCount(t, factory())
		})

		t.Run("RevisionMonotonicity", func(t *testing.T) {
			testRevisionMonotonicity(t, factory())
		})

		t.Run("RandomOps", func(t *testing.T) {
			testRandomOps(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	for i := int64(0); i < 100; i++ {
		_, replaced, err := tree.Insert(i, fmt.Sprintf("value-%d", i))
		if err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
		if replaced {
			t.Errorf("Insert(%d) replaced a value in an empty tree", i)
		}
	}

	for i := int64(0); i < 100; i++ {
		value, err := tree.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", i, err)
		}
		if value != fmt.Sprintf("value-%d", i) {
			t.Errorf("Get(%d) returned %q", i, value)
		}
	}

	if _, err := tree.Get(1000); !errors.Is(err, btree.ErrKeyNotFound) {
		t.Errorf("Get on absent key should return ErrKeyNotFound, got %v", err)
	}
}

func testReplace(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	if _, _, err := tree.Insert(1, "first"); err != nil {
		t.Fatal(err)
	}

	previous, replaced, err := tree.Insert(1, "second")
	if err != nil {
		t.Fatal(err)
	}
	if !replaced {
		t.Error("Insert of an existing key should report a replacement")
	}
	if previous != "first" {
		t.Errorf("Expected previous value %q, got %q", "first", previous)
	}

	value, err := tree.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if value != "second" {
		t.Errorf("Expected %q after replacement, got %q", "second", value)
	}

	if tree.NbElems() != 1 {
		t.Errorf("Replacement must not change the element count, got %d", tree.NbElems())
	}
}

func testDelete(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	for i := int64(0); i < 50; i++ {
		tree.Insert(i, fmt.Sprintf("value-%d", i))
	}

	removed, found, err := tree.Delete(25)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("Delete of an existing key should report found")
	}
	if removed.Key != 25 || removed.Value != "value-25" {
		t.Errorf("Delete returned the wrong tuple: %v", removed)
	}

	if exists, _ := tree.Exist(25); exists {
		t.Error("Deleted key should not exist anymore")
	}

	if tree.NbElems() != 49 {
		t.Errorf("Expected 49 elements after delete, got %d", tree.NbElems())
	}
}

func testDeleteAbsent(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	tree.Insert(1, "one")

	_, found, err := tree.Delete(99)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("Delete of an absent key should report not found")
	}
	if tree.NbElems() != 1 {
		t.Errorf("Delete of an absent key must not change the count, got %d", tree.NbElems())
	}

	value, err := tree.Get(1)
	if err != nil || value != "one" {
		t.Errorf("Tree content changed after a no-op delete: %q, %v", value, err)
	}
}

func testDeleteValue(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	tree.Insert(1, "one")

	// Wrong value: nothing happens
	_, found, err := tree.DeleteValue(1, "not-one")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("DeleteValue with a non-matching value should not delete")
	}
	if exists, _ := tree.Exist(1); !exists {
		t.Fatal("Key vanished after a non-matching DeleteValue")
	}

	// Matching value: the entry goes away
	removed, found, err := tree.DeleteValue(1, "one")
	if err != nil {
		t.Fatal(err)
	}
	if !found || removed.Value != "one" {
		t.Errorf("DeleteValue with the matching value should delete, got found=%v tuple=%v", found, removed)
	}
}

func testExist(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	tree.Insert(7, "seven")

	if exists, err := tree.Exist(7); err != nil || !exists {
		t.Errorf("Exist(7) = %v, %v", exists, err)
	}
	if exists, err := tree.Exist(8); err != nil || exists {
		t.Errorf("Exist(8) = %v, %v", exists, err)
	}
}

func testBrowseOrder(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	// Insert in a scrambled order, browse must return ascending keys
	keys := []int64{42, 7, 99, 1, 64, 13, 3, 87, 55, 21, 34, 76, 2, 91, 11}
	for _, key := range keys {
		tree.Insert(key, fmt.Sprintf("value-%d", key))
	}

	cursor, err := tree.Browse()
	if err != nil {
		t.Fatal(err)
	}
	defer cursor.Close()

	var previous int64 = -1
	count := 0

	for cursor.HasNext() {
		tuple, ok := cursor.Next()
		if !ok {
			t.Fatal("HasNext was true but Next returned nothing")
		}
		if tuple.Key <= previous {
			t.Errorf("Browse returned keys out of order: %d after %d", tuple.Key, previous)
		}
		previous = tuple.Key
		count++
	}

	if count != len(keys) {
		t.Errorf("Browse returned %d tuples, expected %d", count, len(keys))
	}
}

func testBrowseFrom(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	for i := int64(0); i < 100; i += 2 {
		tree.Insert(i, fmt.Sprintf("value-%d", i))
	}

	// Start on a present key
	cursor, err := tree.BrowseFrom(50)
	if err != nil {
		t.Fatal(err)
	}
	tuple, ok := cursor.Next()
	if !ok || tuple.Key != 50 {
		t.Errorf("BrowseFrom(50) should start on 50, got %v ok=%v", tuple, ok)
	}
	cursor.Close()

	// Start on an absent key: first key greater than it
	cursor, err = tree.BrowseFrom(51)
	if err != nil {
		t.Fatal(err)
	}
	tuple, ok = cursor.Next()
	if !ok || tuple.Key != 52 {
		t.Errorf("BrowseFrom(51) should start on 52, got %v ok=%v", tuple, ok)
	}
	cursor.Close()

	// Start above every key: the cursor is exhausted immediately
	cursor, err = tree.BrowseFrom(1000)
	if err != nil {
		t.Fatal(err)
	}
	if cursor.HasNext() {
		t.Error("BrowseFrom above the key space should yield an exhausted cursor")
	}
	cursor.Close()
}

func testSnapshotIsolation(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	// Cursor on the empty tree
	empty, err := tree.Browse()
	if err != nil {
		t.Fatal(err)
	}
	defer empty.Close()

	tree.Insert(1, "a")

	if empty.HasNext() {
		t.Error("A cursor opened before an insert must not observe it")
	}

	// A fresh cursor sees the new state
	fresh, err := tree.Browse()
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()

	tuple, ok := fresh.Next()
	if !ok || tuple.Key != 1 || tuple.Value != "a" {
		t.Errorf("Fresh cursor should observe the insert, got %v ok=%v", tuple, ok)
	}

	// Snapshot survives deletion of everything it covers
	mid, err := tree.Browse()
	if err != nil {
		t.Fatal(err)
	}
	defer mid.Close()

	tree.Delete(1)

	tuple, ok = mid.Next()
	if !ok || tuple.Key != 1 {
		t.Errorf("Cursor opened before the delete must still observe key 1, got %v ok=%v", tuple, ok)
	}
}

func testCount(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	present := make(map[int64]bool)
	rng := rand.New(rand.NewSource(0x5eed))

	for i := 0; i < 1000; i++ {
		key := int64(rng.Intn(200))

		if rng.Intn(3) == 0 {
			_, found, _ := tree.Delete(key)
			if found != present[key] {
				t.Fatalf("Delete(%d) found=%v but the model says %v", key, found, present[key])
			}
			delete(present, key)
		} else {
			_, replaced, _ := tree.Insert(key, "x")
			if replaced != present[key] {
				t.Fatalf("Insert(%d) replaced=%v but the model says %v", key, replaced, present[key])
			}
			present[key] = true
		}

		if tree.NbElems() != int64(len(present)) {
			t.Fatalf("Count diverged: tree=%d model=%d", tree.NbElems(), len(present))
		}
	}
}

func testRevisionMonotonicity(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	previous := tree.Revision()

	for i := int64(0); i < 100; i++ {
		tree.Insert(i, "v")

		current := tree.Revision()
		if current <= previous {
			t.Fatalf("Revision did not increase: %d -> %d", previous, current)
		}
		previous = current
	}
}

func testRandomOps(t *testing.T, tree *btree.BTree[int64, string]) {
	defer tree.Close()

	model := make(map[int64]string)
	rng := rand.New(rand.NewSource(0xbeef))

	for i := 0; i < 2000; i++ {
		key := int64(rng.Intn(300))

		switch rng.Intn(4) {
		case 0:
			tree.Delete(key)
			delete(model, key)
		default:
			value := fmt.Sprintf("value-%d-%d", key, i)
			tree.Insert(key, value)
			model[key] = value
		}
	}

	// The tree and the model must agree entry by entry, in order
	cursor, err := tree.Browse()
	if err != nil {
		t.Fatal(err)
	}
	defer cursor.Close()

	seen := 0
	var previous int64 = -1

	for {
		tuple, ok := cursor.Next()
		if !ok {
			break
		}

		if tuple.Key <= previous {
			t.Fatalf("Keys out of order: %d after %d", tuple.Key, previous)
		}
		previous = tuple.Key

		expected, exists := model[tuple.Key]
		if !exists {
			t.Fatalf("Tree holds key %d the model does not", tuple.Key)
		}
		if tuple.Value != expected {
			t.Fatalf("Key %d holds %q, expected %q", tuple.Key, tuple.Value, expected)
		}
		seen++
	}

	if seen != len(model) {
		t.Fatalf("Tree yielded %d entries, model holds %d", seen, len(model))
	}
}
