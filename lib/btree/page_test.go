package btree

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/bKV/lib/serializer"
	"github.com/stretchr/testify/require"
)

// newTestTree creates an in-memory int64 -> string tree with the given
// page size
func newTestTree(t *testing.T, pageSize int) *BTree[int64, string] {
	t.Helper()

	tree, err := New(Config[int64, string]{
		Name:            "test",
		PageSize:        pageSize,
		KeySerializer:   serializer.NewInt64Serializer(),
		ValueSerializer: serializer.NewStringSerializer(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })

	return tree
}

// checkInvariants walks the whole tree and asserts the structural B+Tree
// invariants: strict key order, fill bounds on non-root pages, uniform
// leaf depth, separator consistency and key bounds per subtree.
func checkInvariants(t *testing.T, tree *BTree[int64, string]) {
	t.Helper()

	root := tree.root.Load().page
	half := tree.pageSize / 2
	leafDepth := -1

	var walk func(p page[int64, string], depth int, isRoot bool, lower, upper *int64)
	walk = func(p page[int64, string], depth int, isRoot bool, lower, upper *int64) {
		keys := pageKeys(p)

		// Strict ascending key order within the page
		for i := 1; i < len(keys); i++ {
			require.Less(t, keys[i-1], keys[i], "keys out of order on page %v", keys)
		}

		// Bounds inherited from ancestors
		for _, key := range keys {
			if lower != nil {
				require.GreaterOrEqual(t, key, *lower, "key below subtree lower bound")
			}
			if upper != nil {
				require.Less(t, key, *upper, "key above subtree upper bound")
			}
		}

		// Fill bounds: non-root pages hold between half and pageSize
		// elements
		require.LessOrEqual(t, len(keys), tree.pageSize)
		if !isRoot {
			require.GreaterOrEqual(t, len(keys), half, "non-root page underfilled: %v", keys)
		}

		switch typed := p.(type) {
		case *leaf[int64, string]:
			if leafDepth == -1 {
				leafDepth = depth
			}
			require.Equal(t, leafDepth, depth, "leaves at different depths")

		case *node[int64, string]:
			require.Equal(t, len(keys)+1, len(typed.children))

			for i, child := range typed.children {
				childLower := lower
				childUpper := upper
				if i > 0 {
					childLower = &typed.keys[i-1]
				}
				if i < len(typed.keys) {
					childUpper = &typed.keys[i]
				}

				walk(child, depth+1, false, childLower, childUpper)

				// Separators replicate the leftmost key of the right
				// subtree
				if i > 0 {
					require.Equal(t, typed.keys[i-1], child.leftMostKey(),
						"separator %d does not match the right subtree's leftmost key", i-1)
				}
			}
		}
	}

	walk(root, 0, true, nil, nil)
}

func pageKeys(p page[int64, string]) []int64 {
	switch typed := p.(type) {
	case *leaf[int64, string]:
		return typed.keys
	case *node[int64, string]:
		return typed.keys
	}
	return nil
}

// --------------------------------------------------------------------------
// findPos
// --------------------------------------------------------------------------

func TestFindPos(t *testing.T) {
	tree := newTestTree(t, 8)

	p := basePage[int64, string]{btree: tree, keys: []int64{10, 20, 30, 40}}

	// Absent keys: positive insertion index
	require.Equal(t, 0, p.findPos(5))
	require.Equal(t, 1, p.findPos(15))
	require.Equal(t, 4, p.findPos(45))

	// Present keys: negative encoding -(matchIndex+1)
	require.Equal(t, -1, p.findPos(10))
	require.Equal(t, -3, p.findPos(30))
	require.Equal(t, -4, p.findPos(40))
}

func TestComparePtr(t *testing.T) {
	tree := newTestTree(t, 8)

	a := int64(1)
	b := int64(2)

	// Two absent keys compare equal, an absent key sorts above any
	// present key
	require.Zero(t, tree.comparePtr(nil, nil))
	require.Positive(t, tree.comparePtr(nil, &a))
	require.Negative(t, tree.comparePtr(&a, nil))
	require.Negative(t, tree.comparePtr(&a, &b))
}

func TestSetPageSize(t *testing.T) {
	tree := newTestTree(t, 0)
	require.Equal(t, DefaultPageSize, tree.PageSize())

	tree = newTestTree(t, 2)
	require.Equal(t, DefaultPageSize, tree.PageSize())

	tree = newTestTree(t, 5)
	require.Equal(t, 8, tree.PageSize())

	tree = newTestTree(t, 32)
	require.Equal(t, 32, tree.PageSize())
}

// --------------------------------------------------------------------------
// Structural scenarios
// --------------------------------------------------------------------------

// With pageSize=4, inserting 1..7 ends with a single-separator root over
// two leaves
func TestSmallInsertBrowse(t *testing.T) {
	tree := newTestTree(t, 4)

	for i := int64(1); i <= 7; i++ {
		tree.Insert(i, fmt.Sprintf("%d", i))
	}

	cursor, err := tree.Browse()
	require.NoError(t, err)
	defer cursor.Close()

	for i := int64(1); i <= 7; i++ {
		tuple, ok := cursor.Next()
		require.True(t, ok)
		require.Equal(t, i, tuple.Key)
	}
	_, ok := cursor.Next()
	require.False(t, ok)

	root, isNode := tree.root.Load().page.(*node[int64, string])
	require.True(t, isNode, "root should be an internal node")
	require.Equal(t, 1, root.nbElements())
	require.IsType(t, &leaf[int64, string]{}, root.children[0])
	require.IsType(t, &leaf[int64, string]{}, root.children[1])

	checkInvariants(t, tree)
}

// The fifth insert into a pageSize=4 leaf splits it at ceil(5/2): left
// {1,2,3}, right {4,5}, pivot 4
func TestSplitAtBoundary(t *testing.T) {
	tree := newTestTree(t, 4)

	for i := int64(1); i <= 5; i++ {
		tree.Insert(i, "v")
	}

	root := tree.root.Load().page.(*node[int64, string])
	require.Equal(t, []int64{4}, root.keys)

	left := root.children[0].(*leaf[int64, string])
	right := root.children[1].(*leaf[int64, string])
	require.Equal(t, []int64{1, 2, 3}, left.keys)
	require.Equal(t, []int64{4, 5}, right.keys)

	checkInvariants(t, tree)
}

// Deleting from a half-full leaf borrows from the richer sibling and
// refreshes the separator
func TestDeleteWithBorrow(t *testing.T) {
	tree := newTestTree(t, 4)

	// 1..8 settles as root {4,7} over leaves {1,2,3} {4,5,6} {7,8}
	for i := int64(1); i <= 8; i++ {
		tree.Insert(i, "v")
	}
	checkInvariants(t, tree)

	// Remove until the left leaf is at the minimum
	tree.Delete(3)
	checkInvariants(t, tree)

	// The next delete on the left leaf forces a borrow or merge; either
	// way every invariant must hold and all remaining keys stay reachable
	tree.Delete(1)
	checkInvariants(t, tree)

	for _, key := range []int64{2, 4, 5, 6, 7, 8} {
		exists, err := tree.Exist(key)
		require.NoError(t, err)
		require.True(t, exists, "key %d lost during rebalancing", key)
	}
	require.EqualValues(t, 6, tree.NbElems())
}

// Deleting down to a single leaf collapses the root
func TestDeleteWithMergeAndRootCollapse(t *testing.T) {
	tree := newTestTree(t, 4)

	for i := int64(1); i <= 5; i++ {
		tree.Insert(i, "v")
	}

	tree.Delete(1)
	checkInvariants(t, tree)
	tree.Delete(2)
	checkInvariants(t, tree)
	tree.Delete(3)
	checkInvariants(t, tree)

	root, isLeaf := tree.root.Load().page.(*leaf[int64, string])
	require.True(t, isLeaf, "root should have collapsed to a leaf")
	require.Equal(t, []int64{4, 5}, root.keys)
}

// Bulk churn at a small page size keeps every invariant intact
func TestInvariantsUnderChurn(t *testing.T) {
	tree := newTestTree(t, 4)

	for i := int64(0); i < 200; i++ {
		tree.Insert(i*7%200, fmt.Sprintf("%d", i))
	}
	checkInvariants(t, tree)

	for i := int64(0); i < 200; i += 3 {
		tree.Delete(i)
	}
	checkInvariants(t, tree)

	for i := int64(200); i < 300; i++ {
		tree.Insert(i, "late")
	}
	checkInvariants(t, tree)
}

// --------------------------------------------------------------------------
// Value holders
// --------------------------------------------------------------------------

func TestValueHolders(t *testing.T) {
	single := newSingleValueHolder("a")
	require.Equal(t, "a", single.Get())
	require.Equal(t, 1, single.NbValues())
	require.Equal(t, []string{"a"}, single.Values())

	multi := single.Add("b").Add("c")
	require.Equal(t, "a", multi.Get())
	require.Equal(t, 3, multi.NbValues())
	require.Equal(t, []string{"a", "b", "c"}, multi.Values())

	// The original holder is untouched
	require.Equal(t, 1, single.NbValues())
}

// --------------------------------------------------------------------------
// Argument guards
// --------------------------------------------------------------------------

func TestNilKeyGuards(t *testing.T) {
	tree, err := NewInMemory[*int64, string]("nilable",
		nilableInt64Serializer{}, serializer.NewStringSerializer())
	require.NoError(t, err)
	defer tree.Close()

	_, _, err = tree.Insert(nil, "v")
	require.ErrorIs(t, err, ErrNilKey)

	_, _, err = tree.Delete(nil)
	require.ErrorIs(t, err, ErrNilKey)

	key := int64(1)
	_, _, err = tree.Insert(&key, "v")
	require.NoError(t, err)
}

// nilableInt64Serializer orders *int64 keys with the absent-is-greater
// convention; only used to exercise the nil guards
type nilableInt64Serializer struct{}

func (nilableInt64Serializer) Serialize(element *int64) ([]byte, error) {
	return serializer.NewInt64Serializer().Serialize(*element)
}

func (nilableInt64Serializer) Deserialize(bh *serializer.BufferHandler) (*int64, error) {
	value, err := serializer.NewInt64Serializer().Deserialize(bh)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (nilableInt64Serializer) Compare(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return serializer.NewInt64Serializer().Compare(*a, *b)
	}
}
