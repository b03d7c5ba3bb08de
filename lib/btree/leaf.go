package btree

import (
	"fmt"
	"strings"
)

// leaf is a B+Tree leaf page: up to pageSize ordered keys, and for each
// key a ValueHolder carrying its value(s).
type leaf[K any, V any] struct {
	basePage[K, V]
	values []ValueHolder[V]
}

// newEmptyLeaf creates the initial empty root leaf at revision 0
func newEmptyLeaf[K any, V any](btree *BTree[K, V]) *leaf[K, V] {
	return &leaf[K, V]{
		basePage: basePage[K, V]{
			btree:    btree,
			recordId: btree.generateRecordId(),
		},
	}
}

// newLeaf creates a leaf with the given content and a fresh recordId
func newLeaf[K any, V any](btree *BTree[K, V], revision int64, keys []K, values []ValueHolder[V]) *leaf[K, V] {
	return &leaf[K, V]{
		basePage: basePage[K, V]{
			btree:    btree,
			keys:     keys,
			revision: revision,
			recordId: btree.generateRecordId(),
		},
		values: values,
	}
}

// --------------------------------------------------------------------------
// Insert
// --------------------------------------------------------------------------

func (l *leaf[K, V]) insert(revision int64, key K, value V) insertResult[K, V] {
	pos := l.findPos(key)

	// Key already present: copy the leaf, replace the value holder
	if pos < 0 {
		index := -(pos + 1)
		oldValue := l.values[index].Get()

		keys, values := l.copyContent()
		values[index] = newSingleValueHolder(value)

		return modifyResult[K, V]{
			modifiedPage:  newLeaf(l.btree, revision, keys, values),
			modifiedValue: &oldValue,
		}
	}

	// Room left: copy the leaf with the new entry inserted at pos
	if len(l.keys) < l.btree.pageSize {
		keys := make([]K, len(l.keys)+1)
		values := make([]ValueHolder[V], len(l.values)+1)

		copy(keys, l.keys[:pos])
		keys[pos] = key
		copy(keys[pos+1:], l.keys[pos:])

		copy(values, l.values[:pos])
		values[pos] = newSingleValueHolder(value)
		copy(values[pos+1:], l.values[pos:])

		return modifyResult[K, V]{modifiedPage: newLeaf(l.btree, revision, keys, values)}
	}

	// Full leaf: split the virtual sequence of pageSize+1 entries
	return l.addAndSplit(revision, pos, key, value)
}

// addAndSplit splits a full leaf. The virtual sequence of pageSize+1
// entries is cut at ceil((pageSize+1)/2): the left leaf keeps the first
// half, the pivot promoted to the parent is the leftmost key of the right
// leaf.
func (l *leaf[K, V]) addAndSplit(revision int64, pos int, key K, value V) insertResult[K, V] {
	total := len(l.keys) + 1

	allKeys := make([]K, total)
	allValues := make([]ValueHolder[V], total)

	copy(allKeys, l.keys[:pos])
	allKeys[pos] = key
	copy(allKeys[pos+1:], l.keys[pos:])

	copy(allValues, l.values[:pos])
	allValues[pos] = newSingleValueHolder(value)
	copy(allValues[pos+1:], l.values[pos:])

	middle := (total + 1) / 2

	left := newLeaf(l.btree, revision, allKeys[:middle:middle], allValues[:middle:middle])
	right := newLeaf(l.btree, revision, allKeys[middle:], allValues[middle:])

	return splitResult[K, V]{
		pivot:     right.keys[0],
		leftPage:  left,
		rightPage: right,
	}
}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

func (l *leaf[K, V]) remove(revision int64, key K, parent *node[K, V], parentPos int) deleteResult[K, V] {
	pos := l.findPos(key)
	if pos >= 0 {
		return notPresentResult[K, V]{}
	}

	index := -(pos + 1)
	removed := Tuple[K, V]{Key: l.keys[index], Value: l.values[index].Get()}

	half := l.btree.pageSize / 2

	// The root may shrink below the half fill; so may a page that stays
	// at or above it after the removal
	if parent == nil || len(l.keys)-1 >= half {
		newPage := l.copyWithRemove(revision, index)

		var newLeftMost *K
		if index == 0 && len(newPage.keys) > 0 {
			newLeftMost = &newPage.keys[0]
		}

		return removeResult[K, V]{
			modifiedPage:   newPage,
			removedElement: removed,
			newLeftMost:    newLeftMost,
		}
	}

	// Underflow: borrow from a sibling that is above the minimum,
	// otherwise merge with it
	siblingPos := parent.selectSibling(parentPos)
	sibling := parent.children[siblingPos].(*leaf[K, V])
	fromLeft := siblingPos < parentPos

	if sibling.nbElements() > half {
		return l.borrowFromSibling(revision, index, sibling, fromLeft, removed)
	}

	return l.mergeWithSibling(revision, index, sibling, fromLeft, removed)
}

// borrowFromSibling rebuilds this leaf without the removed entry and with
// one element taken across the boundary from the sibling.
func (l *leaf[K, V]) borrowFromSibling(revision int64, index int, sibling *leaf[K, V], fromLeft bool, removed Tuple[K, V]) deleteResult[K, V] {
	remainingKeys, remainingValues := l.contentWithout(index)

	var keys []K
	var values []ValueHolder[V]
	var newSibling *leaf[K, V]

	if fromLeft {
		// Take the sibling's last element, it becomes our new leftmost
		last := sibling.nbElements() - 1

		keys = append([]K{sibling.keys[last]}, remainingKeys...)
		values = append([]ValueHolder[V]{sibling.values[last]}, remainingValues...)

		sibKeys, sibValues := sibling.copyContent()
		newSibling = newLeaf(l.btree, revision, sibKeys[:last:last], sibValues[:last:last])
	} else {
		// Take the sibling's first element, it becomes our new last
		keys = append(remainingKeys, sibling.keys[0])
		values = append(remainingValues, sibling.values[0])

		sibKeys, sibValues := sibling.copyContent()
		newSibling = newLeaf(l.btree, revision, sibKeys[1:], sibValues[1:])
	}

	return borrowedResult[K, V]{
		modifiedPage:    newLeaf(l.btree, revision, keys, values),
		modifiedSibling: newSibling,
		removedElement:  removed,
		fromLeft:        fromLeft,
	}
}

// mergeWithSibling combines this leaf (minus the removed entry) with a
// minimum-fill sibling into a single leaf.
func (l *leaf[K, V]) mergeWithSibling(revision int64, index int, sibling *leaf[K, V], fromLeft bool, removed Tuple[K, V]) deleteResult[K, V] {
	remainingKeys, remainingValues := l.contentWithout(index)

	var keys []K
	var values []ValueHolder[V]

	if fromLeft {
		keys = append(append([]K{}, sibling.keys...), remainingKeys...)
		values = append(append([]ValueHolder[V]{}, sibling.values...), remainingValues...)
	} else {
		keys = append(remainingKeys, sibling.keys...)
		values = append(remainingValues, sibling.values...)
	}

	return mergedResult[K, V]{
		modifiedPage:   newLeaf(l.btree, revision, keys, values),
		removedElement: removed,
		fromLeft:       fromLeft,
	}
}

// copyWithRemove returns a copy of the leaf without the entry at index
func (l *leaf[K, V]) copyWithRemove(revision int64, index int) *leaf[K, V] {
	keys, values := l.contentWithout(index)
	return newLeaf(l.btree, revision, keys, values)
}

// contentWithout returns fresh key and value slices omitting the entry at
// the given index
func (l *leaf[K, V]) contentWithout(index int) ([]K, []ValueHolder[V]) {
	keys := make([]K, 0, len(l.keys)-1)
	values := make([]ValueHolder[V], 0, len(l.values)-1)

	keys = append(append(keys, l.keys[:index]...), l.keys[index+1:]...)
	values = append(append(values, l.values[:index]...), l.values[index+1:]...)

	return keys, values
}

// copyContent returns fresh copies of the key and value slices
func (l *leaf[K, V]) copyContent() ([]K, []ValueHolder[V]) {
	keys := make([]K, len(l.keys))
	values := make([]ValueHolder[V], len(l.values))
	copy(keys, l.keys)
	copy(values, l.values)
	return keys, values
}

// --------------------------------------------------------------------------
// Lookups and browsing
// --------------------------------------------------------------------------

func (l *leaf[K, V]) get(key K) (V, bool) {
	pos := l.findPos(key)
	if pos >= 0 {
		var zero V
		return zero, false
	}

	return l.values[-(pos + 1)].Get(), true
}

func (l *leaf[K, V]) exist(key K) bool {
	return l.findPos(key) < 0
}

func (l *leaf[K, V]) position(stack []parentPos[K, V]) []parentPos[K, V] {
	return append(stack, parentPos[K, V]{page: l, pos: 0})
}

func (l *leaf[K, V]) positionAt(key K, stack []parentPos[K, V]) []parentPos[K, V] {
	pos := l.findPos(key)
	if pos < 0 {
		pos = -(pos + 1)
	}

	// pos may be one past the last element when the starting key sorts
	// above every key of the leaf; the cursor then moves to the next leaf
	// on its first advance
	return append(stack, parentPos[K, V]{page: l, pos: pos})
}

func (l *leaf[K, V]) leftMostKey() K {
	return l.keys[0]
}

func (l *leaf[K, V]) dump(tabs string) string {
	var sb strings.Builder

	sb.WriteString(tabs)
	sb.WriteString(fmt.Sprintf("Leaf[r%d] {", l.revision))

	for i, key := range l.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%v", key))
	}

	sb.WriteString("}\n")

	return sb.String()
}
