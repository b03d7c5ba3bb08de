package btree

import (
	"fmt"
	"strings"
)

// node is an internal B+Tree page: up to pageSize separator keys and
// pageSize+1 child references. Every key in children[i] is smaller than
// keys[i]; every key in the last child is greater or equal to the last
// separator. Separators replicate the leftmost key of their right subtree.
type node[K any, V any] struct {
	basePage[K, V]
	children []page[K, V]
}

// newNode creates a node with the given content and a fresh recordId
func newNode[K any, V any](btree *BTree[K, V], revision int64, keys []K, children []page[K, V]) *node[K, V] {
	return &node[K, V]{
		basePage: basePage[K, V]{
			btree:    btree,
			keys:     keys,
			revision: revision,
			recordId: btree.generateRecordId(),
		},
		children: children,
	}
}

// newRootNode creates the two-child root published after a root split
func newRootNode[K any, V any](btree *BTree[K, V], revision int64, pivot K, left, right page[K, V]) *node[K, V] {
	return newNode(btree, revision, []K{pivot}, []page[K, V]{left, right})
}

// childIndex returns the index of the child to descend into for the key.
// An exact separator match descends to the right of the separator.
func (n *node[K, V]) childIndex(key K) int {
	pos := n.findPos(key)
	if pos < 0 {
		return -(pos + 1) + 1
	}
	return pos
}

// selectSibling picks the sibling of the child at parentPos to borrow from
// or merge with: the sibling with strictly more elements wins, on a tie the
// previous (left) one.
func (n *node[K, V]) selectSibling(parentPos int) int {
	if parentPos == 0 {
		return 1
	}

	if parentPos == len(n.children)-1 {
		return parentPos - 1
	}

	prev := n.children[parentPos-1]
	next := n.children[parentPos+1]

	if next.nbElements() > prev.nbElements() {
		return parentPos + 1
	}
	return parentPos - 1
}

// --------------------------------------------------------------------------
// Insert
// --------------------------------------------------------------------------

func (n *node[K, V]) insert(revision int64, key K, value V) insertResult[K, V] {
	childIndex := n.childIndex(key)

	result := n.children[childIndex].insert(revision, key, value)

	switch res := result.(type) {
	case modifyResult[K, V]:
		// Copy the node, swap the affected child pointer
		newPage := n.copyWithChild(revision, childIndex, res.modifiedPage)

		return modifyResult[K, V]{
			modifiedPage:  newPage,
			modifiedValue: res.modifiedValue,
		}

	case splitResult[K, V]:
		if len(n.keys) < n.btree.pageSize {
			return modifyResult[K, V]{
				modifiedPage: n.copyWithPivot(revision, childIndex, res.pivot, res.leftPage, res.rightPage),
			}
		}

		return n.addAndSplit(revision, childIndex, res.pivot, res.leftPage, res.rightPage)
	}

	panic("unreachable insert result")
}

// copyWithChild returns a copy of the node with one child pointer replaced
func (n *node[K, V]) copyWithChild(revision int64, childIndex int, child page[K, V]) *node[K, V] {
	keys, children := n.copyContent()
	children[childIndex] = child
	return newNode(n.btree, revision, keys, children)
}

// copyWithPivot returns a copy of the node with the pivot inserted at
// childIndex and the split child slot expanded into its two halves
func (n *node[K, V]) copyWithPivot(revision int64, childIndex int, pivot K, left, right page[K, V]) *node[K, V] {
	keys := make([]K, len(n.keys)+1)
	children := make([]page[K, V], len(n.children)+1)

	copy(keys, n.keys[:childIndex])
	keys[childIndex] = pivot
	copy(keys[childIndex+1:], n.keys[childIndex:])

	copy(children, n.children[:childIndex])
	children[childIndex] = left
	children[childIndex+1] = right
	copy(children[childIndex+2:], n.children[childIndex+1:])

	return newNode(n.btree, revision, keys, children)
}

// addAndSplit splits a full node. The virtual sequence of pageSize+1
// separators is cut at its middle: the middle separator moves up as the
// promoted pivot, it is not kept in either half.
func (n *node[K, V]) addAndSplit(revision int64, childIndex int, pivot K, left, right page[K, V]) insertResult[K, V] {
	total := len(n.keys) + 1

	allKeys := make([]K, total)
	allChildren := make([]page[K, V], len(n.children)+1)

	copy(allKeys, n.keys[:childIndex])
	allKeys[childIndex] = pivot
	copy(allKeys[childIndex+1:], n.keys[childIndex:])

	copy(allChildren, n.children[:childIndex])
	allChildren[childIndex] = left
	allChildren[childIndex+1] = right
	copy(allChildren[childIndex+2:], n.children[childIndex+1:])

	middle := total / 2

	leftPage := newNode(n.btree, revision,
		allKeys[:middle:middle],
		allChildren[:middle+1:middle+1])
	rightPage := newNode(n.btree, revision,
		allKeys[middle+1:],
		allChildren[middle+1:])

	return splitResult[K, V]{
		pivot:     allKeys[middle],
		leftPage:  leftPage,
		rightPage: rightPage,
	}
}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

func (n *node[K, V]) remove(revision int64, key K, parent *node[K, V], parentPos int) deleteResult[K, V] {
	childIndex := n.childIndex(key)

	result := n.children[childIndex].remove(revision, key, n, childIndex)

	switch res := result.(type) {
	case notPresentResult[K, V]:
		return res

	case removeResult[K, V]:
		newPage := n.copyWithChild(revision, childIndex, res.modifiedPage)

		// The child's smallest key changed; refresh the separator left of
		// it unless the child is the leftmost, in which case the change
		// propagates to an ancestor instead
		if res.newLeftMost != nil && childIndex > 0 &&
			n.btree.comparePtr(res.newLeftMost, &newPage.keys[childIndex-1]) != 0 {
			newPage.keys[childIndex-1] = *res.newLeftMost
		}

		var newLeftMost *K
		if childIndex == 0 {
			newLeftMost = res.newLeftMost
		}

		return removeResult[K, V]{
			modifiedPage:   newPage,
			removedElement: res.removedElement,
			newLeftMost:    newLeftMost,
		}

	case borrowedResult[K, V]:
		newPage := n.copyWithChild(revision, childIndex, res.modifiedPage)

		if res.fromLeft {
			newPage.children[childIndex-1] = res.modifiedSibling
			newPage.keys[childIndex-1] = res.modifiedPage.leftMostKey()
		} else {
			newPage.children[childIndex+1] = res.modifiedSibling
			newPage.keys[childIndex] = res.modifiedSibling.leftMostKey()

			// The removed key may have been the child's leftmost; keep the
			// separator left of it in sync as well
			if childIndex > 0 {
				newPage.keys[childIndex-1] = res.modifiedPage.leftMostKey()
			}
		}

		var newLeftMost *K
		if childIndex == 0 {
			lk := res.modifiedPage.leftMostKey()
			newLeftMost = &lk
		}

		return removeResult[K, V]{
			modifiedPage:   newPage,
			removedElement: res.removedElement,
			newLeftMost:    newLeftMost,
		}

	case mergedResult[K, V]:
		// Replace the merged pair with the single combined child and drop
		// the separator that stood between them
		leftSlot := childIndex
		if res.fromLeft {
			leftSlot = childIndex - 1
		}

		newPage := n.copyWithMerge(revision, leftSlot, res.modifiedPage)

		// Keep the separator left of the merged child in sync with its
		// (possibly changed) leftmost key
		if leftSlot > 0 {
			newPage.keys[leftSlot-1] = res.modifiedPage.leftMostKey()
		}

		var newLeftMost *K
		if leftSlot == 0 {
			lk := res.modifiedPage.leftMostKey()
			newLeftMost = &lk
		}

		half := n.btree.pageSize / 2

		if parent == nil || len(newPage.keys) >= half {
			return removeResult[K, V]{
				modifiedPage:   newPage,
				removedElement: res.removedElement,
				newLeftMost:    newLeftMost,
			}
		}

		// This node underflowed in turn: borrow from or merge with its
		// own sibling through the separator held by the parent
		siblingPos := parent.selectSibling(parentPos)
		sibling := parent.children[siblingPos].(*node[K, V])
		fromLeft := siblingPos < parentPos

		// The separator between the two is the leftmost key of the right
		// one. This node's leftmost key may have just been removed, so it
		// is read from the page instead of from the parent's copy.
		separator := sibling.leftMostKey()
		if fromLeft {
			separator = newPage.leftMostKey()
		}

		if sibling.nbElements() > half {
			return newPage.borrowFromSibling(revision, sibling, fromLeft, separator, res.removedElement)
		}

		return newPage.mergeWithSibling(revision, sibling, fromLeft, separator, res.removedElement)
	}

	panic("unreachable delete result")
}

// copyWithMerge returns a copy of the node where the children at leftSlot
// and leftSlot+1 are replaced by the merged page and the separator between
// them is dropped
func (n *node[K, V]) copyWithMerge(revision int64, leftSlot int, merged page[K, V]) *node[K, V] {
	keys := make([]K, 0, len(n.keys)-1)
	children := make([]page[K, V], 0, len(n.children)-1)

	keys = append(append(keys, n.keys[:leftSlot]...), n.keys[leftSlot+1:]...)

	children = append(children, n.children[:leftSlot]...)
	children = append(children, merged)
	children = append(children, n.children[leftSlot+2:]...)

	return newNode(n.btree, revision, keys, children)
}

// borrowFromSibling rebalances an underflowed node by rotating one child
// through the parent separator: the separator comes down into this node,
// the sibling's edge child moves across the boundary.
func (n *node[K, V]) borrowFromSibling(revision int64, sibling *node[K, V], fromLeft bool, separator K, removed Tuple[K, V]) deleteResult[K, V] {
	var keys []K
	var children []page[K, V]
	var newSibling *node[K, V]

	if fromLeft {
		last := sibling.nbElements()

		keys = append([]K{separator}, n.keys...)
		children = append([]page[K, V]{sibling.children[last]}, n.children...)

		sibKeys, sibChildren := sibling.copyContent()
		newSibling = newNode(n.btree, revision, sibKeys[:last-1:last-1], sibChildren[:last:last])
	} else {
		keys = append(append([]K{}, n.keys...), separator)
		children = append(append([]page[K, V]{}, n.children...), sibling.children[0])

		sibKeys, sibChildren := sibling.copyContent()
		newSibling = newNode(n.btree, revision, sibKeys[1:], sibChildren[1:])
	}

	return borrowedResult[K, V]{
		modifiedPage:    newNode(n.btree, revision, keys, children),
		modifiedSibling: newSibling,
		removedElement:  removed,
		fromLeft:        fromLeft,
	}
}

// mergeWithSibling combines an underflowed node with a minimum-fill
// sibling; the parent separator between them comes down into the merged
// node.
func (n *node[K, V]) mergeWithSibling(revision int64, sibling *node[K, V], fromLeft bool, separator K, removed Tuple[K, V]) deleteResult[K, V] {
	var keys []K
	var children []page[K, V]

	if fromLeft {
		keys = append(append(append([]K{}, sibling.keys...), separator), n.keys...)
		children = append(append([]page[K, V]{}, sibling.children...), n.children...)
	} else {
		keys = append(append(append([]K{}, n.keys...), separator), sibling.keys...)
		children = append(append([]page[K, V]{}, n.children...), sibling.children...)
	}

	return mergedResult[K, V]{
		modifiedPage:   newNode(n.btree, revision, keys, children),
		removedElement: removed,
		fromLeft:       fromLeft,
	}
}

// copyContent returns fresh copies of the key and child slices
func (n *node[K, V]) copyContent() ([]K, []page[K, V]) {
	keys := make([]K, len(n.keys))
	children := make([]page[K, V], len(n.children))
	copy(keys, n.keys)
	copy(children, n.children)
	return keys, children
}

// --------------------------------------------------------------------------
// Lookups and browsing
// --------------------------------------------------------------------------

func (n *node[K, V]) get(key K) (V, bool) {
	return n.children[n.childIndex(key)].get(key)
}

func (n *node[K, V]) exist(key K) bool {
	return n.children[n.childIndex(key)].exist(key)
}

func (n *node[K, V]) position(stack []parentPos[K, V]) []parentPos[K, V] {
	stack = append(stack, parentPos[K, V]{page: n, pos: 0})
	return n.children[0].position(stack)
}

func (n *node[K, V]) positionAt(key K, stack []parentPos[K, V]) []parentPos[K, V] {
	childIndex := n.childIndex(key)
	stack = append(stack, parentPos[K, V]{page: n, pos: childIndex})
	return n.children[childIndex].positionAt(key, stack)
}

func (n *node[K, V]) leftMostKey() K {
	return n.children[0].leftMostKey()
}

func (n *node[K, V]) dump(tabs string) string {
	var sb strings.Builder

	sb.WriteString(tabs)
	sb.WriteString(fmt.Sprintf("Node[r%d] {", n.revision))

	for i, key := range n.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%v", key))
	}
	sb.WriteString("}\n")

	for _, child := range n.children {
		sb.WriteString(child.dump(tabs + "    "))
	}

	return sb.String()
}
