/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
B-Tree Index Implementation
============================

This file implements the B-tree behind every table index. Keys are composite
(one Value per indexed column) and ordered by a KeyComparator, so string key
parts follow the engine's collation.

B-Tree Properties:
==================

  - Each node can have at most 2*t children (t = minimum degree)
  - Each node (except root) has at least t-1 keys
  - All leaves are at the same depth
  - Keys within a node are sorted

Duplicate Keys:
===============

A key is stored once; it carries the list of row ids that share it, in
insertion order. Non-unique indexes therefore return duplicates in the order
they were inserted, and DistinctKeys is the index cardinality.

Iteration:
==========

Cursor walks keys in ascending order with an explicit stack. It is single
pass. Mutating the tree while a cursor is open is not supported.

Usage:
======

	tree := storage.NewBTree(8, storage.KeyComparator(collator))
	tree.Insert(storage.Key{int64(42)}, 7)
	rows := tree.Lookup(storage.Key{int64(42)})
*/
package storage

import (
	"sort"
	"sync"
)

// RowID identifies a row within its table.
type RowID int64

// Key is a composite index key.
type Key []Value

// KeyComparator builds a comparison function over composite keys.
// Keys compare part by part; a shorter key that is a prefix of a longer one
// sorts first.
func KeyComparator(coll Collator) func(a, b Key) int {
	return func(a, b Key) int {
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for i := 0; i < n; i++ {
			if c := Compare(a[i], b[i], coll); c != 0 {
				return c
			}
		}
		return cmpInt(int64(len(a)), int64(len(b)))
	}
}

// HasNull reports whether any part of the key is NULL.
func (k Key) HasNull() bool {
	for _, v := range k {
		if v == nil {
			return true
		}
	}
	return false
}

type btreeEntry struct {
	key  Key
	rows []RowID
}

// btreeNode represents a node in the B-Tree.
type btreeNode struct {
	entries  []*btreeEntry
	children []*btreeNode // nil for leaf nodes
}

func (n *btreeNode) leaf() bool { return len(n.children) == 0 }

// BTree is a balanced tree mapping keys to row ids.
//
// Thread Safety: Lookup, Insert and Remove are safe for concurrent use.
// Cursors must not be used concurrently with writers.
type BTree struct {
	root *btreeNode
	t    int
	cmp  func(a, b Key) int
	mu   sync.RWMutex

	keys int
	rows int
}

// DefaultBTreeDegree is the minimum degree used when none is configured.
const DefaultBTreeDegree = 8

// NewBTree creates a new B-Tree with the specified minimum degree.
// Degrees below 2 are raised to 2.
func NewBTree(t int, cmp func(a, b Key) int) *BTree {
	if t < 2 {
		t = 2
	}
	return &BTree{
		root: &btreeNode{},
		t:    t,
		cmp:  cmp,
	}
}

// search returns the first position whose key is >= key, and whether the
// key at that position is equal.
func (bt *BTree) search(n *btreeNode, key Key) (int, bool) {
	i := sort.Search(len(n.entries), func(i int) bool {
		return bt.cmp(n.entries[i].key, key) >= 0
	})
	return i, i < len(n.entries) && bt.cmp(n.entries[i].key, key) == 0
}

func (bt *BTree) find(key Key) *btreeEntry {
	n := bt.root
	for {
		i, found := bt.search(n, key)
		if found {
			return n.entries[i]
		}
		if n.leaf() {
			return nil
		}
		n = n.children[i]
	}
}

// Lookup returns the row ids stored under key in insertion order.
func (bt *BTree) Lookup(key Key) []RowID {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	if e := bt.find(key); e != nil {
		return append([]RowID(nil), e.rows...)
	}
	return nil
}

// Contains reports whether key is present.
func (bt *BTree) Contains(key Key) bool {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.find(key) != nil
}

// Insert adds row under key. Existing keys get the row appended.
//
// Time complexity: O(log N)
func (bt *BTree) Insert(key Key, row RowID) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	bt.rows++
	if e := bt.find(key); e != nil {
		e.rows = append(e.rows, row)
		return
	}
	bt.keys++

	e := &btreeEntry{key: append(Key(nil), key...), rows: []RowID{row}}
	root := bt.root
	if len(root.entries) == 2*bt.t-1 {
		newRoot := &btreeNode{children: []*btreeNode{root}}
		bt.splitChild(newRoot, 0)
		bt.root = newRoot
	}
	bt.insertNonFull(bt.root, e)
}

// insertNonFull inserts an entry into a node that is guaranteed to be non-full.
func (bt *BTree) insertNonFull(n *btreeNode, e *btreeEntry) {
	for {
		i, _ := bt.search(n, e.key)
		if n.leaf() {
			n.entries = append(n.entries, nil)
			copy(n.entries[i+1:], n.entries[i:])
			n.entries[i] = e
			return
		}
		if len(n.children[i].entries) == 2*bt.t-1 {
			bt.splitChild(n, i)
			if bt.cmp(e.key, n.entries[i].key) > 0 {
				i++
			}
		}
		n = n.children[i]
	}
}

// splitChild splits the i-th child of n, which must be full.
func (bt *BTree) splitChild(n *btreeNode, i int) {
	t := bt.t
	child := n.children[i]
	mid := child.entries[t-1]

	right := &btreeNode{entries: append([]*btreeEntry(nil), child.entries[t:]...)}
	if !child.leaf() {
		right.children = append([]*btreeNode(nil), child.children[t:]...)
		child.children = child.children[:t:t]
	}
	child.entries = child.entries[: t-1 : t-1]

	n.entries = append(n.entries, nil)
	copy(n.entries[i+1:], n.entries[i:])
	n.entries[i] = mid

	n.children = append(n.children, nil)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = right
}

// Remove deletes key and every row stored under it.
// Returns true if the key was present.
//
// Time complexity: O(log N)
func (bt *BTree) Remove(key Key) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	e := bt.find(key)
	if e == nil {
		return false
	}
	bt.rows -= len(e.rows)
	bt.keys--
	bt.delete(bt.root, key)
	if len(bt.root.entries) == 0 && !bt.root.leaf() {
		bt.root = bt.root.children[0]
	}
	return true
}

// RemoveRow deletes one row from key, removing the key when it was the last.
func (bt *BTree) RemoveRow(key Key, row RowID) bool {
	bt.mu.Lock()
	e := bt.find(key)
	if e == nil {
		bt.mu.Unlock()
		return false
	}
	for i, r := range e.rows {
		if r == row {
			if len(e.rows) == 1 {
				bt.mu.Unlock()
				return bt.Remove(key)
			}
			e.rows = append(e.rows[:i], e.rows[i+1:]...)
			bt.rows--
			bt.mu.Unlock()
			return true
		}
	}
	bt.mu.Unlock()
	return false
}

// delete removes key from the subtree rooted at n. Every node it descends
// into is first topped up to at least t entries.
func (bt *BTree) delete(n *btreeNode, key Key) {
	t := bt.t
	for {
		i, found := bt.search(n, key)
		if found {
			if n.leaf() {
				n.entries = append(n.entries[:i], n.entries[i+1:]...)
				return
			}
			left, right := n.children[i], n.children[i+1]
			switch {
			case len(left.entries) >= t:
				pred := lastEntry(left)
				n.entries[i] = pred
				n, key = left, pred.key
			case len(right.entries) >= t:
				succ := firstEntry(right)
				n.entries[i] = succ
				n, key = right, succ.key
			default:
				bt.mergeChildren(n, i)
				n = left
			}
			continue
		}

		if n.leaf() {
			return
		}
		if len(n.children[i].entries) < t {
			switch {
			case i > 0 && len(n.children[i-1].entries) >= t:
				bt.borrowFromPrev(n, i)
			case i < len(n.children)-1 && len(n.children[i+1].entries) >= t:
				bt.borrowFromNext(n, i)
			case i < len(n.children)-1:
				bt.mergeChildren(n, i)
			default:
				bt.mergeChildren(n, i-1)
				i--
			}
		}
		n = n.children[i]
	}
}

func lastEntry(n *btreeNode) *btreeEntry {
	for !n.leaf() {
		n = n.children[len(n.children)-1]
	}
	return n.entries[len(n.entries)-1]
}

func firstEntry(n *btreeNode) *btreeEntry {
	for !n.leaf() {
		n = n.children[0]
	}
	return n.entries[0]
}

// borrowFromPrev moves one entry from the previous sibling through n into
// children[i].
func (bt *BTree) borrowFromPrev(n *btreeNode, i int) {
	child := n.children[i]
	sibling := n.children[i-1]

	child.entries = append([]*btreeEntry{n.entries[i-1]}, child.entries...)
	n.entries[i-1] = sibling.entries[len(sibling.entries)-1]
	sibling.entries = sibling.entries[:len(sibling.entries)-1]

	if !child.leaf() {
		child.children = append([]*btreeNode{sibling.children[len(sibling.children)-1]}, child.children...)
		sibling.children = sibling.children[:len(sibling.children)-1]
	}
}

// borrowFromNext moves one entry from the next sibling through n into
// children[i].
func (bt *BTree) borrowFromNext(n *btreeNode, i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	child.entries = append(child.entries, n.entries[i])
	n.entries[i] = sibling.entries[0]
	sibling.entries = sibling.entries[1:]

	if !child.leaf() {
		child.children = append(child.children, sibling.children[0])
		sibling.children = sibling.children[1:]
	}
}

// mergeChildren merges children[i+1] and the separating entry into children[i].
func (bt *BTree) mergeChildren(n *btreeNode, i int) {
	child := n.children[i]
	sibling := n.children[i+1]

	child.entries = append(child.entries, n.entries[i])
	child.entries = append(child.entries, sibling.entries...)
	if !child.leaf() {
		child.children = append(child.children, sibling.children...)
	}

	n.entries = append(n.entries[:i], n.entries[i+1:]...)
	n.children = append(n.children[:i+1], n.children[i+2:]...)
}

// Len returns the number of (key, row) pairs.
func (bt *BTree) Len() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.rows
}

// DistinctKeys returns the number of distinct keys.
func (bt *BTree) DistinctKeys() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.keys
}

// Height returns the number of levels of the tree.
func (bt *BTree) Height() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	h := 1
	for n := bt.root; !n.leaf(); n = n.children[0] {
		h++
	}
	return h
}

// ============================================================================
// Cursor
// ============================================================================

// Bound limits a range scan. A nil *Bound means unbounded.
type Bound struct {
	Key       Key
	Inclusive bool
}

type cursorFrame struct {
	node *btreeNode
	pos  int
}

// Cursor iterates (key, row) pairs in ascending key order.
type Cursor struct {
	tree  *BTree
	stack []cursorFrame
	lo    *Bound
	hi    *Bound

	cur  *btreeEntry
	next int
	done bool
}

// Cursor opens an iteration over every pair in the tree.
func (bt *BTree) Cursor() *Cursor {
	return bt.Range(nil, nil)
}

// Range opens an iteration over keys between lo and hi.
func (bt *BTree) Range(lo, hi *Bound) *Cursor {
	c := &Cursor{tree: bt, lo: lo, hi: hi}
	n := bt.root
	for {
		pos := 0
		if lo != nil {
			pos, _ = bt.search(n, lo.Key)
		}
		c.stack = append(c.stack, cursorFrame{node: n, pos: pos})
		if n.leaf() {
			break
		}
		n = n.children[pos]
	}
	return c
}

func (c *Cursor) descendLeftmost(n *btreeNode) {
	for {
		c.stack = append(c.stack, cursorFrame{node: n})
		if n.leaf() {
			return
		}
		n = n.children[0]
	}
}

func (c *Cursor) nextEntry() *btreeEntry {
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if top.pos < len(top.node.entries) {
			n := top.node
			e := n.entries[top.pos]
			top.pos++
			if !n.leaf() {
				c.descendLeftmost(n.children[top.pos])
			}
			return e
		}
		c.stack = c.stack[:len(c.stack)-1]
	}
	return nil
}

// Next returns the next (key, row) pair. ok is false when the range is
// exhausted.
func (c *Cursor) Next() (Key, RowID, bool) {
	for !c.done {
		if c.cur != nil && c.next < len(c.cur.rows) {
			row := c.cur.rows[c.next]
			c.next++
			return c.cur.key, row, true
		}
		e := c.nextEntry()
		if e == nil {
			c.done = true
			break
		}
		if c.lo != nil && !c.lo.Inclusive && c.tree.cmp(e.key, c.lo.Key) == 0 {
			continue
		}
		if c.hi != nil {
			cmp := c.tree.cmp(e.key, c.hi.Key)
			if cmp > 0 || (cmp == 0 && !c.hi.Inclusive) {
				c.done = true
				break
			}
		}
		c.cur, c.next = e, 0
	}
	return nil, 0, false
}

// Rows drains the cursor and returns the row ids in order.
func (c *Cursor) Rows() []RowID {
	var out []RowID
	for {
		_, row, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, row)
	}
}
