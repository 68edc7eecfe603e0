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

package storage

import (
	"fmt"
	"math/rand"
	"testing"
)

func intKey(i int) Key { return Key{int64(i)} }

func newIntTree(degree int) *BTree {
	return NewBTree(degree, KeyComparator(&BinaryCollator{}))
}

func TestBTreeInsertAndLookup(t *testing.T) {
	tree := newIntTree(2)

	for i := 0; i < 100; i++ {
		tree.Insert(intKey(i), RowID(i+1))
	}

	for i := 0; i < 100; i++ {
		rows := tree.Lookup(intKey(i))
		if len(rows) != 1 || rows[0] != RowID(i+1) {
			t.Errorf("Expected [%d] for key %d, got %v", i+1, i, rows)
		}
	}
	if tree.Contains(intKey(1000)) {
		t.Error("Expected key 1000 to not be found")
	}
	if tree.Len() != 100 || tree.DistinctKeys() != 100 {
		t.Errorf("Expected 100 pairs and keys, got %d and %d", tree.Len(), tree.DistinctKeys())
	}
	if tree.Height() < 3 {
		t.Errorf("Expected the tree to have split, height %d", tree.Height())
	}
}

func TestBTreeDuplicateKeys(t *testing.T) {
	tree := newIntTree(3)

	tree.Insert(intKey(5), 10)
	tree.Insert(intKey(5), 3)
	tree.Insert(intKey(5), 7)

	rows := tree.Lookup(intKey(5))
	expected := []RowID{10, 3, 7}
	if fmt.Sprint(rows) != fmt.Sprint(expected) {
		t.Errorf("Expected %v in insertion order, got %v", expected, rows)
	}
	if tree.DistinctKeys() != 1 || tree.Len() != 3 {
		t.Errorf("Expected 1 key and 3 pairs, got %d and %d", tree.DistinctKeys(), tree.Len())
	}

	if !tree.RemoveRow(intKey(5), 3) {
		t.Error("Expected row 3 to be removed")
	}
	if rows := tree.Lookup(intKey(5)); fmt.Sprint(rows) != "[10 7]" {
		t.Errorf("Expected [10 7], got %v", rows)
	}
	tree.RemoveRow(intKey(5), 10)
	tree.RemoveRow(intKey(5), 7)
	if tree.Contains(intKey(5)) {
		t.Error("Expected key to be gone after its last row was removed")
	}
}

func TestBTreeRemove(t *testing.T) {
	tree := newIntTree(2)
	perm := rand.New(rand.NewSource(1)).Perm(500)
	for _, i := range perm {
		tree.Insert(intKey(i), RowID(i))
	}

	for i := 0; i < 500; i += 2 {
		if !tree.Remove(intKey(i)) {
			t.Fatalf("Expected key %d to be removed", i)
		}
	}
	if tree.Remove(intKey(0)) {
		t.Error("Expected second removal to report false")
	}

	for i := 0; i < 500; i++ {
		found := tree.Contains(intKey(i))
		if found != (i%2 == 1) {
			t.Errorf("Key %d: expected found=%v, got %v", i, i%2 == 1, found)
		}
	}
	if tree.DistinctKeys() != 250 {
		t.Errorf("Expected 250 keys, got %d", tree.DistinctKeys())
	}

	// Ascending order must survive the rebalancing.
	c := tree.Cursor()
	prev := int64(-1)
	count := 0
	for {
		k, _, ok := c.Next()
		if !ok {
			break
		}
		v := k[0].(int64)
		if v <= prev {
			t.Fatalf("Expected ascending keys, got %d after %d", v, prev)
		}
		prev = v
		count++
	}
	if count != 250 {
		t.Errorf("Expected 250 keys from cursor, got %d", count)
	}

	for i := 1; i < 500; i += 2 {
		tree.Remove(intKey(i))
	}
	if tree.Len() != 0 || tree.Height() != 1 {
		t.Errorf("Expected empty single-level tree, got len %d height %d", tree.Len(), tree.Height())
	}
}

func TestBTreeRange(t *testing.T) {
	tree := newIntTree(2)
	for i := 0; i < 50; i++ {
		tree.Insert(intKey(i), RowID(i))
	}

	tests := []struct {
		name     string
		lo, hi   *Bound
		expected string
	}{
		{"closed", &Bound{intKey(10), true}, &Bound{intKey(13), true}, "[10 11 12 13]"},
		{"open", &Bound{intKey(10), false}, &Bound{intKey(13), false}, "[11 12]"},
		{"no lower", nil, &Bound{intKey(2), true}, "[0 1 2]"},
		{"no upper", &Bound{intKey(47), true}, nil, "[47 48 49]"},
		{"empty", &Bound{intKey(60), true}, nil, "[]"},
		{"between keys", &Bound{Key{float64(4.5)}, true}, &Bound{Key{float64(6.5)}, true}, "[5 6]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tree.Range(tt.lo, tt.hi).Rows()
			if rows == nil {
				rows = []RowID{}
			}
			if got := fmt.Sprint(rows); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBTreeCompositeKeysAndCollation(t *testing.T) {
	tree := NewBTree(2, KeyComparator(&NocaseCollator{}))

	tree.Insert(Key{"Smith", int64(2)}, 1)
	tree.Insert(Key{"adams", int64(1)}, 2)
	tree.Insert(Key{"smith", int64(1)}, 3)
	tree.Insert(Key{nil, int64(9)}, 4)

	rows := tree.Cursor().Rows()
	if fmt.Sprint(rows) != "[4 2 3 1]" {
		t.Errorf("Expected NULL first then case-insensitive order, got %v", rows)
	}
	if !tree.Contains(Key{"SMITH", int64(2)}) {
		t.Error("Expected case-insensitive match on composite key")
	}
	if !(Key{nil, int64(1)}).HasNull() {
		t.Error("Expected HasNull to be true")
	}
}
