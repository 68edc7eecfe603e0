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
	"sort"
	"strings"
	"time"

	dberrors "pagedb/internal/errors"
)

// Table holds the rows of one table and keeps its indexes in sync.
// Callers serialize access through the LockManager: mutations run under the
// table's exclusive lock, reads under at least a shared lock.
type Table struct {
	Schema *TableSchema

	rows    map[RowID]Row
	order   []RowID
	nextRow RowID

	indexes map[string]*BTree
	degree  int
	coll    Collator
	charset Charset
}

// NewTable creates an empty table and one B-tree per index definition.
func NewTable(schema *TableSchema, degree int, coll Collator, charset Charset) *Table {
	t := &Table{
		Schema:  schema,
		rows:    make(map[RowID]Row),
		nextRow: 1,
		degree:  degree,
		coll:    coll,
		charset: charset,
	}
	t.indexes = t.emptyIndexes(schema)
	return t
}

func (t *Table) emptyIndexes(schema *TableSchema) map[string]*BTree {
	out := make(map[string]*BTree, len(schema.Indexes))
	for _, d := range schema.Indexes {
		out[strings.ToLower(d.Name)] = NewBTree(t.degree, KeyComparator(t.coll))
	}
	return out
}

// Collator returns the collator used for keys of this table.
func (t *Table) Collator() Collator { return t.coll }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.order) }

// RowIDs returns the row ids in insertion order.
func (t *Table) RowIDs() []RowID {
	return append([]RowID(nil), t.order...)
}

// Get returns the row stored under id.
func (t *Table) Get(id RowID) (Row, bool) {
	r, ok := t.rows[id]
	return r, ok
}

// Index returns the B-tree of the named index.
func (t *Table) Index(name string) *BTree {
	return t.indexes[strings.ToLower(name)]
}

// IndexOn returns the first index whose leading column sits at pos
// (preferring unique ones) together with its definition.
func (t *Table) IndexOn(pos int) (*IndexDef, *BTree) {
	var best *IndexDef
	for _, d := range t.Schema.Indexes {
		if len(d.ColumnIDs) != 1 || t.Schema.ColumnPosition(d.ColumnIDs[0]) != pos {
			continue
		}
		if d.Type == IndexFulltext || d.Type == IndexSpatial {
			continue
		}
		if best == nil || (d.Type.IsUnique() && !best.Type.IsUnique()) {
			best = d
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, t.Index(best.Name)
}

// DataLength estimates the stored size of the rows in bytes.
func (t *Table) DataLength() int64 {
	var n int64
	for _, id := range t.order {
		if data, err := MarshalRow(t.rows[id], nil); err == nil {
			n += int64(len(data))
		}
	}
	return n
}

func (t *Table) keyFor(schema *TableSchema, d *IndexDef, row Row) Key {
	positions := schema.IndexColumnPositions(d)
	k := make(Key, len(positions))
	for i, pos := range positions {
		if pos >= 0 && pos < len(row) {
			v := row[pos]
			if s, ok := v.(string); ok && d.KeyLength > 0 && uint32(len(s)) > d.KeyLength {
				v = s[:d.KeyLength]
			}
			k[i] = v
		}
	}
	return k
}

// checkUnique fails when row would duplicate a unique key held by a row
// other than self.
func (t *Table) checkUnique(row Row, self RowID) error {
	for _, d := range t.Schema.Indexes {
		if !d.Type.IsUnique() {
			continue
		}
		k := t.keyFor(t.Schema, d, row)
		if k.HasNull() {
			continue
		}
		for _, id := range t.indexes[strings.ToLower(d.Name)].Lookup(k) {
			if id != self {
				return dberrors.DuplicateKey(keyString(k), d.Name)
			}
		}
	}
	return nil
}

func keyString(k Key) string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = ToString(v)
	}
	return strings.Join(parts, "-")
}

// prepare coerces values to their column types and enforces NOT NULL.
func (t *Table) prepare(row Row) (Row, error) {
	out := make(Row, len(t.Schema.Columns))
	for i, c := range t.Schema.Columns {
		var v Value
		if i < len(row) {
			v = row[i]
		}
		cc := *c
		cc.Charset = c.Charset.Resolve(t.Schema.Charset.Resolve(t.charset))
		cv, err := Coerce(v, &cc)
		if err != nil {
			return nil, err
		}
		if cv == nil && c.NotNull {
			return nil, dberrors.NullViolation(c.Name)
		}
		out[i] = cv
	}
	return out, nil
}

// Insert stores a new row. values maps column positions to values; columns
// not present take their default or, for AUTO_INCREMENT columns, the next
// sequence value. Returns the row id and the generated auto-increment value
// (0 when none was generated).
func (t *Table) Insert(values map[int]Value) (RowID, int64, error) {
	now := time.Now()
	row := make(Row, len(t.Schema.Columns))
	var generated int64
	autoPos := -1

	for i, c := range t.Schema.Columns {
		v, given := values[i]
		if !given {
			v = c.DefaultValue(now)
		}
		if c.AutoIncrement {
			autoPos = i
			if iv, ok := ToInt(v); v == nil || (ok && iv == 0) {
				generated = int64(t.Schema.AutoIncrement)
				v = generated
			}
		}
		row[i] = v
	}

	prepared, err := t.prepare(row)
	if err != nil {
		return 0, 0, err
	}
	if err := t.checkUnique(prepared, 0); err != nil {
		return 0, 0, err
	}

	if autoPos >= 0 {
		if iv, ok := prepared[autoPos].(int64); ok && iv >= int64(t.Schema.AutoIncrement) {
			t.Schema.AutoIncrement = uint64(iv) + 1
		}
	}

	id := t.nextRow
	t.nextRow++
	t.put(id, prepared)
	return id, generated, nil
}

func (t *Table) put(id RowID, row Row) {
	t.rows[id] = row
	t.order = append(t.order, id)
	for _, d := range t.Schema.Indexes {
		t.indexes[strings.ToLower(d.Name)].Insert(t.keyFor(t.Schema, d, row), id)
	}
}

// Update applies changes (column position to value) to the row id.
// Reports whether any stored value actually changed.
func (t *Table) Update(id RowID, changes map[int]Value) (bool, error) {
	old, ok := t.rows[id]
	if !ok {
		return false, dberrors.NewExecutionError("row not found")
	}
	row := old.Clone()
	for pos, v := range changes {
		row[pos] = v
	}
	prepared, err := t.prepare(row)
	if err != nil {
		return false, err
	}

	changed := false
	for i := range prepared {
		if Compare(prepared[i], old[i], &BinaryCollator{}) != 0 {
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}
	if err := t.checkUnique(prepared, id); err != nil {
		return false, err
	}

	for _, d := range t.Schema.Indexes {
		tree := t.indexes[strings.ToLower(d.Name)]
		oldKey, newKey := t.keyFor(t.Schema, d, old), t.keyFor(t.Schema, d, prepared)
		if tree.cmp(oldKey, newKey) != 0 {
			tree.RemoveRow(oldKey, id)
			tree.Insert(newKey, id)
		}
	}
	for _, c := range t.Schema.Columns {
		if c.AutoIncrement {
			if iv, ok := prepared[t.Schema.ColumnIndex(c.Name)].(int64); ok && iv >= int64(t.Schema.AutoIncrement) {
				t.Schema.AutoIncrement = uint64(iv) + 1
			}
		}
	}
	t.rows[id] = prepared
	return true, nil
}

// Delete removes the row id.
func (t *Table) Delete(id RowID) bool {
	row, ok := t.rows[id]
	if !ok {
		return false
	}
	for _, d := range t.Schema.Indexes {
		t.indexes[strings.ToLower(d.Name)].RemoveRow(t.keyFor(t.Schema, d, row), id)
	}
	delete(t.rows, id)
	i := sort.Search(len(t.order), func(i int) bool { return t.order[i] >= id })
	if i < len(t.order) && t.order[i] == id {
		t.order = append(t.order[:i], t.order[i+1:]...)
	}
	return true
}

// Truncate removes every row and resets the auto-increment sequence.
func (t *Table) Truncate() {
	t.rows = make(map[RowID]Row)
	t.order = nil
	t.nextRow = 1
	t.Schema.AutoIncrement = 1
	t.indexes = t.emptyIndexes(t.Schema)
}

// restore loads rows read from a table file and rebuilds the indexes.
func (t *Table) restore(rows []Row) error {
	t.rows = make(map[RowID]Row, len(rows))
	t.order = nil
	t.nextRow = 1
	t.indexes = t.emptyIndexes(t.Schema)
	for _, r := range rows {
		if len(r) != len(t.Schema.Columns) {
			return dberrors.NewIntegrityError("row width does not match column count").
				WithDetail(t.Schema.QualifiedName())
		}
		if err := t.checkUnique(r, 0); err != nil {
			return err
		}
		t.put(t.nextRow, r)
		t.nextRow++
	}
	return nil
}

// Rows returns every row in insertion order.
func (t *Table) Rows() []Row {
	out := make([]Row, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// Alter replaces the schema with next and rewrites every row through
// convert, which maps an old row to a new one. Indexes are rebuilt from
// scratch. On any error the table is left unchanged.
func (t *Table) Alter(next *TableSchema, convert func(Row) (Row, error)) error {
	staged := &Table{
		Schema:  next,
		rows:    make(map[RowID]Row, len(t.rows)),
		nextRow: t.nextRow,
		degree:  t.degree,
		coll:    t.coll,
		charset: t.charset,
	}
	staged.indexes = staged.emptyIndexes(next)

	for _, id := range t.order {
		row, err := convert(t.rows[id].Clone())
		if err != nil {
			return err
		}
		prepared, err := staged.prepare(row)
		if err != nil {
			return err
		}
		if err := staged.checkUnique(prepared, id); err != nil {
			return err
		}
		staged.rows[id] = prepared
		staged.order = append(staged.order, id)
		for _, d := range next.Indexes {
			staged.indexes[strings.ToLower(d.Name)].Insert(staged.keyFor(next, d, prepared), id)
		}
	}

	*t = *staged
	return nil
}
