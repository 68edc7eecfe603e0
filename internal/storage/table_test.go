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
	"testing"

	dberrors "pagedb/internal/errors"
)

// usersSchema builds users(id INT AUTO_INCREMENT PRIMARY KEY,
// email VARCHAR(32) UNIQUE, age TINYINT UNSIGNED DEFAULT 18).
func usersSchema(t *testing.T) *TableSchema {
	t.Helper()
	s := NewTableSchema("app", "users")
	cols := []*Column{
		{Name: "id", Type: TypeInt, AutoIncrement: true},
		{Name: "email", Type: TypeVarchar, Length: 32},
		{Name: "age", Type: TypeTinyInt, Unsigned: true, HasDefault: true, Default: int64(18)},
	}
	for _, c := range cols {
		if err := s.AddColumn(c, -1); err != nil {
			t.Fatal(err)
		}
	}
	ids, _ := s.ColumnIDs([]string{"id"})
	if err := s.AddIndex(&IndexDef{Type: IndexPrimary, ColumnIDs: ids}); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.ColumnIDs([]string{"email"})
	if err := s.AddIndex(&IndexDef{Type: IndexUnique, ColumnIDs: ids}); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func newUsers(t *testing.T) *Table {
	return NewTable(usersSchema(t), 2, &BinaryCollator{}, CharsetUTF8)
}

func TestTableInsertDefaultsAndAutoIncrement(t *testing.T) {
	tbl := newUsers(t)

	id, gen, err := tbl.Insert(map[int]Value{1: "a@x.io"})
	if err != nil {
		t.Fatal(err)
	}
	if gen != 1 {
		t.Errorf("Expected generated id 1, got %d", gen)
	}
	row, _ := tbl.Get(id)
	if row[0] != int64(1) || row[1] != "a@x.io" || row[2] != int64(18) {
		t.Errorf("Unexpected row %v", row)
	}

	// An explicit id moves the sequence past it.
	if _, _, err := tbl.Insert(map[int]Value{0: int64(10), 1: "b@x.io"}); err != nil {
		t.Fatal(err)
	}
	_, gen, err = tbl.Insert(map[int]Value{1: "c@x.io", 2: "30"})
	if err != nil {
		t.Fatal(err)
	}
	if gen != 11 {
		t.Errorf("Expected generated id 11, got %d", gen)
	}
	if tbl.Len() != 3 {
		t.Errorf("Expected 3 rows, got %d", tbl.Len())
	}
	if tbl.Schema.PrimaryIndex() == nil || !tbl.Schema.Columns[0].NotNull {
		t.Error("Expected primary key to imply NOT NULL")
	}
}

func TestTableConstraints(t *testing.T) {
	tbl := newUsers(t)
	if _, _, err := tbl.Insert(map[int]Value{1: "a@x.io"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		values map[int]Value
		code   dberrors.ErrorCode
	}{
		{"duplicate unique", map[int]Value{1: "a@x.io"}, dberrors.ErrCodeDuplicateKey},
		{"duplicate primary", map[int]Value{0: int64(1), 1: "z@x.io"}, dberrors.ErrCodeDuplicateKey},
		{"unsigned range", map[int]Value{1: "n@x.io", 2: int64(-1)}, dberrors.ErrCodeValueOutOfRange},
		{"tinyint range", map[int]Value{1: "m@x.io", 2: int64(300)}, dberrors.ErrCodeValueOutOfRange},
		{"varchar length", map[int]Value{1: "this-address-is-far-too-long@example.com"}, dberrors.ErrCodeValueOutOfRange},
		{"type mismatch", map[int]Value{1: "q@x.io", 2: "old"}, dberrors.ErrCodeTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tbl.Insert(tt.values)
			if dberrors.GetCode(err) != tt.code {
				t.Errorf("Expected code %d, got %v", tt.code, err)
			}
		})
	}
	if tbl.Len() != 1 {
		t.Errorf("Expected failed inserts to leave 1 row, got %d", tbl.Len())
	}

	// Unique indexes allow several NULLs.
	for i := 0; i < 2; i++ {
		if _, _, err := tbl.Insert(map[int]Value{1: nil}); err != nil {
			t.Errorf("Expected NULL email to be accepted: %v", err)
		}
	}
}

func TestTableUpdateAndDelete(t *testing.T) {
	tbl := newUsers(t)
	a, _, _ := tbl.Insert(map[int]Value{1: "a@x.io"})
	b, _, _ := tbl.Insert(map[int]Value{1: "b@x.io"})

	changed, err := tbl.Update(a, map[int]Value{1: "a@x.io"})
	if err != nil || changed {
		t.Errorf("Expected unchanged update, got changed=%v err=%v", changed, err)
	}
	changed, err = tbl.Update(a, map[int]Value{1: "new@x.io"})
	if err != nil || !changed {
		t.Fatalf("Expected changed update, got changed=%v err=%v", changed, err)
	}
	if rows := tbl.Index("email").Lookup(Key{"new@x.io"}); len(rows) != 1 || rows[0] != a {
		t.Errorf("Expected index to follow update, got %v", rows)
	}
	if tbl.Index("email").Contains(Key{"a@x.io"}) {
		t.Error("Expected old key to leave the index")
	}
	if _, err := tbl.Update(b, map[int]Value{1: "new@x.io"}); dberrors.GetCode(err) != dberrors.ErrCodeDuplicateKey {
		t.Errorf("Expected duplicate key, got %v", err)
	}

	if !tbl.Delete(a) || tbl.Delete(a) {
		t.Error("Expected delete to succeed once")
	}
	if tbl.Len() != 1 || tbl.Index(PrimaryIndexName).Len() != 1 {
		t.Errorf("Expected one row and one primary entry, got %d/%d", tbl.Len(), tbl.Index(PrimaryIndexName).Len())
	}

	tbl.Truncate()
	if tbl.Len() != 0 || tbl.Schema.AutoIncrement != 1 {
		t.Errorf("Expected empty table after truncate")
	}
}

func TestTableIndexOn(t *testing.T) {
	tbl := newUsers(t)
	d, tree := tbl.IndexOn(1)
	if d == nil || d.Name != "email" || tree == nil {
		t.Errorf("Expected email index on position 1, got %v", d)
	}
	if d, _ := tbl.IndexOn(2); d != nil {
		t.Errorf("Expected no index on age, got %v", d.Name)
	}
}

func TestTableAlterIsAtomic(t *testing.T) {
	tbl := newUsers(t)
	tbl.Insert(map[int]Value{1: "a@x.io", 2: int64(20)})
	tbl.Insert(map[int]Value{1: "b@x.io", 2: int64(20)})

	// Making age unique must fail and leave the table untouched.
	next := tbl.Schema.Clone()
	ids, _ := next.ColumnIDs([]string{"age"})
	if err := next.AddIndex(&IndexDef{Type: IndexUnique, ColumnIDs: ids}); err != nil {
		t.Fatal(err)
	}
	err := tbl.Alter(next, func(r Row) (Row, error) { return r, nil })
	if dberrors.GetCode(err) != dberrors.ErrCodeDuplicateKey {
		t.Fatalf("Expected duplicate key, got %v", err)
	}
	if tbl.Schema.HasIndex("age") {
		t.Error("Expected schema to be unchanged after failed alter")
	}

	// Dropping a column rewrites every row.
	next = tbl.Schema.Clone()
	pos, err := next.RemoveColumn("age")
	if err != nil {
		t.Fatal(err)
	}
	err = tbl.Alter(next, func(r Row) (Row, error) {
		return append(r[:pos:pos], r[pos+1:]...), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range tbl.Rows() {
		if len(r) != 2 {
			t.Errorf("Expected 2 columns after drop, got %v", r)
		}
	}
	if !tbl.Index("email").Contains(Key{"b@x.io"}) {
		t.Error("Expected indexes to be rebuilt")
	}
}

func TestRowCodec(t *testing.T) {
	row := Row{nil, int64(-7), 3.25, "héllo"}
	charsets := []Charset{CharsetUTF8, CharsetUTF8, CharsetUTF8, CharsetLatin1}

	data, err := MarshalRow(row, charsets)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalRow(data, charsets)
	if err != nil {
		t.Fatal(err)
	}
	for i := range row {
		if got[i] != row[i] {
			t.Errorf("Column %d: expected %v, got %v", i, row[i], got[i])
		}
	}

	if _, err := UnmarshalRow(data[:len(data)-2], charsets); !dberrors.IsIntegrityError(err) {
		t.Errorf("Expected integrity error for truncated row, got %v", err)
	}
	if _, err := MarshalRow(Row{true}, nil); err == nil {
		t.Error("Expected error for unsupported value type")
	}
}
