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

package sql

import (
	"strings"

	"pagedb/internal/storage"
)

// Result describes the outcome of one statement. Rows are read once with
// Next; a Result cannot be rewound.
type Result struct {
	// Success is true when the statement completed. Statements that fail
	// return an error instead of a Result, so every returned Result
	// reports success.
	Success bool

	// AffectedRows counts rows inserted, changed or deleted.
	AffectedRows int64

	// LastInsertID is the first AUTO_INCREMENT value generated by an
	// INSERT, or 0.
	LastInsertID int64

	columns []string
	rows    []storage.Row
	next    int
}

func newResult(columns []string, rows []storage.Row) *Result {
	return &Result{Success: true, columns: columns, rows: rows}
}

func affected(n, lastID int64) *Result {
	return &Result{Success: true, AffectedRows: n, LastInsertID: lastID}
}

// Columns returns the output column names in order.
func (r *Result) Columns() []string { return r.columns }

// Next returns the next row. ok is false once every row has been read.
func (r *Result) Next() (row Row, ok bool) {
	if r.next >= len(r.rows) {
		return Row{}, false
	}
	row = Row{columns: r.columns, values: r.rows[r.next]}
	r.next++
	return row, true
}

// All reads the remaining rows.
func (r *Result) All() []Row {
	var out []Row
	for {
		row, ok := r.Next()
		if !ok {
			return out
		}
		out = append(out, row)
	}
}

// Row is one output row: an ordered mapping from column name to value.
type Row struct {
	columns []string
	values  []storage.Value
}

// Columns returns the column names in order.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in column order.
func (r Row) Values() []storage.Value { return r.values }

// Get returns the value of the first column named name, compared without
// regard to case.
func (r Row) Get(name string) (storage.Value, bool) {
	for i, c := range r.columns {
		if strings.EqualFold(c, name) {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a map. Later duplicates of a column name win.
func (r Row) Map() map[string]storage.Value {
	out := make(map[string]storage.Value, len(r.columns))
	for i, c := range r.columns {
		out[c] = r.values[i]
	}
	return out
}
