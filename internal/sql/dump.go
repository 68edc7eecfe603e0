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
	"bufio"
	"fmt"
	"io"
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// dumpBatchSize is the number of rows written per INSERT statement.
const dumpBatchSize = 100

// Dump writes a script that recreates the named databases, every database
// when none are given. The script can be replayed with ExecuteScript.
// The dumped tables are share-locked while they are read, so a concurrent
// writer to one of them fails with a lock conflict instead of waiting.
func (e *Engine) Dump(w io.Writer, databases ...string) error {
	if len(databases) == 0 {
		databases = e.storage.Databases()
	}

	var tables []*storage.Table
	var refs []storage.TableRef
	var names []string
	for _, db := range databases {
		name, ok := e.storage.DatabaseName(db)
		if !ok {
			return dberrors.DatabaseNotFound(db)
		}
		list, err := e.storage.Tables(name)
		if err != nil {
			return err
		}
		names = append(names, name)
		for _, t := range list {
			tables = append(tables, t)
			refs = append(refs, storage.TableRef{Database: name, Table: t.Schema.Name})
		}
	}

	held, err := e.locks.Acquire(nil, refs)
	if err != nil {
		return err
	}
	defer held.Release()

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "-- pagedb dump")
	for _, db := range names {
		fmt.Fprintf(bw, "\nCREATE DATABASE IF NOT EXISTS %s;\n", quoteName(db))
		fmt.Fprintf(bw, "USE %s;\n", quoteName(db))
		for _, t := range tables {
			if !strings.EqualFold(t.Schema.Database, db) {
				continue
			}
			dumpTable(bw, t)
		}
	}
	return bw.Flush()
}

func dumpTable(w io.Writer, t *storage.Table) {
	fmt.Fprintf(w, "\n%s;\n", CreateTableSQL(t.Schema))

	cols := make([]string, len(t.Schema.Columns))
	for i, c := range t.Schema.Columns {
		cols[i] = quoteName(c.Name)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n  ", quoteName(t.Schema.Name), strings.Join(cols, ", "))

	rows := t.Rows()
	for start := 0; start < len(rows); start += dumpBatchSize {
		end := min(start+dumpBatchSize, len(rows))
		tuples := make([]string, 0, end-start)
		for _, row := range rows[start:end] {
			tuples = append(tuples, tupleSQL(row))
		}
		fmt.Fprintf(w, "%s%s;\n", prefix, strings.Join(tuples, ",\n  "))
	}
}

func tupleSQL(row storage.Row) string {
	vals := make([]string, len(row))
	for i, v := range row {
		vals[i] = literalSQL(v)
	}
	return "(" + strings.Join(vals, ", ") + ")"
}

// literalSQL renders v as a SQL literal that reads back as the same value.
func literalSQL(v storage.Value) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case float64:
		s := storage.ToString(x)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	}
	return storage.ToString(v)
}
