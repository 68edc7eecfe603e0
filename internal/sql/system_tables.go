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
System Tables:
==============

The information_schema database is synthesized from live metadata every
time one of its tables is read:

	SCHEMATA    one row per database
	TABLES      one row per table, including the system tables themselves
	COLUMNS     one row per column
	STATISTICS  one row per index column; CARDINALITY counts the distinct
	            keys of the index B-tree

Statistics that are not tracked (update and check times, free space,
checksums) are NULL. Readers hold a shared lock on every database, so the
metadata cannot change underneath them.
*/

package sql

import (
	"sort"
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

const catalogName = "def"

type systemTable struct {
	name    string
	columns []string
	rows    func(s *Session) []storage.Row
}

var systemTables []*systemTable

func init() {
	systemTables = []*systemTable{
		{
			name: "SCHEMATA",
			columns: []string{
				"CATALOG_NAME", "SCHEMA_NAME", "DEFAULT_CHARACTER_SET_NAME",
				"DEFAULT_COLLATION_NAME", "SQL_PATH",
			},
			rows: schemataRows,
		},
		{
			name: "TABLES",
			columns: []string{
				"TABLE_CATALOG", "TABLE_SCHEMA", "TABLE_NAME", "TABLE_TYPE", "ENGINE",
				"VERSION", "ROW_FORMAT", "TABLE_ROWS", "AVG_ROW_LENGTH", "DATA_LENGTH",
				"MAX_DATA_LENGTH", "INDEX_LENGTH", "DATA_FREE", "AUTO_INCREMENT",
				"CREATE_TIME", "UPDATE_TIME", "CHECK_TIME", "TABLE_COLLATION",
				"CHECKSUM", "CREATE_OPTIONS", "TABLE_COMMENT",
			},
			rows: tablesRows,
		},
		{
			name: "COLUMNS",
			columns: []string{
				"TABLE_CATALOG", "TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME",
				"ORDINAL_POSITION", "COLUMN_DEFAULT", "IS_NULLABLE", "DATA_TYPE",
				"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE",
				"CHARACTER_SET_NAME", "COLLATION_NAME", "COLUMN_TYPE", "COLUMN_KEY",
				"EXTRA", "COLUMN_COMMENT",
			},
			rows: columnsRows,
		},
		{
			name: "STATISTICS",
			columns: []string{
				"TABLE_CATALOG", "TABLE_SCHEMA", "TABLE_NAME", "NON_UNIQUE",
				"INDEX_SCHEMA", "INDEX_NAME", "SEQ_IN_INDEX", "COLUMN_NAME",
				"COLLATION", "CARDINALITY", "SUB_PART", "PACKED", "NULLABLE",
				"INDEX_TYPE", "COMMENT",
			},
			rows: statisticsRows,
		},
	}
}

func lookupSystemTable(name string) *systemTable {
	for _, t := range systemTables {
		if strings.EqualFold(t.name, name) {
			return t
		}
	}
	return nil
}

func (s *Session) openSystemTable(src *TableSource) (*scope, []storage.Row, *storage.Table, error) {
	t := lookupSystemTable(src.Table)
	if t == nil {
		return nil, nil, nil, dberrors.TableNotFound(InformationSchema, src.Table)
	}
	cols := make([]boundColumn, len(t.columns))
	for i, c := range t.columns {
		cols[i] = boundColumn{database: InformationSchema, table: src.Name(), name: c}
	}
	return newScope(cols), t.rows(s), nil, nil
}

// userTables lists every stored table ordered by database and name.
func (s *Session) userTables() []*storage.Table {
	var out []*storage.Table
	for _, db := range s.engine.storage.Databases() {
		tables, err := s.engine.storage.Tables(db)
		if err != nil {
			continue
		}
		sort.Slice(tables, func(i, j int) bool { return tables[i].Schema.Name < tables[j].Schema.Name })
		out = append(out, tables...)
	}
	return out
}

func schemataRows(s *Session) []storage.Row {
	charset := s.engine.storage.Charset().String()
	rows := []storage.Row{{catalogName, InformationSchema, charset, s.engine.collation, nil}}
	for _, db := range s.engine.storage.Databases() {
		rows = append(rows, storage.Row{catalogName, db, charset, s.engine.collation, nil})
	}
	return rows
}

func tablesRows(s *Session) []storage.Row {
	var rows []storage.Row
	for _, st := range systemTables {
		rows = append(rows, storage.Row{
			catalogName, InformationSchema, st.name, "SYSTEM VIEW", "MEMORY",
			int64(10), "Fixed", nil, nil, nil,
			nil, nil, nil, nil,
			nil, nil, nil, s.engine.collation,
			nil, "", "",
		})
	}
	for _, t := range s.userTables() {
		sc := t.Schema
		n := int64(t.Len())
		length := t.DataLength()
		var avg storage.Value
		if n > 0 {
			avg = length / n
		}
		var auto storage.Value
		for _, c := range sc.Columns {
			if c.AutoIncrement {
				auto = int64(sc.AutoIncrement)
			}
		}
		rows = append(rows, storage.Row{
			catalogName, sc.Database, sc.Name, "BASE TABLE", sc.Engine.String(),
			int64(10), "Fixed", n, avg, length,
			nil, indexLength(t), nil, auto,
			sc.CreateTime.Format(storage.DateTimeLayout), nil, nil, s.engine.collation,
			nil, "", sc.Comment,
		})
	}
	return rows
}

// indexLength estimates the index size as one row id per entry.
func indexLength(t *storage.Table) int64 {
	var n int64
	for _, d := range t.Schema.Indexes {
		if tree := t.Index(d.Name); tree != nil {
			n += int64(tree.Len()) * 8
		}
	}
	return n
}

func columnsRows(s *Session) []storage.Row {
	var rows []storage.Row
	for _, t := range s.userTables() {
		sc := t.Schema
		for i, c := range sc.Columns {
			var maxLen, precision, scale, charset, collation storage.Value
			switch {
			case c.Type.IsInteger() || c.Type.IsFloat():
				if c.Length > 0 {
					precision = int64(c.Length)
				}
				if c.Type.IsFloat() {
					scale = int64(c.SecondLength)
				} else {
					scale = int64(0)
				}
			default:
				if c.Length > 0 {
					maxLen = int64(c.Length)
				}
				charset = c.Charset.Resolve(sc.Charset.Resolve(s.engine.storage.Charset())).String()
				collation = s.engine.collation
			}
			rows = append(rows, storage.Row{
				catalogName, sc.Database, sc.Name, c.Name,
				int64(i + 1), defaultText(c), yesNo(!c.NotNull), strings.ToLower(c.Type.String()),
				maxLen, precision, scale,
				charset, collation, strings.ToLower(c.TypeString()), columnKey(sc, c),
				columnExtra(c), c.Comment,
			})
		}
	}
	return rows
}

func statisticsRows(s *Session) []storage.Row {
	var rows []storage.Row
	for _, t := range s.userTables() {
		sc := t.Schema
		for _, d := range sc.Indexes {
			var cardinality storage.Value
			if tree := t.Index(d.Name); tree != nil {
				cardinality = int64(tree.DistinctKeys())
			}
			var subPart storage.Value
			if d.KeyLength > 0 {
				subPart = int64(d.KeyLength)
			}
			for seq, pos := range sc.IndexColumnPositions(d) {
				if pos < 0 {
					continue
				}
				c := sc.Columns[pos]
				rows = append(rows, storage.Row{
					catalogName, sc.Database, sc.Name, storage.Bool(!d.Type.IsUnique()),
					sc.Database, d.Name, int64(seq + 1), c.Name,
					"A", cardinality, subPart, nil, yesOrEmpty(!c.NotNull),
					indexTypeName(d), "",
				})
			}
		}
	}
	return rows
}

func indexTypeName(d *storage.IndexDef) string {
	switch d.Type {
	case storage.IndexFulltext:
		return "FULLTEXT"
	case storage.IndexSpatial:
		return "SPATIAL"
	}
	return d.Engine.String()
}

func defaultText(c *storage.Column) storage.Value {
	if !c.HasDefault || c.Default == nil {
		return nil
	}
	return storage.ToString(c.Default)
}

// columnKey is PRI, UNI or MUL for the first column of an index.
func columnKey(sc *storage.TableSchema, c *storage.Column) string {
	key := ""
	for _, d := range sc.Indexes {
		if len(d.ColumnIDs) == 0 || d.ColumnIDs[0] != int(c.ID) {
			continue
		}
		switch {
		case d.Type == storage.IndexPrimary:
			return "PRI"
		case d.Type == storage.IndexUnique && len(d.ColumnIDs) == 1:
			key = "UNI"
		case key == "":
			key = "MUL"
		}
	}
	return key
}

func columnExtra(c *storage.Column) string {
	if c.AutoIncrement {
		return "auto_increment"
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func yesOrEmpty(b bool) string {
	if b {
		return "YES"
	}
	return ""
}
