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
	"fmt"
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

func (s *Session) execShow(ctx *Context, stmt *ShowStmt) (*Result, error) {
	like, err := s.likeFilter(ctx, stmt.Like)
	if err != nil {
		return nil, err
	}
	switch stmt.What {
	case ShowDatabases:
		return s.showDatabases(like), nil
	case ShowTables:
		return s.showTables(stmt, like)
	case ShowColumns:
		return s.showColumns(stmt, like)
	case ShowIndex:
		return s.showIndex(stmt)
	case ShowCreateTable:
		return s.showCreateTable(stmt)
	}
	return nil, dberrors.NewExecutionError("unsupported SHOW statement")
}

// likeFilter builds the name filter of SHOW ... LIKE 'pattern'.
func (s *Session) likeFilter(ctx *Context, e Expr) (func(string) bool, error) {
	if e == nil {
		return func(string) bool { return true }, nil
	}
	v, err := ctx.Eval(e)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return func(string) bool { return false }, nil
	}
	pattern := storage.ToString(v)
	return func(name string) bool { return likeMatch(name, pattern, '\\', true) }, nil
}

func (s *Session) showDatabases(like func(string) bool) *Result {
	var rows []storage.Row
	for _, db := range append([]string{InformationSchema}, s.engine.storage.Databases()...) {
		if like(db) {
			rows = append(rows, storage.Row{db})
		}
	}
	return newResult([]string{"Database"}, rows)
}

func (s *Session) showTables(stmt *ShowStmt, like func(string) bool) (*Result, error) {
	db := stmt.Database
	if db == "" {
		db = s.database
	}
	if db == "" {
		return nil, dberrors.NoDatabaseSelected()
	}
	columns := []string{"Tables_in_" + db}
	if stmt.Full {
		columns = append(columns, "Table_type")
	}
	var rows []storage.Row
	add := func(name, kind string) {
		if !like(name) {
			return
		}
		if stmt.Full {
			rows = append(rows, storage.Row{name, kind})
			return
		}
		rows = append(rows, storage.Row{name})
	}

	if strings.EqualFold(db, InformationSchema) {
		for _, t := range systemTables {
			add(t.name, "SYSTEM VIEW")
		}
		return newResult(columns, rows), nil
	}
	tables, err := s.engine.storage.Tables(db)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		add(t.Schema.Name, "BASE TABLE")
	}
	return newResult(columns, rows), nil
}

// showTable resolves the table of SHOW COLUMNS, SHOW INDEX and SHOW CREATE.
func (s *Session) showTable(stmt *ShowStmt) (*storage.Table, error) {
	src := stmt.Table
	if stmt.Database != "" && src.Database == "" {
		src = &TableSource{Database: stmt.Database, Table: src.Table}
	}
	if src.IsSystem(s.database) {
		return nil, dberrors.NewExecutionError("SHOW is not supported for information_schema tables").
			WithHint("SELECT from the table instead")
	}
	ref := src.Ref(s.database)
	if ref.Database == "" {
		return nil, dberrors.NoDatabaseSelected()
	}
	return s.engine.storage.Table(ref.Database, ref.Table)
}

func (s *Session) showColumns(stmt *ShowStmt, like func(string) bool) (*Result, error) {
	t, err := s.showTable(stmt)
	if err != nil {
		return nil, err
	}
	columns := []string{"Field", "Type", "Null", "Key", "Default", "Extra"}
	if stmt.Full {
		columns = append(columns, "Comment")
	}
	var rows []storage.Row
	for _, c := range t.Schema.Columns {
		if !like(c.Name) {
			continue
		}
		row := storage.Row{
			c.Name, strings.ToLower(c.TypeString()), yesNo(!c.NotNull),
			columnKey(t.Schema, c), defaultText(c), columnExtra(c),
		}
		if stmt.Full {
			row = append(row, c.Comment)
		}
		rows = append(rows, row)
	}
	return newResult(columns, rows), nil
}

func (s *Session) showIndex(stmt *ShowStmt) (*Result, error) {
	t, err := s.showTable(stmt)
	if err != nil {
		return nil, err
	}
	columns := []string{
		"Table", "Non_unique", "Key_name", "Seq_in_index", "Column_name",
		"Collation", "Cardinality", "Sub_part", "Null", "Index_type",
	}
	sc := t.Schema
	var rows []storage.Row
	for _, d := range sc.Indexes {
		var cardinality, subPart storage.Value
		if tree := t.Index(d.Name); tree != nil {
			cardinality = int64(tree.DistinctKeys())
		}
		if d.KeyLength > 0 {
			subPart = int64(d.KeyLength)
		}
		for seq, pos := range sc.IndexColumnPositions(d) {
			if pos < 0 {
				continue
			}
			c := sc.Columns[pos]
			rows = append(rows, storage.Row{
				sc.Name, storage.Bool(!d.Type.IsUnique()), d.Name, int64(seq + 1), c.Name,
				"A", cardinality, subPart, yesOrEmpty(!c.NotNull), indexTypeName(d),
			})
		}
	}
	return newResult(columns, rows), nil
}

func (s *Session) showCreateTable(stmt *ShowStmt) (*Result, error) {
	t, err := s.showTable(stmt)
	if err != nil {
		return nil, err
	}
	return newResult([]string{"Table", "Create Table"},
		[]storage.Row{{t.Schema.Name, CreateTableSQL(t.Schema)}}), nil
}

// CreateTableSQL renders a CREATE TABLE statement that recreates schema.
func CreateTableSQL(schema *storage.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteName(schema.Name))
	var lines []string
	for _, c := range schema.Columns {
		lines = append(lines, "  "+columnSQL(c))
	}
	for _, d := range schema.Indexes {
		lines = append(lines, "  "+indexSQL(schema, d))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	fmt.Fprintf(&b, "\n) ENGINE=%s", schema.Engine)
	if schema.AutoIncrement > 1 {
		fmt.Fprintf(&b, " AUTO_INCREMENT=%d", schema.AutoIncrement)
	}
	if schema.Charset != storage.CharsetDefault {
		fmt.Fprintf(&b, " DEFAULT CHARSET=%s", schema.Charset)
	}
	if schema.Comment != "" {
		fmt.Fprintf(&b, " COMMENT=%s", quoteString(schema.Comment))
	}
	return b.String()
}

func columnSQL(c *storage.Column) string {
	var b strings.Builder
	b.WriteString(quoteName(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.TypeString())
	if c.Charset != storage.CharsetDefault {
		fmt.Fprintf(&b, " CHARACTER SET %s", c.Charset)
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.HasDefault {
		b.WriteString(" DEFAULT ")
		switch v := c.Default.(type) {
		case nil:
			b.WriteString("NULL")
		case string:
			if strings.EqualFold(v, storage.CurrentTimestamp) {
				b.WriteString(storage.CurrentTimestamp)
			} else {
				b.WriteString(quoteString(v))
			}
		default:
			b.WriteString(storage.ToString(v))
		}
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if c.Comment != "" {
		fmt.Fprintf(&b, " COMMENT %s", quoteString(c.Comment))
	}
	return b.String()
}

func indexSQL(schema *storage.TableSchema, d *storage.IndexDef) string {
	names := schema.IndexColumnNames(d)
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = quoteName(n)
		if d.KeyLength > 0 {
			if c := schema.Column(n); c != nil && c.Type.IsString() {
				cols[i] += fmt.Sprintf("(%d)", d.KeyLength)
			}
		}
	}
	list := "(" + strings.Join(cols, ",") + ")"
	using := ""
	if d.Engine != storage.EngineDefault {
		using = " USING " + d.Engine.String()
	}

	switch d.Type {
	case storage.IndexPrimary:
		return "PRIMARY KEY " + list + using
	case storage.IndexUnique:
		return "UNIQUE KEY " + quoteName(d.Name) + " " + list + using
	case storage.IndexFulltext:
		return "FULLTEXT KEY " + quoteName(d.Name) + " " + list
	case storage.IndexSpatial:
		return "SPATIAL KEY " + quoteName(d.Name) + " " + list
	case storage.IndexForeign:
		out := "CONSTRAINT " + quoteName(d.Name) + " FOREIGN KEY " + list
		if d.RefTable != "" {
			ref := quoteName(d.RefTable)
			if i := strings.IndexByte(d.RefTable, '.'); i >= 0 {
				ref = quoteName(d.RefTable[i+1:])
				if !strings.EqualFold(d.RefTable[:i], schema.Database) {
					ref = quoteName(d.RefTable[:i]) + "." + ref
				}
			}
			refCols := make([]string, len(d.RefColumns))
			for i, n := range d.RefColumns {
				refCols[i] = quoteName(n)
			}
			out += " REFERENCES " + ref + " (" + strings.Join(refCols, ",") + ")"
		}
		if d.OnDelete != storage.RefNone {
			out += " ON DELETE " + d.OnDelete.String()
		}
		if d.OnUpdate != storage.RefNone {
			out += " ON UPDATE " + d.OnUpdate.String()
		}
		return out
	}
	return "KEY " + quoteName(d.Name) + " " + list + using
}

func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var stringEscaper = strings.NewReplacer("'", "''", `\`, `\\`)

func quoteString(s string) string {
	return "'" + stringEscaper.Replace(s) + "'"
}
