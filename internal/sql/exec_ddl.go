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

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// ============================================================================
// Databases
// ============================================================================

func (s *Session) execCreateDatabase(stmt *CreateDatabaseStmt) (*Result, error) {
	if strings.EqualFold(stmt.Name, InformationSchema) {
		return nil, dberrors.DatabaseExists(stmt.Name)
	}
	if stmt.Charset != "" {
		if _, err := storage.ParseCharset(stmt.Charset); err != nil {
			return nil, err
		}
	}
	created, err := s.engine.storage.CreateDatabase(stmt.Name, stmt.IfNotExists)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("Database created", "database", stmt.Name)
		return affected(1, 0), nil
	}
	return affected(0, 0), nil
}

func (s *Session) execDropDatabase(stmt *DropDatabaseStmt) (*Result, error) {
	if strings.EqualFold(stmt.Name, InformationSchema) {
		return nil, dberrors.NewExecutionError("information_schema cannot be dropped")
	}
	var tables int
	if list, err := s.engine.storage.Tables(stmt.Name); err == nil {
		tables = len(list)
	}
	dropped, err := s.engine.storage.DropDatabase(stmt.Name, stmt.IfExists)
	if err != nil {
		return nil, err
	}
	if !dropped {
		return affected(0, 0), nil
	}
	if strings.EqualFold(s.database, stmt.Name) {
		s.database = ""
	}
	s.logger.Info("Database dropped", "database", stmt.Name, "tables", tables)
	return affected(int64(tables), 0), nil
}

func (s *Session) execUse(stmt *UseStmt) (*Result, error) {
	if strings.EqualFold(stmt.Database, InformationSchema) {
		s.database = InformationSchema
		return affected(0, 0), nil
	}
	name, ok := s.engine.storage.DatabaseName(stmt.Database)
	if !ok {
		return nil, dberrors.DatabaseNotFound(stmt.Database)
	}
	s.database = name
	return affected(0, 0), nil
}

// ============================================================================
// Tables
// ============================================================================

// ddlTarget resolves the database a DDL statement works in and rejects
// information_schema.
func (s *Session) ddlTarget(src *TableSource) (storage.TableRef, error) {
	if src.IsSystem(s.database) {
		return storage.TableRef{}, dberrors.NewExecutionError("information_schema is read-only").
			WithDetail(src.Table)
	}
	ref := src.Ref(s.database)
	if ref.Database == "" {
		return ref, dberrors.NoDatabaseSelected()
	}
	return ref, nil
}

// buildColumn turns a column definition into a storage column. Constant
// defaults are evaluated and coerced to the column type.
func (s *Session) buildColumn(ctx *Context, def *ColumnDef) (*storage.Column, error) {
	typ, ok := storage.DataTypeByName(def.TypeName)
	if !ok {
		return nil, dberrors.InvalidValue(def.Name, "unknown data type "+def.TypeName)
	}
	c := &storage.Column{
		Name:          def.Name,
		Type:          typ,
		Length:        def.Length,
		SecondLength:  def.SecondLength,
		NotNull:       def.NotNull || def.Primary,
		Primary:       def.Primary,
		Unique:        def.Unique,
		AutoIncrement: def.AutoIncrement,
		Unsigned:      def.Unsigned,
		Zerofill:      def.Zerofill,
		Comment:       def.Comment,
	}
	if def.Charset != "" {
		cs, err := storage.ParseCharset(def.Charset)
		if err != nil {
			return nil, err
		}
		c.Charset = cs
	}
	if def.HasDefault {
		c.HasDefault = true
		if call, ok := def.Default.(*FuncCall); ok && isTimestampFunc(call.Name) {
			c.Default = storage.CurrentTimestamp
			return c, nil
		}
		if !isConstant(def.Default) {
			return nil, dberrors.InvalidValue(def.Name, "invalid default value")
		}
		v, err := ctx.Eval(def.Default)
		if err != nil {
			return nil, err
		}
		if v == nil && c.NotNull {
			return nil, dberrors.InvalidValue(def.Name, "NOT NULL column cannot default to NULL")
		}
		if c.Default, err = storage.Coerce(v, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func isTimestampFunc(name string) bool {
	switch strings.ToUpper(name) {
	case "CURRENT_TIMESTAMP", "NOW", "LOCALTIMESTAMP":
		return true
	}
	return false
}

// buildIndex turns a key definition into a storage index over schema.
func (s *Session) buildIndex(schema *storage.TableSchema, def *IndexDefinition) (*storage.IndexDef, error) {
	d := &storage.IndexDef{
		Name:       def.Name,
		Type:       def.Type,
		Engine:     def.Engine,
		OnUpdate:   def.OnUpdate,
		OnDelete:   def.OnDelete,
		RefColumns: def.RefColumns,
	}
	names := make([]string, len(def.Columns))
	for i, ic := range def.Columns {
		names[i] = ic.Name
		if ic.Length > d.KeyLength {
			d.KeyLength = ic.Length
		}
	}
	ids, err := schema.ColumnIDs(names)
	if err != nil {
		return nil, err
	}
	d.ColumnIDs = ids

	if def.Type == storage.IndexForeign {
		ref := def.RefTable.Ref(schema.Database)
		var target *storage.TableSchema
		if strings.EqualFold(ref.Database, schema.Database) && strings.EqualFold(ref.Table, schema.Name) {
			target = schema
		} else {
			t, err := s.engine.storage.Table(ref.Database, ref.Table)
			if err != nil {
				return nil, err
			}
			target = t.Schema
		}
		refCols := def.RefColumns
		if len(refCols) == 0 {
			for _, c := range target.PrimaryKeyColumns() {
				refCols = append(refCols, c.Name)
			}
		}
		if len(refCols) != len(names) {
			return nil, dberrors.InvalidValue(d.Name, "foreign key column count does not match the referenced key")
		}
		for _, name := range refCols {
			if !target.HasColumn(name) {
				return nil, dberrors.ColumnNotFound(name, target.Name)
			}
		}
		d.RefTable = target.QualifiedName()
		d.RefColumns = refCols
	}
	return d, nil
}

// applyTableOptions copies the options given with CREATE or ALTER TABLE.
func applyTableOptions(schema *storage.TableSchema, opts TableOptions) error {
	if opts.Engine != "" {
		schema.Engine = storage.TableEngineByName(opts.Engine)
	}
	if opts.Charset != "" {
		cs, err := storage.ParseCharset(opts.Charset)
		if err != nil {
			return err
		}
		schema.Charset = cs
	}
	if opts.Comment != nil {
		schema.Comment = *opts.Comment
	}
	if opts.AutoIncrement != nil {
		schema.AutoIncrement = *opts.AutoIncrement
	}
	return nil
}

func (s *Session) execCreateTable(ctx *Context, stmt *CreateTableStmt) (*Result, error) {
	ref, err := s.ddlTarget(stmt.Table)
	if err != nil {
		return nil, err
	}
	if !s.engine.storage.HasDatabase(ref.Database) {
		return nil, dberrors.DatabaseNotFound(ref.Database)
	}
	if _, err := s.engine.storage.Table(ref.Database, ref.Table); err == nil {
		if stmt.IfNotExists {
			return affected(0, 0), nil
		}
		return nil, dberrors.TableExists(ref.Database, ref.Table)
	}

	schema := storage.NewTableSchema(ref.Database, ref.Table)
	if err := applyTableOptions(schema, stmt.Options); err != nil {
		return nil, err
	}
	for _, def := range stmt.Columns {
		c, err := s.buildColumn(ctx, def)
		if err != nil {
			return nil, err
		}
		if err := schema.AddColumn(c, -1); err != nil {
			return nil, err
		}
	}

	// Column-level keys come first, in column order.
	for _, def := range stmt.Columns {
		var typ storage.IndexType
		switch {
		case def.Primary:
			typ = storage.IndexPrimary
		case def.Unique:
			typ = storage.IndexUnique
		default:
			continue
		}
		id := int(schema.Column(def.Name).ID)
		if err := schema.AddIndex(&storage.IndexDef{Type: typ, ColumnIDs: []int{id}}); err != nil {
			return nil, err
		}
	}
	for _, def := range stmt.Indexes {
		d, err := s.buildIndex(schema, def)
		if err != nil {
			return nil, err
		}
		if err := schema.AddIndex(d); err != nil {
			return nil, err
		}
	}

	if _, err := s.engine.storage.CreateTable(schema, stmt.IfNotExists); err != nil {
		return nil, err
	}
	s.logger.Info("Table created", "table", schema.QualifiedName(),
		"columns", len(schema.Columns), "indexes", len(schema.Indexes))
	return affected(0, 0), nil
}

func (s *Session) execDropTable(stmt *DropTableStmt) (*Result, error) {
	for _, src := range stmt.Tables {
		if _, err := s.ddlTarget(src); err != nil {
			return nil, err
		}
	}
	var n int64
	for _, src := range stmt.Tables {
		ref := src.Ref(s.database)
		dropped, err := s.engine.storage.DropTable(ref.Database, ref.Table, stmt.IfExists)
		if err != nil {
			return nil, err
		}
		if dropped {
			n++
			s.logger.Info("Table dropped", "table", ref.String())
		}
	}
	return affected(n, 0), nil
}

func (s *Session) execRenameTable(stmt *RenameTableStmt) (*Result, error) {
	for i := range stmt.From {
		from, err := s.ddlTarget(stmt.From[i])
		if err != nil {
			return nil, err
		}
		to, err := s.ddlTarget(stmt.To[i])
		if err != nil {
			return nil, err
		}
		if err := s.engine.storage.RenameTable(from.Database, from.Table, to.Database, to.Table); err != nil {
			return nil, err
		}
	}
	return affected(0, 0), nil
}

// alterTable stages a schema change on a clone and rewrites the rows.
// Values follow their column by id, so reordered and renamed columns keep
// their data. Added columns take their value from fill; an added
// AUTO_INCREMENT column numbers the existing rows instead.
func alterTable(t *storage.Table, next *storage.TableSchema, fill map[uint16]storage.Value) error {
	old := t.Schema
	return t.Alter(next, func(row storage.Row) (storage.Row, error) {
		out := make(storage.Row, len(next.Columns))
		for i, c := range next.Columns {
			if pos := old.ColumnPosition(int(c.ID)); pos >= 0 {
				out[i] = row[pos]
				continue
			}
			if v, ok := fill[c.ID]; ok || !c.AutoIncrement {
				out[i] = v
				continue
			}
			out[i] = int64(next.AutoIncrement)
			next.AutoIncrement++
		}
		return out, nil
	})
}

func (s *Session) execCreateIndex(stmt *CreateIndexStmt) (*Result, error) {
	ref, err := s.ddlTarget(stmt.Table)
	if err != nil {
		return nil, err
	}
	t, err := s.engine.storage.Table(ref.Database, ref.Table)
	if err != nil {
		return nil, err
	}
	next := t.Schema.Clone()
	d, err := s.buildIndex(next, stmt.Index)
	if err != nil {
		return nil, err
	}
	if err := next.AddIndex(d); err != nil {
		return nil, err
	}
	if err := alterTable(t, next, nil); err != nil {
		return nil, err
	}
	return affected(0, 0), nil
}

func (s *Session) execDropIndex(stmt *DropIndexStmt) (*Result, error) {
	ref, err := s.ddlTarget(stmt.Table)
	if err != nil {
		return nil, err
	}
	t, err := s.engine.storage.Table(ref.Database, ref.Table)
	if err != nil {
		return nil, err
	}
	next := t.Schema.Clone()
	if err := next.RemoveIndex(stmt.Name); err != nil {
		return nil, err
	}
	if err := alterTable(t, next, nil); err != nil {
		return nil, err
	}
	return affected(0, 0), nil
}

// placeColumn returns the insert position for an added or moved column, or
// -1 to append.
func placeColumn(schema *storage.TableSchema, p ColumnPosition) (int, error) {
	switch {
	case p.First:
		return 0, nil
	case p.After != "":
		pos := schema.ColumnIndex(p.After)
		if pos < 0 {
			return 0, dberrors.ColumnNotFound(p.After, schema.Name)
		}
		return pos + 1, nil
	}
	return -1, nil
}

func (s *Session) execAlterTable(ctx *Context, stmt *AlterTableStmt) (*Result, error) {
	ref, err := s.ddlTarget(stmt.Table)
	if err != nil {
		return nil, err
	}
	t, err := s.engine.storage.Table(ref.Database, ref.Table)
	if err != nil {
		return nil, err
	}
	next := t.Schema.Clone()
	fill := make(map[uint16]storage.Value)
	var rename *RenameAction

	for _, action := range stmt.Actions {
		switch a := action.(type) {
		case *AddColumnAction:
			c, err := s.buildColumn(ctx, a.Column)
			if err != nil {
				return nil, err
			}
			pos, err := placeColumn(next, a.Position)
			if err != nil {
				return nil, err
			}
			if err := next.AddColumn(c, pos); err != nil {
				return nil, err
			}
			if !c.AutoIncrement {
				v := c.DefaultValue(ctx.Now())
				if v == nil && c.NotNull {
					v = c.ZeroValue()
				}
				fill[c.ID] = v
			}
			if err := addColumnKeys(next, a.Column, c); err != nil {
				return nil, err
			}

		case *DropColumnAction:
			if len(next.Columns) == 1 && next.HasColumn(a.Name) {
				return nil, dberrors.InvalidValue(a.Name, "cannot drop the only column of a table")
			}
			if _, err := next.RemoveColumn(a.Name); err != nil {
				return nil, err
			}

		case *ModifyColumnAction:
			pos := next.ColumnIndex(a.OldName)
			if pos < 0 {
				return nil, dberrors.ColumnNotFound(a.OldName, next.Name)
			}
			c, err := s.buildColumn(ctx, a.Column)
			if err != nil {
				return nil, err
			}
			if !strings.EqualFold(a.OldName, c.Name) && next.HasColumn(c.Name) {
				return nil, dberrors.ColumnExists(c.Name, next.Name)
			}
			prev := next.Columns[pos]
			c.ID = prev.ID
			if prev.Primary {
				c.Primary = true
				c.NotNull = true
			}
			next.Columns = append(next.Columns[:pos], next.Columns[pos+1:]...)
			at, err := placeColumn(next, a.Position)
			if err != nil {
				return nil, err
			}
			if at < 0 {
				at = pos
			}
			next.Columns = append(next.Columns, nil)
			copy(next.Columns[at+1:], next.Columns[at:])
			next.Columns[at] = c
			if err := addColumnKeys(next, a.Column, c); err != nil {
				return nil, err
			}

		case *AddIndexAction:
			d, err := s.buildIndex(next, a.Index)
			if err != nil {
				return nil, err
			}
			if err := next.AddIndex(d); err != nil {
				return nil, err
			}

		case *DropIndexAction:
			if err := next.RemoveIndex(a.Name); err != nil {
				return nil, err
			}

		case *TableOptionsAction:
			if err := applyTableOptions(next, a.Options); err != nil {
				return nil, err
			}

		case *RenameAction:
			rename = a
		}
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := alterTable(t, next, fill); err != nil {
		return nil, err
	}
	if rename != nil {
		to, err := s.ddlTarget(rename.To)
		if err != nil {
			return nil, err
		}
		if err := s.engine.storage.RenameTable(ref.Database, ref.Table, to.Database, to.Table); err != nil {
			return nil, err
		}
	}
	s.logger.Info("Table altered", "table", t.Schema.QualifiedName(), "actions", len(stmt.Actions))
	return affected(int64(t.Len()), 0), nil
}

// addColumnKeys creates the PRIMARY KEY or UNIQUE index declared inline
// with a column.
func addColumnKeys(schema *storage.TableSchema, def *ColumnDef, c *storage.Column) error {
	id := int(c.ID)
	switch {
	case def.Primary:
		if pk := schema.PrimaryIndex(); pk != nil && len(pk.ColumnIDs) == 1 && pk.ColumnIDs[0] == id {
			return nil
		}
		return schema.AddIndex(&storage.IndexDef{Type: storage.IndexPrimary, ColumnIDs: []int{id}})
	case def.Unique:
		for _, d := range schema.Indexes {
			if d.Type == storage.IndexUnique && len(d.ColumnIDs) == 1 && d.ColumnIDs[0] == id {
				return nil
			}
		}
		return schema.AddIndex(&storage.IndexDef{Type: storage.IndexUnique, ColumnIDs: []int{id}})
	}
	return nil
}
