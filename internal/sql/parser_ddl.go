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

func canParseCreateTable(p *Parser) bool {
	if !p.ts.AcceptKeyword("CREATE") {
		return false
	}
	p.acceptWord("TEMPORARY")
	return p.ts.AcceptKeyword("TABLE")
}

func canParseCreateIndex(p *Parser) bool {
	if !p.ts.AcceptKeyword("CREATE") {
		return false
	}
	p.ts.AcceptKeyword("UNIQUE", "FULLTEXT", "SPATIAL")
	return p.ts.AcceptKeyword("INDEX")
}

func canParseDropTable(p *Parser) bool {
	if !p.ts.AcceptKeyword("DROP") {
		return false
	}
	p.acceptWord("TEMPORARY")
	return p.ts.AcceptKeyword("TABLE", "TABLES")
}

func canParseDescribe(p *Parser) bool {
	return p.ts.AcceptKeyword("DESCRIBE", "DESC", "EXPLAIN") && p.ts.Peek().IsName()
}

func (p *Parser) parseIfNotExists() (bool, error) {
	if !p.ts.AcceptKeyword("IF") {
		return false, nil
	}
	if err := p.ts.ExpectKeyword("NOT"); err != nil {
		return false, err
	}
	return true, p.ts.ExpectKeyword("EXISTS")
}

func (p *Parser) parseIfExists() (bool, error) {
	if !p.ts.AcceptKeyword("IF") {
		return false, nil
	}
	return true, p.ts.ExpectKeyword("EXISTS")
}

// ============================================================================
// Databases
// ============================================================================

func (p *Parser) parseCreateDatabase() (*CreateDatabaseStmt, error) {
	start := p.ts.Next()
	p.ts.Next() // DATABASE or SCHEMA
	stmt := &CreateDatabaseStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.IfNotExists, err = p.parseIfNotExists(); err != nil {
		return nil, err
	}
	if stmt.Name, err = p.ts.ExpectName("database name"); err != nil {
		return nil, err
	}
	for {
		p.ts.AcceptKeyword("DEFAULT")
		switch {
		case p.ts.AcceptKeywords("CHARACTER", "SET"), p.ts.AcceptKeyword("CHARSET"):
			p.ts.AcceptSymbol("=")
			if stmt.Charset, err = p.ts.ExpectName("charset name"); err != nil {
				return nil, err
			}
		case p.ts.AcceptKeyword("COLLATE"):
			p.ts.AcceptSymbol("=")
			if _, err = p.ts.ExpectName("collation name"); err != nil {
				return nil, err
			}
		default:
			return stmt, nil
		}
	}
}

func (p *Parser) parseDropDatabase() (*DropDatabaseStmt, error) {
	start := p.ts.Next()
	p.ts.Next() // DATABASE or SCHEMA
	stmt := &DropDatabaseStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.IfExists, err = p.parseIfExists(); err != nil {
		return nil, err
	}
	if stmt.Name, err = p.ts.ExpectName("database name"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseUse() (*UseStmt, error) {
	start := p.ts.Next()
	name, err := p.ts.ExpectName("database name")
	if err != nil {
		return nil, err
	}
	stmt := &UseStmt{Database: name}
	stmt.Pos = position(start)
	return stmt, nil
}

// ============================================================================
// CREATE TABLE
// ============================================================================

func (p *Parser) parseCreateTable() (*CreateTableStmt, error) {
	start := p.ts.Next()
	p.acceptWord("TEMPORARY")
	p.ts.Next() // TABLE
	stmt := &CreateTableStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.IfNotExists, err = p.parseIfNotExists(); err != nil {
		return nil, err
	}
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectSymbol("("); err != nil {
		return nil, err
	}
	for {
		if p.canParseIndexDef() {
			def, err := p.parseIndexDef()
			if err != nil {
				return nil, err
			}
			stmt.Indexes = append(stmt.Indexes, def)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if !p.ts.AcceptSymbol(",") {
			break
		}
	}
	if err := p.ts.ExpectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.parseTableOptions(&stmt.Options, true); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseColumnDef reads name type [(len[,len])] attributes...
func (p *Parser) parseColumnDef() (*ColumnDef, error) {
	start := p.ts.Peek()
	name, err := p.ts.ExpectName("column name")
	if err != nil {
		return nil, err
	}
	def := &ColumnDef{Name: name}
	def.Pos = position(start)

	typeTok := p.ts.Peek()
	if !typeTok.IsName() {
		return nil, p.ts.Unexpected("data type")
	}
	p.ts.Next()
	def.TypeName = strings.ToUpper(typeTok.Name())
	if def.TypeName == "DOUBLE" {
		p.acceptWord("PRECISION")
	}
	if p.ts.AcceptSymbol("(") {
		n, err := p.parseUnsigned("length")
		if err != nil {
			return nil, err
		}
		def.Length = uint32(n)
		if p.ts.AcceptSymbol(",") {
			if n, err = p.parseUnsigned("scale"); err != nil {
				return nil, err
			}
			def.SecondLength = uint32(n)
		}
		if err := p.ts.ExpectSymbol(")"); err != nil {
			return nil, err
		}
	}

	for {
		switch {
		case p.ts.AcceptKeyword("UNSIGNED"):
			def.Unsigned = true
		case p.acceptWord("SIGNED"):
		case p.ts.AcceptKeyword("ZEROFILL"):
			def.Zerofill = true
		case p.ts.AcceptKeyword("NOT"):
			if err := p.ts.ExpectKeyword("NULL"); err != nil {
				return nil, err
			}
			def.NotNull = true
		case p.ts.AcceptKeyword("NULL"):
			def.NotNull = false
		case p.ts.AcceptKeyword("DEFAULT"):
			def.HasDefault = true
			if def.Default, err = p.parseUnary(); err != nil {
				return nil, err
			}
		case p.ts.AcceptKeyword("AUTO_INCREMENT"):
			def.AutoIncrement = true
		case p.ts.AcceptKeyword("PRIMARY"):
			p.ts.AcceptKeyword("KEY")
			def.Primary = true
		case p.ts.AcceptKeyword("KEY"):
			def.Primary = true
		case p.ts.AcceptKeyword("UNIQUE"):
			p.ts.AcceptKeyword("KEY")
			def.Unique = true
		case p.ts.AcceptKeyword("COMMENT"):
			tok := p.ts.Peek()
			if tok.Kind != TokenString {
				return nil, p.ts.Unexpected("comment string")
			}
			p.ts.Next()
			def.Comment = tok.Value
		case p.ts.AcceptKeywords("CHARACTER", "SET"), p.ts.AcceptKeyword("CHARSET"):
			if def.Charset, err = p.ts.ExpectName("charset name"); err != nil {
				return nil, err
			}
		case p.ts.AcceptKeyword("COLLATE"):
			if _, err = p.ts.ExpectName("collation name"); err != nil {
				return nil, err
			}
		case p.ts.AcceptKeywords("ON", "UPDATE"):
			if _, err = p.parseUnary(); err != nil {
				return nil, err
			}
		default:
			return def, nil
		}
	}
}

func (p *Parser) canParseIndexDef() bool {
	return p.ts.Peek().IsKeyword("PRIMARY", "UNIQUE", "INDEX", "KEY", "FULLTEXT", "SPATIAL", "CONSTRAINT", "FOREIGN")
}

// parseIndexDef reads a table-level key definition.
func (p *Parser) parseIndexDef() (*IndexDefinition, error) {
	start := p.ts.Peek()
	def := &IndexDefinition{}
	def.Pos = position(start)

	var constraint string
	var err error
	if p.ts.AcceptKeyword("CONSTRAINT") && p.ts.Peek().IsName() {
		constraint = p.ts.Next().Name()
	}

	switch {
	case p.ts.AcceptKeywords("PRIMARY", "KEY"):
		def.Type = storage.IndexPrimary
	case p.ts.AcceptKeyword("UNIQUE"):
		p.ts.AcceptKeyword("INDEX", "KEY")
		def.Type = storage.IndexUnique
	case p.ts.AcceptKeyword("FULLTEXT"):
		p.ts.AcceptKeyword("INDEX", "KEY")
		def.Type = storage.IndexFulltext
	case p.ts.AcceptKeyword("SPATIAL"):
		p.ts.AcceptKeyword("INDEX", "KEY")
		def.Type = storage.IndexSpatial
	case p.ts.AcceptKeyword("INDEX", "KEY"):
		def.Type = storage.IndexPlain
	case p.ts.AcceptKeywords("FOREIGN", "KEY"):
		def.Type = storage.IndexForeign
	default:
		return nil, p.ts.Unexpected("key definition")
	}

	if p.ts.Peek().IsName() {
		def.Name = p.ts.Next().Name()
	} else {
		def.Name = constraint
	}
	if def.Type == storage.IndexPrimary {
		def.Name = storage.PrimaryIndexName
	}
	if err = p.parseIndexEngine(def); err != nil {
		return nil, err
	}
	if def.Columns, err = p.parseIndexColumns(); err != nil {
		return nil, err
	}
	if err = p.parseIndexEngine(def); err != nil {
		return nil, err
	}

	if def.Type == storage.IndexForeign {
		if err := p.ts.ExpectKeyword("REFERENCES"); err != nil {
			return nil, err
		}
		if def.RefTable, err = p.parseTableName(); err != nil {
			return nil, err
		}
		if def.RefColumns, err = p.parseNameList("column name"); err != nil {
			return nil, err
		}
		for p.ts.AcceptKeyword("ON") {
			switch {
			case p.ts.AcceptKeyword("DELETE"):
				def.OnDelete, err = p.parseReferenceOption()
			case p.ts.AcceptKeyword("UPDATE"):
				def.OnUpdate, err = p.parseReferenceOption()
			default:
				err = p.ts.Unexpected("DELETE or UPDATE")
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return def, nil
}

func (p *Parser) parseIndexEngine(def *IndexDefinition) error {
	if !p.ts.AcceptKeyword("USING") {
		return nil
	}
	tok := p.ts.Peek()
	engine, ok := storage.IndexEngineByName(tok.Name())
	if !ok || !tok.IsName() {
		return p.ts.Unexpected("BTREE, HASH or RTREE")
	}
	p.ts.Next()
	def.Engine = engine
	return nil
}

// parseIndexColumns reads ( col [(len)] [ASC|DESC] , ... ).
func (p *Parser) parseIndexColumns() ([]IndexColumn, error) {
	if err := p.ts.ExpectSymbol("("); err != nil {
		return nil, err
	}
	var cols []IndexColumn
	for {
		name, err := p.ts.ExpectName("column name")
		if err != nil {
			return nil, err
		}
		col := IndexColumn{Name: name}
		if p.ts.AcceptSymbol("(") {
			n, err := p.parseUnsigned("key length")
			if err != nil {
				return nil, err
			}
			col.Length = uint32(n)
			if err := p.ts.ExpectSymbol(")"); err != nil {
				return nil, err
			}
		}
		p.ts.AcceptKeyword("ASC", "DESC")
		cols = append(cols, col)
		if !p.ts.AcceptSymbol(",") {
			break
		}
	}
	return cols, p.ts.ExpectSymbol(")")
}

func (p *Parser) parseReferenceOption() (storage.ReferenceOption, error) {
	switch {
	case p.ts.AcceptKeyword("RESTRICT"):
		return storage.RefRestrict, nil
	case p.ts.AcceptKeyword("CASCADE"):
		return storage.RefCascade, nil
	case p.ts.AcceptKeywords("SET", "NULL"):
		return storage.RefSetNull, nil
	case p.ts.AcceptKeywords("SET", "DEFAULT"):
		return storage.RefSetDefault, nil
	case p.ts.AcceptKeywords("NO", "ACTION"):
		return storage.RefNoAction, nil
	}
	return storage.RefNone, p.ts.Unexpected("reference option")
}

// parseTableOptions reads ENGINE, AUTO_INCREMENT, CHARSET, COLLATE and
// COMMENT options. CREATE TABLE allows commas between options; in ALTER
// TABLE a comma starts the next action.
func (p *Parser) parseTableOptions(opts *TableOptions, commas bool) error {
	for {
		var err error
		switch {
		case p.ts.AcceptKeyword("ENGINE"):
			p.ts.AcceptSymbol("=")
			opts.Engine, err = p.ts.ExpectName("engine name")
		case p.ts.AcceptKeyword("AUTO_INCREMENT"):
			p.ts.AcceptSymbol("=")
			var n uint64
			if n, err = p.parseUnsigned("auto-increment value"); err == nil {
				opts.AutoIncrement = &n
			}
		case p.ts.AcceptKeywords("DEFAULT", "CHARSET"), p.ts.AcceptKeywords("DEFAULT", "CHARACTER", "SET"),
			p.ts.AcceptKeyword("CHARSET"), p.ts.AcceptKeywords("CHARACTER", "SET"):
			p.ts.AcceptSymbol("=")
			opts.Charset, err = p.ts.ExpectName("charset name")
		case p.ts.AcceptKeywords("DEFAULT", "COLLATE"), p.ts.AcceptKeyword("COLLATE"):
			p.ts.AcceptSymbol("=")
			_, err = p.ts.ExpectName("collation name")
		case p.ts.AcceptKeyword("COMMENT"):
			p.ts.AcceptSymbol("=")
			tok := p.ts.Peek()
			if tok.Kind != TokenString {
				return p.ts.Unexpected("comment string")
			}
			p.ts.Next()
			comment := tok.Value
			opts.Comment = &comment
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if commas && p.ts.Peek().IsSymbol(",") && !p.ts.PeekAt(1).IsSymbol(";") {
			p.ts.Next()
		}
	}
}

// ============================================================================
// Indexes
// ============================================================================

func (p *Parser) parseCreateIndex() (*CreateIndexStmt, error) {
	start := p.ts.Next()
	def := &IndexDefinition{Type: storage.IndexPlain}
	def.Pos = position(start)
	switch {
	case p.ts.AcceptKeyword("UNIQUE"):
		def.Type = storage.IndexUnique
	case p.ts.AcceptKeyword("FULLTEXT"):
		def.Type = storage.IndexFulltext
	case p.ts.AcceptKeyword("SPATIAL"):
		def.Type = storage.IndexSpatial
	}
	p.ts.Next() // INDEX

	var err error
	if def.Name, err = p.ts.ExpectName("index name"); err != nil {
		return nil, err
	}
	if err = p.parseIndexEngine(def); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectKeyword("ON"); err != nil {
		return nil, err
	}
	stmt := &CreateIndexStmt{Index: def}
	stmt.Pos = position(start)
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	if def.Columns, err = p.parseIndexColumns(); err != nil {
		return nil, err
	}
	if err = p.parseIndexEngine(def); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseDropIndex() (*DropIndexStmt, error) {
	start := p.ts.Next()
	p.ts.Next() // INDEX
	stmt := &DropIndexStmt{}
	stmt.Pos = position(start)

	var err error
	if p.ts.AcceptKeyword("PRIMARY") {
		stmt.Name = storage.PrimaryIndexName
	} else if stmt.Name, err = p.ts.ExpectName("index name"); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectKeyword("ON"); err != nil {
		return nil, err
	}
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ============================================================================
// ALTER / DROP / TRUNCATE / RENAME
// ============================================================================

func (p *Parser) parseAlterTable() (*AlterTableStmt, error) {
	start := p.ts.Next()
	p.ts.Next() // TABLE
	stmt := &AlterTableStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	for {
		action, err := p.parseAlterAction()
		if err != nil {
			return nil, err
		}
		stmt.Actions = append(stmt.Actions, action)
		if !p.ts.AcceptSymbol(",") {
			return stmt, nil
		}
	}
}

func (p *Parser) parseAlterAction() (AlterAction, error) {
	start := p.ts.Peek()
	pos := position(start)
	switch {
	case p.ts.AcceptKeyword("ADD"):
		if p.canParseIndexDef() {
			def, err := p.parseIndexDef()
			if err != nil {
				return nil, err
			}
			a := &AddIndexAction{Index: def}
			a.Pos = pos
			return a, nil
		}
		p.ts.AcceptKeyword("COLUMN")
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		a := &AddColumnAction{Column: col}
		a.Pos = pos
		a.Position, err = p.parseColumnPosition()
		return a, err

	case p.ts.AcceptKeyword("DROP"):
		a := &DropIndexAction{}
		a.Pos = pos
		switch {
		case p.ts.AcceptKeywords("PRIMARY", "KEY"):
			a.Name = storage.PrimaryIndexName
			return a, nil
		case p.ts.AcceptKeyword("INDEX", "KEY"), p.ts.AcceptKeywords("FOREIGN", "KEY"):
			var err error
			a.Name, err = p.ts.ExpectName("index name")
			return a, err
		}
		p.ts.AcceptKeyword("COLUMN")
		name, err := p.ts.ExpectName("column name")
		if err != nil {
			return nil, err
		}
		d := &DropColumnAction{Name: name}
		d.Pos = pos
		return d, nil

	case p.ts.AcceptKeyword("MODIFY"):
		p.ts.AcceptKeyword("COLUMN")
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		a := &ModifyColumnAction{OldName: col.Name, Column: col}
		a.Pos = pos
		a.Position, err = p.parseColumnPosition()
		return a, err

	case p.ts.AcceptKeyword("CHANGE"):
		p.ts.AcceptKeyword("COLUMN")
		old, err := p.ts.ExpectName("column name")
		if err != nil {
			return nil, err
		}
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		a := &ModifyColumnAction{OldName: old, Column: col}
		a.Pos = pos
		a.Position, err = p.parseColumnPosition()
		return a, err

	case p.ts.AcceptKeyword("RENAME"):
		p.ts.AcceptKeyword("TO", "AS")
		to, err := p.parseTableName()
		if err != nil {
			return nil, err
		}
		a := &RenameAction{To: to}
		a.Pos = pos
		return a, nil
	}

	a := &TableOptionsAction{}
	a.Pos = pos
	if err := p.parseTableOptions(&a.Options, false); err != nil {
		return nil, err
	}
	if p.ts.Peek().Offset == start.Offset {
		return nil, p.ts.Unexpected("alter specification")
	}
	return a, nil
}

func (p *Parser) parseColumnPosition() (ColumnPosition, error) {
	switch {
	case p.ts.AcceptKeyword("FIRST"):
		return ColumnPosition{First: true}, nil
	case p.ts.AcceptKeyword("AFTER"):
		name, err := p.ts.ExpectName("column name")
		return ColumnPosition{After: name}, err
	}
	return ColumnPosition{}, nil
}

func (p *Parser) parseDropTable() (*DropTableStmt, error) {
	start := p.ts.Next()
	p.acceptWord("TEMPORARY")
	p.ts.Next() // TABLE or TABLES
	stmt := &DropTableStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.IfExists, err = p.parseIfExists(); err != nil {
		return nil, err
	}
	for {
		t, err := p.parseTableName()
		if err != nil {
			return nil, err
		}
		stmt.Tables = append(stmt.Tables, t)
		if !p.ts.AcceptSymbol(",") {
			break
		}
	}
	p.ts.AcceptKeyword("RESTRICT", "CASCADE")
	return stmt, nil
}

func (p *Parser) parseTruncate() (*TruncateStmt, error) {
	start := p.ts.Next()
	p.ts.AcceptKeyword("TABLE")
	t, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	stmt := &TruncateStmt{Table: t}
	stmt.Pos = position(start)
	return stmt, nil
}

func (p *Parser) parseRenameTable() (*RenameTableStmt, error) {
	start := p.ts.Next()
	p.ts.Next() // TABLE
	stmt := &RenameTableStmt{}
	stmt.Pos = position(start)
	for {
		from, err := p.parseTableName()
		if err != nil {
			return nil, err
		}
		if err := p.ts.ExpectKeyword("TO"); err != nil {
			return nil, err
		}
		to, err := p.parseTableName()
		if err != nil {
			return nil, err
		}
		stmt.From = append(stmt.From, from)
		stmt.To = append(stmt.To, to)
		if !p.ts.AcceptSymbol(",") {
			return stmt, nil
		}
	}
}

// ============================================================================
// SHOW / DESCRIBE
// ============================================================================

func (p *Parser) parseShow() (*ShowStmt, error) {
	start := p.ts.Next()
	stmt := &ShowStmt{}
	stmt.Pos = position(start)
	stmt.Full = p.ts.AcceptKeyword("FULL")

	var err error
	switch {
	case p.ts.AcceptKeyword("DATABASES", "SCHEMAS"):
		stmt.What = ShowDatabases
	case p.ts.AcceptKeyword("TABLES"):
		stmt.What = ShowTables
		if p.ts.AcceptKeyword("FROM", "IN") {
			if stmt.Database, err = p.ts.ExpectName("database name"); err != nil {
				return nil, err
			}
		}
	case p.ts.AcceptKeyword("COLUMNS") || p.acceptWord("FIELDS"):
		stmt.What = ShowColumns
		if err = p.parseShowTarget(stmt); err != nil {
			return nil, err
		}
	case p.ts.AcceptKeyword("INDEX", "INDEXES", "KEYS"):
		stmt.What = ShowIndex
		if err = p.parseShowTarget(stmt); err != nil {
			return nil, err
		}
	case p.ts.AcceptKeywords("CREATE", "TABLE"):
		stmt.What = ShowCreateTable
		if stmt.Table, err = p.parseTableName(); err != nil {
			return nil, err
		}
	default:
		return nil, p.ts.Unexpected("DATABASES, TABLES, COLUMNS, INDEX or CREATE TABLE")
	}

	if p.ts.AcceptKeyword("LIKE") {
		if stmt.Like, err = p.parseAdditive(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseShowTarget reads FROM tbl [FROM db].
func (p *Parser) parseShowTarget(stmt *ShowStmt) error {
	if !p.ts.AcceptKeyword("FROM", "IN") {
		return p.ts.Errorf(dberrors.MissingKeyword("FROM"))
	}
	var err error
	if stmt.Table, err = p.parseTableName(); err != nil {
		return err
	}
	if p.ts.AcceptKeyword("FROM", "IN") {
		if stmt.Table.Database, err = p.ts.ExpectName("database name"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseDescribe() (*ShowStmt, error) {
	start := p.ts.Next()
	stmt := &ShowStmt{What: ShowColumns}
	stmt.Pos = position(start)
	var err error
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	return stmt, nil
}
