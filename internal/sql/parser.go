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
Parser Overview:
================

The parser is the second stage of the pipeline. It walks a TokenStream and
builds the Job tree described in ast.go.

Parsing Technique:
==================

The grammar is split into parser units. A unit has two halves:

  - canParse probes the upcoming tokens. It only looks ahead and the cursor
    is restored after every probe.
  - parse consumes the tokens of the construct and returns its node.

A higher-level unit tries the units of the level below in a fixed order and
hands over to the first one whose probe succeeds (see firstOf). Nothing is
backtracked once a parse has started, so the try order alone resolves
ambiguity between alternatives.

Statements dispatch on their leading keywords:

	statement := select | insert | update | delete | create_database
	           | create_table | create_index | alter_table | drop_database
	           | drop_table | drop_index | truncate | rename | use | show
	           | describe

Value expressions are built as left-to-right chains, one level per
precedence tier (parser_expr.go). DDL lives in parser_ddl.go.

Usage Example:
==============

	stmt, err := sql.Parse("SELECT name FROM users WHERE id = 1")
	if err != nil {
	    log.Fatal(err)
	}
	// stmt is a *SelectStmt
*/
package sql

import (
	"strconv"
	"strings"

	dberrors "pagedb/internal/errors"
)

// unit is one grammar construct with a read-only probe and a parse.
type unit[T any] struct {
	name     string
	canParse func(p *Parser) bool
	parse    func(p *Parser) (T, error)
}

// probe runs canParse and restores the cursor afterwards.
func (u unit[T]) probe(p *Parser) bool {
	pos := p.ts.Pos()
	ok := u.canParse(p)
	p.ts.Seek(pos)
	return ok
}

// firstOf parses with the first unit whose probe succeeds.
func firstOf[T any](p *Parser, what string, units []unit[T]) (T, error) {
	for _, u := range units {
		if u.probe(p) {
			return u.parse(p)
		}
	}
	var zero T
	return zero, p.ts.Unexpected(what)
}

// Parser builds statements from a token stream.
type Parser struct {
	ts *TokenStream

	// params numbers positional markers in the order they are parsed.
	params int
}

// NewParser tokenizes sql and returns a parser positioned at its start.
func NewParser(sql string) (*Parser, error) {
	ts, err := NewTokenStream(sql)
	if err != nil {
		return nil, err
	}
	return &Parser{ts: ts}, nil
}

// Parse parses exactly one statement, optionally followed by a semicolon.
func Parse(sql string) (Statement, error) {
	p, err := NewParser(sql)
	if err != nil {
		return nil, err
	}
	stmt, err := p.Parse()
	if err != nil {
		return nil, err
	}
	p.ts.AcceptSymbol(";")
	if !p.ts.AtEnd() {
		return nil, p.ts.Unexpected("end of statement")
	}
	return stmt, nil
}

// ParseScript parses a semicolon-separated list of statements.
func ParseScript(sql string) ([]Statement, error) {
	p, err := NewParser(sql)
	if err != nil {
		return nil, err
	}
	return p.ParseAll()
}

// Parse parses the statement at the cursor.
func (p *Parser) Parse() (Statement, error) {
	return firstOf(p, "statement", statementUnits)
}

// ParseAll parses statements until the end of input.
func (p *Parser) ParseAll() ([]Statement, error) {
	var out []Statement
	for {
		for p.ts.AcceptSymbol(";") {
		}
		if p.ts.AtEnd() {
			return out, nil
		}
		p.params = 0
		stmt, err := p.Parse()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		if !p.ts.AcceptSymbol(";") && !p.ts.AtEnd() {
			return nil, p.ts.Unexpected("';'")
		}
	}
}

var statementUnits []unit[Statement]

func init() {
	statementUnits = []unit[Statement]{
		{"select", startsWith("SELECT"), statement((*Parser).parseSelect)},
		{"insert", startsWith("INSERT"), statement((*Parser).parseInsert)},
		{"update", startsWith("UPDATE"), statement((*Parser).parseUpdate)},
		{"delete", startsWith("DELETE"), statement((*Parser).parseDelete)},
		{"create database", startsWithAny("CREATE", "DATABASE", "SCHEMA"), statement((*Parser).parseCreateDatabase)},
		{"create table", canParseCreateTable, statement((*Parser).parseCreateTable)},
		{"create index", canParseCreateIndex, statement((*Parser).parseCreateIndex)},
		{"alter table", startsWith("ALTER", "TABLE"), statement((*Parser).parseAlterTable)},
		{"drop database", startsWithAny("DROP", "DATABASE", "SCHEMA"), statement((*Parser).parseDropDatabase)},
		{"drop table", canParseDropTable, statement((*Parser).parseDropTable)},
		{"drop index", startsWith("DROP", "INDEX"), statement((*Parser).parseDropIndex)},
		{"truncate", startsWith("TRUNCATE"), statement((*Parser).parseTruncate)},
		{"rename table", startsWith("RENAME", "TABLE"), statement((*Parser).parseRenameTable)},
		{"use", startsWith("USE"), statement((*Parser).parseUse)},
		{"show", startsWith("SHOW"), statement((*Parser).parseShow)},
		{"describe", canParseDescribe, statement((*Parser).parseDescribe)},
	}
}

// statement adapts a typed parse method to the Statement unit list.
func statement[S Statement](parse func(*Parser) (S, error)) func(*Parser) (Statement, error) {
	return func(p *Parser) (Statement, error) {
		s, err := parse(p)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// startsWith probes for a sequence of keywords.
func startsWith(words ...string) func(*Parser) bool {
	return func(p *Parser) bool {
		return p.ts.AcceptKeywords(words...)
	}
}

// startsWithAny probes for first followed by one of rest.
func startsWithAny(first string, rest ...string) func(*Parser) bool {
	return func(p *Parser) bool {
		return p.ts.AcceptKeyword(first) && p.ts.Peek().IsKeyword(rest...)
	}
}

// ============================================================================
// Shared helpers
// ============================================================================

// isWord matches a keyword or an identifier spelled like one. It is used for
// words that only have meaning in one position, such as IGNORE or FIELDS.
func isWord(tok Token, words ...string) bool {
	if tok.Kind == TokenKeyword {
		return tok.IsKeyword(words...)
	}
	if tok.Kind != TokenIdentifier {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(tok.Value, w) {
			return true
		}
	}
	return false
}

func (p *Parser) acceptWord(words ...string) bool {
	if isWord(p.ts.Peek(), words...) {
		p.ts.Next()
		return true
	}
	return false
}

func (p *Parser) expectWord(word string) error {
	if p.acceptWord(word) {
		return nil
	}
	return p.ts.Errorf(dberrors.MissingKeyword(word))
}

func position(tok Token) dberrors.Position {
	return dberrors.Position{Line: tok.Line, Column: tok.Column, Offset: tok.Offset}
}

// parseAlias reads [AS] name. Without AS only a bare name is accepted.
func (p *Parser) parseAlias() (string, error) {
	if p.ts.AcceptKeyword("AS") {
		tok := p.ts.Peek()
		if tok.Kind == TokenString {
			p.ts.Next()
			return tok.Value, nil
		}
		return p.ts.ExpectName("alias")
	}
	if tok := p.ts.Peek(); tok.IsName() {
		p.ts.Next()
		return tok.Name(), nil
	}
	return "", nil
}

// parseTableName reads [db.]table.
func (p *Parser) parseTableName() (*TableSource, error) {
	start := p.ts.Peek()
	name, err := p.ts.ExpectName("table name")
	if err != nil {
		return nil, err
	}
	src := &TableSource{Table: name}
	src.Pos = position(start)
	if p.ts.AcceptSymbol(".") {
		table, err := p.ts.ExpectName("table name")
		if err != nil {
			return nil, err
		}
		src.Database, src.Table = name, table
	}
	return src, nil
}

// parseNameList reads ( name [, name ...] ).
func (p *Parser) parseNameList(what string) ([]string, error) {
	if err := p.ts.ExpectSymbol("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		n, err := p.ts.ExpectName(what)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if !p.ts.AcceptSymbol(",") {
			break
		}
	}
	return names, p.ts.ExpectSymbol(")")
}

// parseExprList reads expr [, expr ...].
func (p *Parser) parseExprList() ([]Expr, error) {
	var out []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.ts.AcceptSymbol(",") {
			return out, nil
		}
	}
}

func (p *Parser) parseUnsigned(what string) (uint64, error) {
	tok := p.ts.Peek()
	if tok.Kind != TokenNumber {
		return 0, p.ts.Unexpected(what)
	}
	n, err := strconv.ParseUint(tok.Text, 10, 64)
	if err != nil {
		return 0, p.ts.Errorf(dberrors.UnexpectedToken(what, tok.Text))
	}
	p.ts.Next()
	return n, nil
}

// ============================================================================
// SELECT
// ============================================================================

func (p *Parser) parseSelect() (*SelectStmt, error) {
	start := p.ts.Peek()
	if err := p.ts.ExpectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}
	stmt.Pos = position(start)

	if p.ts.AcceptKeyword("DISTINCT") {
		stmt.Distinct = true
	} else {
		p.ts.AcceptKeyword("ALL")
	}

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if !p.ts.AcceptSymbol(",") {
			break
		}
	}

	if p.ts.AcceptKeyword("FROM") {
		from, err := p.parseDataSource()
		if err != nil {
			return nil, err
		}
		stmt.From = from
		for {
			if !p.canParseJoin() {
				break
			}
			join, err := firstOf(p, "join", joinUnits)
			if err != nil {
				return nil, err
			}
			stmt.Joins = append(stmt.Joins, join)
		}
	}

	var err error
	if p.ts.AcceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.ts.AcceptKeywords("GROUP", "BY") {
		if stmt.GroupBy, err = p.parseExprList(); err != nil {
			return nil, err
		}
	}
	if p.ts.AcceptKeyword("HAVING") {
		if stmt.Having, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if stmt.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if stmt.Limit, stmt.Offset, err = p.parseLimit(true); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseSelectItem() (Expr, error) {
	start := p.ts.Peek()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	e.Base().Text = p.ts.Span(start)
	if _, star := e.(*StarExpr); star {
		return e, nil
	}
	alias, err := p.parseAlias()
	if err != nil {
		return nil, err
	}
	if alias != "" {
		e.Base().Alias = alias
	}
	return e, nil
}

func (p *Parser) parseOrderBy() ([]*OrderItem, error) {
	if !p.ts.AcceptKeywords("ORDER", "BY") {
		return nil, nil
	}
	var items []*OrderItem
	for {
		start := p.ts.Peek()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := &OrderItem{Expr: e}
		item.Pos = position(start)
		if p.ts.AcceptKeyword("DESC") {
			item.Desc = true
		} else {
			p.ts.AcceptKeyword("ASC")
		}
		items = append(items, item)
		if !p.ts.AcceptSymbol(",") {
			return items, nil
		}
	}
}

// parseLimit reads LIMIT n, LIMIT offset, n and LIMIT n OFFSET m. UPDATE
// and DELETE only take the single-count form.
func (p *Parser) parseLimit(withOffset bool) (limit, offset Expr, err error) {
	if !p.ts.AcceptKeyword("LIMIT") {
		return nil, nil, nil
	}
	if limit, err = p.parseUnary(); err != nil {
		return nil, nil, err
	}
	if !withOffset {
		return limit, nil, nil
	}
	switch {
	case p.ts.AcceptSymbol(","):
		offset = limit
		if limit, err = p.parseUnary(); err != nil {
			return nil, nil, err
		}
	case p.ts.AcceptKeyword("OFFSET"):
		if offset, err = p.parseUnary(); err != nil {
			return nil, nil, err
		}
	}
	return limit, offset, nil
}

// parseDataSource reads a table name or a derived table, with its alias.
func (p *Parser) parseDataSource() (DataSource, error) {
	start := p.ts.Peek()
	if start.IsSymbol("(") && p.ts.PeekAt(1).IsKeyword("SELECT") {
		p.ts.Next()
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if err := p.ts.ExpectSymbol(")"); err != nil {
			return nil, err
		}
		d := &DerivedSource{Select: sel}
		d.Pos = position(start)
		if d.Alias, err = p.parseAlias(); err != nil {
			return nil, err
		}
		return d, nil
	}
	src, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	if src.Alias, err = p.parseAlias(); err != nil {
		return nil, err
	}
	return src, nil
}

var joinUnits []unit[*Join]

func init() {
	joinUnits = []unit[*Join]{
		{"comma join", func(p *Parser) bool { return p.ts.AcceptSymbol(",") }, (*Parser).parseCommaJoin},
		{"cross join", startsWith("CROSS", "JOIN"), (*Parser).parseCrossJoin},
		{"inner join", func(p *Parser) bool {
			p.ts.AcceptKeyword("INNER")
			return p.ts.AcceptKeyword("JOIN")
		}, (*Parser).parseInnerJoin},
		{"left join", func(p *Parser) bool { return p.ts.AcceptKeyword("LEFT") && p.canParseOuterJoin() }, (*Parser).parseOuterJoin},
		{"right join", func(p *Parser) bool { return p.ts.AcceptKeyword("RIGHT") && p.canParseOuterJoin() }, (*Parser).parseOuterJoin},
	}
}

func (p *Parser) canParseOuterJoin() bool {
	p.ts.AcceptKeyword("OUTER")
	return p.ts.AcceptKeyword("JOIN")
}

func (p *Parser) canParseJoin() bool {
	for _, u := range joinUnits {
		if u.probe(p) {
			return true
		}
	}
	return false
}

func (p *Parser) newJoin() *Join {
	j := &Join{}
	j.Pos = position(p.ts.Peek())
	return j
}

func (p *Parser) parseCommaJoin() (*Join, error) {
	j := p.newJoin()
	p.ts.ExpectSymbol(",")
	j.IsCross = true
	return j, p.parseJoinSource(j, false)
}

func (p *Parser) parseCrossJoin() (*Join, error) {
	j := p.newJoin()
	p.ts.AcceptKeywords("CROSS", "JOIN")
	j.IsCross = true
	return j, p.parseJoinSource(j, true)
}

func (p *Parser) parseInnerJoin() (*Join, error) {
	j := p.newJoin()
	p.ts.AcceptKeyword("INNER")
	p.ts.AcceptKeyword("JOIN")
	j.IsInner = true
	return j, p.parseJoinSource(j, true)
}

func (p *Parser) parseOuterJoin() (*Join, error) {
	j := p.newJoin()
	if p.ts.AcceptKeyword("LEFT") {
		j.IsLeft = true
	} else if err := p.ts.ExpectKeyword("RIGHT"); err != nil {
		return nil, err
	} else {
		j.IsRight = true
	}
	p.ts.AcceptKeyword("OUTER")
	if err := p.ts.ExpectKeyword("JOIN"); err != nil {
		return nil, err
	}
	j.IsOuter = true
	return j, p.parseJoinSource(j, true)
}

// parseJoinSource reads the joined source and, when allowed, its ON or
// USING condition.
func (p *Parser) parseJoinSource(j *Join, withCondition bool) error {
	src, err := p.parseDataSource()
	if err != nil {
		return err
	}
	j.DataSource = src
	if !withCondition {
		return nil
	}
	switch {
	case p.ts.AcceptKeyword("ON"):
		j.Condition, err = p.parseExpr()
	case p.ts.AcceptKeyword("USING"):
		j.Using, err = p.parseNameList("column name")
	}
	return err
}

// ============================================================================
// INSERT / UPDATE / DELETE
// ============================================================================

func (p *Parser) parseInsert() (*InsertStmt, error) {
	start := p.ts.Peek()
	if err := p.ts.ExpectKeyword("INSERT"); err != nil {
		return nil, err
	}
	stmt := &InsertStmt{}
	stmt.Pos = position(start)
	stmt.Ignore = p.acceptWord("IGNORE")
	p.ts.AcceptKeyword("INTO")

	var err error
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}

	if p.ts.Peek().IsSymbol("(") && !p.ts.PeekAt(1).IsKeyword("SELECT") {
		if stmt.Columns, err = p.parseNameList("column name"); err != nil {
			return nil, err
		}
	}

	switch {
	case p.ts.AcceptKeyword("VALUES") || p.acceptWord("VALUE"):
		for {
			if err := p.ts.ExpectSymbol("("); err != nil {
				return nil, err
			}
			var row []Expr
			if !p.ts.Peek().IsSymbol(")") {
				if row, err = p.parseExprList(); err != nil {
					return nil, err
				}
			}
			if err := p.ts.ExpectSymbol(")"); err != nil {
				return nil, err
			}
			stmt.Rows = append(stmt.Rows, row)
			if !p.ts.AcceptSymbol(",") {
				break
			}
		}
	case p.ts.AcceptKeyword("SET"):
		if stmt.Set, err = p.parseAssignments(); err != nil {
			return nil, err
		}
	case p.ts.Peek().IsKeyword("SELECT"):
		if stmt.Select, err = p.parseSelect(); err != nil {
			return nil, err
		}
	case p.ts.Peek().IsSymbol("("):
		p.ts.Next()
		if stmt.Select, err = p.parseSelect(); err != nil {
			return nil, err
		}
		if err := p.ts.ExpectSymbol(")"); err != nil {
			return nil, err
		}
	default:
		return nil, p.ts.Unexpected("VALUES, SET or SELECT")
	}
	return stmt, nil
}

func (p *Parser) parseAssignments() ([]*Assignment, error) {
	var out []*Assignment
	for {
		start := p.ts.Peek()
		target, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		if err := p.ts.ExpectSymbol("="); err != nil {
			return nil, err
		}
		var value Expr
		if p.ts.AcceptKeyword("DEFAULT") {
			value = nil
		} else if value, err = p.parseExpr(); err != nil {
			return nil, err
		}
		a := &Assignment{Column: target, Value: value}
		a.Pos = position(start)
		out = append(out, a)
		if !p.ts.AcceptSymbol(",") {
			return out, nil
		}
	}
}

func (p *Parser) parseUpdate() (*UpdateStmt, error) {
	start := p.ts.Peek()
	if err := p.ts.ExpectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	stmt := &UpdateStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	if stmt.Table.Alias, err = p.parseAlias(); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectKeyword("SET"); err != nil {
		return nil, err
	}
	if stmt.Set, err = p.parseAssignments(); err != nil {
		return nil, err
	}
	if p.ts.AcceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if stmt.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if stmt.Limit, _, err = p.parseLimit(false); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (*DeleteStmt, error) {
	start := p.ts.Peek()
	if err := p.ts.ExpectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectKeyword("FROM"); err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{}
	stmt.Pos = position(start)

	var err error
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}
	if stmt.Table.Alias, err = p.parseAlias(); err != nil {
		return nil, err
	}
	if p.ts.AcceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if stmt.OrderBy, err = p.parseOrderBy(); err != nil {
		return nil, err
	}
	if stmt.Limit, _, err = p.parseLimit(false); err != nil {
		return nil, err
	}
	return stmt, nil
}
