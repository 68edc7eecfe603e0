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
Abstract Syntax Tree (Job) Overview:
====================================

The parser produces a tree of Jobs. There are two families:

  - Statements are the top-level jobs (SELECT, INSERT, CREATE TABLE, ...).
    Each one can check its own structure with Validate and declares the
    tables it needs locked exclusively (tables it mutates) and shared
    (tables it only reads).
  - Parts are everything below a statement: value expressions, conditions,
    data sources, joins, column and index definitions.

Every node embeds PartBase, which carries the alias given with AS and the
source position the node starts at. A statement exclusively owns its parts;
the tree has no cycles and no part is shared between statements, so a
parsed statement can be cached and executed many times as long as execution
never writes to it.

Node Hierarchy:
===============

	Statement
	├── SelectStmt            ├── CreateTableStmt     ├── ShowStmt
	├── InsertStmt            ├── AlterTableStmt      ├── UseStmt
	├── UpdateStmt            ├── CreateIndexStmt     ├── CreateDatabaseStmt
	├── DeleteStmt            ├── DropIndexStmt       └── DropDatabaseStmt
	├── TruncateStmt          ├── DropTableStmt
	└── RenameTableStmt

	Expr
	├── Literal, Param, ColumnRef, StarExpr, FuncCall
	├── Chain (left-to-right operator chain), Unary
	├── Comparison, LikeCond, InCond, BetweenCond, IsNullCond
	└── CaseExpr, SubqueryExpr, ExistsExpr

	DataSource
	├── TableSource
	└── DerivedSource (subquery in FROM)
*/
package sql

import (
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// InformationSchema is the name of the synthesized metadata database.
const InformationSchema = "information_schema"

// Node is any job produced by the parser.
type Node interface {
	Base() *PartBase
}

// PartBase holds the fields shared by every node.
type PartBase struct {
	// Alias is the name given with AS, if any.
	Alias string

	// Pos is where the node starts in the source text.
	Pos dberrors.Position

	// Text is the source text of the node. Only set on select list items.
	Text string
}

// Base returns the shared fields.
func (b *PartBase) Base() *PartBase { return b }

// ============================================================================
// Expressions
// ============================================================================

// Expr is a value expression or condition.
type Expr interface {
	Node
	exprNode()
}

// Literal is a constant value.
type Literal struct {
	PartBase
	Value storage.Value
}

// Param is a bound-parameter marker. Positional markers (?) are numbered
// from 0 in the order they appear; named markers (:name) carry their name.
type Param struct {
	PartBase
	Name  string
	Index int
}

// ColumnRef names a column, optionally qualified by table and database.
type ColumnRef struct {
	PartBase
	Database string
	Table    string
	Column   string
}

// StarExpr is * or t.* in a select list.
type StarExpr struct {
	PartBase
	Table string
}

// FuncCall is a call of a scalar or aggregate function.
type FuncCall struct {
	PartBase
	Name     string
	Args     []Expr
	Distinct bool
	// Star is set for COUNT(*).
	Star bool
}

// Chain is a left-to-right chain of operands joined by operators of the
// same precedence level: len(Operators) == len(Operands)-1 and the chain
// evaluates as ((o0 op0 o1) op1 o2) ...
type Chain struct {
	PartBase
	Operands  []Expr
	Operators []string
}

// Unary is a prefix operator: -, +, ~ or NOT.
type Unary struct {
	PartBase
	Op      string
	Operand Expr
}

// Comparison is a binary comparison. Op is one of = <=> != < <= > >=.
type Comparison struct {
	PartBase
	Left  Expr
	Op    string
	Right Expr
}

// LikeCond is [NOT] LIKE with an optional ESCAPE character.
type LikeCond struct {
	PartBase
	CheckValue Expr
	Pattern    Expr
	Escape     Expr
	IsNegated  bool
}

// InCond is [NOT] IN over a value list or a subquery.
type InCond struct {
	PartBase
	CheckValue Expr
	Values     []Expr
	Subquery   *SelectStmt
	IsNegated  bool
}

// BetweenCond is [NOT] BETWEEN low AND high.
type BetweenCond struct {
	PartBase
	CheckValue Expr
	Low        Expr
	High       Expr
	IsNegated  bool
}

// IsNullCond is IS [NOT] NULL.
type IsNullCond struct {
	PartBase
	CheckValue Expr
	IsNegated  bool
}

// WhenThen is one branch of a CASE expression.
type WhenThen struct {
	When Expr
	Then Expr
}

// CaseExpr is CASE [value] WHEN ... THEN ... [ELSE ...] END. Without a case
// value each WHEN is a condition; with one, WHEN values are compared to it.
type CaseExpr struct {
	PartBase
	CaseValue     Expr
	WhenThen      []WhenThen
	ElseStatement Expr
}

// SubqueryExpr is a parenthesized SELECT used as a scalar value.
type SubqueryExpr struct {
	PartBase
	Select *SelectStmt
}

// ExistsExpr is EXISTS (SELECT ...).
type ExistsExpr struct {
	PartBase
	Select *SelectStmt
}

func (*Literal) exprNode()      {}
func (*Param) exprNode()        {}
func (*ColumnRef) exprNode()    {}
func (*StarExpr) exprNode()     {}
func (*FuncCall) exprNode()     {}
func (*Chain) exprNode()        {}
func (*Unary) exprNode()        {}
func (*Comparison) exprNode()   {}
func (*LikeCond) exprNode()     {}
func (*InCond) exprNode()       {}
func (*BetweenCond) exprNode()  {}
func (*IsNullCond) exprNode()   {}
func (*CaseExpr) exprNode()     {}
func (*SubqueryExpr) exprNode() {}
func (*ExistsExpr) exprNode()   {}

// ============================================================================
// Data sources and joins
// ============================================================================

// DataSource is something rows can be read from.
type DataSource interface {
	Node
	sourceNode()
}

// TableSource names a stored or system table.
type TableSource struct {
	PartBase
	Database string
	Table    string
}

// DerivedSource is a subquery in FROM. It must have an alias.
type DerivedSource struct {
	PartBase
	Select *SelectStmt
}

func (*TableSource) sourceNode()   {}
func (*DerivedSource) sourceNode() {}

// Name returns the name rows of the source are qualified with.
func (s *TableSource) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Table
}

// Ref resolves the table against the current database.
func (s *TableSource) Ref(currentDB string) storage.TableRef {
	db := s.Database
	if db == "" {
		db = currentDB
	}
	return storage.TableRef{Database: db, Table: s.Table}
}

// IsSystem reports whether the table lives in information_schema.
func (s *TableSource) IsSystem(currentDB string) bool {
	return strings.EqualFold(s.Ref(currentDB).Database, InformationSchema)
}

// Join adds a data source to the FROM clause. Comma-separated sources are
// cross joins.
type Join struct {
	PartBase
	DataSource DataSource
	IsLeft     bool
	IsRight    bool
	IsInner    bool
	IsOuter    bool
	IsCross    bool
	// Condition is the ON expression; Using lists USING (...) columns.
	Condition Expr
	Using     []string
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	PartBase
	Expr Expr
	Desc bool
}

// Assignment is column = value in UPDATE SET or INSERT ... SET.
type Assignment struct {
	PartBase
	Column *ColumnRef
	Value  Expr
}

// ============================================================================
// Statements
// ============================================================================

// Statement is a top-level job.
type Statement interface {
	Node

	// Kind names the statement type, e.g. "SELECT" or "CREATE TABLE".
	Kind() string

	// Validate fails when a required part is missing.
	Validate() error

	// ExclusiveTableLocks lists the tables the statement mutates.
	ExclusiveTableLocks(currentDB string) []storage.TableRef

	// SharedTableLocks lists the tables the statement only reads.
	SharedTableLocks(currentDB string) []storage.TableRef
}

// StatementBase gives statements an empty lock set and a passing Validate.
type StatementBase struct {
	PartBase
}

func (StatementBase) Validate() error                               { return nil }
func (StatementBase) ExclusiveTableLocks(string) []storage.TableRef { return nil }
func (StatementBase) SharedTableLocks(string) []storage.TableRef    { return nil }

// SelectStmt is a query.
type SelectStmt struct {
	StatementBase
	Distinct bool
	Items    []Expr
	From     DataSource
	Joins    []*Join
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderItem
	Limit    Expr
	Offset   Expr
}

func (s *SelectStmt) Kind() string { return "SELECT" }

// Validate checks the select list and join conditions, recursing into
// subqueries.
func (s *SelectStmt) Validate() error {
	if len(s.Items) == 0 {
		return dberrors.MissingRequired("select list")
	}
	if s.From == nil && len(s.Joins) > 0 {
		return dberrors.MissingRequired("FROM clause")
	}
	for _, j := range s.Joins {
		if (j.IsLeft || j.IsRight) && j.Condition == nil && len(j.Using) == 0 {
			return dberrors.MissingRequired("join condition").
				WithDetail("LEFT and RIGHT joins need ON or USING")
		}
	}
	if d, ok := s.From.(*DerivedSource); ok && d.Alias == "" {
		return dberrors.MissingRequired("alias for derived table")
	}
	var err error
	Walk(s, func(n Node) bool {
		if err != nil {
			return false
		}
		if sub, ok := n.(*SelectStmt); ok && sub != s {
			err = sub.Validate()
			return false
		}
		return true
	})
	return err
}

func (s *SelectStmt) SharedTableLocks(currentDB string) []storage.TableRef {
	return tablesRead(s, currentDB)
}

// InsertStmt adds rows from VALUES, SET or a SELECT.
type InsertStmt struct {
	StatementBase
	Table   *TableSource
	Columns []string
	Rows    [][]Expr
	Set     []*Assignment
	Select  *SelectStmt
	Ignore  bool
}

func (s *InsertStmt) Kind() string { return "INSERT" }

func (s *InsertStmt) Validate() error {
	if len(s.Rows) == 0 && len(s.Set) == 0 && s.Select == nil {
		return dberrors.MissingRequired("VALUES, SET or SELECT")
	}
	for _, row := range s.Rows {
		if len(s.Columns) > 0 && len(row) != len(s.Columns) {
			return dberrors.ColumnCountMismatch(len(s.Columns), len(row))
		}
		if len(row) != len(s.Rows[0]) {
			return dberrors.ColumnCountMismatch(len(s.Rows[0]), len(row))
		}
	}
	if s.Select != nil {
		return s.Select.Validate()
	}
	return nil
}

func (s *InsertStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

func (s *InsertStmt) SharedTableLocks(currentDB string) []storage.TableRef {
	return tablesRead(s, currentDB)
}

// UpdateStmt modifies rows.
type UpdateStmt struct {
	StatementBase
	Table   *TableSource
	Set     []*Assignment
	Where   Expr
	OrderBy []*OrderItem
	Limit   Expr
}

func (s *UpdateStmt) Kind() string { return "UPDATE" }

func (s *UpdateStmt) Validate() error {
	if len(s.Set) == 0 {
		return dberrors.MissingRequired("SET assignments")
	}
	return nil
}

func (s *UpdateStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

func (s *UpdateStmt) SharedTableLocks(currentDB string) []storage.TableRef {
	return tablesRead(s, currentDB)
}

// DeleteStmt removes rows.
type DeleteStmt struct {
	StatementBase
	Table   *TableSource
	Where   Expr
	OrderBy []*OrderItem
	Limit   Expr
}

func (s *DeleteStmt) Kind() string { return "DELETE" }

func (s *DeleteStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

func (s *DeleteStmt) SharedTableLocks(currentDB string) []storage.TableRef {
	return tablesRead(s, currentDB)
}

// TruncateStmt removes every row of a table.
type TruncateStmt struct {
	StatementBase
	Table *TableSource
}

func (s *TruncateStmt) Kind() string { return "TRUNCATE" }

func (s *TruncateStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

// ColumnDef is a column definition in CREATE or ALTER TABLE.
type ColumnDef struct {
	PartBase
	Name          string
	TypeName      string
	Length        uint32
	SecondLength  uint32
	Unsigned      bool
	Zerofill      bool
	NotNull       bool
	AutoIncrement bool
	Primary       bool
	Unique        bool
	HasDefault    bool
	Default       Expr
	Charset       string
	Comment       string
}

// IndexColumn is one column of an index definition, with an optional
// prefix length.
type IndexColumn struct {
	Name   string
	Length uint32
}

// IndexDefinition is PRIMARY KEY, UNIQUE, INDEX/KEY, FULLTEXT, SPATIAL or
// FOREIGN KEY.
type IndexDefinition struct {
	PartBase
	Name       string
	Type       storage.IndexType
	Engine     storage.IndexEngine
	Columns    []IndexColumn
	RefTable   *TableSource
	RefColumns []string
	OnUpdate   storage.ReferenceOption
	OnDelete   storage.ReferenceOption
}

// TableOptions are the options following a table definition.
type TableOptions struct {
	Engine        string
	AutoIncrement *uint64
	Charset       string
	Comment       *string
}

// CreateTableStmt defines a table.
type CreateTableStmt struct {
	StatementBase
	Table       *TableSource
	IfNotExists bool
	Columns     []*ColumnDef
	Indexes     []*IndexDefinition
	Options     TableOptions
}

func (s *CreateTableStmt) Kind() string { return "CREATE TABLE" }

func (s *CreateTableStmt) Validate() error {
	if len(s.Columns) == 0 {
		return dberrors.MissingRequired("column definitions")
	}
	for _, d := range s.Indexes {
		if len(d.Columns) == 0 {
			return dberrors.MissingRequired("index columns")
		}
		if d.Type == storage.IndexForeign && d.RefTable == nil {
			return dberrors.MissingRequired("REFERENCES clause")
		}
	}
	return nil
}

func (s *CreateTableStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

func (s *CreateTableStmt) SharedTableLocks(currentDB string) []storage.TableRef {
	var refs []storage.TableRef
	for _, d := range s.Indexes {
		if d.RefTable != nil {
			refs = append(refs, d.RefTable.Ref(currentDB))
		}
	}
	return refs
}

// AlterAction is one change in ALTER TABLE.
type AlterAction interface {
	Node
	alterNode()
}

// ColumnPosition places an added or modified column.
type ColumnPosition struct {
	First bool
	After string
}

type AddColumnAction struct {
	PartBase
	Column   *ColumnDef
	Position ColumnPosition
}

type DropColumnAction struct {
	PartBase
	Name string
}

// ModifyColumnAction covers MODIFY (OldName == Column.Name) and CHANGE.
type ModifyColumnAction struct {
	PartBase
	OldName  string
	Column   *ColumnDef
	Position ColumnPosition
}

type AddIndexAction struct {
	PartBase
	Index *IndexDefinition
}

// DropIndexAction drops an index; DROP PRIMARY KEY uses the name PRIMARY.
type DropIndexAction struct {
	PartBase
	Name string
}

type RenameAction struct {
	PartBase
	To *TableSource
}

type TableOptionsAction struct {
	PartBase
	Options TableOptions
}

func (*AddColumnAction) alterNode()    {}
func (*DropColumnAction) alterNode()   {}
func (*ModifyColumnAction) alterNode() {}
func (*AddIndexAction) alterNode()     {}
func (*DropIndexAction) alterNode()    {}
func (*RenameAction) alterNode()       {}
func (*TableOptionsAction) alterNode() {}

// AlterTableStmt changes a table definition.
type AlterTableStmt struct {
	StatementBase
	Table   *TableSource
	Actions []AlterAction
}

func (s *AlterTableStmt) Kind() string { return "ALTER TABLE" }

func (s *AlterTableStmt) Validate() error {
	if len(s.Actions) == 0 {
		return dberrors.MissingRequired("alter specification")
	}
	return nil
}

func (s *AlterTableStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	refs := []storage.TableRef{s.Table.Ref(currentDB)}
	for _, a := range s.Actions {
		if r, ok := a.(*RenameAction); ok {
			refs = append(refs, r.To.Ref(currentDB))
		}
	}
	return refs
}

// RenameTableStmt is RENAME TABLE a TO b [, c TO d ...].
type RenameTableStmt struct {
	StatementBase
	From []*TableSource
	To   []*TableSource
}

func (s *RenameTableStmt) Kind() string { return "RENAME TABLE" }

func (s *RenameTableStmt) Validate() error {
	if len(s.From) == 0 || len(s.From) != len(s.To) {
		return dberrors.MissingRequired("rename pairs")
	}
	return nil
}

func (s *RenameTableStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	var refs []storage.TableRef
	for i := range s.From {
		refs = append(refs, s.From[i].Ref(currentDB), s.To[i].Ref(currentDB))
	}
	return refs
}

// CreateIndexStmt is CREATE [UNIQUE|FULLTEXT|SPATIAL] INDEX ... ON t (...).
type CreateIndexStmt struct {
	StatementBase
	Table *TableSource
	Index *IndexDefinition
}

func (s *CreateIndexStmt) Kind() string { return "CREATE INDEX" }

func (s *CreateIndexStmt) Validate() error {
	if s.Index.Name == "" {
		return dberrors.MissingRequired("index name")
	}
	if len(s.Index.Columns) == 0 {
		return dberrors.MissingRequired("index columns")
	}
	return nil
}

func (s *CreateIndexStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

// DropIndexStmt is DROP INDEX name ON t.
type DropIndexStmt struct {
	StatementBase
	Name  string
	Table *TableSource
}

func (s *DropIndexStmt) Kind() string { return "DROP INDEX" }

func (s *DropIndexStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	return []storage.TableRef{s.Table.Ref(currentDB)}
}

// DropTableStmt drops one or more tables.
type DropTableStmt struct {
	StatementBase
	Tables   []*TableSource
	IfExists bool
}

func (s *DropTableStmt) Kind() string { return "DROP TABLE" }

func (s *DropTableStmt) ExclusiveTableLocks(currentDB string) []storage.TableRef {
	refs := make([]storage.TableRef, len(s.Tables))
	for i, t := range s.Tables {
		refs[i] = t.Ref(currentDB)
	}
	return refs
}

// CreateDatabaseStmt is CREATE DATABASE|SCHEMA [IF NOT EXISTS] name.
type CreateDatabaseStmt struct {
	StatementBase
	Name        string
	IfNotExists bool
	Charset     string
}

func (s *CreateDatabaseStmt) Kind() string { return "CREATE DATABASE" }

func (s *CreateDatabaseStmt) ExclusiveTableLocks(string) []storage.TableRef {
	return []storage.TableRef{{Database: s.Name}}
}

// DropDatabaseStmt is DROP DATABASE|SCHEMA [IF EXISTS] name.
type DropDatabaseStmt struct {
	StatementBase
	Name     string
	IfExists bool
}

func (s *DropDatabaseStmt) Kind() string { return "DROP DATABASE" }

func (s *DropDatabaseStmt) ExclusiveTableLocks(string) []storage.TableRef {
	return []storage.TableRef{{Database: s.Name}}
}

// UseStmt selects the current database of the session.
type UseStmt struct {
	StatementBase
	Database string
}

func (s *UseStmt) Kind() string { return "USE" }

// ShowKind is what a SHOW statement lists.
type ShowKind int

const (
	ShowDatabases ShowKind = iota
	ShowTables
	ShowColumns
	ShowIndex
	ShowCreateTable
)

// ShowStmt is SHOW DATABASES/TABLES/COLUMNS/INDEX/CREATE TABLE and DESCRIBE.
type ShowStmt struct {
	StatementBase
	What     ShowKind
	Full     bool
	Table    *TableSource
	Database string
	Like     Expr
}

func (s *ShowStmt) Kind() string { return "SHOW" }

func (s *ShowStmt) Validate() error {
	if (s.What == ShowColumns || s.What == ShowIndex || s.What == ShowCreateTable) && s.Table == nil {
		return dberrors.MissingRequired("table name")
	}
	return nil
}

func (s *ShowStmt) SharedTableLocks(currentDB string) []storage.TableRef {
	switch s.What {
	case ShowColumns, ShowIndex, ShowCreateTable:
		return []storage.TableRef{s.Table.Ref(currentDB)}
	case ShowTables:
		db := s.Database
		if db == "" {
			db = currentDB
		}
		return []storage.TableRef{{Database: db}}
	}
	return nil
}

// ============================================================================
// Traversal
// ============================================================================

// Walk calls fn for n and, while fn returns true, for every node below it
// in source order.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || isNilNode(n) || !fn(n) {
		return
	}
	walkExprs := func(exprs ...Expr) {
		for _, e := range exprs {
			if e != nil {
				Walk(e, fn)
			}
		}
	}
	switch x := n.(type) {
	case *FuncCall:
		walkExprs(x.Args...)
	case *Chain:
		walkExprs(x.Operands...)
	case *Unary:
		walkExprs(x.Operand)
	case *Comparison:
		walkExprs(x.Left, x.Right)
	case *LikeCond:
		walkExprs(x.CheckValue, x.Pattern, x.Escape)
	case *InCond:
		walkExprs(x.CheckValue)
		walkExprs(x.Values...)
		if x.Subquery != nil {
			Walk(x.Subquery, fn)
		}
	case *BetweenCond:
		walkExprs(x.CheckValue, x.Low, x.High)
	case *IsNullCond:
		walkExprs(x.CheckValue)
	case *CaseExpr:
		walkExprs(x.CaseValue)
		for _, wt := range x.WhenThen {
			walkExprs(wt.When, wt.Then)
		}
		walkExprs(x.ElseStatement)
	case *SubqueryExpr:
		Walk(x.Select, fn)
	case *ExistsExpr:
		Walk(x.Select, fn)
	case *DerivedSource:
		Walk(x.Select, fn)
	case *Join:
		Walk(x.DataSource, fn)
		walkExprs(x.Condition)
	case *OrderItem:
		walkExprs(x.Expr)
	case *Assignment:
		walkExprs(x.Column, x.Value)
	case *SelectStmt:
		walkExprs(x.Items...)
		if x.From != nil {
			Walk(x.From, fn)
		}
		for _, j := range x.Joins {
			Walk(j, fn)
		}
		walkExprs(x.Where)
		walkExprs(x.GroupBy...)
		walkExprs(x.Having)
		for _, o := range x.OrderBy {
			Walk(o, fn)
		}
		walkExprs(x.Limit, x.Offset)
	case *InsertStmt:
		Walk(x.Table, fn)
		for _, row := range x.Rows {
			walkExprs(row...)
		}
		for _, a := range x.Set {
			Walk(a, fn)
		}
		if x.Select != nil {
			Walk(x.Select, fn)
		}
	case *UpdateStmt:
		Walk(x.Table, fn)
		for _, a := range x.Set {
			Walk(a, fn)
		}
		walkExprs(x.Where)
		for _, o := range x.OrderBy {
			Walk(o, fn)
		}
		walkExprs(x.Limit)
	case *DeleteStmt:
		Walk(x.Table, fn)
		walkExprs(x.Where)
		for _, o := range x.OrderBy {
			Walk(o, fn)
		}
		walkExprs(x.Limit)
	}
}

// isNilNode catches typed nil pointers stored in interfaces.
func isNilNode(n Node) bool {
	switch x := n.(type) {
	case *SelectStmt:
		return x == nil
	case *TableSource:
		return x == nil
	}
	return false
}

// tablesRead collects the tables a statement reads through FROM, joins and
// subqueries. The target of INSERT, UPDATE and DELETE is not included.
func tablesRead(stmt Statement, currentDB string) []storage.TableRef {
	var target *TableSource
	switch s := stmt.(type) {
	case *InsertStmt:
		target = s.Table
	case *UpdateStmt:
		target = s.Table
	case *DeleteStmt:
		target = s.Table
	}
	var refs []storage.TableRef
	Walk(stmt, func(n Node) bool {
		if t, ok := n.(*TableSource); ok && t != target {
			refs = append(refs, t.Ref(currentDB))
		}
		return true
	})
	return refs
}

// Params returns the parameter markers of a statement in source order.
func Params(stmt Statement) []*Param {
	var out []*Param
	Walk(stmt, func(n Node) bool {
		if p, ok := n.(*Param); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}
