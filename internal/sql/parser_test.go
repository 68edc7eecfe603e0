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
	"testing"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

func mustParse(t *testing.T, sql string) Statement {
	t.Helper()
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", sql, err)
	}
	return stmt
}

func TestParseSelect(t *testing.T) {
	stmt := mustParse(t, "SELECT a, b AS total FROM t WHERE a = 1 ORDER BY b DESC LIMIT 10")
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		t.Fatalf("Expected *SelectStmt, got %T", stmt)
	}
	if len(sel.Items) != 2 {
		t.Fatalf("Expected 2 select items, got %d", len(sel.Items))
	}
	if ref, ok := sel.Items[0].(*ColumnRef); !ok || ref.Column != "a" {
		t.Errorf("Expected column a, got %#v", sel.Items[0])
	}
	if sel.Items[1].Base().Alias != "total" {
		t.Errorf("Expected alias total, got %q", sel.Items[1].Base().Alias)
	}
	src, ok := sel.From.(*TableSource)
	if !ok || src.Table != "t" {
		t.Fatalf("Expected table t, got %#v", sel.From)
	}
	cmp, ok := sel.Where.(*Comparison)
	if !ok {
		t.Fatalf("Expected comparison, got %T", sel.Where)
	}
	if cmp.Op != "=" {
		t.Errorf("Expected operator =, got %s", cmp.Op)
	}
	if lit, ok := cmp.Right.(*Literal); !ok || lit.Value != int64(1) {
		t.Errorf("Expected literal 1, got %#v", cmp.Right)
	}
	if len(sel.OrderBy) != 1 || !sel.OrderBy[0].Desc {
		t.Errorf("Expected one descending order item, got %v", sel.OrderBy)
	}
	if lit, ok := sel.Limit.(*Literal); !ok || lit.Value != int64(10) {
		t.Errorf("Expected limit 10, got %#v", sel.Limit)
	}
}

func TestParseSelectItemText(t *testing.T) {
	sel := mustParse(t, "SELECT COUNT(*), a+1 FROM t").(*SelectStmt)
	want := []string{"COUNT(*)", "a+1"}
	for i, w := range want {
		if got := sel.Items[i].Base().Text; got != w {
			t.Errorf("Item %d: expected text %q, got %q", i, w, got)
		}
	}
	fn, ok := sel.Items[0].(*FuncCall)
	if !ok || !fn.Star || fn.Name != "COUNT" {
		t.Errorf("Expected COUNT(*), got %#v", sel.Items[0])
	}
}

func TestParseExpressionChains(t *testing.T) {
	sel := mustParse(t, "SELECT 1 + 2 * 3 - 4").(*SelectStmt)
	chain, ok := sel.Items[0].(*Chain)
	if !ok {
		t.Fatalf("Expected chain, got %T", sel.Items[0])
	}
	if len(chain.Operands) != 3 || len(chain.Operators) != 2 {
		t.Fatalf("Expected 3 operands and 2 operators, got %d and %d", len(chain.Operands), len(chain.Operators))
	}
	if chain.Operators[0] != "+" || chain.Operators[1] != "-" {
		t.Errorf("Expected + and -, got %v", chain.Operators)
	}
	if _, ok := chain.Operands[1].(*Chain); !ok {
		t.Errorf("Expected 2 * 3 to bind tighter, got %T", chain.Operands[1])
	}
}

func TestParsePredicates(t *testing.T) {
	tests := []struct {
		sql   string
		check func(Expr) bool
	}{
		{"SELECT * FROM t WHERE a LIKE 'x%'", func(e Expr) bool { c, ok := e.(*LikeCond); return ok && !c.IsNegated }},
		{"SELECT * FROM t WHERE a NOT LIKE 'x%'", func(e Expr) bool { c, ok := e.(*LikeCond); return ok && c.IsNegated }},
		{"SELECT * FROM t WHERE a IN (1, 2, 3)", func(e Expr) bool { c, ok := e.(*InCond); return ok && len(c.Values) == 3 }},
		{"SELECT * FROM t WHERE a IN (SELECT b FROM u)", func(e Expr) bool { c, ok := e.(*InCond); return ok && c.Subquery != nil }},
		{"SELECT * FROM t WHERE a NOT BETWEEN 1 AND 5", func(e Expr) bool { c, ok := e.(*BetweenCond); return ok && c.IsNegated }},
		{"SELECT * FROM t WHERE a IS NOT NULL", func(e Expr) bool { c, ok := e.(*IsNullCond); return ok && c.IsNegated }},
		{"SELECT * FROM t WHERE EXISTS (SELECT 1 FROM u)", func(e Expr) bool { _, ok := e.(*ExistsExpr); return ok }},
		{"SELECT * FROM t WHERE NOT a = 1", func(e Expr) bool { u, ok := e.(*Unary); return ok && u.Op == "NOT" }},
		{"SELECT * FROM t WHERE a = 1 AND b = 2 OR c = 3", func(e Expr) bool {
			c, ok := e.(*Chain)
			return ok && len(c.Operators) == 1 && c.Operators[0] == "OR"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			sel := mustParse(t, tt.sql).(*SelectStmt)
			if !tt.check(sel.Where) {
				t.Errorf("Unexpected WHERE tree %#v", sel.Where)
			}
		})
	}
}

func TestParseJoins(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM a LEFT JOIN b ON a.id = b.a_id INNER JOIN c USING (id), d").(*SelectStmt)
	if len(sel.Joins) != 3 {
		t.Fatalf("Expected 3 joins, got %d", len(sel.Joins))
	}
	if !sel.Joins[0].IsLeft || sel.Joins[0].Condition == nil {
		t.Errorf("Expected LEFT JOIN with ON, got %#v", sel.Joins[0])
	}
	if !sel.Joins[1].IsInner || len(sel.Joins[1].Using) != 1 {
		t.Errorf("Expected INNER JOIN with USING, got %#v", sel.Joins[1])
	}
	if !sel.Joins[2].IsCross {
		t.Errorf("Expected comma join to be a cross join, got %#v", sel.Joins[2])
	}
}

func TestParseInsert(t *testing.T) {
	ins := mustParse(t, "INSERT IGNORE INTO db1.t (a, b) VALUES (1, 'x'), (2, NULL)").(*InsertStmt)
	if !ins.Ignore {
		t.Error("Expected IGNORE")
	}
	if ins.Table.Database != "db1" || ins.Table.Table != "t" {
		t.Errorf("Expected db1.t, got %s.%s", ins.Table.Database, ins.Table.Table)
	}
	if len(ins.Columns) != 2 || len(ins.Rows) != 2 {
		t.Fatalf("Expected 2 columns and 2 rows, got %d and %d", len(ins.Columns), len(ins.Rows))
	}
	if lit, ok := ins.Rows[1][1].(*Literal); !ok || lit.Value != nil {
		t.Errorf("Expected NULL literal, got %#v", ins.Rows[1][1])
	}

	set := mustParse(t, "INSERT INTO t SET a = 1, b = DEFAULT").(*InsertStmt)
	if len(set.Set) != 2 || set.Set[1].Value != nil {
		t.Errorf("Expected SET with DEFAULT as nil value, got %#v", set.Set)
	}
}

func TestParseUpdateDelete(t *testing.T) {
	upd := mustParse(t, "UPDATE t SET a = a + 1 WHERE b > 2 ORDER BY a LIMIT 3").(*UpdateStmt)
	if len(upd.Set) != 1 || upd.Set[0].Column.Column != "a" {
		t.Errorf("Expected one assignment to a, got %#v", upd.Set)
	}
	if upd.Where == nil || len(upd.OrderBy) != 1 || upd.Limit == nil {
		t.Error("Expected WHERE, ORDER BY and LIMIT")
	}

	del := mustParse(t, "DELETE FROM t WHERE a = 1").(*DeleteStmt)
	if del.Table.Table != "t" || del.Where == nil {
		t.Errorf("Unexpected DELETE %#v", del)
	}
}

func TestParseCreateTable(t *testing.T) {
	stmt := mustParse(t, `CREATE TABLE IF NOT EXISTS users (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL DEFAULT '' COMMENT 'display name',
		score DECIMAL(10,2),
		team_id INT,
		UNIQUE KEY uk_name (name(16)),
		KEY idx_team (team_id) USING HASH,
		CONSTRAINT fk_team FOREIGN KEY (team_id) REFERENCES teams (id) ON DELETE CASCADE
	) ENGINE=MEMORY AUTO_INCREMENT=100 COMMENT='people'`).(*CreateTableStmt)

	if !stmt.IfNotExists {
		t.Error("Expected IF NOT EXISTS")
	}
	if len(stmt.Columns) != 4 {
		t.Fatalf("Expected 4 columns, got %d", len(stmt.Columns))
	}
	id := stmt.Columns[0]
	if id.TypeName != "INT" || !id.Unsigned || !id.NotNull || !id.AutoIncrement || !id.Primary {
		t.Errorf("Unexpected id column %#v", id)
	}
	name := stmt.Columns[1]
	if name.Length != 64 || !name.HasDefault || name.Comment != "display name" {
		t.Errorf("Unexpected name column %#v", name)
	}
	if score := stmt.Columns[2]; score.Length != 10 || score.SecondLength != 2 {
		t.Errorf("Expected DECIMAL(10,2), got %d,%d", score.Length, score.SecondLength)
	}

	if len(stmt.Indexes) != 3 {
		t.Fatalf("Expected 3 indexes, got %d", len(stmt.Indexes))
	}
	if uk := stmt.Indexes[0]; uk.Type != storage.IndexUnique || uk.Columns[0].Length != 16 {
		t.Errorf("Unexpected unique key %#v", uk)
	}
	if idx := stmt.Indexes[1]; idx.Engine != storage.EngineHash {
		t.Errorf("Expected HASH engine, got %v", idx.Engine)
	}
	fk := stmt.Indexes[2]
	if fk.Type != storage.IndexForeign || fk.RefTable.Table != "teams" || fk.OnDelete != storage.RefCascade {
		t.Errorf("Unexpected foreign key %#v", fk)
	}

	if stmt.Options.Engine != "MEMORY" {
		t.Errorf("Expected engine MEMORY, got %q", stmt.Options.Engine)
	}
	if stmt.Options.AutoIncrement == nil || *stmt.Options.AutoIncrement != 100 {
		t.Errorf("Expected AUTO_INCREMENT=100, got %v", stmt.Options.AutoIncrement)
	}
	if stmt.Options.Comment == nil || *stmt.Options.Comment != "people" {
		t.Errorf("Expected comment people, got %v", stmt.Options.Comment)
	}
}

func TestParseAlterTable(t *testing.T) {
	stmt := mustParse(t, "ALTER TABLE t ADD COLUMN c INT AFTER a, DROP COLUMN b, MODIFY a BIGINT FIRST, ADD INDEX idx_c (c), DROP PRIMARY KEY, RENAME TO u").(*AlterTableStmt)
	if len(stmt.Actions) != 6 {
		t.Fatalf("Expected 6 actions, got %d", len(stmt.Actions))
	}
	add, ok := stmt.Actions[0].(*AddColumnAction)
	if !ok || add.Column.Name != "c" || add.Position.After != "a" {
		t.Errorf("Unexpected ADD COLUMN %#v", stmt.Actions[0])
	}
	if drop, ok := stmt.Actions[1].(*DropColumnAction); !ok || drop.Name != "b" {
		t.Errorf("Unexpected DROP COLUMN %#v", stmt.Actions[1])
	}
	mod, ok := stmt.Actions[2].(*ModifyColumnAction)
	if !ok || mod.OldName != "a" || !mod.Position.First {
		t.Errorf("Unexpected MODIFY %#v", stmt.Actions[2])
	}
	if _, ok := stmt.Actions[3].(*AddIndexAction); !ok {
		t.Errorf("Expected ADD INDEX, got %T", stmt.Actions[3])
	}
	if drop, ok := stmt.Actions[4].(*DropIndexAction); !ok || drop.Name != "PRIMARY" {
		t.Errorf("Expected DROP PRIMARY KEY, got %#v", stmt.Actions[4])
	}
	if ren, ok := stmt.Actions[5].(*RenameAction); !ok || ren.To.Table != "u" {
		t.Errorf("Unexpected RENAME %#v", stmt.Actions[5])
	}
}

func TestParseStatementKinds(t *testing.T) {
	tests := []struct {
		sql  string
		kind string
	}{
		{"CREATE DATABASE IF NOT EXISTS shop", "CREATE DATABASE"},
		{"DROP SCHEMA shop", "DROP DATABASE"},
		{"USE shop", "USE"},
		{"CREATE UNIQUE INDEX i ON t (a)", "CREATE INDEX"},
		{"DROP INDEX i ON t", "DROP INDEX"},
		{"DROP TABLE IF EXISTS a, b", "DROP TABLE"},
		{"TRUNCATE TABLE t", "TRUNCATE"},
		{"RENAME TABLE a TO b", "RENAME TABLE"},
		{"SHOW FULL TABLES FROM shop LIKE 'a%'", "SHOW"},
		{"SHOW CREATE TABLE t", "SHOW"},
		{"DESCRIBE t", "SHOW"},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			if got := mustParse(t, tt.sql).Kind(); got != tt.kind {
				t.Errorf("Expected %s, got %s", tt.kind, got)
			}
		})
	}
}

func TestParseShow(t *testing.T) {
	show := mustParse(t, "SHOW FULL TABLES FROM shop LIKE 'a%'").(*ShowStmt)
	if show.What != ShowTables || !show.Full || show.Database != "shop" || show.Like == nil {
		t.Errorf("Unexpected SHOW TABLES %#v", show)
	}
	desc := mustParse(t, "DESCRIBE users").(*ShowStmt)
	if desc.What != ShowColumns || desc.Table.Table != "users" {
		t.Errorf("Expected DESCRIBE as SHOW COLUMNS, got %#v", desc)
	}
}

func TestParseParams(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM t WHERE a = ? AND b = :name AND c = ?")
	params := Params(stmt)
	if len(params) != 3 {
		t.Fatalf("Expected 3 params, got %d", len(params))
	}
	if params[0].Index != 0 || params[2].Index != 1 {
		t.Errorf("Expected positional indexes 0 and 1, got %d and %d", params[0].Index, params[2].Index)
	}
	if params[1].Index != -1 || params[1].Name != "name" {
		t.Errorf("Expected named param, got %#v", params[1])
	}
}

func TestParseScript(t *testing.T) {
	stmts, err := ParseScript("CREATE TABLE t (a INT);; INSERT INTO t VALUES (?); SELECT ? FROM t;")
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 3 {
		t.Fatalf("Expected 3 statements, got %d", len(stmts))
	}
	if p := Params(stmts[2]); len(p) != 1 || p[0].Index != 0 {
		t.Errorf("Expected positional numbering to restart per statement, got %v", p)
	}
}

func TestParseLocks(t *testing.T) {
	stmt := mustParse(t, "INSERT INTO t SELECT * FROM other.u JOIN v ON u.id = v.id")
	excl := stmt.ExclusiveTableLocks("main")
	if len(excl) != 1 || excl[0] != (storage.TableRef{Database: "main", Table: "t"}) {
		t.Errorf("Unexpected exclusive locks %v", excl)
	}
	shared := stmt.SharedTableLocks("main")
	want := map[storage.TableRef]bool{
		{Database: "other", Table: "u"}: true,
		{Database: "main", Table: "v"}:  true,
	}
	if len(shared) != len(want) {
		t.Fatalf("Expected %d shared locks, got %v", len(want), shared)
	}
	for _, ref := range shared {
		if !want[ref] {
			t.Errorf("Unexpected shared lock %v", ref)
		}
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("SELECT a FROM WHERE")
	if err == nil {
		t.Fatal("Expected syntax error")
	}
	if dberrors.GetCode(err) != dberrors.ErrCodeUnexpectedToken {
		t.Errorf("Expected unexpected token code, got %d", dberrors.GetCode(err))
	}
	dbErr, _ := dberrors.AsDBError(err)
	if dbErr.Position == nil || dbErr.Position.Line != 1 || dbErr.Position.Column != 15 {
		t.Errorf("Expected position 1:15, got %+v", dbErr.Position)
	}
}

func TestParseErrorSourceWindow(t *testing.T) {
	_, err := Parse("SELECT a\nFROM\nWHERE x = 1")
	dbErr, ok := dberrors.AsDBError(err)
	if !ok {
		t.Fatalf("Expected DBError, got %v", err)
	}
	want := "2 | FROM\n3 | WHERE x = 1\n  | ^"
	if got := dbErr.SourceWindow(1); got != want {
		t.Errorf("Expected window\n%s\ngot\n%s", want, got)
	}
}

func TestParseErrorWindowFromTokens(t *testing.T) {
	sql := "SELECT a\n" + strings.Repeat("-- pad\n", 13) + "FROM\nWHERE x = 1\n" + strings.Repeat("-- tail\n", 10)
	_, err := Parse(sql)
	dbErr, ok := dberrors.AsDBError(err)
	if !ok {
		t.Fatalf("Expected DBError, got %v", err)
	}
	if dbErr.Position == nil || dbErr.Position.Line != 16 {
		t.Fatalf("Expected error on line 16, got %+v", dbErr.Position)
	}
	if strings.Contains(dbErr.Source, "SELECT") {
		t.Errorf("Expected only the lines around the error, got %q", dbErr.Source)
	}

	lines := strings.Split(dbErr.SourceWindow(10), "\n")
	if len(lines) != 22 {
		t.Fatalf("Expected 21 source lines plus caret, got %d: %q", len(lines), lines)
	}
	if lines[0] != " 6 | -- pad" {
		t.Errorf("Expected window to start at line 6, got %q", lines[0])
	}
	if lines[10] != "16 | WHERE x = 1" || lines[11] != "   | ^" {
		t.Errorf("Expected caret under line 16, got %q / %q", lines[10], lines[11])
	}
	if lines[21] != "26 | -- tail" {
		t.Errorf("Expected window to end at line 26, got %q", lines[21])
	}
}

func TestParseTrailingInput(t *testing.T) {
	if _, err := Parse("SELECT 1; SELECT 2"); err == nil {
		t.Error("Expected error for a second statement")
	}
	if _, err := Parse("SELECT 1;"); err != nil {
		t.Errorf("Expected trailing semicolon to be accepted, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	stmt := mustParse(t, "INSERT INTO t (a, b) VALUES (1)")
	if err := stmt.Validate(); dberrors.GetCode(err) != dberrors.ErrCodeColumnCountMismatch {
		t.Errorf("Expected column count mismatch, got %v", err)
	}

	stmt = mustParse(t, "SHOW DATABASES")
	if err := stmt.Validate(); err != nil {
		t.Errorf("Expected SHOW DATABASES to validate, got %v", err)
	}
}
