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
Query Execution:
================

A SELECT is executed in the following order:

 1. FROM and joins are materialized into flat rows. Each join appends the
    columns of its source to the row, so a scope of bound columns describes
    where t.col lives in the joined row.
 2. WHERE filters the joined rows.
 3. GROUP BY partitions them in order of first appearance. A query with an
    aggregate and no GROUP BY forms one group, even over zero rows.
 4. The select list is evaluated once per row or group; HAVING then filters
    with the select list aliases in scope.
 5. DISTINCT, ORDER BY, OFFSET and LIMIT apply to the projected rows.

The first stored table of FROM is narrowed through a single-column index
when a WHERE conjunct compares that column with a constant. Equality joins
probe an index of the joined table. Both are shortcuts only: the complete
condition is always evaluated on the rows they produce.
*/

package sql

import (
	"math"
	"sort"
	"strconv"
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// resultSet is a materialized query result.
type resultSet struct {
	columns []string
	rows    []storage.Row
}

// boundRef reads a fixed position of the current row. The executor uses
// it for expanded * items and USING conditions.
type boundRef struct {
	PartBase
	pos int
}

func (*boundRef) exprNode() {}

// runSelect executes a query. parent is the context of the enclosing
// statement; correlated references resolve through it.
func (s *Session) runSelect(stmt *SelectStmt, parent *Context) (*resultSet, error) {
	ctx := parent.child()

	sc, rows, err := s.buildRows(ctx, stmt)
	if err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		var kept []storage.Row
		for _, row := range rows {
			ok, err := ctx.withRow(sc, row).Test(stmt.Where)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	items, names, err := expandItems(stmt.Items, sc)
	if err != nil {
		return nil, err
	}

	type projected struct {
		values storage.Row
		keys   []storage.Value
	}
	var out []projected
	emit := func(rc *Context) error {
		values := make(storage.Row, len(items))
		for i, it := range items {
			v, err := rc.Eval(it)
			if err != nil {
				return err
			}
			values[i] = v
		}
		rc.aliases = aliasValues(items, values)
		if stmt.Having != nil {
			ok, err := rc.Test(stmt.Having)
			if err != nil || !ok {
				return err
			}
		}
		keys, err := orderKeys(rc, stmt.OrderBy, values)
		if err != nil {
			return err
		}
		out = append(out, projected{values: values, keys: keys})
		return nil
	}

	if isGrouped(stmt, items) {
		groups, err := groupRows(ctx, sc, rows, groupExprs(stmt.GroupBy, items, sc))
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			if err := emit(ctx.withGroup(sc, g)); err != nil {
				return nil, err
			}
		}
	} else {
		for _, row := range rows {
			if err := emit(ctx.withRow(sc, row)); err != nil {
				return nil, err
			}
		}
	}

	coll := ctx.Collator()
	if stmt.Distinct {
		seen := make(map[string]bool, len(out))
		kept := out[:0]
		for _, p := range out {
			k := rowKey(p.values, coll)
			if !seen[k] {
				seen[k] = true
				kept = append(kept, p)
			}
		}
		out = kept
	}

	if len(stmt.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for k, o := range stmt.OrderBy {
				c := storage.Compare(out[i].keys[k], out[j].keys[k], coll)
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	offset, err := evalCount(ctx, stmt.Offset, "OFFSET")
	if err != nil {
		return nil, err
	}
	limit, err := evalCount(ctx, stmt.Limit, "LIMIT")
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if offset >= len(out) {
			out = nil
		} else {
			out = out[offset:]
		}
	}
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}

	rs := &resultSet{columns: names, rows: make([]storage.Row, len(out))}
	for i, p := range out {
		rs.rows[i] = p.values
	}
	return rs, nil
}

// evalCount evaluates a LIMIT or OFFSET operand; -1 means absent.
func evalCount(ctx *Context, e Expr, what string) (int, error) {
	if e == nil {
		return -1, nil
	}
	v, err := ctx.Eval(e)
	if err != nil {
		return 0, err
	}
	n, ok := storage.ToInt(v)
	if !ok || n < 0 {
		return 0, dberrors.InvalidValue(what, "must be a non-negative integer")
	}
	return int(n), nil
}

// ============================================================================
// Row sources
// ============================================================================

func (s *Session) buildRows(ctx *Context, stmt *SelectStmt) (*scope, []storage.Row, error) {
	if stmt.From == nil {
		return newScope(nil), []storage.Row{{}}, nil
	}
	sc, rows, _, err := s.openSource(ctx, stmt.From, stmt.Where)
	if err != nil {
		return nil, nil, err
	}
	for _, j := range stmt.Joins {
		if sc, rows, err = s.applyJoin(ctx, sc, rows, j); err != nil {
			return nil, nil, err
		}
	}
	return sc, rows, nil
}

// openSource materializes one FROM item. where, when given, may narrow a
// stored table through an index.
func (s *Session) openSource(ctx *Context, ds DataSource, where Expr) (*scope, []storage.Row, *storage.Table, error) {
	switch src := ds.(type) {
	case *TableSource:
		if src.IsSystem(s.database) {
			return s.openSystemTable(src)
		}
		ref := src.Ref(s.database)
		if ref.Database == "" {
			return nil, nil, nil, dberrors.NoDatabaseSelected()
		}
		t, err := s.engine.storage.Table(ref.Database, ref.Table)
		if err != nil {
			return nil, nil, nil, err
		}
		sc := tableScope(t.Schema, src.Name())
		ids, err := candidateRows(ctx, t, sc, where)
		if err != nil {
			return nil, nil, nil, err
		}
		rows := make([]storage.Row, 0, len(ids))
		for _, id := range ids {
			if row, ok := t.Get(id); ok {
				rows = append(rows, row)
			}
		}
		return sc, rows, t, nil

	case *DerivedSource:
		rs, err := s.runSelect(src.Select, ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		cols := make([]boundColumn, len(rs.columns))
		for i, name := range rs.columns {
			cols[i] = boundColumn{table: src.Alias, name: name}
		}
		return newScope(cols), rs.rows, nil, nil
	}
	return nil, nil, nil, dberrors.NewExecutionError("unsupported data source")
}

func tableScope(schema *storage.TableSchema, qualifier string) *scope {
	cols := make([]boundColumn, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = boundColumn{database: schema.Database, table: qualifier, name: c.Name}
	}
	return newScope(cols)
}

// candidateRows returns the ids of the rows that can satisfy where, using
// the first conjunct an index can answer.
func candidateRows(ctx *Context, t *storage.Table, sc *scope, where Expr) ([]storage.RowID, error) {
	for _, cond := range conjuncts(where) {
		ids, ok, err := indexScan(ctx, t, sc, cond)
		if err != nil {
			return nil, err
		}
		if ok {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			return ids, nil
		}
	}
	return t.RowIDs(), nil
}

var flippedOps = map[string]string{"=": "=", "<": ">", "<=": ">=", ">": "<", ">=": "<="}

// indexScan answers cond from an index. ok is false when no index applies.
func indexScan(ctx *Context, t *storage.Table, sc *scope, cond Expr) ([]storage.RowID, bool, error) {
	var (
		ref    *ColumnRef
		op     string
		lo, hi Expr
	)
	switch c := cond.(type) {
	case *Comparison:
		if _, ok := flippedOps[c.Op]; !ok {
			return nil, false, nil
		}
		if r, ok := c.Left.(*ColumnRef); ok && isConstant(c.Right) {
			ref, op, lo = r, c.Op, c.Right
		} else if r, ok := c.Right.(*ColumnRef); ok && isConstant(c.Left) {
			ref, op, lo = r, flippedOps[c.Op], c.Left
		}
	case *BetweenCond:
		if r, ok := c.CheckValue.(*ColumnRef); ok && !c.IsNegated && isConstant(c.Low) && isConstant(c.High) {
			ref, op, lo, hi = r, "BETWEEN", c.Low, c.High
		}
	}
	if ref == nil {
		return nil, false, nil
	}
	pos, err := sc.resolve(ref)
	if err != nil || pos < 0 {
		return nil, false, nil
	}
	_, tree := t.IndexOn(pos)
	if tree == nil {
		return nil, false, nil
	}
	col := t.Schema.Columns[pos]

	lv, err := ctx.Eval(lo)
	if err != nil {
		return nil, false, err
	}
	var hv storage.Value
	if hi != nil {
		if hv, err = ctx.Eval(hi); err != nil {
			return nil, false, err
		}
	}
	if lv == nil || (hi != nil && hv == nil) {
		return nil, true, nil
	}
	if !keyCompatible(col, lv) || (hi != nil && !keyCompatible(col, hv)) {
		return nil, false, nil
	}

	switch op {
	case "=":
		return tree.Lookup(storage.Key{lv}), true, nil
	case "<":
		return tree.Range(nil, &storage.Bound{Key: storage.Key{lv}}).Rows(), true, nil
	case "<=":
		return tree.Range(nil, &storage.Bound{Key: storage.Key{lv}, Inclusive: true}).Rows(), true, nil
	case ">":
		return tree.Range(&storage.Bound{Key: storage.Key{lv}}, nil).Rows(), true, nil
	case ">=":
		return tree.Range(&storage.Bound{Key: storage.Key{lv}, Inclusive: true}, nil).Rows(), true, nil
	}
	return tree.Range(
		&storage.Bound{Key: storage.Key{lv}, Inclusive: true},
		&storage.Bound{Key: storage.Key{hv}, Inclusive: true},
	).Rows(), true, nil
}

// keyCompatible reports whether index order over col agrees with comparing
// its values to v.
func keyCompatible(col *storage.Column, v storage.Value) bool {
	if col.Type.IsString() {
		_, ok := v.(string)
		return ok
	}
	return storage.IsNumeric(v)
}

// ============================================================================
// Joins
// ============================================================================

func (s *Session) applyJoin(ctx *Context, left *scope, leftRows []storage.Row, j *Join) (*scope, []storage.Row, error) {
	right, rightRows, rightTable, err := s.openSource(ctx, j.DataSource, nil)
	if err != nil {
		return nil, nil, err
	}

	cond := j.Condition
	if len(j.Using) > 0 {
		if left, right, cond, err = usingCondition(left, right, j); err != nil {
			return nil, nil, err
		}
	}
	combined := left.join(right)
	lw, rw := left.width(), right.width()
	concat := func(l, r storage.Row) storage.Row {
		row := make(storage.Row, lw+rw)
		copy(row, l)
		copy(row[lw:], r)
		return row
	}
	matches := func(row storage.Row) (bool, error) {
		return ctx.withRow(combined, row).Test(cond)
	}

	var out []storage.Row
	if j.IsRight {
		for _, r := range rightRows {
			hit := false
			for _, l := range leftRows {
				row := concat(l, r)
				ok, err := matches(row)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					out = append(out, row)
					hit = true
				}
			}
			if !hit {
				out = append(out, concat(nil, r))
			}
		}
		return combined, out, nil
	}

	probe := joinProbe(ctx, combined, lw, rightTable, cond, concat)
	for _, l := range leftRows {
		candidates := rightRows
		if probe != nil {
			if candidates, err = probe(l); err != nil {
				return nil, nil, err
			}
		}
		hit := false
		for _, r := range candidates {
			row := concat(l, r)
			ok, err := matches(row)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				out = append(out, row)
				hit = true
			}
		}
		if !hit && j.IsLeft {
			out = append(out, concat(l, nil))
		}
	}
	return combined, out, nil
}

// usingCondition turns USING (a, b) into left.a = right.a AND left.b =
// right.b and hides the inner copy of each column.
func usingCondition(left, right *scope, j *Join) (*scope, *scope, Expr, error) {
	left = newScope(append([]boundColumn(nil), left.columns...))
	right = newScope(append([]boundColumn(nil), right.columns...))
	chain := &Chain{}
	for _, name := range j.Using {
		ref := &ColumnRef{Column: name}
		lpos, err := left.resolve(ref)
		if err != nil {
			return nil, nil, nil, err
		}
		rpos, err := right.resolve(ref)
		if err != nil {
			return nil, nil, nil, err
		}
		if lpos < 0 || rpos < 0 {
			return nil, nil, nil, dberrors.ColumnNotFound(name, "").WithDetail("in USING clause")
		}
		chain.Operands = append(chain.Operands, &Comparison{
			Left:  &boundRef{pos: lpos},
			Op:    "=",
			Right: &boundRef{pos: left.width() + rpos},
		})
		if j.IsRight {
			left.columns[lpos].hidden = true
		} else {
			right.columns[rpos].hidden = true
		}
	}
	for i := 1; i < len(chain.Operands); i++ {
		chain.Operators = append(chain.Operators, "AND")
	}
	if len(chain.Operands) == 1 {
		return left, right, chain.Operands[0], nil
	}
	return left, right, chain, nil
}

// joinProbe returns a function listing the candidate right rows for a left
// row through an index of the joined table, or nil when the condition has
// no usable equality.
func joinProbe(ctx *Context, combined *scope, lw int, t *storage.Table, cond Expr,
	concat func(l, r storage.Row) storage.Row) func(storage.Row) ([]storage.Row, error) {
	if t == nil {
		return nil
	}
	for _, c := range conjuncts(cond) {
		cmp, ok := c.(*Comparison)
		if !ok || cmp.Op != "=" {
			continue
		}
		for _, sides := range [][2]Expr{{cmp.Left, cmp.Right}, {cmp.Right, cmp.Left}} {
			pos := singlePosition(combined, sides[0])
			if pos < lw || !within(combined, sides[1], 0, lw) {
				continue
			}
			col := t.Schema.Columns[pos-lw]
			_, tree := t.IndexOn(pos - lw)
			if tree == nil {
				continue
			}
			outer := sides[1]
			return func(l storage.Row) ([]storage.Row, error) {
				v, err := ctx.withRow(combined, concat(l, nil)).Eval(outer)
				if err != nil || v == nil || !keyCompatible(col, v) {
					return nil, err
				}
				ids := tree.Lookup(storage.Key{v})
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
				rows := make([]storage.Row, 0, len(ids))
				for _, id := range ids {
					if row, ok := t.Get(id); ok {
						rows = append(rows, row)
					}
				}
				return rows, nil
			}
		}
	}
	return nil
}

// singlePosition returns the row position of a bare column expression, or -1.
func singlePosition(sc *scope, e Expr) int {
	switch x := e.(type) {
	case *boundRef:
		return x.pos
	case *ColumnRef:
		if pos, err := sc.resolve(x); err == nil {
			return pos
		}
	}
	return -1
}

// within reports whether e only reads row positions in [lo, hi).
func within(sc *scope, e Expr, lo, hi int) bool {
	ok := true
	Walk(e, func(n Node) bool {
		switch x := n.(type) {
		case *ColumnRef, *boundRef:
			pos := singlePosition(sc, x.(Expr))
			ok = pos >= lo && pos < hi
		case *SelectStmt, *StarExpr:
			ok = false
		case *FuncCall:
			if isAggregate(x.Name) {
				ok = false
			}
		}
		return ok
	})
	return ok
}

// ============================================================================
// Projection and grouping
// ============================================================================

// expandItems replaces * items with one reference per visible column and
// names every output column.
func expandItems(items []Expr, sc *scope) ([]Expr, []string, error) {
	var out []Expr
	var names []string
	for _, it := range items {
		star, ok := it.(*StarExpr)
		if !ok {
			out = append(out, it)
			names = append(names, itemName(it))
			continue
		}
		n := len(out)
		for i, c := range sc.columns {
			if star.Table == "" && c.hidden {
				continue
			}
			if star.Table != "" && !strings.EqualFold(star.Table, c.table) {
				continue
			}
			out = append(out, &boundRef{pos: i})
			names = append(names, c.name)
		}
		if len(out) == n {
			if star.Table != "" {
				return nil, nil, dberrors.NewExecutionError("unknown table '" + star.Table + "'")
			}
			return nil, nil, dberrors.NewExecutionError("no tables used")
		}
	}
	return out, names, nil
}

// itemName is the alias, else the column name of a plain reference, else
// the source text of the expression.
func itemName(e Expr) string {
	b := e.Base()
	if b.Alias != "" {
		return b.Alias
	}
	if ref, ok := e.(*ColumnRef); ok {
		return ref.Column
	}
	if b.Text != "" {
		return b.Text
	}
	if lit, ok := e.(*Literal); ok {
		return storage.ToString(lit.Value)
	}
	return "?"
}

func aliasValues(items []Expr, values storage.Row) map[string]storage.Value {
	var out map[string]storage.Value
	for i, it := range items {
		if a := it.Base().Alias; a != "" {
			if out == nil {
				out = make(map[string]storage.Value)
			}
			out[strings.ToLower(a)] = values[i]
		}
	}
	return out
}

// orderKeys evaluates the ORDER BY terms for one output row. A positive
// integer literal selects an output column by position.
func orderKeys(rc *Context, order []*OrderItem, values storage.Row) ([]storage.Value, error) {
	if len(order) == 0 {
		return nil, nil
	}
	keys := make([]storage.Value, len(order))
	for i, o := range order {
		if lit, ok := o.Expr.(*Literal); ok {
			if n, isInt := lit.Value.(int64); isInt {
				if n < 1 || int(n) > len(values) {
					return nil, dberrors.ColumnNotFound(strconv.FormatInt(n, 10), "").WithDetail("in ORDER BY")
				}
				keys[i] = values[n-1]
				continue
			}
		}
		v, err := rc.Eval(o.Expr)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

func isGrouped(stmt *SelectStmt, items []Expr) bool {
	if len(stmt.GroupBy) > 0 || hasAggregate(stmt.Having) {
		return true
	}
	for _, it := range items {
		if hasAggregate(it) {
			return true
		}
	}
	for _, o := range stmt.OrderBy {
		if hasAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// groupExprs resolves GROUP BY ordinals and select list aliases to the
// expressions they name.
func groupExprs(groupBy []Expr, items []Expr, sc *scope) []Expr {
	out := make([]Expr, len(groupBy))
	for i, g := range groupBy {
		out[i] = g
		switch x := g.(type) {
		case *Literal:
			if n, ok := x.Value.(int64); ok && n >= 1 && int(n) <= len(items) {
				out[i] = items[n-1]
			}
		case *ColumnRef:
			if x.Table != "" {
				continue
			}
			if pos, err := sc.resolve(x); err == nil && pos >= 0 {
				continue
			}
			for _, it := range items {
				if strings.EqualFold(it.Base().Alias, x.Column) {
					out[i] = it
					break
				}
			}
		}
	}
	return out
}

// groupRows partitions rows by the values of exprs, keeping groups in order
// of first appearance. Without exprs every row lands in a single group,
// which exists even when there are no rows.
func groupRows(ctx *Context, sc *scope, rows []storage.Row, exprs []Expr) ([][]storage.Row, error) {
	if len(exprs) == 0 {
		return [][]storage.Row{rows}, nil
	}
	coll := ctx.Collator()
	index := make(map[string]int)
	var groups [][]storage.Row
	key := make([]storage.Value, len(exprs))
	for _, row := range rows {
		rc := ctx.withRow(sc, row)
		for i, e := range exprs {
			v, err := rc.Eval(e)
			if err != nil {
				return nil, err
			}
			key[i] = v
		}
		k := rowKey(key, coll)
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], row)
	}
	return groups, nil
}

// valueKey renders v so that values comparing equal under coll render the
// same.
func valueKey(v storage.Value, coll storage.Collator) string {
	switch x := v.(type) {
	case nil:
		return "\x00"
	case int64:
		return "n" + strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return "n" + strconv.FormatInt(int64(x), 10)
		}
		return "n" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s" + coll.Key(x)
	}
	return "?" + storage.ToString(v)
}

func rowKey(values []storage.Value, coll storage.Collator) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(valueKey(v, coll))
	}
	return b.String()
}
