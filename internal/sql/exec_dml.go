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
Row Mutation:
=============

INSERT, UPDATE and DELETE run under the exclusive lock of their target
table. A statement either applies completely or not at all: rows inserted
before a failing row are removed again, and rows updated before a failing
row get their previous values back. The table file is rewritten by the
session once the statement succeeds.
*/

package sql

import (
	"sort"
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// targetTable resolves the table a mutating statement writes to.
func (s *Session) targetTable(src *TableSource) (*storage.Table, error) {
	if src.IsSystem(s.database) {
		return nil, dberrors.NewExecutionError("information_schema is read-only").
			WithDetail(src.Table)
	}
	ref := src.Ref(s.database)
	if ref.Database == "" {
		return nil, dberrors.NoDatabaseSelected()
	}
	return s.engine.storage.Table(ref.Database, ref.Table)
}

// columnPositions maps the column list of an INSERT to row positions. An
// empty list means every column in order.
func columnPositions(schema *storage.TableSchema, names []string) ([]int, error) {
	if len(names) == 0 {
		out := make([]int, len(schema.Columns))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, len(names))
	for i, name := range names {
		pos := schema.ColumnIndex(name)
		if pos < 0 {
			return nil, dberrors.ColumnNotFound(name, schema.Name)
		}
		out[i] = pos
	}
	return out, nil
}

func (s *Session) execInsert(ctx *Context, stmt *InsertStmt) (*Result, error) {
	t, err := s.targetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	var rows []map[int]storage.Value
	switch {
	case len(stmt.Set) > 0:
		values := make(map[int]storage.Value, len(stmt.Set))
		for _, a := range stmt.Set {
			pos := t.Schema.ColumnIndex(a.Column.Column)
			if pos < 0 {
				return nil, dberrors.ColumnNotFound(a.Column.Column, t.Schema.Name)
			}
			if a.Value == nil {
				delete(values, pos)
				continue
			}
			v, err := ctx.Eval(a.Value)
			if err != nil {
				return nil, err
			}
			values[pos] = v
		}
		rows = append(rows, values)

	case stmt.Select != nil:
		rs, err := s.runSelect(stmt.Select, ctx)
		if err != nil {
			return nil, err
		}
		positions, err := columnPositions(t.Schema, stmt.Columns)
		if err != nil {
			return nil, err
		}
		if len(rs.columns) != len(positions) {
			return nil, dberrors.ColumnCountMismatch(len(positions), len(rs.columns))
		}
		for _, r := range rs.rows {
			values := make(map[int]storage.Value, len(positions))
			for i, pos := range positions {
				values[pos] = r[i]
			}
			rows = append(rows, values)
		}

	default:
		positions, err := columnPositions(t.Schema, stmt.Columns)
		if err != nil {
			return nil, err
		}
		for _, exprs := range stmt.Rows {
			if len(exprs) != len(positions) {
				return nil, dberrors.ColumnCountMismatch(len(positions), len(exprs))
			}
			values := make(map[int]storage.Value, len(positions))
			for i, e := range exprs {
				v, err := ctx.Eval(e)
				if err != nil {
					return nil, err
				}
				values[positions[i]] = v
			}
			rows = append(rows, values)
		}
	}

	var inserted []storage.RowID
	var lastID int64
	for _, values := range rows {
		id, generated, err := t.Insert(values)
		if err != nil {
			if stmt.Ignore && dberrors.GetCode(err) == dberrors.ErrCodeDuplicateKey {
				continue
			}
			for _, done := range inserted {
				t.Delete(done)
			}
			return nil, err
		}
		inserted = append(inserted, id)
		if lastID == 0 && generated != 0 {
			lastID = generated
		}
	}
	return affected(int64(len(inserted)), lastID), nil
}

// matchingRows returns the ids of the rows of t selected by WHERE, ORDER BY
// and LIMIT.
func (s *Session) matchingRows(ctx *Context, t *storage.Table, src *TableSource,
	where Expr, order []*OrderItem, limit Expr) ([]storage.RowID, *scope, error) {

	sc := tableScope(t.Schema, src.Name())
	ids, err := candidateRows(ctx, t, sc, where)
	if err != nil {
		return nil, nil, err
	}

	type match struct {
		id   storage.RowID
		keys []storage.Value
	}
	var matches []match
	for _, id := range ids {
		row, ok := t.Get(id)
		if !ok {
			continue
		}
		rc := ctx.withRow(sc, row)
		if where != nil {
			ok, err := rc.Test(where)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
		}
		keys, err := orderKeys(rc, order, row)
		if err != nil {
			return nil, nil, err
		}
		matches = append(matches, match{id: id, keys: keys})
	}

	if len(order) > 0 {
		coll := ctx.Collator()
		sort.SliceStable(matches, func(i, j int) bool {
			for k, o := range order {
				c := storage.Compare(matches[i].keys[k], matches[j].keys[k], coll)
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

	n, err := evalCount(ctx, limit, "LIMIT")
	if err != nil {
		return nil, nil, err
	}
	if n >= 0 && n < len(matches) {
		matches = matches[:n]
	}
	out := make([]storage.RowID, len(matches))
	for i, m := range matches {
		out[i] = m.id
	}
	return out, sc, nil
}

func (s *Session) execUpdate(ctx *Context, stmt *UpdateStmt) (*Result, error) {
	t, err := s.targetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	positions := make([]int, len(stmt.Set))
	for i, a := range stmt.Set {
		ref := a.Column
		if ref.Table != "" && !strings.EqualFold(ref.Table, stmt.Table.Name()) {
			return nil, dberrors.ColumnNotFound(qualifiedColumn(ref), "")
		}
		if positions[i] = t.Schema.ColumnIndex(ref.Column); positions[i] < 0 {
			return nil, dberrors.ColumnNotFound(ref.Column, t.Schema.Name)
		}
	}

	ids, sc, err := s.matchingRows(ctx, t, stmt.Table, stmt.Where, stmt.OrderBy, stmt.Limit)
	if err != nil {
		return nil, err
	}

	type saved struct {
		id  storage.RowID
		row storage.Row
	}
	var undo []saved
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			restore := make(map[int]storage.Value, len(undo[i].row))
			for pos, v := range undo[i].row {
				restore[pos] = v
			}
			_, _ = t.Update(undo[i].id, restore)
		}
	}

	var changed int64
	for _, id := range ids {
		old, _ := t.Get(id)
		// Later assignments see the values set by earlier ones.
		row := old.Clone()
		changes := make(map[int]storage.Value, len(stmt.Set))
		for i, a := range stmt.Set {
			var v storage.Value
			if a.Value == nil {
				v = t.Schema.Columns[positions[i]].DefaultValue(ctx.Now())
			} else if v, err = ctx.withRow(sc, row).Eval(a.Value); err != nil {
				rollback()
				return nil, err
			}
			row[positions[i]] = v
			changes[positions[i]] = v
		}
		ok, err := t.Update(id, changes)
		if err != nil {
			rollback()
			return nil, err
		}
		if ok {
			undo = append(undo, saved{id: id, row: old})
			changed++
		}
	}
	return affected(changed, 0), nil
}

func (s *Session) execDelete(ctx *Context, stmt *DeleteStmt) (*Result, error) {
	t, err := s.targetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	ids, _, err := s.matchingRows(ctx, t, stmt.Table, stmt.Where, stmt.OrderBy, stmt.Limit)
	if err != nil {
		return nil, err
	}
	var n int64
	for _, id := range ids {
		if t.Delete(id) {
			n++
		}
	}
	return affected(n, 0), nil
}

func (s *Session) execTruncate(stmt *TruncateStmt) (*Result, error) {
	t, err := s.targetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	n := int64(t.Len())
	t.Truncate()
	return affected(n, 0), nil
}
