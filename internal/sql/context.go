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
	"strconv"
	"strings"
	"time"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// boundColumn describes one position of a joined row.
type boundColumn struct {
	database string
	// table is the qualifier rows are addressed by: the alias, or the
	// table name when there is none.
	table string
	name  string
	// hidden columns are not matched by unqualified references or by *.
	// USING hides the join column of the inner side.
	hidden bool
}

// scope maps column references to positions of the rows it describes.
type scope struct {
	columns []boundColumn
}

func newScope(columns []boundColumn) *scope {
	return &scope{columns: columns}
}

// join returns the scope of rows made by appending a row of other.
func (s *scope) join(other *scope) *scope {
	cols := make([]boundColumn, 0, len(s.columns)+len(other.columns))
	cols = append(cols, s.columns...)
	cols = append(cols, other.columns...)
	return &scope{columns: cols}
}

func (s *scope) width() int {
	if s == nil {
		return 0
	}
	return len(s.columns)
}

// resolve returns the row position of ref, or -1 when no column matches.
func (s *scope) resolve(ref *ColumnRef) (int, error) {
	if s == nil {
		return -1, nil
	}
	found := -1
	for i, c := range s.columns {
		if !strings.EqualFold(c.name, ref.Column) {
			continue
		}
		if ref.Table == "" && c.hidden {
			continue
		}
		if ref.Table != "" && !strings.EqualFold(c.table, ref.Table) {
			continue
		}
		if ref.Database != "" && !strings.EqualFold(c.database, ref.Database) {
			continue
		}
		if found >= 0 {
			return -1, dberrors.AmbiguousColumn(ref.Column)
		}
		found = i
	}
	return found, nil
}

// hasTable reports whether any column is qualified by name.
func (s *scope) hasTable(name string) bool {
	for _, c := range s.columns {
		if strings.EqualFold(c.table, name) {
			return true
		}
	}
	return false
}

// params holds the values bound to the markers of one execution.
type params struct {
	positional []storage.Value
	named      map[string]storage.Value
}

// NamedParam binds a value to a :name marker.
type NamedParam struct {
	Name  string
	Value interface{}
}

// Named is shorthand for NamedParam{Name: name, Value: value}.
func Named(name string, value interface{}) NamedParam {
	return NamedParam{Name: name, Value: value}
}

// bindParams splits the arguments of Execute into positional and named
// values. Named values may be given with or without the leading colon.
func bindParams(args []interface{}) (*params, error) {
	p := &params{named: make(map[string]storage.Value)}
	for _, arg := range args {
		if np, ok := arg.(NamedParam); ok {
			v, err := storage.Normalize(np.Value)
			if err != nil {
				return nil, err
			}
			p.named[strings.ToLower(strings.TrimPrefix(np.Name, ":"))] = v
			continue
		}
		v, err := storage.Normalize(arg)
		if err != nil {
			return nil, err
		}
		p.positional = append(p.positional, v)
	}
	return p, nil
}

func paramName(m *Param) string {
	if m.Index >= 0 {
		return "?" + strconv.Itoa(m.Index+1)
	}
	return ":" + m.Name
}

func (p *params) lookup(m *Param) (storage.Value, error) {
	if p != nil {
		if m.Index >= 0 && m.Index < len(p.positional) {
			return p.positional[m.Index], nil
		}
		if m.Index < 0 {
			if v, ok := p.named[strings.ToLower(m.Name)]; ok {
				return v, nil
			}
		}
	}
	return nil, dberrors.MissingParameter(paramName(m))
}

// Context is the state one expression is evaluated in: the current row and
// the scope describing it, the rows of the current group for aggregates,
// and the enclosing context of a correlated subquery.
type Context struct {
	session *Session
	scope   *scope
	row     storage.Row
	group   []storage.Row
	parent  *Context
	params  *params
	now     time.Time

	// aliases holds select list values by alias for HAVING and ORDER BY.
	aliases map[string]storage.Value
}

func newContext(s *Session, p *params) *Context {
	return &Context{session: s, params: p, now: time.Now()}
}

// Row returns the current row.
func (c *Context) Row() storage.Row { return c.row }

// Group returns the rows aggregates run over.
func (c *Context) Group() []storage.Row { return c.group }

// Now returns the statement timestamp. Every call in one statement sees
// the same instant.
func (c *Context) Now() time.Time { return c.now }

// Database returns the current database of the session, or "".
func (c *Context) Database() string {
	if c.session == nil {
		return ""
	}
	return c.session.database
}

// Collator returns the collator values are compared with.
func (c *Context) Collator() storage.Collator {
	if c.session == nil {
		return &storage.BinaryCollator{}
	}
	return c.session.engine.storage.Collator()
}

// withRow returns a child context positioned on row.
func (c *Context) withRow(sc *scope, row storage.Row) *Context {
	out := *c
	out.scope = sc
	out.row = row
	out.group = nil
	out.aliases = nil
	return &out
}

// withGroup returns a child context over the rows of one group. The first
// row stands in for non-aggregated column references.
func (c *Context) withGroup(sc *scope, group []storage.Row) *Context {
	var first storage.Row
	if len(group) > 0 {
		first = group[0]
	}
	out := c.withRow(sc, first)
	out.group = group
	if out.group == nil {
		out.group = []storage.Row{}
	}
	return out
}

// child returns a context for a subquery correlated with c.
func (c *Context) child() *Context {
	return &Context{session: c.session, params: c.params, now: c.now, parent: c}
}

// column resolves a reference against the current scope, then against the
// enclosing contexts.
func (c *Context) column(ref *ColumnRef) (storage.Value, error) {
	if ref.Table == "" && ref.Database == "" && c.aliases != nil {
		if v, ok := c.aliases[strings.ToLower(ref.Column)]; ok {
			return v, nil
		}
	}
	for ctx := c; ctx != nil; ctx = ctx.parent {
		pos, err := ctx.scope.resolve(ref)
		if err != nil {
			return nil, err
		}
		if pos < 0 {
			continue
		}
		if pos >= len(ctx.row) {
			return nil, nil
		}
		return ctx.row[pos], nil
	}
	return nil, dberrors.ColumnNotFound(qualifiedColumn(ref), "")
}

func qualifiedColumn(ref *ColumnRef) string {
	switch {
	case ref.Database != "":
		return ref.Database + "." + ref.Table + "." + ref.Column
	case ref.Table != "":
		return ref.Table + "." + ref.Column
	}
	return ref.Column
}
