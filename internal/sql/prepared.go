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

import "strings"

// PreparedStatement is a parsed statement bound to a session, executed
// repeatedly with different parameter values.
type PreparedStatement struct {
	session    *Session
	stmt       Statement
	sql        string
	positional int
	named      []string
}

// Prepare parses sql once for repeated execution.
func (s *Session) Prepare(sql string) (*PreparedStatement, error) {
	stmt, err := s.engine.parse(sql)
	if err != nil {
		return nil, err
	}
	ps := &PreparedStatement{session: s, stmt: stmt, sql: sql}
	seen := make(map[string]bool)
	for _, m := range Params(stmt) {
		if m.Index >= 0 {
			if m.Index+1 > ps.positional {
				ps.positional = m.Index + 1
			}
			continue
		}
		name := strings.ToLower(m.Name)
		if !seen[name] {
			seen[name] = true
			ps.named = append(ps.named, m.Name)
		}
	}
	return ps, nil
}

// SQL returns the source text of the statement.
func (ps *PreparedStatement) SQL() string { return ps.sql }

// Kind returns the statement kind, e.g. "SELECT".
func (ps *PreparedStatement) Kind() string { return ps.stmt.Kind() }

// NumParams returns the number of distinct parameters: every ? marker and
// every distinct :name.
func (ps *PreparedStatement) NumParams() int { return ps.positional + len(ps.named) }

// ParamNames returns the distinct named parameters in order of appearance.
func (ps *PreparedStatement) ParamNames() []string { return ps.named }

// Execute runs the statement with args bound as in Session.Execute.
func (ps *PreparedStatement) Execute(args ...interface{}) (*Result, error) {
	return ps.session.ExecuteStatement(ps.stmt, args...)
}
