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
Statement Execution:
====================

Every statement runs through the same steps:

 1. parameters are bound and every marker is checked to have a value
 2. Validate rejects statements missing a required part
 3. the exclusive and shared table locks the statement declares are
    acquired all together, or the statement fails with a conflict error
 4. the statement is executed
 5. tables changed by the statement are written back to their files
 6. the locks are released, whatever the outcome

Reads of information_schema take a shared lock on every database, since
they describe all of them.
*/

package sql

import (
	"strings"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/logging"
	"pagedb/internal/storage"
)

// Session executes statements against an Engine. It tracks the current
// database. A Session must not be used from more than one goroutine.
type Session struct {
	engine   *Engine
	database string
	logger   *logging.Logger
}

// Database returns the current database, or "" when none is selected.
func (s *Session) Database() string { return s.database }

// Execute parses and runs one statement. args bind the parameter markers:
// plain values bind ? markers left to right, NamedParam values bind
// :name markers.
func (s *Session) Execute(sql string, args ...interface{}) (*Result, error) {
	stmt, err := s.engine.parse(sql)
	if err != nil {
		s.engine.metrics.RecordStatement("PARSE", 0, err)
		return nil, err
	}
	return s.ExecuteStatement(stmt, args...)
}

// ExecuteScript runs every statement of a ;-separated script in order and
// stops at the first failure. The results of the statements that ran are
// returned either way.
func (s *Session) ExecuteScript(sql string, args ...interface{}) ([]*Result, error) {
	stmts, err := ParseScript(sql)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(stmts))
	for _, stmt := range stmts {
		r, err := s.ExecuteStatement(stmt, args...)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// ExecuteStatement runs an already parsed statement.
func (s *Session) ExecuteStatement(stmt Statement, args ...interface{}) (*Result, error) {
	trace := logging.NewStatementTrace(stmt.Kind())
	result, err := s.execute(stmt, args)
	s.engine.metrics.RecordStatement(stmt.Kind(), trace.Duration(), err)
	if err != nil {
		trace.LogError(s.logger, err, "database", s.database)
		return nil, err
	}
	if n := len(result.rows); n > 0 {
		s.engine.metrics.RowsReturned.Add(float64(n))
	}
	if result.AffectedRows > 0 {
		s.engine.metrics.RowsAffected.Add(float64(result.AffectedRows))
	}
	trace.LogComplete(s.logger,
		"database", s.database,
		"rows", len(result.rows),
		"affected", result.AffectedRows)
	return result, nil
}

func (s *Session) execute(stmt Statement, args []interface{}) (*Result, error) {
	p, err := bindParams(args)
	if err != nil {
		return nil, err
	}
	for _, m := range Params(stmt) {
		if _, err := p.lookup(m); err != nil {
			return nil, err
		}
	}
	if err := stmt.Validate(); err != nil {
		return nil, err
	}

	exclusive, shared := s.lockRefs(stmt)
	locks, err := s.engine.locks.Acquire(exclusive, shared)
	if err != nil {
		return nil, err
	}
	defer locks.Release()

	result, err := s.dispatch(newContext(s, p), stmt)
	if err != nil {
		return nil, err
	}
	if mutates(stmt) {
		if err := s.flush(exclusive); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// lockRefs returns the locks stmt needs in the current database, with
// information_schema expanded to every database.
func (s *Session) lockRefs(stmt Statement) (exclusive, shared []storage.TableRef) {
	exclusive = stmt.ExclusiveTableLocks(s.database)
	for _, ref := range stmt.SharedTableLocks(s.database) {
		if !strings.EqualFold(ref.Database, InformationSchema) {
			shared = append(shared, ref)
			continue
		}
		for _, db := range s.engine.storage.Databases() {
			shared = append(shared, storage.TableRef{Database: db})
		}
	}
	return exclusive, shared
}

func (s *Session) dispatch(ctx *Context, stmt Statement) (*Result, error) {
	switch st := stmt.(type) {
	case *SelectStmt:
		rs, err := s.runSelect(st, ctx)
		if err != nil {
			return nil, err
		}
		return newResult(rs.columns, rs.rows), nil
	case *InsertStmt:
		return s.execInsert(ctx, st)
	case *UpdateStmt:
		return s.execUpdate(ctx, st)
	case *DeleteStmt:
		return s.execDelete(ctx, st)
	case *TruncateStmt:
		return s.execTruncate(st)
	case *CreateDatabaseStmt:
		return s.execCreateDatabase(st)
	case *DropDatabaseStmt:
		defer s.updateTableGauge()
		return s.execDropDatabase(st)
	case *UseStmt:
		return s.execUse(st)
	case *CreateTableStmt:
		defer s.updateTableGauge()
		return s.execCreateTable(ctx, st)
	case *DropTableStmt:
		defer s.updateTableGauge()
		return s.execDropTable(st)
	case *AlterTableStmt:
		return s.execAlterTable(ctx, st)
	case *RenameTableStmt:
		return s.execRenameTable(st)
	case *CreateIndexStmt:
		return s.execCreateIndex(st)
	case *DropIndexStmt:
		return s.execDropIndex(st)
	case *ShowStmt:
		return s.execShow(ctx, st)
	}
	return nil, dberrors.NewExecutionError("unsupported statement").WithDetail(stmt.Kind())
}

// mutates reports whether stmt changes rows or table definitions held in
// table files.
func mutates(stmt Statement) bool {
	switch stmt.(type) {
	case *InsertStmt, *UpdateStmt, *DeleteStmt, *TruncateStmt,
		*AlterTableStmt, *CreateIndexStmt, *DropIndexStmt:
		return true
	}
	return false
}

// flush writes the locked tables that still exist back to their files.
func (s *Session) flush(refs []storage.TableRef) error {
	if !s.engine.storage.Persistent() {
		return nil
	}
	for _, ref := range refs {
		if ref.Table == "" {
			continue
		}
		t, err := s.engine.storage.Table(ref.Database, ref.Table)
		if err != nil {
			continue
		}
		if err := s.engine.storage.Flush(t.Schema.Database, t.Schema.Name); err != nil {
			return err
		}
		if t.Schema.Engine != storage.TableEngineMemory {
			s.engine.metrics.TableFlushes.Inc()
		}
	}
	return nil
}

func (s *Session) updateTableGauge() {
	s.engine.metrics.Tables.Set(float64(s.engine.storage.TableCount()))
}
