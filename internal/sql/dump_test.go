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
	"reflect"
	"strings"
	"testing"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

func TestDumpRoundTrip(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE users (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(40), score DOUBLE)")
	mustExec(t, s, `INSERT INTO users (name, score) VALUES ('it''s', 1.5), ('back\\slash', 2), (NULL, NULL)`)
	mustExec(t, s, "CREATE DATABASE shop")
	mustExec(t, s, "CREATE TABLE shop.items (sku VARCHAR(10), qty INT)")
	mustExec(t, s, "INSERT INTO shop.items VALUES ('a-1', -3)")

	var b strings.Builder
	if err := s.engine.Dump(&b); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	script := b.String()
	if !strings.Contains(script, "CREATE DATABASE IF NOT EXISTS `shop`;") {
		t.Errorf("Expected database statement in dump:\n%s", script)
	}

	restored := newTestSession(t)
	if _, err := restored.ExecuteScript(script); err != nil {
		t.Fatalf("Replaying dump failed: %v\n%s", err, script)
	}

	want := [][]storage.Value{
		{int64(1), "it's", 1.5},
		{int64(2), `back\slash`, 2.0},
		{int64(3), nil, nil},
	}
	got := queryRows(t, restored, "SELECT id, name, score FROM main.users ORDER BY id")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if v := queryValue(t, restored, "SELECT qty FROM shop.items"); v != int64(-3) {
		t.Errorf("Expected -3, got %v", v)
	}

	r := mustExec(t, restored, "INSERT INTO main.users (name) VALUES ('next')")
	if r.LastInsertID != 4 {
		t.Errorf("Expected auto-increment to continue at 4, got %d", r.LastInsertID)
	}
}

func TestDumpSingleDatabase(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE a (v INT)")
	mustExec(t, s, "CREATE DATABASE other")
	mustExec(t, s, "CREATE TABLE other.b (v INT)")

	var b strings.Builder
	if err := s.engine.Dump(&b, "other"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), "`a`") || !strings.Contains(b.String(), "`b`") {
		t.Errorf("Expected only database other in dump:\n%s", b.String())
	}

	err := s.engine.Dump(&b, "missing")
	if dberrors.GetCode(err) != dberrors.ErrCodeDatabaseNotFound {
		t.Errorf("Expected database not found, got %v", err)
	}
}

func TestDumpLockConflict(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (v INT)")

	held, err := s.engine.Locks().Acquire([]storage.TableRef{{Database: "main", Table: "t"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	var b strings.Builder
	if err := s.engine.Dump(&b); !dberrors.IsConflict(err) {
		t.Errorf("Expected lock conflict, got %v", err)
	}
}
