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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pagedb/internal/config"
	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

func TestLockConflict(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (v INT)")
	mustExec(t, s, "CREATE TABLE u (v INT)")

	held, err := s.engine.Locks().Acquire(nil, []storage.TableRef{{Database: "main", Table: "t"}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Execute("INSERT INTO t VALUES (1)")
	if !dberrors.IsConflict(err) {
		t.Fatalf("Expected lock conflict, got %v", err)
	}
	expectCode(t, err, dberrors.ErrCodeLockConflict)

	// shared locks are compatible
	if v := queryValue(t, s, "SELECT COUNT(*) FROM t"); v != int64(0) {
		t.Errorf("Expected 0 rows, got %v", v)
	}

	if _, err := s.Execute("INSERT INTO u SELECT v FROM t"); err != nil {
		t.Fatalf("Expected shared read of t with exclusive u to succeed, got %v", err)
	}

	// u is free but t is not, so neither may be taken
	_, err = s.Execute("DROP TABLE u, t")
	if !dberrors.IsConflict(err) {
		t.Errorf("Expected conflict for DROP TABLE, got %v", err)
	}
	if s.engine.Locks().Held(storage.TableRef{Database: "main", Table: "u"}) {
		t.Error("Expected no lock on u after the failed statement")
	}
	if v := queryValue(t, s, "SELECT COUNT(*) FROM u"); v != int64(0) {
		t.Errorf("Expected u to survive, got %v rows", v)
	}

	held.Release()
	mustExec(t, s, "INSERT INTO t VALUES (1)")
	if s.engine.Locks().Held(storage.TableRef{Database: "main", Table: "t"}) {
		t.Error("Expected no locks after release")
	}
}

func TestDatabaseLockConflict(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (v INT)")

	held, err := s.engine.Locks().Acquire(nil, []storage.TableRef{{Database: "main", Table: "t"}})
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	_, err = s.Execute("DROP DATABASE main")
	if !dberrors.IsConflict(err) {
		t.Errorf("Expected DROP DATABASE to conflict with a table lock, got %v", err)
	}
	_, err = s.Execute("SELECT * FROM information_schema.TABLES")
	if err != nil {
		t.Errorf("Expected information_schema read to share the lock, got %v", err)
	}
}

func TestLockConflictMetrics(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (v INT)")

	held, err := s.engine.Locks().Acquire([]storage.TableRef{{Database: "main", Table: "t"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	if _, err := s.Execute("SELECT * FROM t"); !dberrors.IsConflict(err) {
		t.Fatalf("Expected conflict, got %v", err)
	}
	m := s.engine.Metrics()
	conflicts := testutil.ToFloat64(m.LockConflicts.WithLabelValues("shared")) +
		testutil.ToFloat64(m.LockConflicts.WithLabelValues("exclusive"))
	if conflicts != 1 {
		t.Errorf("Expected 1 lock conflict, got %v", conflicts)
	}
	if got := testutil.ToFloat64(m.StatementsTotal.WithLabelValues("SELECT", "error")); got != 1 {
		t.Errorf("Expected 1 failed SELECT, got %v", got)
	}
	if got := testutil.ToFloat64(m.Tables); got != 1 {
		t.Errorf("Expected tables gauge 1, got %v", got)
	}
}

func TestPositionalAndNamedParams(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INT, name VARCHAR(10))")

	mustExec(t, s, "INSERT INTO t VALUES (?, ?)", 1, "a")
	mustExec(t, s, "INSERT INTO t VALUES (:id, :name)", Named("id", 2), Named(":name", "b"))

	if v := queryValue(t, s, "SELECT name FROM t WHERE id = ?", 2); v != "b" {
		t.Errorf("Expected b, got %v", v)
	}
	if v := queryValue(t, s, "SELECT ? + ?", 2, 3); v != int64(5) {
		t.Errorf("Expected 5, got %v", v)
	}
	if v := queryValue(t, s, "SELECT :x * :x", Named("x", 4)); v != int64(16) {
		t.Errorf("Expected 16, got %v", v)
	}

	_, err := s.Execute("SELECT ?")
	expectCode(t, err, dberrors.ErrCodeMissingParameter)

	_, err = s.Execute("SELECT :missing", Named("other", 1))
	expectCode(t, err, dberrors.ErrCodeMissingParameter)
}

func TestPreparedStatement(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INT, name VARCHAR(10))")

	ps, err := s.Prepare("INSERT INTO t VALUES (?, :name)")
	if err != nil {
		t.Fatal(err)
	}
	if ps.Kind() != "INSERT" {
		t.Errorf("Expected INSERT, got %s", ps.Kind())
	}
	if ps.NumParams() != 2 {
		t.Errorf("Expected 2 params, got %d", ps.NumParams())
	}
	if names := ps.ParamNames(); len(names) != 1 || names[0] != "name" {
		t.Errorf("Expected [name], got %v", names)
	}

	for i, name := range []string{"a", "b", "c"} {
		if _, err := ps.Execute(i, Named("name", name)); err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
	}
	if v := queryValue(t, s, "SELECT COUNT(*) FROM t"); v != int64(3) {
		t.Errorf("Expected 3 rows, got %v", v)
	}
}

func TestExecuteScript(t *testing.T) {
	s := newTestSession(t)
	results, err := s.ExecuteScript(`
		CREATE TABLE t (v INT);
		INSERT INTO t VALUES (1), (2);
		SELECT SUM(v) FROM t;
	`)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[1].AffectedRows != 2 {
		t.Errorf("Expected 2 inserted rows, got %d", results[1].AffectedRows)
	}
	row, ok := results[2].Next()
	if !ok {
		t.Fatal("Expected a row")
	}
	if v, _ := row.Get("SUM(v)"); v != int64(3) {
		t.Errorf("Expected 3, got %v", v)
	}

	results, err = s.ExecuteScript("INSERT INTO t VALUES (3); SELECT * FROM missing; INSERT INTO t VALUES (4)")
	if err == nil {
		t.Fatal("Expected script to stop at the failing statement")
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 completed statement, got %d", len(results))
	}
	if v := queryValue(t, s, "SELECT COUNT(*) FROM t"); v != int64(3) {
		t.Errorf("Expected statements after the failure to be skipped, got %v rows", v)
	}
}

func TestStatementCache(t *testing.T) {
	s := newTestSession(t)
	mustExec(t, s, "SELECT 1")
	mustExec(t, s, "SELECT 1")

	stats := s.engine.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", stats.Hits, stats.Misses)
	}
}

func TestCachedStatementWithParams(t *testing.T) {
	s := newTestSession(t)
	for i := 1; i <= 3; i++ {
		if v := queryValue(t, s, "SELECT ? * 2", i); v != int64(i*2) {
			t.Errorf("Expected %d, got %v", i*2, v)
		}
	}
}

func TestResultRows(t *testing.T) {
	s := newTestSession(t)
	r := mustExec(t, s, "SELECT 1 AS a, 'x' AS b")
	if !r.Success {
		t.Error("Expected success")
	}
	row, ok := r.Next()
	if !ok {
		t.Fatal("Expected a row")
	}
	m := row.Map()
	if m["a"] != int64(1) || m["b"] != "x" {
		t.Errorf("Unexpected row %v", m)
	}
	if v, ok := row.Get("B"); !ok || v != "x" {
		t.Errorf("Expected case-insensitive lookup of b, got %v", v)
	}
	if _, ok := r.Next(); ok {
		t.Error("Expected a single row")
	}
}

func persistentConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestPersistence(t *testing.T) {
	cfg := persistentConfig(t)

	e, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := e.NewSession()
	mustExec(t, s, "CREATE TABLE t (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(20), KEY idx_name (name))")
	mustExec(t, s, "INSERT INTO t (name) VALUES ('a'), ('b')")
	mustExec(t, s, "CREATE DATABASE other")
	mustExec(t, s, "CREATE TABLE other.scratch (v INT) ENGINE=MEMORY")
	mustExec(t, s, "INSERT INTO other.scratch VALUES (1)")
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e, err = NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	s = e.NewSession()
	if v := queryValue(t, s, "SELECT name FROM t WHERE id = 2"); v != "b" {
		t.Errorf("Expected b after reopen, got %v", v)
	}
	r := mustExec(t, s, "INSERT INTO t (name) VALUES ('c')")
	if r.LastInsertID != 3 {
		t.Errorf("Expected auto-increment to survive reopen, got %d", r.LastInsertID)
	}
	_, err = s.Execute("SELECT * FROM other.scratch")
	expectCode(t, err, dberrors.ErrCodeTableNotFound)
	mustExec(t, s, "USE other")
}

func TestCompositeKeys(t *testing.T) {
	cfg := persistentConfig(t)

	e, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := e.NewSession()
	mustExec(t, s, `CREATE TABLE scores (
		player INT NOT NULL,
		game INT NOT NULL,
		team VARCHAR(10),
		points INT,
		PRIMARY KEY (player, game),
		INDEX idx_team_points (team, points)
	)`)
	mustExec(t, s, "INSERT INTO scores VALUES (1, 1, 'red', 10), (1, 2, 'red', 20), (2, 1, 'blue', 10)")
	_, err = s.Execute("INSERT INTO scores VALUES (1, 2, 'blue', 5)")
	expectCode(t, err, dberrors.ErrCodeDuplicateKey)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e, err = NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	s = e.NewSession()
	if v := queryValue(t, s, "SELECT points FROM scores WHERE player = 1 AND game = 2"); v != int64(20) {
		t.Errorf("Expected 20 by primary key, got %v", v)
	}
	if v := queryValue(t, s, "SELECT player FROM scores WHERE team = 'blue' AND points = 10"); v != int64(2) {
		t.Errorf("Expected player 2 by secondary index, got %v", v)
	}
	_, err = s.Execute("INSERT INTO scores VALUES (2, 1, 'red', 1)")
	expectCode(t, err, dberrors.ErrCodeDuplicateKey)
	mustExec(t, s, "INSERT INTO scores VALUES (2, 2, 'red', 1)")

	expected := [][3]interface{}{
		{"PRIMARY", int64(1), "player"},
		{"PRIMARY", int64(2), "game"},
		{"idx_team_points", int64(1), "team"},
		{"idx_team_points", int64(2), "points"},
	}
	index := queryRows(t, s, "SHOW INDEX FROM scores")
	if len(index) != len(expected) {
		t.Fatalf("Expected %d SHOW INDEX rows, got %v", len(expected), index)
	}
	for i, want := range expected {
		got := index[i]
		if got[2] != want[0] || got[3] != want[1] || got[4] != want[2] {
			t.Errorf("SHOW INDEX row %d: expected %v, got %v", i, want, got)
		}
	}

	stats := queryRows(t, s, "SELECT INDEX_NAME, SEQ_IN_INDEX, COLUMN_NAME FROM information_schema.STATISTICS WHERE TABLE_NAME = 'scores'")
	if len(stats) != len(expected) {
		t.Fatalf("Expected %d STATISTICS rows, got %v", len(expected), stats)
	}
	for i, want := range expected {
		got := stats[i]
		if got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
			t.Errorf("STATISTICS row %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestEncryptedPersistence(t *testing.T) {
	cfg := persistentConfig(t)
	cfg.EncryptionEnabled = true
	cfg.EncryptionPassphrase = "correct horse battery staple"

	e, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	mustExec(t, e.NewSession(), "CREATE TABLE secrets (v VARCHAR(20))")
	mustExec(t, e.NewSession(), "INSERT INTO secrets VALUES ('hidden')")
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e, err = NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if v := queryValue(t, e.NewSession(), "SELECT v FROM secrets"); v != "hidden" {
		t.Errorf("Expected hidden, got %v", v)
	}

	wrong := *cfg
	wrong.EncryptionPassphrase = "wrong"
	if _, err := NewEngine(&wrong, nil); err == nil {
		t.Error("Expected reopen with the wrong passphrase to fail")
	}
}

func TestCompressedEncryptedPersistence(t *testing.T) {
	cfg := persistentConfig(t)
	cfg.Compression = "gzip"
	cfg.EncryptionEnabled = true
	cfg.EncryptionPassphrase = "secret"

	e, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := e.NewSession()
	mustExec(t, s, "CREATE TABLE logs (id INT AUTO_INCREMENT PRIMARY KEY, msg VARCHAR(64))")
	for i := 0; i < 50; i++ {
		mustExec(t, s, "INSERT INTO logs (msg) VALUES ('the same message every time')")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	plain := *cfg
	plain.Compression = "none"
	e, err = NewEngine(&plain, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if v := queryValue(t, e.NewSession(), "SELECT COUNT(*) FROM logs"); v != int64(50) {
		t.Errorf("Expected 50 rows, got %v", v)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Collation = "klingon"
	if _, err := NewEngine(cfg, nil); err == nil {
		t.Error("Expected invalid collation to be rejected")
	}
}
