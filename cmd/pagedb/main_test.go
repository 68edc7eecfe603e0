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

package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pagedb/internal/config"
	"pagedb/internal/metrics"
	"pagedb/internal/sql"
)

func newTestInstance(t *testing.T) *instance {
	t.Helper()
	m := metrics.New()
	engine, err := sql.NewEngine(nil, m)
	if err != nil {
		t.Fatal(err)
	}
	in := &instance{cfg: config.DefaultConfig(), engine: engine, metrics: metrics.NewServer("", m)}
	t.Cleanup(in.Close)
	return in
}

func TestStatementComplete(t *testing.T) {
	tests := []struct {
		input    string
		complete bool
	}{
		{"SELECT 1;", true},
		{"SELECT 1", false},
		{"SELECT 1; -- done", true},
		{"SELECT 'a;", false},
		{"SELECT 'a;b'", false},
		{"SELECT 'a;b';", true},
		{"SELECT @;", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := statementComplete(tt.input); got != tt.complete {
			t.Errorf("statementComplete(%q): expected %v, got %v", tt.input, tt.complete, got)
		}
	}
}

func TestPrintResultTable(t *testing.T) {
	in := newTestInstance(t)
	s := in.engine.NewSession()
	for _, q := range []string{
		"CREATE TABLE t (id INT, name VARCHAR(10))",
		"INSERT INTO t VALUES (1, 'ann'), (22, NULL)",
	} {
		if _, err := s.Execute(q); err != nil {
			t.Fatal(err)
		}
	}
	r, err := s.Execute("SELECT id, name FROM t ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printResult(&buf, r)
	want := strings.Join([]string{
		"+----+------+",
		"| id | name |",
		"+----+------+",
		"| 1  | ann  |",
		"| 22 | NULL |",
		"+----+------+",
		"2 rows in set",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestPrintResultAffected(t *testing.T) {
	in := newTestInstance(t)
	s := in.engine.NewSession()
	if _, err := s.Execute("CREATE TABLE t (id INT AUTO_INCREMENT PRIMARY KEY, v INT)"); err != nil {
		t.Fatal(err)
	}
	r, err := s.Execute("INSERT INTO t (v) VALUES (5)")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printResult(&buf, r)
	if buf.String() != "Query OK, 1 row affected\nLast insert id: 1\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestPrintErrorWithSource(t *testing.T) {
	in := newTestInstance(t)
	_, err := in.engine.NewSession().Execute("SELECT a\nFROM WHERE")
	if err == nil {
		t.Fatal("Expected syntax error")
	}

	var buf bytes.Buffer
	printError(&buf, err)
	out := buf.String()
	if !strings.HasPrefix(out, "ERROR ") || !strings.Contains(out, "2 | FROM WHERE") || !strings.Contains(out, "^") {
		t.Errorf("Expected error with source window, got:\n%s", out)
	}

	buf.Reset()
	printError(&buf, errors.New("plain"))
	if buf.String() != "ERROR: plain\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestShellRunSimple(t *testing.T) {
	in := newTestInstance(t)
	var buf bytes.Buffer
	sh := newShell(in, &buf)

	input := strings.Join([]string{
		"CREATE TABLE t (v INT);",
		"INSERT INTO t",
		"  VALUES (1), (2);",
		"SELECT 'a;b' AS s;",
		"SELECT * FROM missing;",
		"\\timing",
		"\\q",
		"SELECT 'unreached';",
	}, "\n")
	if err := sh.runSimple(strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"Query OK, 2 rows affected", "| a;b |", "ERROR 2001", "Timing is on."} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "unreached") {
		t.Error("Expected \\q to stop the shell")
	}
}

func TestShellUseChangesPrompt(t *testing.T) {
	in := newTestInstance(t)
	var buf bytes.Buffer
	sh := newShell(in, &buf)

	if sh.prompt() != "pagedb:main> " {
		t.Errorf("Unexpected prompt %q", sh.prompt())
	}
	sh.handleLine("CREATE DATABASE shop;")
	sh.handleLine("USE shop;")
	if sh.prompt() != "pagedb:shop> " {
		t.Errorf("Expected prompt for shop, got %q", sh.prompt())
	}
	sh.handleLine("SELECT")
	if sh.prompt() != "      -> " {
		t.Errorf("Expected continuation prompt, got %q", sh.prompt())
	}
}

func TestReadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.sql")
	if err := os.WriteFile(path, []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readScript(nil, path, nil)
	if err != nil || got != "SELECT 1;" {
		t.Errorf("Expected file contents, got %q, %v", got, err)
	}
	got, err = readScript(strings.NewReader("SELECT 2;"), "-", nil)
	if err != nil || got != "SELECT 2;" {
		t.Errorf("Expected stdin contents, got %q, %v", got, err)
	}
	got, err = readScript(nil, "", []string{"SELECT", "3"})
	if err != nil || got != "SELECT 3" {
		t.Errorf("Expected joined args, got %q, %v", got, err)
	}
	if _, err := readScript(nil, "", nil); err == nil {
		t.Error("Expected error without statements")
	}
}

func TestExecCommand(t *testing.T) {
	t.Setenv("PAGEDB_CONFIG_FILE", "")
	t.Chdir(t.TempDir())

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"exec", "CREATE TABLE t (v INT); INSERT INTO t VALUES (1), (2); SELECT SUM(v) AS total FROM t"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if !strings.Contains(buf.String(), "| 3     |") {
		t.Errorf("Expected total of 3, got:\n%s", buf.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	in := newTestInstance(t)
	mux := http.NewServeMux()
	newChecker(in.engine).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected ready, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"name":"storage"`) {
		t.Errorf("Expected storage check in %s", rec.Body.String())
	}
}
