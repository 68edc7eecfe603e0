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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/sql"
)

// allCompletions lists the words offered by tab completion.
var allCompletions = []string{
	"SELECT", "INSERT INTO", "UPDATE", "DELETE FROM", "REPLACE INTO",
	"CREATE TABLE", "CREATE DATABASE", "CREATE INDEX", "ALTER TABLE",
	"DROP TABLE", "DROP DATABASE", "RENAME TABLE", "TRUNCATE TABLE",
	"SHOW DATABASES", "SHOW TABLES", "SHOW COLUMNS FROM", "SHOW INDEX FROM",
	"SHOW CREATE TABLE", "SHOW TABLE STATUS", "DESCRIBE", "USE",
	"\\q", "\\h", "\\l", "\\d", "\\s", "\\timing",
}

// shell is the interactive SQL prompt. Statements may span lines and run
// once the input ends with a semicolon; backslash commands run at once.
type shell struct {
	in      *instance
	session *sql.Session
	out     io.Writer
	timing  bool
	buf     strings.Builder
}

func newShell(in *instance, out io.Writer) *shell {
	return &shell{in: in, session: in.engine.NewSession(), out: out}
}

// getHistoryFilePath returns the path to the history file.
func getHistoryFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pagedb_history")
}

func createCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(allCompletions))
	for _, cmd := range allCompletions {
		items = append(items, readline.PcItem(cmd))
	}
	return readline.NewPrefixCompleter(items...)
}

func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

func (sh *shell) prompt() string {
	if sh.buf.Len() > 0 {
		return "      -> "
	}
	return "pagedb:" + sh.session.Database() + "> "
}

// run is the readline loop used on a terminal.
func (sh *shell) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              sh.prompt(),
		HistoryFile:         getHistoryFilePath(),
		AutoComplete:        createCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		log.Warn("Advanced line editing unavailable", "error", err)
		return sh.runSimple(os.Stdin)
	}
	defer rl.Close()

	fmt.Fprintf(sh.out, "Type \\h for help, \\q to quit.\n\n")
	for {
		rl.SetPrompt(sh.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sh.buf.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !sh.handleLine(line) {
			return nil
		}
	}
}

// runSimple reads statements from r without line editing, for piped input.
func (sh *shell) runSimple(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if !sh.handleLine(scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if rest := strings.TrimSpace(sh.buf.String()); rest != "" {
		sh.buf.Reset()
		sh.execute(rest)
	}
	return nil
}

// handleLine adds line to the pending input and runs it when complete.
// Returns false when the shell should exit.
func (sh *shell) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if sh.buf.Len() == 0 {
		switch {
		case trimmed == "":
			return true
		case strings.HasPrefix(trimmed, "\\"):
			return sh.command(trimmed)
		case strings.EqualFold(trimmed, "exit"), strings.EqualFold(trimmed, "quit"):
			return false
		}
	}

	if sh.buf.Len() > 0 {
		sh.buf.WriteByte('\n')
	}
	sh.buf.WriteString(line)
	if !statementComplete(sh.buf.String()) {
		return true
	}
	input := sh.buf.String()
	sh.buf.Reset()
	sh.execute(input)
	return true
}

func (sh *shell) execute(input string) {
	if err := runScript(sh.out, sh.session, input, sh.timing); err != nil {
		printError(sh.out, err)
	}
}

// statementComplete reports whether input ends with a semicolon outside
// any string literal or comment.
func statementComplete(input string) bool {
	tokens, err := sql.Tokenize(input)
	if err != nil {
		// keep reading an open string; other errors are reported on execution
		return dberrors.GetCode(err) != dberrors.ErrCodeUnclosedString
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Significant() {
			return tokens[i].Kind == sql.TokenPunctuation && tokens[i].Text == ";"
		}
	}
	return false
}

// command runs a backslash command. Returns false on \q.
func (sh *shell) command(input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "\\q", "\\quit":
		return false
	case "\\h", "\\help", "\\?":
		printHelp(sh.out)
	case "\\l":
		sh.execute("SHOW DATABASES;")
	case "\\d":
		if len(fields) > 1 {
			sh.execute("SHOW COLUMNS FROM " + fields[1] + ";")
		} else {
			sh.execute("SHOW TABLES;")
		}
	case "\\s", "\\status":
		sh.printStatus()
	case "\\timing":
		sh.timing = !sh.timing
		state := "off"
		if sh.timing {
			state = "on"
		}
		fmt.Fprintf(sh.out, "Timing is %s.\n", state)
	default:
		fmt.Fprintf(sh.out, "Unknown command %s. Type \\h for help.\n", fields[0])
	}
	return true
}

func (sh *shell) printStatus() {
	cfg := sh.in.cfg
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "(memory)"
	}
	stats := sh.in.engine.CacheStats()
	fmt.Fprintf(sh.out, "Database:        %s\n", sh.session.Database())
	fmt.Fprintf(sh.out, "Data directory:  %s\n", dataDir)
	fmt.Fprintf(sh.out, "Collation:       %s (%s)\n", cfg.Collation, cfg.Charset)
	fmt.Fprintf(sh.out, "Encryption:      %v\n", cfg.EncryptionEnabled)
	fmt.Fprintf(sh.out, "Statement cache: %d/%d entries, %.1f%% hit rate\n",
		stats.Entries, stats.MaxEntries, stats.HitRate*100)
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(sh.out, "Metrics:         http://%s/metrics\n", cfg.MetricsAddr)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Statements end with a semicolon and may span several lines.

  \q          quit
  \h          this help
  \l          list databases
  \d [table]  list tables, or the columns of table
  \s          session and engine status
  \timing     toggle statement timing
`)
}
