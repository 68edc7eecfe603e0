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
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/sql"
	"pagedb/internal/storage"
)

// runScript executes every statement of script and prints each result.
func runScript(w io.Writer, session *sql.Session, script string, timing bool) error {
	stmts, err := sql.ParseScript(script)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		start := time.Now()
		r, err := session.ExecuteStatement(stmt)
		if err != nil {
			return err
		}
		printResult(w, r)
		if timing {
			fmt.Fprintf(w, "Time: %.3f ms\n", float64(time.Since(start).Microseconds())/1000)
		}
	}
	return nil
}

// printResult writes a result set as a table, or a row count for
// statements without output columns.
func printResult(w io.Writer, r *sql.Result) {
	cols := r.Columns()
	if len(cols) == 0 {
		fmt.Fprintf(w, "Query OK, %d %s affected\n", r.AffectedRows, plural(r.AffectedRows, "row"))
		if r.LastInsertID != 0 {
			fmt.Fprintf(w, "Last insert id: %d\n", r.LastInsertID)
		}
		return
	}

	rows := r.All()
	cells := make([][]string, len(rows))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = utf8.RuneCountInString(c)
	}
	for i, row := range rows {
		values := row.Values()
		cells[i] = make([]string, len(values))
		for j, v := range values {
			s := storage.ToString(v)
			cells[i][j] = s
			if n := utf8.RuneCountInString(s); n > widths[j] {
				widths[j] = n
			}
		}
	}

	sep := separator(widths)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, tableLine(cols, widths))
	fmt.Fprintln(w, sep)
	for _, line := range cells {
		fmt.Fprintln(w, tableLine(line, widths))
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, sep)
	}
	n := int64(len(rows))
	fmt.Fprintf(w, "%d %s in set\n", n, plural(n, "row"))
}

func separator(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, n := range widths {
		b.WriteString(strings.Repeat("-", n+2))
		b.WriteByte('+')
	}
	return b.String()
}

func tableLine(values []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, v := range values {
		b.WriteByte(' ')
		b.WriteString(v)
		b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(v)))
		b.WriteString(" |")
	}
	return b.String()
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// printError writes err, followed by the offending source lines when the
// error carries a position.
func printError(w io.Writer, err error) {
	dbErr, ok := dberrors.AsDBError(err)
	if !ok {
		fmt.Fprintf(w, "ERROR: %v\n", err)
		return
	}
	fmt.Fprintf(w, "ERROR %d: %s\n", dbErr.Code, dbErr.Message)
	if dbErr.Detail != "" {
		fmt.Fprintf(w, "DETAIL: %s\n", dbErr.Detail)
	}
	if dbErr.Hint != "" {
		fmt.Fprintf(w, "HINT: %s\n", dbErr.Hint)
	}
	if window := dbErr.SourceWindow(2); window != "" {
		fmt.Fprintln(w, window)
	}
}
