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

package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := TableNotFound("shop", "orders")
	want := "ERROR 2001 (EXECUTION): table not found: shop.orders"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	err = InvalidValue("type", "unknown tag 9")
	if !strings.Contains(err.Error(), " - unknown tag 9") {
		t.Errorf("Expected detail in message, got %q", err.Error())
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	src := "SELECT a\nFROM t\nWHERE ??"
	err := UnrecognizedInput("??").At(Position{Line: 3, Column: 7, Offset: 22}, src)

	if !strings.HasSuffix(err.Error(), "at line 3, col 7") {
		t.Errorf("Expected position suffix, got %q", err.Error())
	}

	window := err.SourceWindow(10)
	lines := strings.Split(window, "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 3 source lines plus caret, got %d: %q", len(lines), window)
	}
	if lines[2] != "3 | WHERE ??" {
		t.Errorf("Unexpected source line %q", lines[2])
	}
	if lines[3] != "  |       ^" {
		t.Errorf("Unexpected caret line %q", lines[3])
	}
	if !strings.Contains(err.String(), "WHERE ??") {
		t.Errorf("Expected String() to include the window, got %q", err.String())
	}
}

func TestSourceWindowRadius(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&b, "line%d\n", i)
	}
	err := NewSyntaxError("boom").At(Position{Line: 15, Column: 1}, b.String())
	window := err.SourceWindow(10)
	if !strings.Contains(window, "line5") || strings.Contains(window, "line4\n") {
		t.Errorf("Expected window to start at line 5, got:\n%s", window)
	}
	if !strings.Contains(window, "line25") || strings.Contains(window, "line26") {
		t.Errorf("Expected window to end at line 25, got:\n%s", window)
	}
}

func TestSourceWindowExcerpt(t *testing.T) {
	err := NewSyntaxError("boom").AtExcerpt(Position{Line: 41, Column: 3}, 40, "  a,\n  b c\n  d")
	want := "40 |   a,\n41 |   b c\n   |   ^\n42 |   d"
	if got := err.SourceWindow(10); got != want {
		t.Errorf("Expected window\n%s\ngot\n%s", want, got)
	}

	err.At(Position{Line: 1, Column: 1}, "x")
	if err.SourceLine != 0 {
		t.Errorf("Expected At to reset the excerpt line, got %d", err.SourceLine)
	}
}

func TestUnrecognizedInputTruncated(t *testing.T) {
	err := UnrecognizedInput(strings.Repeat("x", 300))
	if len(err.Detail) > 110 {
		t.Errorf("Expected detail truncated to 100 bytes of input, got %d", len(err.Detail))
	}
}

func TestCategoryHelpers(t *testing.T) {
	wrapped := fmt.Errorf("statement failed: %w", LockConflict("db.t", "exclusive"))

	if !IsConflict(wrapped) {
		t.Error("Expected wrapped lock conflict to be classified as conflict")
	}
	if IsSyntaxError(wrapped) {
		t.Error("Lock conflict must not be a syntax error")
	}
	if GetCode(wrapped) != ErrCodeLockConflict {
		t.Errorf("Expected code %d, got %d", ErrCodeLockConflict, GetCode(wrapped))
	}
	if !IsIntegrityError(FieldOverflow("name", 64, 70)) {
		t.Error("Expected field overflow to be an integrity error")
	}
	if !IsValidationError(ArityMismatch("ABS", 1, 2)) {
		t.Error("Expected arity mismatch to be a validation error")
	}
	if GetCode(fmt.Errorf("plain")) != 0 {
		t.Error("Expected code 0 for non-DBError")
	}
}
