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
Package errors provides structured error handling for pagedb.

Every failure that reaches a caller is a *DBError carrying a numeric code,
a category and a message. The categories follow the engine's error taxonomy:

  - SYNTAX: malformed SQL found while tokenizing or parsing. These errors
    carry the failing source position and render a window of the source
    text with a caret under the failing column.
  - VALIDATION: invalid arguments (function arity, enum values, page field
    values, parameter binding).
  - CONFLICT: a table lock could not be acquired.
  - INTEGRITY: a page codec invariant was violated.
  - EXECUTION: name resolution and constraint failures while executing.
  - STORAGE: I/O failures on table files.

Errors are never retried or downgraded inside the engine; they propagate to
the statement boundary unchanged.
*/
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Syntax errors (1000-1999)
	ErrCodeSyntax            ErrorCode = 1000
	ErrCodeUnexpectedToken   ErrorCode = 1001
	ErrCodeMissingKeyword    ErrorCode = 1002
	ErrCodeMalformedQuery    ErrorCode = 1004
	ErrCodeUnclosedString    ErrorCode = 1006
	ErrCodeUnrecognizedInput ErrorCode = 1008

	// Execution errors (2000-2999)
	ErrCodeExecution           ErrorCode = 2000
	ErrCodeTableNotFound       ErrorCode = 2001
	ErrCodeColumnNotFound      ErrorCode = 2002
	ErrCodeTypeMismatch        ErrorCode = 2003
	ErrCodeDuplicateKey        ErrorCode = 2005
	ErrCodeNullViolation       ErrorCode = 2006
	ErrCodeDatabaseNotFound    ErrorCode = 2010
	ErrCodeFunctionNotFound    ErrorCode = 2011
	ErrCodeAmbiguousColumn     ErrorCode = 2012
	ErrCodeTableExists         ErrorCode = 2013
	ErrCodeDatabaseExists      ErrorCode = 2014
	ErrCodeIndexNotFound       ErrorCode = 2015
	ErrCodeIndexExists         ErrorCode = 2016
	ErrCodeColumnExists        ErrorCode = 2017
	ErrCodeNoDatabaseSelected  ErrorCode = 2018
	ErrCodeColumnCountMismatch ErrorCode = 2019
	ErrCodeSubqueryRows        ErrorCode = 2020

	// Storage errors (5000-5099)
	ErrCodeStorage ErrorCode = 5000
	ErrCodeIOError ErrorCode = 5003

	// Data integrity errors (5100-5199)
	ErrCodeIntegrity     ErrorCode = 5100
	ErrCodePageLength    ErrorCode = 5101
	ErrCodeFieldOverflow ErrorCode = 5102
	ErrCodeNonNumericID  ErrorCode = 5103
	ErrCodeCorruptFile   ErrorCode = 5104

	// Validation errors (6000-6999)
	ErrCodeValidation       ErrorCode = 6000
	ErrCodeInvalidValue     ErrorCode = 6001
	ErrCodeValueOutOfRange  ErrorCode = 6002
	ErrCodeMissingRequired  ErrorCode = 6004
	ErrCodeArityMismatch    ErrorCode = 6005
	ErrCodeMissingParameter ErrorCode = 6006

	// Conflict errors (8000-8999)
	ErrCodeConflict     ErrorCode = 8000
	ErrCodeLockConflict ErrorCode = 8001
)

// Category represents the error category.
type Category string

const (
	CategorySyntax     Category = "SYNTAX"
	CategoryExecution  Category = "EXECUTION"
	CategoryStorage    Category = "STORAGE"
	CategoryIntegrity  Category = "INTEGRITY"
	CategoryValidation Category = "VALIDATION"
	CategoryConflict   Category = "CONFLICT"
)

// Position locates a failure inside SQL source text.
// Line and Column are 1-based; Offset is the byte offset into the source.
type Position struct {
	Line   int
	Column int
	Offset int
}

// DBError represents a structured error in pagedb.
type DBError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error

	// Position and Source are only set on syntax errors. Source may be an
	// excerpt whose first line is SourceLine; zero means the full text.
	Position   *Position
	Source     string
	SourceLine int
}

// Error implements the error interface.
func (e *DBError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ERROR %d (%s): %s", e.Code, e.Category, e.Message)
	if e.Detail != "" {
		b.WriteString(" - ")
		b.WriteString(e.Detail)
	}
	if e.Position != nil {
		fmt.Fprintf(&b, " - at line %d, col %d", e.Position.Line, e.Position.Column)
	}
	return b.String()
}

// String renders the error together with a ±10 line window of the source
// text when a source position is known.
func (e *DBError) String() string {
	window := e.SourceWindow(10)
	if window == "" {
		return e.Error()
	}
	return e.Error() + "\n" + window
}

// Unwrap returns the underlying cause.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message.
func (e *DBError) UserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return msg
}

// WithDetail adds detail to the error.
func (e *DBError) WithDetail(detail string) *DBError {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *DBError) WithCause(cause error) *DBError {
	e.Cause = cause
	return e
}

// At attaches a source position and the full source text.
func (e *DBError) At(pos Position, source string) *DBError {
	e.Position = &pos
	e.Source = source
	e.SourceLine = 0
	return e
}

// AtExcerpt attaches a source position and the source lines starting at
// line firstLine.
func (e *DBError) AtExcerpt(pos Position, firstLine int, excerpt string) *DBError {
	e.At(pos, excerpt)
	e.SourceLine = firstLine
	return e
}

// SourceWindow renders the lines surrounding the error position, radius
// lines before and after, with a caret marking the failing column.
// Returns "" when no position is attached.
func (e *DBError) SourceWindow(radius int) string {
	if e.Position == nil || e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	base := e.SourceLine
	if base < 1 {
		base = 1
	}
	end := base + len(lines) - 1
	target := e.Position.Line
	if target < base {
		target = base
	}
	if target > end {
		target = end
	}
	first := target - radius
	if first < base {
		first = base
	}
	last := target + radius
	if last > end {
		last = end
	}

	width := len(fmt.Sprint(last))
	var b strings.Builder
	for n := first; n <= last; n++ {
		fmt.Fprintf(&b, "%*d | %s\n", width, n, strings.TrimRight(lines[n-base], "\r"))
		if n == target {
			col := e.Position.Column
			if col < 1 {
				col = 1
			}
			fmt.Fprintf(&b, "%s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ============================================================================
// Syntax Error Constructors
// ============================================================================

// NewSyntaxError creates a new syntax error.
func NewSyntaxError(message string) *DBError {
	return &DBError{
		Code:     ErrCodeSyntax,
		Category: CategorySyntax,
		Message:  message,
	}
}

// UnexpectedToken creates an error for unexpected tokens.
func UnexpectedToken(expected, got string) *DBError {
	return &DBError{
		Code:     ErrCodeUnexpectedToken,
		Category: CategorySyntax,
		Message:  fmt.Sprintf("expected %s, found %q", expected, got),
		Hint:     "Check your SQL syntax",
	}
}

// MissingKeyword creates an error for missing keywords.
func MissingKeyword(keyword string) *DBError {
	return &DBError{
		Code:     ErrCodeMissingKeyword,
		Category: CategorySyntax,
		Message:  fmt.Sprintf("missing keyword: %s", keyword),
		Hint:     fmt.Sprintf("Add the '%s' keyword to your statement", keyword),
	}
}

// UnrecognizedInput creates a tokenizer error. The offending text is
// truncated to its first 100 bytes.
func UnrecognizedInput(text string) *DBError {
	if len(text) > 100 {
		text = text[:100]
	}
	return &DBError{
		Code:     ErrCodeUnrecognizedInput,
		Category: CategorySyntax,
		Message:  "unrecognized input",
		Detail:   fmt.Sprintf("near %q", text),
	}
}

// UnclosedString creates an error for an unterminated quoted literal.
func UnclosedString(quote byte) *DBError {
	return &DBError{
		Code:     ErrCodeUnclosedString,
		Category: CategorySyntax,
		Message:  fmt.Sprintf("unterminated %c-quoted literal", quote),
	}
}

// ============================================================================
// Execution Error Constructors
// ============================================================================

// NewExecutionError creates a new execution error.
func NewExecutionError(message string) *DBError {
	return &DBError{
		Code:     ErrCodeExecution,
		Category: CategoryExecution,
		Message:  message,
	}
}

// TableNotFound creates an error for missing tables.
func TableNotFound(database, table string) *DBError {
	return &DBError{
		Code:     ErrCodeTableNotFound,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("table not found: %s.%s", database, table),
		Hint:     "Use SHOW TABLES to see available tables",
	}
}

// TableExists creates an error for duplicate table definitions.
func TableExists(database, table string) *DBError {
	return &DBError{
		Code:     ErrCodeTableExists,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("table already exists: %s.%s", database, table),
	}
}

// DatabaseNotFound creates an error for missing databases.
func DatabaseNotFound(database string) *DBError {
	return &DBError{
		Code:     ErrCodeDatabaseNotFound,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("database not found: %s", database),
		Hint:     "Use SHOW DATABASES to see available databases",
	}
}

// DatabaseExists creates an error for duplicate database definitions.
func DatabaseExists(database string) *DBError {
	return &DBError{
		Code:     ErrCodeDatabaseExists,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("database already exists: %s", database),
	}
}

// NoDatabaseSelected is returned when an unqualified table is used before USE.
func NoDatabaseSelected() *DBError {
	return &DBError{
		Code:     ErrCodeNoDatabaseSelected,
		Category: CategoryExecution,
		Message:  "no database selected",
		Hint:     "Run USE <database> first",
	}
}

// ColumnNotFound creates an error for missing columns.
func ColumnNotFound(column, table string) *DBError {
	msg := fmt.Sprintf("unknown column '%s'", column)
	if table != "" {
		msg = fmt.Sprintf("column '%s' not found in table '%s'", column, table)
	}
	return &DBError{
		Code:     ErrCodeColumnNotFound,
		Category: CategoryExecution,
		Message:  msg,
	}
}

// ColumnExists creates an error for duplicate column definitions.
func ColumnExists(column, table string) *DBError {
	return &DBError{
		Code:     ErrCodeColumnExists,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("column '%s' already exists in table '%s'", column, table),
	}
}

// AmbiguousColumn creates an error for column references matching several sources.
func AmbiguousColumn(column string) *DBError {
	return &DBError{
		Code:     ErrCodeAmbiguousColumn,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("column '%s' is ambiguous", column),
		Hint:     "Qualify the column with its table name or alias",
	}
}

// IndexNotFound creates an error for missing indexes.
func IndexNotFound(index, table string) *DBError {
	return &DBError{
		Code:     ErrCodeIndexNotFound,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("index '%s' not found on table '%s'", index, table),
	}
}

// IndexExists creates an error for duplicate index names.
func IndexExists(index, table string) *DBError {
	return &DBError{
		Code:     ErrCodeIndexExists,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("index '%s' already exists on table '%s'", index, table),
	}
}

// FunctionNotFound creates an error for unregistered function names.
func FunctionNotFound(name string) *DBError {
	return &DBError{
		Code:     ErrCodeFunctionNotFound,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("unknown function: %s", name),
	}
}

// TypeMismatch creates an error for type mismatches.
func TypeMismatch(expected, got, column string) *DBError {
	return &DBError{
		Code:     ErrCodeTypeMismatch,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("type mismatch for column '%s': expected %s, got %s", column, expected, got),
	}
}

// DuplicateKey creates an error for duplicate key violations.
func DuplicateKey(key, index string) *DBError {
	return &DBError{
		Code:     ErrCodeDuplicateKey,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("duplicate entry '%s' for key '%s'", key, index),
	}
}

// NullViolation creates an error for NULL written into a NOT NULL column.
func NullViolation(column string) *DBError {
	return &DBError{
		Code:     ErrCodeNullViolation,
		Category: CategoryExecution,
		Message:  fmt.Sprintf("column '%s' cannot be null", column),
	}
}

// ColumnCountMismatch creates an error for INSERT rows of the wrong width.
func ColumnCountMismatch(expected, got int) *DBError {
	return &DBError{
		Code:     ErrCodeColumnCountMismatch,
		Category: CategoryExecution,
		Message:  "column count doesn't match value count",
		Detail:   fmt.Sprintf("expected %d, got %d", expected, got),
	}
}

// SubqueryRows is returned when a scalar subquery yields more than one row.
func SubqueryRows() *DBError {
	return &DBError{
		Code:     ErrCodeSubqueryRows,
		Category: CategoryExecution,
		Message:  "subquery returns more than 1 row",
	}
}

// ============================================================================
// Storage and Integrity Error Constructors
// ============================================================================

// NewStorageError creates a new storage error.
func NewStorageError(message string) *DBError {
	return &DBError{
		Code:     ErrCodeStorage,
		Category: CategoryStorage,
		Message:  message,
	}
}

// IOError wraps a file system failure.
func IOError(path string, cause error) *DBError {
	return &DBError{
		Code:     ErrCodeIOError,
		Category: CategoryStorage,
		Message:  "i/o error",
		Detail:   path,
		Cause:    cause,
	}
}

// NewIntegrityError creates a new data integrity error.
func NewIntegrityError(message string) *DBError {
	return &DBError{
		Code:     ErrCodeIntegrity,
		Category: CategoryIntegrity,
		Message:  message,
	}
}

// PageLength is returned when a page buffer has the wrong size.
func PageLength(kind string, expected, got int) *DBError {
	return &DBError{
		Code:     ErrCodePageLength,
		Category: CategoryIntegrity,
		Message:  fmt.Sprintf("%s page must be exactly %d bytes", kind, expected),
		Detail:   fmt.Sprintf("got %d bytes", got),
	}
}

// FieldOverflow is returned when a value exceeds its reserved page width.
func FieldOverflow(field string, width, got int) *DBError {
	return &DBError{
		Code:     ErrCodeFieldOverflow,
		Category: CategoryIntegrity,
		Message:  fmt.Sprintf("value for page field '%s' exceeds %d bytes", field, width),
		Detail:   fmt.Sprintf("got %d bytes", got),
	}
}

// NonNumericID is returned when an index column list holds a non-numeric id.
func NonNumericID(raw string) *DBError {
	return &DBError{
		Code:     ErrCodeNonNumericID,
		Category: CategoryIntegrity,
		Message:  "index column list contains a non-numeric id",
		Detail:   fmt.Sprintf("%q", raw),
	}
}

// CorruptFile is returned when a table file cannot be decoded.
func CorruptFile(path, reason string) *DBError {
	return &DBError{
		Code:     ErrCodeCorruptFile,
		Category: CategoryIntegrity,
		Message:  "corrupt table file",
		Detail:   fmt.Sprintf("%s: %s", path, reason),
	}
}

// ============================================================================
// Validation Error Constructors
// ============================================================================

// NewValidationError creates a new validation error.
func NewValidationError(message string) *DBError {
	return &DBError{
		Code:     ErrCodeValidation,
		Category: CategoryValidation,
		Message:  message,
	}
}

// InvalidValue creates an error for invalid values.
func InvalidValue(field, reason string) *DBError {
	return &DBError{
		Code:     ErrCodeInvalidValue,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("invalid value for '%s'", field),
		Detail:   reason,
	}
}

// ValueOutOfRange creates an error for numeric values outside a field's range.
func ValueOutOfRange(field string, value interface{}) *DBError {
	return &DBError{
		Code:     ErrCodeValueOutOfRange,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("value out of range for '%s'", field),
		Detail:   fmt.Sprintf("%v", value),
	}
}

// MissingRequired creates an error for statements missing a required part.
func MissingRequired(part string) *DBError {
	return &DBError{
		Code:     ErrCodeMissingRequired,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("missing required part: %s", part),
	}
}

// ArityMismatch creates an error for functions called with the wrong argument count.
func ArityMismatch(function string, expected, got int) *DBError {
	return &DBError{
		Code:     ErrCodeArityMismatch,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("function %s expects %d argument(s), got %d", function, expected, got),
	}
}

// MissingParameter is returned when a placeholder has no bound value.
func MissingParameter(name string) *DBError {
	return &DBError{
		Code:     ErrCodeMissingParameter,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("no value bound for parameter %s", name),
	}
}

// ============================================================================
// Conflict Error Constructors
// ============================================================================

// LockConflict is returned when a table lock cannot be acquired.
func LockConflict(table, mode string) *DBError {
	return &DBError{
		Code:     ErrCodeLockConflict,
		Category: CategoryConflict,
		Message:  fmt.Sprintf("could not acquire %s lock on %s", mode, table),
		Hint:     "Retry the statement once the conflicting statement has finished",
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// AsDBError extracts a *DBError from err or its wrap chain.
func AsDBError(err error) (*DBError, bool) {
	var e *DBError
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func hasCategory(err error, c Category) bool {
	if e, ok := AsDBError(err); ok {
		return e.Category == c
	}
	return false
}

// IsSyntaxError checks if an error is a syntax error.
func IsSyntaxError(err error) bool { return hasCategory(err, CategorySyntax) }

// IsExecutionError checks if an error is an execution error.
func IsExecutionError(err error) bool { return hasCategory(err, CategoryExecution) }

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool { return hasCategory(err, CategoryValidation) }

// IsConflict checks if an error is a lock conflict.
func IsConflict(err error) bool { return hasCategory(err, CategoryConflict) }

// IsIntegrityError checks if an error is a data integrity error.
func IsIntegrityError(err error) bool { return hasCategory(err, CategoryIntegrity) }

// IsStorageError checks if an error is a storage error.
func IsStorageError(err error) bool { return hasCategory(err, CategoryStorage) }

// GetCode returns the error code if it's a DBError, or 0 otherwise.
func GetCode(err error) ErrorCode {
	if e, ok := AsDBError(err); ok {
		return e.Code
	}
	return 0
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	if e, ok := AsDBError(err); ok {
		msg := e.UserMessage()
		if w := e.SourceWindow(10); w != "" {
			msg += "\n" + w
		}
		return msg
	}
	return fmt.Sprintf("ERROR: %v", err)
}
