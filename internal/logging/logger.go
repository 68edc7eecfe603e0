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
Package logging provides structured, component-scoped logging for pagedb.

Features:
  - Log levels (DEBUG, INFO, WARN, ERROR)
  - Key-value fields, kept in the order they were given
  - Text or JSON output, switchable at runtime
  - Statement traces that time one SQL statement from parse to release

Usage:

	logger := logging.NewLogger("executor")
	logger.Info("Table created", "database", "shop", "table", "orders")

	trace := logging.NewStatementTrace("SELECT")
	defer trace.LogComplete(logger, "rows", n)
*/
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level represents the severity of a log message.
type Level int

const (
	// DEBUG level for detailed debugging information.
	DEBUG Level = iota
	// INFO level for general operational information.
	INFO
	// WARN level for warning conditions.
	WARN
	// ERROR level for error conditions.
	ERROR
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown names map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Entry represents a single log entry with all its metadata.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Message   string
	Fields    []Field
}

// MarshalJSON keeps field order stable in JSON output.
func (e Entry) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteString("{")
	writePair := func(k string, v interface{}) {
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(v)
		if err != nil {
			vb, _ = json.Marshal(fmt.Sprint(v))
		}
		if b.Len() > 1 {
			b.WriteString(",")
		}
		b.Write(kb)
		b.WriteString(":")
		b.Write(vb)
	}
	writePair("timestamp", e.Timestamp.Format(time.RFC3339Nano))
	writePair("level", e.Level.String())
	writePair("component", e.Component)
	writePair("message", e.Message)
	for _, f := range e.Fields {
		if err, ok := f.Value.(error); ok {
			writePair(f.Key, err.Error())
			continue
		}
		writePair(f.Key, f.Value)
	}
	b.WriteString("}")
	return []byte(b.String()), nil
}

// Config holds logger configuration options.
type Config struct {
	Level    Level
	Output   io.Writer
	JSONMode bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:    INFO,
		Output:   os.Stderr,
		JSONMode: false,
	}
}

var (
	globalConfig = DefaultConfig()
	globalMu     sync.RWMutex
	writeMu      sync.Mutex
)

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level Level) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.Level = level
}

// SetGlobalOutput sets the global log output.
func SetGlobalOutput(w io.Writer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.Output = w
}

// SetJSONMode enables or disables JSON output mode.
func SetJSONMode(enabled bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig.JSONMode = enabled
}

// Logger provides structured logging for one component.
// Output settings are read from the global configuration on every call so
// loggers created at package init follow later configuration changes.
type Logger struct {
	component string
	fields    []Field
}

// NewLogger creates a new Logger for the specified component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// With returns a child logger that adds the given key-value pairs to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	fields := make([]Field, 0, len(l.fields)+len(args)/2)
	fields = append(fields, l.fields...)
	fields = append(fields, toFields(args)...)
	return &Logger{component: l.component, fields: fields}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return level >= globalConfig.Level
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()

	if level < cfg.Level || cfg.Output == nil {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    append(append([]Field(nil), l.fields...), toFields(args)...),
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if cfg.JSONMode {
		writeJSON(cfg.Output, entry)
	} else {
		writeText(cfg.Output, entry)
	}
}

// toFields pairs up variadic key-value arguments. A trailing unpaired value
// is stored under "extra".
func toFields(args []interface{}) []Field {
	if len(args) == 0 {
		return nil
	}
	fields := make([]Field, 0, len(args)/2+1)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("arg%d", i)
		}
		fields = append(fields, Field{Key: key, Value: args[i+1]})
	}
	if len(args)%2 != 0 {
		fields = append(fields, Field{Key: "extra", Value: args[len(args)-1]})
	}
	return fields
}

func writeJSON(w io.Writer, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(w, "ERROR: failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

// writeText writes: 2006-01-02T15:04:05.000Z [LEVEL] [component] message key=value ...
func writeText(w io.Writer, entry Entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%-5s] [%s] %s",
		entry.Timestamp.Format("2006-01-02T15:04:05.000Z"), entry.Level, entry.Component, entry.Message)
	for _, f := range entry.Fields {
		v := fmt.Sprintf("%v", f.Value)
		if strings.ContainsAny(v, " \t\n\"") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", f.Key, v)
	}
	fmt.Fprintln(w, b.String())
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, msg, args...)
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, msg, args...)
}

// Warn logs a message at WARN level.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, msg, args...)
}

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, msg, args...)
}

// ============================================================================
// Statement Tracing
// ============================================================================

// StatementTrace times one statement execution for logging.
type StatementTrace struct {
	ID        string
	Kind      string
	StartTime time.Time
}

// NewStatementTrace starts a trace for a statement of the given kind.
func NewStatementTrace(kind string) *StatementTrace {
	return &StatementTrace{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartTime: time.Now(),
	}
}

// Duration returns the time elapsed since the trace started.
func (t *StatementTrace) Duration() time.Duration {
	return time.Since(t.StartTime)
}

// DurationMs returns the elapsed time in milliseconds.
func (t *StatementTrace) DurationMs() float64 {
	return float64(t.Duration().Microseconds()) / 1000.0
}

// LogComplete logs a successfully executed statement at DEBUG level.
func (t *StatementTrace) LogComplete(logger *Logger, args ...interface{}) {
	base := []interface{}{
		"statement_id", t.ID,
		"kind", t.Kind,
		"duration_ms", fmt.Sprintf("%.3f", t.DurationMs()),
	}
	logger.Debug("Statement completed", append(base, args...)...)
}

// LogError logs a failed statement at WARN level.
func (t *StatementTrace) LogError(logger *Logger, err error, args ...interface{}) {
	base := []interface{}{
		"statement_id", t.ID,
		"kind", t.Kind,
		"error", err,
		"duration_ms", fmt.Sprintf("%.3f", t.DurationMs()),
	}
	logger.Warn("Statement failed", append(base, args...)...)
}
