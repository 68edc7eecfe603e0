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
Function Resolvers:
===================

Functions are looked up by upper-cased name in a registry. Each declares the
number of arguments it accepts; a call outside that range fails with an
arity error before anything is evaluated.

Scalar functions see the current row through their evaluated arguments.
Aggregates implement RowSetConsumer: they receive the whole group through
the Context, substitute each row as the current row and fold the values of
their argument.

	Aggregates: COUNT SUM AVG MIN MAX
	Numeric:    ABS ROUND FLOOR CEIL CEILING MOD RAND
	Strings:    UPPER UCASE LOWER LCASE LENGTH CHAR_LENGTH CONCAT
	            SUBSTRING SUBSTR LEFT RIGHT TRIM
	Control:    COALESCE IFNULL NULLIF IF
	Date/time:  NOW CURRENT_TIMESTAMP CURDATE CURRENT_DATE CURTIME CURRENT_TIME
	Session:    DATABASE SCHEMA VERSION UUID
*/

package sql

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// Version is reported by VERSION().
const Version = "1.0.0-pagedb"

// Function is a named scalar or aggregate function.
type Function interface {
	// Arity returns the accepted argument counts. max is -1 for variadic
	// functions.
	Arity() (min, max int)

	// Evaluate computes the value of call in ctx.
	Evaluate(ctx *Context, call *FuncCall) (storage.Value, error)
}

// RowSetConsumer is implemented by functions that aggregate over the rows
// of a group.
type RowSetConsumer interface {
	ConsumesRowSet() bool
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Function{}
)

// RegisterFunction adds or replaces a function.
func RegisterFunction(name string, fn Function) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToUpper(name)] = fn
}

// LookupFunction returns the function registered under name.
func LookupFunction(name string) (Function, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[strings.ToUpper(name)]
	return fn, ok
}

func isAggregate(name string) bool {
	fn, ok := LookupFunction(name)
	if !ok {
		return false
	}
	rc, ok := fn.(RowSetConsumer)
	return ok && rc.ConsumesRowSet()
}

func checkArity(name string, fn Function, got int) error {
	min, max := fn.Arity()
	switch {
	case got < min:
		return dberrors.ArityMismatch(name, min, got)
	case max >= 0 && got > max:
		return dberrors.ArityMismatch(name, max, got)
	}
	return nil
}

// call dispatches a function call.
func (c *Context) call(e *FuncCall) (storage.Value, error) {
	fn, ok := LookupFunction(e.Name)
	if !ok {
		return nil, dberrors.FunctionNotFound(e.Name).At(e.Pos, "")
	}
	n := len(e.Args)
	if e.Star {
		n = 1
	}
	if err := checkArity(e.Name, fn, n); err != nil {
		return nil, err
	}
	if rc, ok := fn.(RowSetConsumer); ok && rc.ConsumesRowSet() && c.group == nil {
		return nil, dberrors.NewExecutionError("invalid use of aggregate function " + e.Name)
	}
	return fn.Evaluate(c, e)
}

// ============================================================================
// Scalar functions
// ============================================================================

type scalarFunc struct {
	min, max int
	fn       func(ctx *Context, args []storage.Value) (storage.Value, error)
}

func (f *scalarFunc) Arity() (int, int) { return f.min, f.max }

func (f *scalarFunc) Evaluate(ctx *Context, call *FuncCall) (storage.Value, error) {
	if call.Star || call.Distinct {
		return nil, dberrors.InvalidValue(call.Name, "'*' and DISTINCT are only allowed in aggregates")
	}
	args := make([]storage.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := ctx.Eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return f.fn(ctx, args)
}

func scalar(min, max int, fn func(*Context, []storage.Value) (storage.Value, error)) Function {
	return &scalarFunc{min: min, max: max, fn: fn}
}

// nullSafe wraps fn so that a NULL argument yields NULL.
func nullSafe(min, max int, fn func(*Context, []storage.Value) (storage.Value, error)) Function {
	return scalar(min, max, func(ctx *Context, args []storage.Value) (storage.Value, error) {
		for _, a := range args {
			if a == nil {
				return nil, nil
			}
		}
		return fn(ctx, args)
	})
}

func fnAbs(_ *Context, args []storage.Value) (storage.Value, error) {
	i, f, isInt := number(args[0])
	if isInt {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	return math.Abs(f), nil
}

// fnRand draws from [0, 1). With an argument the sequence is seeded by it.
func fnRand(_ *Context, args []storage.Value) (storage.Value, error) {
	if len(args) == 1 && args[0] != nil {
		seed, _ := storage.ToInt(args[0])
		return rand.New(rand.NewPCG(uint64(seed), 0)).Float64(), nil
	}
	return rand.Float64(), nil
}

func fnRound(_ *Context, args []storage.Value) (storage.Value, error) {
	digits := int64(0)
	if len(args) == 2 {
		digits, _ = storage.ToInt(args[1])
	}
	i, f, isInt := number(args[0])
	if isInt && digits >= 0 {
		return i, nil
	}
	p := math.Pow(10, float64(digits))
	r := math.Round(f*p) / p
	if digits <= 0 {
		return int64(r), nil
	}
	return r, nil
}

func integral(f float64) storage.Value {
	if f >= math.MinInt64 && f <= math.MaxInt64 {
		return int64(f)
	}
	return f
}

func fnFloor(_ *Context, args []storage.Value) (storage.Value, error) {
	i, f, isInt := number(args[0])
	if isInt {
		return i, nil
	}
	return integral(math.Floor(f)), nil
}

func fnCeil(_ *Context, args []storage.Value) (storage.Value, error) {
	i, f, isInt := number(args[0])
	if isInt {
		return i, nil
	}
	return integral(math.Ceil(f)), nil
}

func fnMod(_ *Context, args []storage.Value) (storage.Value, error) {
	return arithmetic("%", args[0], args[1])
}

func mapString(fn func(string) string) func(*Context, []storage.Value) (storage.Value, error) {
	return func(_ *Context, args []storage.Value) (storage.Value, error) {
		return fn(storage.ToString(args[0])), nil
	}
}

func fnLength(_ *Context, args []storage.Value) (storage.Value, error) {
	return int64(len(storage.ToString(args[0]))), nil
}

func fnCharLength(_ *Context, args []storage.Value) (storage.Value, error) {
	return int64(utf8.RuneCountInString(storage.ToString(args[0]))), nil
}

func fnConcat(_ *Context, args []storage.Value) (storage.Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(storage.ToString(a))
	}
	return b.String(), nil
}

// fnSubstring counts positions from 1; a negative position counts from the
// end of the string.
func fnSubstring(_ *Context, args []storage.Value) (storage.Value, error) {
	s := []rune(storage.ToString(args[0]))
	pos, _ := storage.ToInt(args[1])
	switch {
	case pos > 0:
		pos--
	case pos < 0:
		pos += int64(len(s))
	default:
		return "", nil
	}
	if pos < 0 || pos >= int64(len(s)) {
		return "", nil
	}
	end := int64(len(s))
	if len(args) == 3 {
		n, _ := storage.ToInt(args[2])
		if n <= 0 {
			return "", nil
		}
		if pos+n < end {
			end = pos + n
		}
	}
	return string(s[pos:end]), nil
}

func fnLeft(_ *Context, args []storage.Value) (storage.Value, error) {
	s := []rune(storage.ToString(args[0]))
	n, _ := storage.ToInt(args[1])
	if n <= 0 {
		return "", nil
	}
	if n > int64(len(s)) {
		n = int64(len(s))
	}
	return string(s[:n]), nil
}

func fnRight(_ *Context, args []storage.Value) (storage.Value, error) {
	s := []rune(storage.ToString(args[0]))
	n, _ := storage.ToInt(args[1])
	if n <= 0 {
		return "", nil
	}
	if n > int64(len(s)) {
		n = int64(len(s))
	}
	return string(s[int64(len(s))-n:]), nil
}

func fnCoalesce(_ *Context, args []storage.Value) (storage.Value, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

func fnNullIf(ctx *Context, args []storage.Value) (storage.Value, error) {
	if storage.Equal(args[0], args[1], ctx.Collator()) {
		return nil, nil
	}
	return args[0], nil
}

func fnIf(_ *Context, args []storage.Value) (storage.Value, error) {
	if storage.Truthy(args[0]) {
		return args[1], nil
	}
	return args[2], nil
}

func timeFunc(layout string) func(*Context, []storage.Value) (storage.Value, error) {
	return func(ctx *Context, _ []storage.Value) (storage.Value, error) {
		return ctx.Now().Format(layout), nil
	}
}

func fnDatabase(ctx *Context, _ []storage.Value) (storage.Value, error) {
	if db := ctx.Database(); db != "" {
		return db, nil
	}
	return nil, nil
}

func fnVersion(*Context, []storage.Value) (storage.Value, error) { return Version, nil }

func fnUUID(*Context, []storage.Value) (storage.Value, error) { return uuid.NewString(), nil }

// ============================================================================
// Aggregates
// ============================================================================

type accumulator interface {
	add(v storage.Value)
	result() storage.Value
}

type aggregateFunc struct {
	// star allows COUNT(*).
	star bool
	init func(coll storage.Collator) accumulator
}

func (f *aggregateFunc) Arity() (int, int) { return 1, 1 }

func (f *aggregateFunc) ConsumesRowSet() bool { return true }

func (f *aggregateFunc) Evaluate(ctx *Context, call *FuncCall) (storage.Value, error) {
	if call.Star && !f.star {
		return nil, dberrors.InvalidValue(call.Name, "'*' is only allowed in COUNT")
	}
	coll := ctx.Collator()
	acc := f.init(coll)
	var seen map[string]bool
	if call.Distinct {
		seen = make(map[string]bool)
	}
	for _, row := range ctx.group {
		if call.Star {
			acc.add(int64(1))
			continue
		}
		v, err := ctx.withRow(ctx.scope, row).Eval(call.Args[0])
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if seen != nil {
			k := valueKey(v, coll)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		acc.add(v)
	}
	return acc.result(), nil
}

// countAcc counts non-NULL values.
type countAcc struct{ n int64 }

func (a *countAcc) add(storage.Value)     { a.n++ }
func (a *countAcc) result() storage.Value { return a.n }

// sumAcc adds numeric values, ignoring values with no numeric reading.
// The sum stays an integer while every input is one.
type sumAcc struct {
	i      int64
	f      float64
	floats bool
	n      int
}

func (a *sumAcc) add(v storage.Value) {
	if !storage.IsNumeric(v) {
		if _, ok := storage.ToFloat(v); !ok {
			return
		}
	}
	i, f, isInt := number(v)
	a.n++
	if isInt && !a.floats {
		a.i += i
		return
	}
	if !a.floats {
		a.floats = true
		a.f = float64(a.i)
	}
	a.f += f
}

func (a *sumAcc) result() storage.Value {
	switch {
	case a.n == 0:
		return nil
	case a.floats:
		return a.f
	}
	return a.i
}

type avgAcc struct{ sum sumAcc }

func (a *avgAcc) add(v storage.Value) { a.sum.add(v) }

func (a *avgAcc) result() storage.Value {
	if a.sum.n == 0 {
		return nil
	}
	total, _ := storage.ToFloat(a.sum.result())
	return total / float64(a.sum.n)
}

// extremeAcc keeps the smallest (sign -1) or largest (sign 1) value.
type extremeAcc struct {
	coll storage.Collator
	sign int
	best storage.Value
}

func (a *extremeAcc) add(v storage.Value) {
	if a.best == nil || storage.Compare(v, a.best, a.coll)*a.sign > 0 {
		a.best = v
	}
}

func (a *extremeAcc) result() storage.Value { return a.best }

func init() {
	builtins := map[string]Function{
		"COUNT": &aggregateFunc{star: true, init: func(storage.Collator) accumulator { return &countAcc{} }},
		"SUM":   &aggregateFunc{init: func(storage.Collator) accumulator { return &sumAcc{} }},
		"AVG":   &aggregateFunc{init: func(storage.Collator) accumulator { return &avgAcc{} }},
		"MIN": &aggregateFunc{init: func(c storage.Collator) accumulator {
			return &extremeAcc{coll: c, sign: -1}
		}},
		"MAX": &aggregateFunc{init: func(c storage.Collator) accumulator {
			return &extremeAcc{coll: c, sign: 1}
		}},

		"ABS":     nullSafe(1, 1, fnAbs),
		"ROUND":   nullSafe(1, 2, fnRound),
		"FLOOR":   nullSafe(1, 1, fnFloor),
		"CEIL":    nullSafe(1, 1, fnCeil),
		"CEILING": nullSafe(1, 1, fnCeil),
		"MOD":     scalar(2, 2, fnMod),
		"RAND":    scalar(0, 1, fnRand),

		"UPPER":       nullSafe(1, 1, mapString(strings.ToUpper)),
		"UCASE":       nullSafe(1, 1, mapString(strings.ToUpper)),
		"LOWER":       nullSafe(1, 1, mapString(strings.ToLower)),
		"LCASE":       nullSafe(1, 1, mapString(strings.ToLower)),
		"TRIM":        nullSafe(1, 1, mapString(strings.TrimSpace)),
		"LENGTH":      nullSafe(1, 1, fnLength),
		"CHAR_LENGTH": nullSafe(1, 1, fnCharLength),
		"CONCAT":      nullSafe(1, -1, fnConcat),
		"SUBSTRING":   nullSafe(2, 3, fnSubstring),
		"SUBSTR":      nullSafe(2, 3, fnSubstring),
		"LEFT":        nullSafe(2, 2, fnLeft),
		"RIGHT":       nullSafe(2, 2, fnRight),

		"COALESCE": scalar(1, -1, fnCoalesce),
		"IFNULL":   scalar(2, 2, fnCoalesce),
		"NULLIF":   scalar(2, 2, fnNullIf),
		"IF":       scalar(3, 3, fnIf),

		"NOW":               scalar(0, 0, timeFunc(storage.DateTimeLayout)),
		"CURRENT_TIMESTAMP": scalar(0, 0, timeFunc(storage.DateTimeLayout)),
		"LOCALTIMESTAMP":    scalar(0, 0, timeFunc(storage.DateTimeLayout)),
		"CURDATE":           scalar(0, 0, timeFunc(storage.DateLayout)),
		"CURRENT_DATE":      scalar(0, 0, timeFunc(storage.DateLayout)),
		"CURTIME":           scalar(0, 0, timeFunc("15:04:05")),
		"CURRENT_TIME":      scalar(0, 0, timeFunc("15:04:05")),

		"DATABASE": scalar(0, 0, fnDatabase),
		"SCHEMA":   scalar(0, 0, fnDatabase),
		"VERSION":  scalar(0, 0, fnVersion),
		"UUID":     scalar(0, 0, fnUUID),
	}
	for name, fn := range builtins {
		RegisterFunction(name, fn)
	}
}
