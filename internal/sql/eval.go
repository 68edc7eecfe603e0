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
Value Resolution:
=================

Eval reduces an expression to a storage.Value against a Context. NULL
propagates through arithmetic and comparisons; AND, OR and XOR use SQL
three-valued logic, so FALSE AND NULL is FALSE and TRUE OR NULL is TRUE.
Conditions yield int64 1 or 0, or NULL when unknown; WHERE, ON and HAVING
keep a row only when the condition is Truthy.

Arithmetic stays in int64 while both operands are integers (or strings with
an integer reading) and switches to float64 otherwise. "/" always divides in
float64; division or modulo by zero yields NULL.
*/

package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	dberrors "pagedb/internal/errors"
	"pagedb/internal/storage"
)

// Eval evaluates expr in the context.
func (c *Context) Eval(expr Expr) (storage.Value, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case *Literal:
		return e.Value, nil
	case *Param:
		return c.params.lookup(e)
	case *ColumnRef:
		return c.column(e)
	case *boundRef:
		if e.pos < len(c.row) {
			return c.row[e.pos], nil
		}
		return nil, nil
	case *StarExpr:
		return nil, dberrors.NewExecutionError("'*' is not allowed here").At(e.Pos, "")
	case *FuncCall:
		return c.call(e)
	case *Chain:
		return c.evalChain(e)
	case *Unary:
		return c.evalUnary(e)
	case *Comparison:
		return c.evalComparison(e)
	case *LikeCond:
		return c.evalLike(e)
	case *InCond:
		return c.evalIn(e)
	case *BetweenCond:
		return c.evalBetween(e)
	case *IsNullCond:
		v, err := c.Eval(e.CheckValue)
		if err != nil {
			return nil, err
		}
		return storage.Bool((v == nil) != e.IsNegated), nil
	case *CaseExpr:
		return c.evalCase(e)
	case *SubqueryExpr:
		return c.evalScalarSubquery(e.Select)
	case *ExistsExpr:
		rs, err := c.session.runSelect(e.Select, c)
		if err != nil {
			return nil, err
		}
		return storage.Bool(len(rs.rows) > 0), nil
	}
	return nil, dberrors.NewExecutionError(fmt.Sprintf("cannot evaluate %T", expr))
}

// Test evaluates a condition. NULL counts as false.
func (c *Context) Test(expr Expr) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := c.Eval(expr)
	if err != nil {
		return false, err
	}
	return storage.Truthy(v), nil
}

// ============================================================================
// Operators
// ============================================================================

func (c *Context) evalChain(e *Chain) (storage.Value, error) {
	acc, err := c.Eval(e.Operands[0])
	if err != nil {
		return nil, err
	}
	for i, op := range e.Operators {
		// Logical operators skip the right operand once the result is known.
		switch op {
		case "AND", "&&":
			if acc != nil && !storage.Truthy(acc) {
				continue
			}
		case "OR", "||":
			if acc != nil && storage.Truthy(acc) {
				continue
			}
		}
		rhs, err := c.Eval(e.Operands[i+1])
		if err != nil {
			return nil, err
		}
		if acc, err = binary(op, acc, rhs); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func binary(op string, a, b storage.Value) (storage.Value, error) {
	switch op {
	case "AND", "&&":
		switch {
		case a != nil && !storage.Truthy(a), b != nil && !storage.Truthy(b):
			return int64(0), nil
		case a == nil || b == nil:
			return nil, nil
		}
		return int64(1), nil
	case "OR", "||":
		switch {
		case a != nil && storage.Truthy(a), b != nil && storage.Truthy(b):
			return int64(1), nil
		case a == nil || b == nil:
			return nil, nil
		}
		return int64(0), nil
	case "XOR":
		if a == nil || b == nil {
			return nil, nil
		}
		return storage.Bool(storage.Truthy(a) != storage.Truthy(b)), nil
	}
	return arithmetic(op, a, b)
}

// number reads v as an integer when it has an exact integer reading.
func number(v storage.Value) (i int64, f float64, isInt bool) {
	switch x := v.(type) {
	case int64:
		return x, float64(x), true
	case float64:
		return 0, x, false
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, float64(n), true
		}
	}
	f, _ = storage.ToFloat(v)
	return 0, f, false
}

func arithmetic(op string, a, b storage.Value) (storage.Value, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	ai, af, aInt := number(a)
	bi, bf, bInt := number(b)
	ints := aInt && bInt

	switch op {
	case "+":
		if ints {
			return ai + bi, nil
		}
		return af + bf, nil
	case "-":
		if ints {
			return ai - bi, nil
		}
		return af - bf, nil
	case "*":
		if ints {
			return ai * bi, nil
		}
		return af * bf, nil
	case "/":
		if bf == 0 {
			return nil, nil
		}
		return af / bf, nil
	case "DIV":
		if ints {
			if bi == 0 {
				return nil, nil
			}
			return ai / bi, nil
		}
		if bf == 0 {
			return nil, nil
		}
		return int64(af / bf), nil
	case "%", "MOD":
		if ints {
			if bi == 0 {
				return nil, nil
			}
			return ai % bi, nil
		}
		if bf == 0 {
			return nil, nil
		}
		return math.Mod(af, bf), nil
	}
	return nil, dberrors.NewExecutionError("unknown operator " + op)
}

func (c *Context) evalUnary(e *Unary) (storage.Value, error) {
	v, err := c.Eval(e.Operand)
	if err != nil || v == nil {
		return nil, err
	}
	switch e.Op {
	case "NOT":
		return storage.Bool(!storage.Truthy(v)), nil
	case "-":
		i, f, isInt := number(v)
		if isInt {
			return -i, nil
		}
		return -f, nil
	case "+":
		return v, nil
	case "~":
		i, _ := storage.ToInt(v)
		return ^i, nil
	}
	return nil, dberrors.NewExecutionError("unknown operator " + e.Op)
}

func (c *Context) evalComparison(e *Comparison) (storage.Value, error) {
	l, err := c.Eval(e.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.Eval(e.Right)
	if err != nil {
		return nil, err
	}
	return compare(e.Op, l, r, c.Collator()), nil
}

func compare(op string, l, r storage.Value, coll storage.Collator) storage.Value {
	if op == "<=>" {
		if l == nil || r == nil {
			return storage.Bool(l == nil && r == nil)
		}
		return storage.Bool(storage.Compare(l, r, coll) == 0)
	}
	if l == nil || r == nil {
		return nil
	}
	cmp := storage.Compare(l, r, coll)
	switch op {
	case "=":
		return storage.Bool(cmp == 0)
	case "!=":
		return storage.Bool(cmp != 0)
	case "<":
		return storage.Bool(cmp < 0)
	case "<=":
		return storage.Bool(cmp <= 0)
	case ">":
		return storage.Bool(cmp > 0)
	case ">=":
		return storage.Bool(cmp >= 0)
	}
	return nil
}

// ============================================================================
// Predicates
// ============================================================================

func (c *Context) evalLike(e *LikeCond) (storage.Value, error) {
	v, err := c.Eval(e.CheckValue)
	if err != nil {
		return nil, err
	}
	pattern, err := c.Eval(e.Pattern)
	if err != nil {
		return nil, err
	}
	if v == nil || pattern == nil {
		return nil, nil
	}
	escape := '\\'
	if e.Escape != nil {
		ev, err := c.Eval(e.Escape)
		if err != nil {
			return nil, err
		}
		s := storage.ToString(ev)
		if utf8.RuneCountInString(s) != 1 {
			return nil, dberrors.InvalidValue("ESCAPE", "must be a single character")
		}
		escape, _ = utf8.DecodeRuneInString(s)
	}
	fold := c.Collator().Compare("a", "A") == 0
	matched := likeMatch(storage.ToString(v), storage.ToString(pattern), escape, fold)
	return storage.Bool(matched != e.IsNegated), nil
}

// likeMatch matches s against a LIKE pattern where % is any run of
// characters and _ is exactly one.
func likeMatch(s, pattern string, escape rune, fold bool) bool {
	if fold {
		s, pattern = strings.ToLower(s), strings.ToLower(pattern)
	}
	type elem struct {
		r       rune
		literal bool
	}
	var pat []elem
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		if runes[i] == escape && i+1 < len(runes) {
			i++
			pat = append(pat, elem{r: runes[i], literal: true})
			continue
		}
		pat = append(pat, elem{r: runes[i]})
	}
	str := []rune(s)

	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(str) {
		switch {
		case pi < len(pat) && !pat[pi].literal && pat[pi].r == '%':
			star, mark = pi, si
			pi++
		case pi < len(pat) && (pat[pi].r == str[si] || (!pat[pi].literal && pat[pi].r == '_')):
			si++
			pi++
		case star >= 0:
			mark++
			si, pi = mark, star+1
		default:
			return false
		}
	}
	for pi < len(pat) && !pat[pi].literal && pat[pi].r == '%' {
		pi++
	}
	return pi == len(pat)
}

func (c *Context) evalIn(e *InCond) (storage.Value, error) {
	v, err := c.Eval(e.CheckValue)
	if err != nil {
		return nil, err
	}
	var candidates []storage.Value
	if e.Subquery != nil {
		rs, err := c.session.runSelect(e.Subquery, c)
		if err != nil {
			return nil, err
		}
		if len(rs.columns) != 1 {
			return nil, dberrors.NewExecutionError("operand should contain 1 column")
		}
		for _, row := range rs.rows {
			candidates = append(candidates, row[0])
		}
	} else {
		for _, x := range e.Values {
			cv, err := c.Eval(x)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, cv)
		}
	}
	if v == nil {
		return nil, nil
	}
	coll := c.Collator()
	sawNull := false
	for _, cv := range candidates {
		if cv == nil {
			sawNull = true
			continue
		}
		if storage.Compare(v, cv, coll) == 0 {
			return storage.Bool(!e.IsNegated), nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return storage.Bool(e.IsNegated), nil
}

func (c *Context) evalBetween(e *BetweenCond) (storage.Value, error) {
	v, err := c.Eval(e.CheckValue)
	if err != nil {
		return nil, err
	}
	lo, err := c.Eval(e.Low)
	if err != nil {
		return nil, err
	}
	hi, err := c.Eval(e.High)
	if err != nil {
		return nil, err
	}
	coll := c.Collator()
	result, err := binary("AND", compare(">=", v, lo, coll), compare("<=", v, hi, coll))
	if err != nil || result == nil || !e.IsNegated {
		return result, err
	}
	return storage.Bool(!storage.Truthy(result)), nil
}

func (c *Context) evalCase(e *CaseExpr) (storage.Value, error) {
	var subject storage.Value
	if e.CaseValue != nil {
		v, err := c.Eval(e.CaseValue)
		if err != nil {
			return nil, err
		}
		subject = v
	}
	for _, wt := range e.WhenThen {
		w, err := c.Eval(wt.When)
		if err != nil {
			return nil, err
		}
		hit := storage.Truthy(w)
		if e.CaseValue != nil {
			hit = storage.Equal(subject, w, c.Collator())
		}
		if hit {
			return c.Eval(wt.Then)
		}
	}
	return c.Eval(e.ElseStatement)
}

func (c *Context) evalScalarSubquery(sel *SelectStmt) (storage.Value, error) {
	rs, err := c.session.runSelect(sel, c)
	if err != nil {
		return nil, err
	}
	if len(rs.columns) != 1 {
		return nil, dberrors.NewExecutionError("operand should contain 1 column")
	}
	switch len(rs.rows) {
	case 0:
		return nil, nil
	case 1:
		return rs.rows[0][0], nil
	}
	return nil, dberrors.SubqueryRows()
}

// ============================================================================
// Expression analysis
// ============================================================================

// hasAggregate reports whether expr calls an aggregate function outside of
// any subquery.
func hasAggregate(expr Expr) bool {
	if expr == nil {
		return false
	}
	found := false
	Walk(expr, func(n Node) bool {
		switch x := n.(type) {
		case *SelectStmt:
			return false
		case *FuncCall:
			if isAggregate(x.Name) {
				found = true
			}
		}
		return !found
	})
	return found
}

// isConstant reports whether expr can be evaluated without a row.
func isConstant(expr Expr) bool {
	constant := true
	Walk(expr, func(n Node) bool {
		switch x := n.(type) {
		case *ColumnRef, *boundRef, *SelectStmt, *StarExpr:
			constant = false
		case *FuncCall:
			if isAggregate(x.Name) {
				constant = false
			}
		}
		return constant
	})
	return constant
}

// conjuncts splits an AND chain into its operands.
func conjuncts(expr Expr) []Expr {
	ch, ok := expr.(*Chain)
	if !ok {
		if expr == nil {
			return nil
		}
		return []Expr{expr}
	}
	for _, op := range ch.Operators {
		if op != "AND" && op != "&&" {
			return []Expr{expr}
		}
	}
	var out []Expr
	for _, o := range ch.Operands {
		out = append(out, conjuncts(o)...)
	}
	return out
}
