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
	"strconv"
	"strings"

	dberrors "pagedb/internal/errors"
)

/*
Expression grammar, one function per tier. A tier reads a chain of
operands from the tier below joined by its own operators:

	expr           := xor_chain (OR xor_chain)*
	xor_chain      := and_chain (XOR and_chain)*
	and_chain      := not_expr (AND not_expr)*
	not_expr       := NOT not_expr | predicate
	predicate      := additive suffix*
	suffix         := cmp_op additive | [NOT] LIKE additive [ESCAPE additive]
	                | [NOT] IN ( list | select ) | [NOT] BETWEEN additive AND additive
	                | IS [NOT] NULL
	additive       := multiplicative ((+|-) multiplicative)*
	multiplicative := unary ((*|/|%|DIV|MOD) unary)*
	unary          := (-|+|~|!) unary | atom
	atom           := parameter | literal | case | exists | ( select ) | ( expr )
	                | function | star | column
*/

// suffix is a parser unit that continues an operand that has already been
// parsed, e.g. the "LIKE 'x%'" of "name LIKE 'x%'".
type suffix struct {
	name     string
	canParse func(p *Parser) bool
	parse    func(p *Parser, left Expr) (Expr, error)
}

var (
	atomUnits        []unit[Expr]
	predicateUnits   []suffix
	comparisonOps    = []string{"=", "<=>", "!=", "<>", "<", "<=", ">", ">="}
	functionKeywords = []string{"DATABASE", "SCHEMA", "IF", "MOD", "LEFT", "RIGHT"}
	// niladic functions that may be written without parentheses
	bareFunctions = []string{"CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME"}
)

func init() {
	atomUnits = []unit[Expr]{
		{"parameter", func(p *Parser) bool { return p.ts.Peek().Kind == TokenParameter }, (*Parser).parseParam},
		{"literal", canParseLiteral, (*Parser).parseLiteral},
		{"case", startsWith("CASE"), (*Parser).parseCase},
		{"exists", startsWith("EXISTS"), (*Parser).parseExists},
		{"subquery", func(p *Parser) bool { return p.ts.AcceptSymbol("(") && p.ts.Peek().IsKeyword("SELECT") }, (*Parser).parseSubquery},
		{"parenthesis", func(p *Parser) bool { return p.ts.Peek().IsSymbol("(") }, (*Parser).parseParenthesized},
		{"function", canParseFunction, (*Parser).parseFunction},
		{"star", canParseStar, (*Parser).parseStar},
		{"column", func(p *Parser) bool { return p.ts.Peek().IsName() }, func(p *Parser) (Expr, error) { return p.parseColumnRef() }},
	}
	predicateUnits = []suffix{
		{"comparison", func(p *Parser) bool { return p.ts.Peek().IsSymbol(comparisonOps...) }, (*Parser).parseComparison},
		{"like", seekPastNot("LIKE"), (*Parser).parseLike},
		{"in", seekPastNot("IN"), (*Parser).parseIn},
		{"between", seekPastNot("BETWEEN"), (*Parser).parseBetween},
		{"is null", startsWith("IS"), (*Parser).parseIsNull},
	}
}

// seekPastNot probes for a keyword that may be preceded by NOT.
func seekPastNot(word string) func(*Parser) bool {
	return func(p *Parser) bool {
		return p.ts.SeekMatching(
			func(t Token) bool { return t.IsKeyword(word) },
			func(t Token) bool { return t.IsKeyword("NOT") },
		)
	}
}

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseChain((*Parser).parseXor, func(t Token) (string, bool) {
		if t.IsKeyword("OR") || t.IsSymbol("||") {
			return "OR", true
		}
		return "", false
	})
}

func (p *Parser) parseXor() (Expr, error) {
	return p.parseChain((*Parser).parseAnd, func(t Token) (string, bool) {
		return "XOR", t.IsKeyword("XOR")
	})
}

func (p *Parser) parseAnd() (Expr, error) {
	return p.parseChain((*Parser).parseNot, func(t Token) (string, bool) {
		if t.IsKeyword("AND") || t.IsSymbol("&&") {
			return "AND", true
		}
		return "", false
	})
}

func (p *Parser) parseAdditive() (Expr, error) {
	return p.parseChain((*Parser).parseMultiplicative, func(t Token) (string, bool) {
		if t.IsSymbol("+", "-") {
			return t.Text, true
		}
		return "", false
	})
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.parseChain((*Parser).parseUnary, func(t Token) (string, bool) {
		switch {
		case t.IsSymbol("*", "/", "%"):
			return t.Text, true
		case t.IsKeyword("MOD"):
			return "%", true
		case t.IsKeyword("DIV"):
			return "DIV", true
		}
		return "", false
	})
}

// parseChain reads operand (op operand)* for one tier. A single operand is
// returned as is.
func (p *Parser) parseChain(next func(*Parser) (Expr, error), operator func(Token) (string, bool)) (Expr, error) {
	start := p.ts.Peek()
	first, err := next(p)
	if err != nil {
		return nil, err
	}
	chain := &Chain{Operands: []Expr{first}}
	for {
		op, ok := operator(p.ts.Peek())
		if !ok {
			break
		}
		p.ts.Next()
		operand, err := next(p)
		if err != nil {
			return nil, err
		}
		chain.Operands = append(chain.Operands, operand)
		chain.Operators = append(chain.Operators, op)
	}
	if len(chain.Operators) == 0 {
		return first, nil
	}
	chain.Pos = position(start)
	return chain, nil
}

func (p *Parser) parseNot() (Expr, error) {
	start := p.ts.Peek()
	if !p.ts.AcceptKeyword("NOT") {
		return p.parsePredicate()
	}
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	u := &Unary{Op: "NOT", Operand: operand}
	u.Pos = position(start)
	return u, nil
}

func (p *Parser) parsePredicate() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var matched *suffix
		for i := range predicateUnits {
			u := &predicateUnits[i]
			pos := p.ts.Pos()
			ok := u.canParse(p)
			p.ts.Seek(pos)
			if ok {
				matched = u
				break
			}
		}
		if matched == nil {
			return left, nil
		}
		if left, err = matched.parse(p, left); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseComparison(left Expr) (Expr, error) {
	op := p.ts.Next().Text
	if op == "<>" {
		op = "!="
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	c := &Comparison{Left: left, Op: op, Right: right}
	c.Pos = left.Base().Pos
	return c, nil
}

func (p *Parser) parseLike(left Expr) (Expr, error) {
	l := &LikeCond{CheckValue: left}
	l.Pos = left.Base().Pos
	l.IsNegated = p.ts.AcceptKeyword("NOT")
	if err := p.ts.ExpectKeyword("LIKE"); err != nil {
		return nil, err
	}
	var err error
	if l.Pattern, err = p.parseAdditive(); err != nil {
		return nil, err
	}
	if p.ts.AcceptKeyword("ESCAPE") {
		if l.Escape, err = p.parseAdditive(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (p *Parser) parseIn(left Expr) (Expr, error) {
	in := &InCond{CheckValue: left}
	in.Pos = left.Base().Pos
	in.IsNegated = p.ts.AcceptKeyword("NOT")
	if err := p.ts.ExpectKeyword("IN"); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectSymbol("("); err != nil {
		return nil, err
	}
	var err error
	if p.ts.Peek().IsKeyword("SELECT") {
		in.Subquery, err = p.parseSelect()
	} else {
		in.Values, err = p.parseExprList()
	}
	if err != nil {
		return nil, err
	}
	return in, p.ts.ExpectSymbol(")")
}

func (p *Parser) parseBetween(left Expr) (Expr, error) {
	b := &BetweenCond{CheckValue: left}
	b.Pos = left.Base().Pos
	b.IsNegated = p.ts.AcceptKeyword("NOT")
	if err := p.ts.ExpectKeyword("BETWEEN"); err != nil {
		return nil, err
	}
	var err error
	if b.Low, err = p.parseAdditive(); err != nil {
		return nil, err
	}
	if err := p.ts.ExpectKeyword("AND"); err != nil {
		return nil, err
	}
	if b.High, err = p.parseAdditive(); err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Parser) parseIsNull(left Expr) (Expr, error) {
	n := &IsNullCond{CheckValue: left}
	n.Pos = left.Base().Pos
	p.ts.ExpectKeyword("IS")
	n.IsNegated = p.ts.AcceptKeyword("NOT")
	if err := p.ts.ExpectKeyword("NULL"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	tok := p.ts.Peek()
	if !tok.IsSymbol("-", "+", "~", "!") {
		return firstOf(p, "expression", atomUnits)
	}
	p.ts.Next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch tok.Text {
	case "+":
		return operand, nil
	case "-":
		if lit, ok := operand.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				lit.Value = -v
				lit.Pos = position(tok)
				return lit, nil
			case float64:
				lit.Value = -v
				lit.Pos = position(tok)
				return lit, nil
			}
		}
	}
	op := tok.Text
	if op == "!" {
		op = "NOT"
	}
	u := &Unary{Op: op, Operand: operand}
	u.Pos = position(tok)
	return u, nil
}

// ============================================================================
// Atoms
// ============================================================================

func (p *Parser) parseParam() (Expr, error) {
	tok := p.ts.Next()
	param := &Param{Name: tok.Value, Index: -1}
	param.Pos = position(tok)
	if param.Name == "" {
		param.Index = p.params
		p.params++
	}
	return param, nil
}

func canParseLiteral(p *Parser) bool {
	tok := p.ts.Peek()
	return tok.Kind == TokenNumber || tok.Kind == TokenString || tok.IsKeyword("NULL", "TRUE", "FALSE")
}

func (p *Parser) parseLiteral() (Expr, error) {
	tok := p.ts.Next()
	lit := &Literal{}
	lit.Pos = position(tok)
	switch {
	case tok.Kind == TokenString:
		lit.Value = tok.Value
	case tok.Kind == TokenNumber:
		v, err := parseNumber(tok.Text)
		if err != nil {
			return nil, p.ts.ErrorAt(dberrors.UnexpectedToken("number", tok.Text), tok)
		}
		lit.Value = v
	case tok.IsKeyword("TRUE"):
		lit.Value = int64(1)
	case tok.IsKeyword("FALSE"):
		lit.Value = int64(0)
	}
	return lit, nil
}

// parseNumber reads integer literals as int64 and everything else, including
// integers that overflow int64, as float64.
func parseNumber(text string) (interface{}, error) {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
	}
	return strconv.ParseFloat(text, 64)
}

func (p *Parser) parseCase() (Expr, error) {
	start := p.ts.Next()
	c := &CaseExpr{}
	c.Pos = position(start)
	var err error
	if !p.ts.Peek().IsKeyword("WHEN") {
		if c.CaseValue, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	for p.ts.AcceptKeyword("WHEN") {
		var wt WhenThen
		if wt.When, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if err := p.ts.ExpectKeyword("THEN"); err != nil {
			return nil, err
		}
		if wt.Then, err = p.parseExpr(); err != nil {
			return nil, err
		}
		c.WhenThen = append(c.WhenThen, wt)
	}
	if len(c.WhenThen) == 0 {
		return nil, p.ts.Errorf(dberrors.MissingKeyword("WHEN"))
	}
	if p.ts.AcceptKeyword("ELSE") {
		if c.ElseStatement, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return c, p.ts.ExpectKeyword("END")
}

func (p *Parser) parseExists() (Expr, error) {
	start := p.ts.Next()
	if err := p.ts.ExpectSymbol("("); err != nil {
		return nil, err
	}
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	e := &ExistsExpr{Select: sel}
	e.Pos = position(start)
	return e, p.ts.ExpectSymbol(")")
}

func (p *Parser) parseSubquery() (Expr, error) {
	start := p.ts.Next()
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	s := &SubqueryExpr{Select: sel}
	s.Pos = position(start)
	return s, p.ts.ExpectSymbol(")")
}

func (p *Parser) parseParenthesized() (Expr, error) {
	p.ts.Next()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return e, p.ts.ExpectSymbol(")")
}

func canParseFunction(p *Parser) bool {
	tok := p.ts.Peek()
	if isWord(tok, bareFunctions...) {
		return true
	}
	return (tok.IsName() || tok.IsKeyword(functionKeywords...)) && p.ts.PeekAt(1).IsSymbol("(")
}

func (p *Parser) parseFunction() (Expr, error) {
	tok := p.ts.Next()
	call := &FuncCall{Name: strings.ToUpper(tok.Name())}
	call.Pos = position(tok)
	if !p.ts.AcceptSymbol("(") {
		// CURRENT_TIMESTAMP and friends
		return call, nil
	}
	switch {
	case p.ts.Peek().IsSymbol("*"):
		p.ts.Next()
		call.Star = true
	case p.ts.Peek().IsSymbol(")"):
	default:
		call.Distinct = p.ts.AcceptKeyword("DISTINCT")
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		call.Args = args
	}
	return call, p.ts.ExpectSymbol(")")
}

func canParseStar(p *Parser) bool {
	if p.ts.AcceptSymbol("*") {
		return true
	}
	return p.ts.Next().IsName() && p.ts.AcceptSymbol(".") && p.ts.Peek().IsSymbol("*")
}

func (p *Parser) parseStar() (Expr, error) {
	start := p.ts.Next()
	star := &StarExpr{}
	star.Pos = position(start)
	if start.IsSymbol("*") {
		return star, nil
	}
	star.Table = start.Name()
	p.ts.Next()
	p.ts.Next()
	return star, nil
}

// parseColumnRef reads [[db.]table.]column.
func (p *Parser) parseColumnRef() (*ColumnRef, error) {
	start := p.ts.Peek()
	var parts []string
	for {
		name, err := p.ts.ExpectName("column name")
		if err != nil {
			return nil, err
		}
		parts = append(parts, name)
		if len(parts) == 3 || !p.ts.Peek().IsSymbol(".") || p.ts.PeekAt(1).IsSymbol("*") {
			break
		}
		p.ts.Next()
	}
	ref := &ColumnRef{}
	ref.Pos = position(start)
	switch len(parts) {
	case 1:
		ref.Column = parts[0]
	case 2:
		ref.Table, ref.Column = parts[0], parts[1]
	default:
		ref.Database, ref.Table, ref.Column = parts[0], parts[1], parts[2]
	}
	return ref, nil
}
