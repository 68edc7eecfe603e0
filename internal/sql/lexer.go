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
Package sql implements the SQL front-end and execution engine of pagedb.

Lexer Overview:
===============

The lexer is the first stage of the pipeline. Tokenize turns SQL text into
the complete token sequence, whitespace and comments included, so that the
source between any two lines can be rebuilt for error messages.

	Input: "SELECT a FROM t WHERE a = 1"

	Output Tokens (whitespace omitted):
	  KEYWORD(SELECT) IDENTIFIER(a) KEYWORD(FROM) IDENTIFIER(t)
	  KEYWORD(WHERE) IDENTIFIER(a) OPERATOR(=) NUMBER(1)

Recognition Order:
==================

At every position the lexer tries, in order:

 1. whitespace
 2. numeric literals (123, 1.5, .5, 2e10)
 3. single- and double-quoted strings, with backslash escapes and doubled
    quotes
 4. comments: "-- ...", "# ..." and C-style block comments
 5. registered keywords (case-insensitive, whole words only)
 6. multi-character operators: <=> != <> <= >= || &&
 7. single-character operators and punctuation
 8. backtick-quoted identifiers
 9. parameter markers: ? and :name
 10. bare identifiers

Anything else is a fatal syntax error carrying the first 100 bytes of the
remaining input.

Line Tracking:
==============

Every token records the line and column it starts on. Lines advance on the
newlines inside whitespace, comments and strings.
*/
package sql

import (
	"strings"

	dberrors "pagedb/internal/errors"
)

var multiCharOperators = []string{"<=>", "!=", "<>", "<=", ">=", "||", "&&"}

const singleOperators = "=<>+-*/%!~"
const punctuation = ",().;"

// Lexer produces tokens from SQL text.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1}
}

// Tokenize returns every token of sql in source order.
func Tokenize(sql string) ([]Token, error) {
	l := NewLexer(sql)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token, or a TokenEOF token at the end of input.
func (l *Lexer) Next() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Line: l.line, Column: l.column, Offset: l.pos}, nil
	}

	rules := []func() (Token, bool, error){
		l.whitespace,
		l.number,
		l.quoted,
		l.comment,
		l.keyword,
		l.operator,
		l.backtick,
		l.parameter,
		l.identifier,
	}
	for _, rule := range rules {
		tok, ok, err := rule()
		if err != nil {
			return Token{}, err
		}
		if ok {
			return tok, nil
		}
	}
	return Token{}, l.errorHere(dberrors.UnrecognizedInput(l.input[l.pos:]))
}

func (l *Lexer) errorHere(err *dberrors.DBError) error {
	return err.At(dberrors.Position{Line: l.line, Column: l.column, Offset: l.pos}, l.input)
}

// emit builds a token of n bytes at the current position and advances.
func (l *Lexer) emit(kind TokenKind, n int, value string) Token {
	text := l.input[l.pos : l.pos+n]
	tok := Token{Kind: kind, Text: text, Value: value, Line: l.line, Column: l.column, Offset: l.pos}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
	}
	l.pos += n
	return tok
}

func (l *Lexer) peekByte(off int) byte {
	if l.pos+off < len(l.input) {
		return l.input[l.pos+off]
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func (l *Lexer) whitespace() (Token, bool, error) {
	n := 0
	for l.pos+n < len(l.input) && isSpace(l.input[l.pos+n]) {
		n++
	}
	if n == 0 {
		return Token{}, false, nil
	}
	text := l.input[l.pos : l.pos+n]
	return l.emit(TokenWhitespace, n, text), true, nil
}

func (l *Lexer) number() (Token, bool, error) {
	s := l.input[l.pos:]
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	if n < len(s) && s[n] == '.' && n+1 < len(s) && isDigit(s[n+1]) {
		n++
		for n < len(s) && isDigit(s[n]) {
			n++
		}
	} else if n > 0 && n < len(s) && s[n] == '.' && (n+1 == len(s) || !isIdentStart(s[n+1])) {
		// "1." is a number
		n++
	}
	if n == 0 {
		return Token{}, false, nil
	}
	if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
		m := n + 1
		if m < len(s) && (s[m] == '+' || s[m] == '-') {
			m++
		}
		if m < len(s) && isDigit(s[m]) {
			for m < len(s) && isDigit(s[m]) {
				m++
			}
			n = m
		}
	}
	// 1abc is an identifier, not a number followed by one.
	if n < len(s) && isIdentStart(s[n]) && !strings.Contains(s[:n], ".") {
		return Token{}, false, nil
	}
	return l.emit(TokenNumber, n, s[:n]), true, nil
}

// quoted reads a '...' or "..." literal.
func (l *Lexer) quoted() (Token, bool, error) {
	q := l.peekByte(0)
	if q != '\'' && q != '"' {
		return Token{}, false, nil
	}
	value, n, ok := unquote(l.input[l.pos:], q)
	if !ok {
		return Token{}, false, l.errorHere(dberrors.UnclosedString(q))
	}
	return l.emit(TokenString, n, value), true, nil
}

// unquote decodes a literal delimited by q at the start of s. Returns the
// decoded value and the byte length of the literal including its quotes.
func unquote(s string, q byte) (string, int, bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && q != '`' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case 'Z':
				b.WriteByte(26)
			case '%', '_':
				// kept escaped for LIKE patterns
				b.WriteByte('\\')
				b.WriteByte(s[i])
			default:
				b.WriteByte(s[i])
			}
		case c == q:
			if i+1 < len(s) && s[i+1] == q {
				b.WriteByte(q)
				i++
				continue
			}
			return b.String(), i + 1, true
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, false
}

func (l *Lexer) comment() (Token, bool, error) {
	s := l.input[l.pos:]
	switch {
	case strings.HasPrefix(s, "--") && (len(s) == 2 || isSpace(s[2])), strings.HasPrefix(s, "#"):
		n := strings.IndexByte(s, '\n')
		if n < 0 {
			n = len(s)
		}
		return l.emit(TokenComment, n, s[:n]), true, nil
	case strings.HasPrefix(s, "/*"):
		end := strings.Index(s[2:], "*/")
		if end < 0 {
			return Token{}, false, l.errorHere(dberrors.NewSyntaxError("unterminated comment"))
		}
		n := end + 4
		return l.emit(TokenComment, n, s[:n]), true, nil
	}
	return Token{}, false, nil
}

// keyword matches the longest registered keyword that forms a whole word at
// the current position.
func (l *Lexer) keyword() (Token, bool, error) {
	s := l.input[l.pos:]
	n := 0
	for n < len(s) && isIdentPart(s[n]) {
		n++
	}
	if n == 0 || !isIdentStart(s[0]) {
		return Token{}, false, nil
	}
	upper := strings.ToUpper(s[:n])
	if !keywords[upper] {
		return Token{}, false, nil
	}
	return l.emit(TokenKeyword, n, upper), true, nil
}

func (l *Lexer) operator() (Token, bool, error) {
	s := l.input[l.pos:]
	for _, op := range multiCharOperators {
		if strings.HasPrefix(s, op) {
			return l.emit(TokenOperator, len(op), op), true, nil
		}
	}
	c := s[0]
	if strings.IndexByte(singleOperators, c) >= 0 {
		return l.emit(TokenOperator, 1, s[:1]), true, nil
	}
	if strings.IndexByte(punctuation, c) >= 0 {
		return l.emit(TokenPunctuation, 1, s[:1]), true, nil
	}
	return Token{}, false, nil
}

func (l *Lexer) backtick() (Token, bool, error) {
	if l.peekByte(0) != '`' {
		return Token{}, false, nil
	}
	value, n, ok := unquote(l.input[l.pos:], '`')
	if !ok {
		return Token{}, false, l.errorHere(dberrors.UnclosedString('`'))
	}
	return l.emit(TokenQuotedIdentifier, n, value), true, nil
}

func (l *Lexer) parameter() (Token, bool, error) {
	switch l.peekByte(0) {
	case '?':
		return l.emit(TokenParameter, 1, ""), true, nil
	case ':':
		if !isIdentStart(l.peekByte(1)) {
			return Token{}, false, nil
		}
		n := 1
		for l.pos+n < len(l.input) && isIdentPart(l.input[l.pos+n]) {
			n++
		}
		name := l.input[l.pos+1 : l.pos+n]
		return l.emit(TokenParameter, n, name), true, nil
	}
	return Token{}, false, nil
}

func (l *Lexer) identifier() (Token, bool, error) {
	s := l.input[l.pos:]
	n := 0
	for n < len(s) && isIdentPart(s[n]) {
		n++
	}
	if n == 0 {
		return Token{}, false, nil
	}
	return l.emit(TokenIdentifier, n, s[:n]), true, nil
}
