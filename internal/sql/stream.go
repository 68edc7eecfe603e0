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
	"strings"

	dberrors "pagedb/internal/errors"
)

// TokenStream is a position-addressable view over the tokens of one SQL
// text. The position is a plain index, so parser units save it with Pos and
// restore it with Seek to backtrack. Navigation methods skip whitespace and
// comments.
//
// A TokenStream is used by one parser at a time.
type TokenStream struct {
	source string
	tokens []Token
	pos    int
}

// NewTokenStream tokenizes sql.
func NewTokenStream(sql string) (*TokenStream, error) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	return &TokenStream{source: sql, tokens: tokens}, nil
}

// Source returns the text the stream was built from.
func (ts *TokenStream) Source() string { return ts.source }

// Tokens returns every token, including whitespace and comments.
func (ts *TokenStream) Tokens() []Token { return ts.tokens }

// Pos returns the absolute index of the cursor.
func (ts *TokenStream) Pos() int { return ts.pos }

// Seek moves the cursor to an absolute index.
func (ts *TokenStream) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(ts.tokens) {
		pos = len(ts.tokens)
	}
	ts.pos = pos
}

func (ts *TokenStream) skipInsignificant(i int) int {
	for i < len(ts.tokens) && !ts.tokens[i].Significant() {
		i++
	}
	return i
}

func (ts *TokenStream) eof() Token {
	if len(ts.tokens) == 0 {
		return Token{Kind: TokenEOF, Line: 1, Column: 1}
	}
	last := ts.tokens[len(ts.tokens)-1]
	line := last.Line + strings.Count(last.Text, "\n")
	col := last.Column + len(last.Text)
	if i := strings.LastIndexByte(last.Text, '\n'); i >= 0 {
		col = len(last.Text) - i
	}
	return Token{Kind: TokenEOF, Line: line, Column: col, Offset: len(ts.source)}
}

// Peek returns the next significant token without consuming it.
func (ts *TokenStream) Peek() Token {
	return ts.PeekAt(0)
}

// PeekAt returns the significant token n positions ahead of the cursor.
func (ts *TokenStream) PeekAt(n int) Token {
	i := ts.skipInsignificant(ts.pos)
	for ; n > 0 && i < len(ts.tokens); n-- {
		i = ts.skipInsignificant(i + 1)
	}
	if i >= len(ts.tokens) {
		return ts.eof()
	}
	return ts.tokens[i]
}

// Next consumes and returns the next significant token.
func (ts *TokenStream) Next() Token {
	i := ts.skipInsignificant(ts.pos)
	if i >= len(ts.tokens) {
		ts.pos = len(ts.tokens)
		return ts.eof()
	}
	ts.pos = i + 1
	return ts.tokens[i]
}

// AtEnd reports whether only whitespace and comments remain.
func (ts *TokenStream) AtEnd() bool {
	return ts.Peek().Kind == TokenEOF
}

// SeekMatching looks at the next significant token, stepping over tokens
// for which skip returns true, and reports whether it satisfies match. On a
// match the cursor is left on the matching token (not consuming it);
// otherwise the cursor is unchanged. skip may be nil.
func (ts *TokenStream) SeekMatching(match, skip func(Token) bool) bool {
	i := ts.skipInsignificant(ts.pos)
	for i < len(ts.tokens) && skip != nil && skip(ts.tokens[i]) {
		i = ts.skipInsignificant(i + 1)
	}
	if i < len(ts.tokens) && match(ts.tokens[i]) {
		ts.pos = i
		return true
	}
	return false
}

// AcceptKeyword consumes the next token if it is one of the keywords.
func (ts *TokenStream) AcceptKeyword(words ...string) bool {
	if ts.Peek().IsKeyword(words...) {
		ts.Next()
		return true
	}
	return false
}

// AcceptKeywords consumes a sequence of keywords, all or nothing.
func (ts *TokenStream) AcceptKeywords(words ...string) bool {
	for i, w := range words {
		if !ts.PeekAt(i).IsKeyword(w) {
			return false
		}
	}
	for range words {
		ts.Next()
	}
	return true
}

// AcceptSymbol consumes the next token if it is one of the symbols.
func (ts *TokenStream) AcceptSymbol(symbols ...string) bool {
	if ts.Peek().IsSymbol(symbols...) {
		ts.Next()
		return true
	}
	return false
}

// ExpectKeyword consumes the keyword or fails with a syntax error.
func (ts *TokenStream) ExpectKeyword(word string) error {
	if ts.AcceptKeyword(word) {
		return nil
	}
	return ts.Errorf(dberrors.MissingKeyword(word))
}

// ExpectSymbol consumes the symbol or fails with a syntax error.
func (ts *TokenStream) ExpectSymbol(symbol string) error {
	if ts.AcceptSymbol(symbol) {
		return nil
	}
	return ts.Unexpected("'" + symbol + "'")
}

// ExpectName consumes an identifier.
func (ts *TokenStream) ExpectName(what string) (string, error) {
	tok := ts.Peek()
	if !tok.IsName() {
		return "", ts.Unexpected(what)
	}
	ts.Next()
	return tok.Name(), nil
}

// Unexpected builds a syntax error for the next significant token.
func (ts *TokenStream) Unexpected(expected string) error {
	return ts.Errorf(dberrors.UnexpectedToken(expected, ts.Peek().String()))
}

// Errorf attaches the position of the next significant token and the
// source text to err.
func (ts *TokenStream) Errorf(err *dberrors.DBError) error {
	return ts.ErrorAt(err, ts.Peek())
}

// errorContextLines is how many lines either side of an error are kept.
const errorContextLines = 10

// ErrorAt attaches the position of tok and the surrounding source lines to
// err.
func (ts *TokenStream) ErrorAt(err *dberrors.DBError, tok Token) error {
	from := max(tok.Line-errorContextLines, 1)
	excerpt := ts.ReconstructSource(from, tok.Line+errorContextLines)
	pos := dberrors.Position{Line: tok.Line, Column: tok.Column, Offset: tok.Offset}
	return err.AtExcerpt(pos, from, excerpt)
}

// Span returns the source text from the start of tok through the last
// consumed token.
func (ts *TokenStream) Span(tok Token) string {
	if ts.pos == 0 || ts.pos > len(ts.tokens) {
		return ""
	}
	last := ts.tokens[ts.pos-1]
	end := last.Offset + len(last.Text)
	if tok.Offset >= end {
		return ""
	}
	return ts.source[tok.Offset:end]
}

// ReconstructSource rebuilds lines fromLine through toLine from the tokens.
// Tokens spanning several lines contribute only the part inside the range.
func (ts *TokenStream) ReconstructSource(fromLine, toLine int) string {
	var b strings.Builder
	for _, t := range ts.tokens {
		if t.Line > toLine {
			break
		}
		line := t.Line
		if line >= fromLine && !strings.Contains(t.Text, "\n") {
			b.WriteString(t.Text)
			continue
		}
		for i := 0; i < len(t.Text); i++ {
			if line >= fromLine && line <= toLine {
				b.WriteByte(t.Text[i])
			}
			if t.Text[i] == '\n' {
				line++
			}
		}
	}
	return b.String()
}
