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
	"fmt"
	"strings"
)

// TokenKind is the lexical category of a token.
type TokenKind byte

const (
	TokenEOF TokenKind = iota
	TokenWhitespace
	TokenComment
	TokenKeyword
	TokenIdentifier
	TokenQuotedIdentifier
	TokenString
	TokenNumber
	TokenOperator
	TokenPunctuation
	TokenParameter
)

var tokenKindNames = [...]string{
	TokenEOF:              "EOF",
	TokenWhitespace:       "WHITESPACE",
	TokenComment:          "COMMENT",
	TokenKeyword:          "KEYWORD",
	TokenIdentifier:       "IDENTIFIER",
	TokenQuotedIdentifier: "QUOTED_IDENTIFIER",
	TokenString:           "STRING",
	TokenNumber:           "NUMBER",
	TokenOperator:         "OPERATOR",
	TokenPunctuation:      "PUNCTUATION",
	TokenParameter:        "PARAMETER",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", byte(k))
}

// Token is one lexeme of SQL text.
//
// Text is the lexeme exactly as it appears in the source. Value is its
// interpreted form: upper-cased for keywords, unquoted and unescaped for
// strings and quoted identifiers, the bare name for named parameters.
type Token struct {
	Kind   TokenKind
	Text   string
	Value  string
	Line   int
	Column int
	Offset int
}

// Significant reports whether the parser looks at the token.
func (t Token) Significant() bool {
	return t.Kind != TokenWhitespace && t.Kind != TokenComment
}

// IsKeyword reports whether t is one of the given keywords.
func (t Token) IsKeyword(words ...string) bool {
	if t.Kind != TokenKeyword {
		return false
	}
	for _, w := range words {
		if t.Value == w {
			return true
		}
	}
	return false
}

// IsSymbol reports whether t is an operator or punctuation token with one of
// the given spellings.
func (t Token) IsSymbol(symbols ...string) bool {
	if t.Kind != TokenOperator && t.Kind != TokenPunctuation {
		return false
	}
	for _, s := range symbols {
		if t.Text == s {
			return true
		}
	}
	return false
}

// IsName reports whether t can name a table, column or alias. Non-reserved
// keywords count as names.
func (t Token) IsName() bool {
	switch t.Kind {
	case TokenIdentifier, TokenQuotedIdentifier:
		return true
	case TokenKeyword:
		return !reserved[t.Value]
	}
	return false
}

// Name returns the identifier spelled by t.
func (t Token) Name() string {
	if t.Kind == TokenKeyword {
		return t.Text
	}
	return t.Value
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return "end of input"
	}
	return t.Text
}

// keywords is the registered keyword table. Words in reserved cannot be
// used as bare identifiers; the rest are keywords only where the grammar
// expects them.
var keywords = map[string]bool{}

var reserved = map[string]bool{}

func init() {
	for _, w := range strings.Fields(reservedWords) {
		keywords[w] = true
		reserved[w] = true
	}
	for _, w := range strings.Fields(nonReservedWords) {
		keywords[w] = true
	}
}

const reservedWords = `
	ADD ALL ALTER AND AS ASC BETWEEN BY CASCADE CASE CHANGE CHARACTER CHECK
	COLLATE COLUMN CONSTRAINT CREATE CROSS DATABASE DATABASES DEFAULT DELETE
	DESC DESCRIBE DISTINCT DIV DROP ELSE EXISTS EXPLAIN FALSE FOREIGN FROM
	FULLTEXT GROUP HAVING IF IN INDEX INNER INSERT INTERVAL INTO IS JOIN KEY
	KEYS LEFT LIKE LIMIT MOD NATURAL NOT NULL ON OR ORDER OUTER PRIMARY
	REFERENCES RENAME RESTRICT RIGHT SCHEMA SCHEMAS SELECT SET SHOW SPATIAL
	TABLE THEN TO TRUE UNIQUE UNSIGNED UPDATE USE USING VALUES WHEN WHERE XOR
	ZEROFILL
`

const nonReservedWords = `
	ACTION AFTER AUTO_INCREMENT BTREE CHARSET COLUMNS COMMENT CURRENT_TIMESTAMP
	END ENGINE ESCAPE FIRST FULL HASH INDEXES MODIFY NO OFFSET RTREE
	TABLES TRUNCATE
`
