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

package storage

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Charset is the one-byte character set tag of tables and columns.
// String values are validated against it on write and stored in its byte
// encoding inside table files.
type Charset byte

const (
	CharsetDefault Charset = iota
	CharsetUTF8
	CharsetLatin1
	CharsetASCII
)

func (c Charset) String() string {
	switch c {
	case CharsetUTF8, CharsetDefault:
		return "utf8"
	case CharsetLatin1:
		return "latin1"
	case CharsetASCII:
		return "ascii"
	}
	return fmt.Sprintf("charset(%d)", byte(c))
}

// ParseCharset resolves a character set name.
func ParseCharset(name string) (Charset, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return CharsetDefault, nil
	case "utf8", "utf8mb4", "utf-8":
		return CharsetUTF8, nil
	case "latin1", "iso-8859-1":
		return CharsetLatin1, nil
	case "ascii", "us-ascii":
		return CharsetASCII, nil
	}
	return CharsetDefault, fmt.Errorf("unknown charset %q", name)
}

// CharsetFromByte validates a stored charset tag.
func CharsetFromByte(b byte) (Charset, error) {
	if b > byte(CharsetASCII) {
		return CharsetDefault, fmt.Errorf("unknown charset tag %d", b)
	}
	return Charset(b), nil
}

// Encoder provides encoding/decoding for one character set.
type Encoder interface {
	// Encode converts a Go string to bytes in the target encoding.
	Encode(s string) ([]byte, error)

	// Decode converts bytes from the target encoding to a Go string.
	Decode(b []byte) (string, error)

	// Validate checks if a string is representable in this encoding.
	Validate(s string) error
}

// Encoder returns the encoder of the charset.
func (c Charset) Encoder() Encoder {
	switch c {
	case CharsetLatin1:
		return latin1Encoder{}
	case CharsetASCII:
		return asciiEncoder{}
	default:
		return utf8Encoder{}
	}
}

// Validate checks that s can be stored in the charset.
func (c Charset) Validate(s string) error {
	return c.Encoder().Validate(s)
}

// Resolve returns c, or fallback when c is the default tag.
func (c Charset) Resolve(fallback Charset) Charset {
	if c == CharsetDefault {
		return fallback
	}
	return c
}

type utf8Encoder struct{}

func (utf8Encoder) Encode(s string) ([]byte, error) {
	return []byte(s), nil
}

func (utf8Encoder) Decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("invalid UTF-8 sequence")
	}
	return string(b), nil
}

func (utf8Encoder) Validate(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string contains invalid UTF-8 sequences")
	}
	return nil
}

type latin1Encoder struct{}

func (latin1Encoder) Encode(s string) ([]byte, error) {
	return charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
}

func (latin1Encoder) Decode(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (latin1Encoder) Validate(s string) error {
	for _, r := range s {
		if _, ok := charmap.ISO8859_1.EncodeRune(r); !ok {
			return fmt.Errorf("character U+%04X is not valid in latin1", r)
		}
	}
	return nil
}

type asciiEncoder struct{}

func (e asciiEncoder) Encode(s string) ([]byte, error) {
	if err := e.Validate(s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (asciiEncoder) Decode(b []byte) (string, error) {
	for _, c := range b {
		if c > 127 {
			return "", fmt.Errorf("byte 0x%02X is not valid ASCII", c)
		}
	}
	return string(b), nil
}

func (asciiEncoder) Validate(s string) error {
	for _, r := range s {
		if r > 127 {
			return fmt.Errorf("character U+%04X is not valid ASCII", r)
		}
	}
	return nil
}
