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
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collation selects the string ordering used by comparisons, ORDER BY,
// GROUP BY and index keys.
type Collation byte

const (
	CollationBinary Collation = iota
	CollationNocase
	CollationUnicode
)

func (c Collation) String() string {
	switch c {
	case CollationBinary:
		return "binary"
	case CollationNocase:
		return "nocase"
	case CollationUnicode:
		return "unicode"
	}
	return fmt.Sprintf("collation(%d)", byte(c))
}

// ParseCollation resolves a collation name.
func ParseCollation(name string) (Collation, error) {
	switch strings.ToLower(name) {
	case "", "binary":
		return CollationBinary, nil
	case "nocase":
		return CollationNocase, nil
	case "unicode":
		return CollationUnicode, nil
	}
	return CollationBinary, fmt.Errorf("unknown collation %q", name)
}

// Collator provides string comparison based on collation rules.
type Collator interface {
	// Compare returns -1 if a < b, 0 if a == b, 1 if a > b.
	Compare(a, b string) int

	// Key returns a string that is byte-equal for every pair of inputs the
	// collator considers equal. Used for grouping and DISTINCT.
	Key(s string) string
}

// BinaryCollator uses strict byte-wise comparison.
type BinaryCollator struct{}

// Compare implements Collator.
func (c *BinaryCollator) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Key implements Collator.
func (c *BinaryCollator) Key(s string) string { return s }

// NocaseCollator uses case-insensitive comparison.
type NocaseCollator struct{}

// Compare implements Collator.
func (c *NocaseCollator) Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Key implements Collator.
func (c *NocaseCollator) Key(s string) string { return strings.ToLower(s) }

// UnicodeCollator uses Unicode collation with locale support.
// collate.Collator is not safe for concurrent use, so calls are serialized.
type UnicodeCollator struct {
	mu       sync.Mutex
	collator *collate.Collator
	buf      collate.Buffer
	locale   string
}

// NewUnicodeCollator creates a new Unicode collator for the given locale.
func NewUnicodeCollator(locale string) *UnicodeCollator {
	tag, err := language.Parse(locale)
	if err != nil || tag == language.Und {
		tag = language.English
	}
	return &UnicodeCollator{
		collator: collate.New(tag, collate.Loose),
		locale:   locale,
	}
}

// Compare implements Collator.
func (c *UnicodeCollator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collator.CompareString(a, b)
}

// Key implements Collator.
func (c *UnicodeCollator) Key(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := string(c.collator.KeyFromString(&c.buf, s))
	c.buf.Reset()
	return k
}

// Locale returns the locale the collator was built for.
func (c *UnicodeCollator) Locale() string {
	return c.locale
}

// GetCollator returns a Collator for the given collation and locale.
func GetCollator(collation Collation, locale string) Collator {
	switch collation {
	case CollationNocase:
		return &NocaseCollator{}
	case CollationUnicode:
		return NewUnicodeCollator(locale)
	default:
		return &BinaryCollator{}
	}
}
