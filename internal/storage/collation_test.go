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
	"testing"
)

func TestNocaseCollator(t *testing.T) {
	c := &NocaseCollator{}

	if c.Compare("ABC", "abc") != 0 {
		t.Error("Expected ABC == abc (case-insensitive)")
	}
	if c.Compare("abc", "ABD") >= 0 {
		t.Error("Expected abc < ABD (case-insensitive)")
	}
	if c.Key("Hello") != c.Key("HELLO") {
		t.Error("Expected equal keys for Hello and HELLO")
	}
}

func TestBinaryCollator(t *testing.T) {
	c := &BinaryCollator{}

	if c.Compare("ABC", "abc") >= 0 {
		t.Error("Expected ABC < abc in binary comparison")
	}
	if c.Key("abc") == c.Key("ABC") {
		t.Error("Expected different keys in binary collation")
	}
}

func TestUnicodeCollator(t *testing.T) {
	c := NewUnicodeCollator("en_US")

	if c.Compare("abc", "abd") >= 0 {
		t.Error("Expected abc < abd")
	}
	if c.Compare("cafe", "cafz") >= 0 {
		t.Error("Expected cafe < cafz")
	}
	// Loose collation ignores case and accents.
	if c.Compare("Café", "cafe") != 0 {
		t.Error("Expected Café == cafe under loose unicode collation")
	}
	if c.Key("Café") != c.Key("cafe") {
		t.Error("Expected equal sort keys for Café and cafe")
	}
}

func TestParseCollation(t *testing.T) {
	tests := []struct {
		name    string
		want    Collation
		wantErr bool
	}{
		{"binary", CollationBinary, false},
		{"", CollationBinary, false},
		{"NOCASE", CollationNocase, false},
		{"unicode", CollationUnicode, false},
		{"klingon", CollationBinary, true},
	}
	for _, tt := range tests {
		got, err := ParseCollation(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCollation(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCollation(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCompareValues(t *testing.T) {
	bin := &BinaryCollator{}
	tests := []struct {
		a, b Value
		want int
	}{
		{nil, nil, 0},
		{nil, int64(1), -1},
		{int64(1), nil, 1},
		{int64(2), int64(10), -1},
		{int64(2), 2.5, -1},
		{"10", int64(9), 1},
		{"b", "a", 1},
		{"abc", int64(5), 1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b, bin); got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
	if Equal(nil, nil, bin) {
		t.Error("NULL must not equal NULL")
	}
	if Compare("A", "a", &NocaseCollator{}) != 0 {
		t.Error("Expected nocase equality")
	}
}
