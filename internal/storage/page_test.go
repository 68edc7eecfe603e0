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
	"testing"

	dberrors "pagedb/internal/errors"
)

func TestIndexPageRoundTrip(t *testing.T) {
	fields := IndexPageFields{
		Name:      "idx_user_email",
		ColumnIDs: []int{3, 17, 2},
		Type:      IndexUnique,
		Engine:    EngineBTree,
		OnUpdate:  RefCascade,
		OnDelete:  RefSetNull,
		KeyLength: 191,
	}
	p, err := EncodeIndexPage(fields)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	raw := p.Bytes()
	if len(raw) != IndexPageSize {
		t.Fatalf("Expected %d bytes, got %d", IndexPageSize, len(raw))
	}

	decoded, err := DecodeIndexPage(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, err := decoded.Fields()
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	if fmt.Sprintf("%+v", got) != fmt.Sprintf("%+v", fields) {
		t.Errorf("Expected %+v, got %+v", fields, got)
	}

	// Byte offsets are part of the file format.
	if string(raw[0:14]) != "idx_user_email" || raw[14] != 0 {
		t.Errorf("Expected name at offset 0, got %q", raw[0:16])
	}
	if string(raw[64:71]) != "3\x0017\x002" {
		t.Errorf("Expected column ids at offset 64, got %q", raw[64:72])
	}
	if raw[192] != byte(IndexUnique) || raw[193] != byte(EngineBTree) {
		t.Errorf("Expected type and engine at 192/193, got %d/%d", raw[192], raw[193])
	}
	if raw[196] != 0 || raw[197] != 0 || raw[198] != 0 || raw[199] != 191 {
		t.Errorf("Expected big-endian key length at 196, got %v", raw[196:200])
	}
	for i := 200; i < IndexPageSize; i++ {
		if raw[i] != 0 {
			t.Fatalf("Expected reserved byte %d to be zero", i)
		}
	}
}

func TestIndexPageLength(t *testing.T) {
	for _, n := range []int{0, 255, 257} {
		_, err := DecodeIndexPage(make([]byte, n))
		if dberrors.GetCode(err) != dberrors.ErrCodePageLength {
			t.Errorf("Length %d: expected page length error, got %v", n, err)
		}
		if !dberrors.IsIntegrityError(err) {
			t.Errorf("Length %d: expected integrity category", n)
		}
	}
}

func TestIndexPageNonNumericID(t *testing.T) {
	p, err := EncodeIndexPage(IndexPageFields{Name: "i", ColumnIDs: []int{1}, Type: IndexPlain})
	if err != nil {
		t.Fatal(err)
	}
	raw := p.Bytes()
	copy(raw[64:], "1\x00x2")

	_, err = DecodeIndexPage(raw)
	if dberrors.GetCode(err) != dberrors.ErrCodeNonNumericID {
		t.Errorf("Expected non-numeric id error, got %v", err)
	}
}

func TestIndexPageOverflow(t *testing.T) {
	tests := []struct {
		name   string
		fields IndexPageFields
	}{
		{"long name", IndexPageFields{Name: strings.Repeat("n", 65), Type: IndexPlain}},
		{"too many ids", IndexPageFields{Name: "i", Type: IndexPlain, ColumnIDs: manyIDs(40)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeIndexPage(tt.fields)
			if dberrors.GetCode(err) != dberrors.ErrCodeFieldOverflow {
				t.Errorf("Expected field overflow, got %v", err)
			}
		})
	}

	// Exactly 64 bytes fits, with no terminator.
	p, err := EncodeIndexPage(IndexPageFields{Name: strings.Repeat("n", 64), Type: IndexPlain})
	if err != nil {
		t.Fatalf("Expected 64-byte name to fit: %v", err)
	}
	if p.Name() != strings.Repeat("n", 64) {
		t.Errorf("Expected full name back, got %q", p.Name())
	}
}

func manyIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = 1000 + i
	}
	return ids
}

func TestIndexPageInvalidType(t *testing.T) {
	raw := make([]byte, IndexPageSize)
	raw[192] = 99
	if _, err := DecodeIndexPage(raw); err == nil {
		t.Error("Expected error for unknown index type")
	}
}

func TestIndexPageInvalidEngine(t *testing.T) {
	p, err := EncodeIndexPage(IndexPageFields{Name: "i", ColumnIDs: []int{1}, Type: IndexPlain})
	if err != nil {
		t.Fatal(err)
	}
	raw := p.Bytes()
	raw[193] = byte(EngineRTree) + 1
	if _, err := DecodeIndexPage(raw); dberrors.GetCode(err) != dberrors.ErrCodeInvalidValue {
		t.Errorf("Expected invalid value for unknown engine, got %v", err)
	}
}

func TestIndexPageManyColumns(t *testing.T) {
	for _, n := range []int{2, 10, 33} {
		ids := make([]int, n)
		for i := range ids {
			ids[i] = n - 1 - i
		}
		p, err := EncodeIndexPage(IndexPageFields{Name: "wide", ColumnIDs: ids, Type: IndexPrimary})
		if err != nil {
			t.Fatalf("%d columns: encode failed: %v", n, err)
		}
		decoded, err := DecodeIndexPage(p.Bytes())
		if err != nil {
			t.Fatalf("%d columns: decode failed: %v", n, err)
		}
		got, err := decoded.ColumnIDs()
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(got) != fmt.Sprint(ids) {
			t.Errorf("%d columns: expected %v, got %v", n, ids, got)
		}
	}
}

func TestColumnPageRoundTrip(t *testing.T) {
	c := &Column{
		ID:           4,
		Name:         "price",
		Type:         TypeDecimal,
		Length:       10,
		SecondLength: 2,
		NotNull:      true,
		Unsigned:     true,
		HasDefault:   true,
		Default:      "9.99",
		Comment:      "unit price",
	}
	p, err := c.Page()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeColumnPage(p.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	got := ColumnFromPage(decoded)

	if got.Name != "price" || got.Type != TypeDecimal || got.Length != 10 || got.SecondLength != 2 {
		t.Errorf("Unexpected column %+v", got)
	}
	if !got.NotNull || !got.Unsigned || got.Primary || got.ID != 4 {
		t.Errorf("Unexpected flags %+v", got)
	}
	if got.Default != 9.99 {
		t.Errorf("Expected default 9.99, got %v", got.Default)
	}
	if got.Comment != "unit price" {
		t.Errorf("Expected comment, got %q", got.Comment)
	}
	if got.TypeString() != "DECIMAL(10,2) UNSIGNED" {
		t.Errorf("Expected DECIMAL(10,2) UNSIGNED, got %s", got.TypeString())
	}

	if _, err := DecodeColumnPage(make([]byte, 10)); dberrors.GetCode(err) != dberrors.ErrCodePageLength {
		t.Errorf("Expected page length error, got %v", err)
	}
}

func TestColumnPageNullDefault(t *testing.T) {
	c := &Column{Name: "note", Type: TypeText, HasDefault: true}
	p, err := c.Page()
	if err != nil {
		t.Fatal(err)
	}
	got := ColumnFromPage(p)
	if !got.HasDefault || got.Default != nil {
		t.Errorf("Expected DEFAULT NULL to survive, got %+v", got)
	}
}

func TestTablePageRoundTrip(t *testing.T) {
	s := NewTableSchema("shop", "orders")
	s.Engine = TableEngineMemory
	s.AutoIncrement = 42
	s.Comment = "all orders"
	s.Charset = CharsetLatin1

	p, err := s.Page()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeTablePage(p.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Name() != "orders" || decoded.Engine() != TableEngineMemory {
		t.Errorf("Unexpected table page name=%q engine=%v", decoded.Name(), decoded.Engine())
	}
	if decoded.AutoIncrement() != 42 || decoded.Comment() != "all orders" || decoded.Charset() != CharsetLatin1 {
		t.Errorf("Unexpected table page fields")
	}
	if decoded.CreateTime() != s.CreateTime.Unix() {
		t.Errorf("Expected create time %d, got %d", s.CreateTime.Unix(), decoded.CreateTime())
	}
}

func TestTableEngineByName(t *testing.T) {
	tests := []struct {
		name     string
		expected TableEngine
	}{
		{"memory", TableEngineMemory},
		{"HEAP", TableEngineMemory},
		{"InnoDB", TableEnginePaged},
		{"MyISAM", TableEnginePaged},
	}
	for _, tt := range tests {
		if got := TableEngineByName(tt.name); got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, got)
		}
	}
}
