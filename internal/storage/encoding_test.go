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
	"bytes"
	"testing"
)

func TestLatin1Charset(t *testing.T) {
	e := CharsetLatin1.Encoder()

	encoded, err := e.Encode("café")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(encoded, []byte{'c', 'a', 'f', 0xE9}) {
		t.Errorf("Expected single-byte é, got %v", encoded)
	}
	decoded, err := e.Decode(encoded)
	if err != nil || decoded != "café" {
		t.Errorf("Expected café, got %q (%v)", decoded, err)
	}

	if err := CharsetLatin1.Validate("日本"); err == nil {
		t.Error("Expected CJK text to be rejected by latin1")
	}
}

func TestASCIICharset(t *testing.T) {
	if err := CharsetASCII.Validate("Hello, World!"); err != nil {
		t.Errorf("Validate failed for ASCII text: %v", err)
	}
	if err := CharsetASCII.Validate("Héllo"); err == nil {
		t.Error("Expected non-ASCII text to be rejected")
	}
	if _, err := CharsetASCII.Encoder().Decode([]byte{0xC3}); err == nil {
		t.Error("Expected high byte to be rejected")
	}
}

func TestUTF8Charset(t *testing.T) {
	e := CharsetUTF8.Encoder()
	original := "Hello, 世界"
	encoded, _ := e.Encode(original)
	decoded, err := e.Decode(encoded)
	if err != nil || decoded != original {
		t.Errorf("Expected %q, got %q (%v)", original, decoded, err)
	}
	if _, err := e.Decode([]byte{0xff, 0xfe}); err == nil {
		t.Error("Expected invalid UTF-8 to be rejected")
	}
}

func TestParseCharset(t *testing.T) {
	tests := []struct {
		name    string
		want    Charset
		wantErr bool
	}{
		{"utf8mb4", CharsetUTF8, false},
		{"LATIN1", CharsetLatin1, false},
		{"ascii", CharsetASCII, false},
		{"", CharsetDefault, false},
		{"ebcdic", CharsetDefault, true},
	}
	for _, tt := range tests {
		got, err := ParseCharset(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCharset(%q) = %v, %v", tt.name, got, err)
		}
	}
	if CharsetDefault.Resolve(CharsetLatin1) != CharsetLatin1 {
		t.Error("Expected default charset to resolve to the fallback")
	}
}

func TestEncryptorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	salt, err := LoadOrCreateSalt(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateSalt failed: %v", err)
	}
	again, _ := LoadOrCreateSalt(dir)
	if !bytes.Equal(salt, again) {
		t.Error("Expected salt to be stable across calls")
	}

	enc, err := NewEncryptor(EncryptionConfig{Passphrase: "secret", Salt: salt})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	sealed, err := enc.Encrypt([]byte("rows"), []byte("shop.orders"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	plain, err := enc.Decrypt(sealed, []byte("shop.orders"))
	if err != nil || string(plain) != "rows" {
		t.Errorf("Expected round trip, got %q (%v)", plain, err)
	}
	if _, err := enc.Decrypt(sealed, []byte("shop.users")); err == nil {
		t.Error("Expected decryption under another table name to fail")
	}
}
