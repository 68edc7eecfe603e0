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

package compression

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	c := NewCompressor(DefaultConfig())
	data := bytes.Repeat([]byte("pagedb row data "), 200)

	out, applied, err := c.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if !applied || len(out) >= len(data) {
		t.Fatalf("Expected compression to shrink %d bytes, got %d (applied=%v)", len(data), len(out), applied)
	}
	back, err := c.Decompress(out, AlgorithmGzip)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, data) {
		t.Error("Expected decompressed data to match")
	}
}

func TestCompressSkipped(t *testing.T) {
	c := NewCompressor(DefaultConfig())

	small := []byte("tiny")
	if out, applied, err := c.Compress(small); err != nil || applied || !bytes.Equal(out, small) {
		t.Errorf("Expected small input unchanged, got applied=%v err=%v", applied, err)
	}

	none := NewCompressor(Config{Algorithm: AlgorithmNone})
	data := bytes.Repeat([]byte{'x'}, 1024)
	if _, applied, _ := none.Compress(data); applied {
		t.Error("Expected AlgorithmNone not to compress")
	}
}

func TestDecompressCorrupt(t *testing.T) {
	c := NewCompressor(DefaultConfig())
	if _, err := c.Decompress([]byte("not gzip"), AlgorithmGzip); !errors.Is(err, ErrDecompressFailed) {
		t.Errorf("Expected ErrDecompressFailed, got %v", err)
	}
	if _, err := c.Decompress(nil, Algorithm(42)); !errors.Is(err, ErrUnsupportedAlgo) {
		t.Errorf("Expected ErrUnsupportedAlgo, got %v", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmNone, false},
		{"none", AlgorithmNone, false},
		{"GZIP", AlgorithmGzip, false},
		{"lz4", AlgorithmNone, true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAlgorithm(%q): expected %v (err %v), got %v (%v)", tt.input, tt.want, tt.wantErr, got, err)
		}
	}
}
