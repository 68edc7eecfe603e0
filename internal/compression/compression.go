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
Package compression compresses table file bodies for pagedb.

Compression Overview:
=====================

Table files are compressed before they are encrypted, since sealed bytes
do not compress. Bodies smaller than MinSize are stored as they are; the
caller records whether compression was applied and passes the algorithm
back to Decompress when the file is read.

Supported Algorithms:
=====================

 1. none: bodies are stored uncompressed
 2. gzip: DEFLATE with a configurable level
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Algorithm represents a compression algorithm
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm from string
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// Level represents compression level
type Level int

const (
	LevelFastest Level = gzip.BestSpeed
	LevelDefault Level = 5
	LevelBest    Level = gzip.BestCompression
)

// Config holds compression configuration
type Config struct {
	Algorithm Algorithm
	Level     Level
	MinSize   int // bodies below this size are not compressed
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmGzip,
		Level:     LevelDefault,
		MinSize:   256,
	}
}

// Errors
var (
	ErrUnsupportedAlgo  = errors.New("unsupported compression algorithm")
	ErrDecompressFailed = errors.New("decompression failed")
)

// Compressor provides compression/decompression operations. It is safe
// for concurrent use.
type Compressor struct {
	config     Config
	gzipPool   sync.Pool
	bufferPool sync.Pool
}

// NewCompressor creates a new compressor. An out of range level falls
// back to LevelDefault.
func NewCompressor(config Config) *Compressor {
	if config.Level < LevelFastest || config.Level > LevelBest {
		config.Level = LevelDefault
	}
	level := int(config.Level)
	return &Compressor{
		config: config,
		gzipPool: sync.Pool{
			New: func() interface{} {
				w, _ := gzip.NewWriterLevel(nil, level)
				return w
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Algorithm returns the configured algorithm.
func (c *Compressor) Algorithm() Algorithm { return c.config.Algorithm }

// Compress compresses data using the configured algorithm. applied is
// false, and data is returned unchanged, when data is below MinSize or
// compression would not make it smaller.
func (c *Compressor) Compress(data []byte) (out []byte, applied bool, err error) {
	if len(data) < c.config.MinSize {
		return data, false, nil
	}

	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, false, nil
	case AlgorithmGzip:
		out, err = c.compressGzip(data)
	default:
		return nil, false, ErrUnsupportedAlgo
	}
	if err != nil {
		return nil, false, err
	}
	if len(out) >= len(data) {
		return data, false, nil
	}
	return out, true, nil
}

// Decompress decompresses data
func (c *Compressor) Decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmGzip:
		return c.decompressGzip(data)
	default:
		return nil, ErrUnsupportedAlgo
	}
}

// compressGzip compresses using gzip
func (c *Compressor) compressGzip(data []byte) ([]byte, error) {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	w := c.gzipPool.Get().(*gzip.Writer)
	w.Reset(buf)
	defer c.gzipPool.Put(w)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// decompressGzip decompresses gzip data
func (c *Compressor) decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	return out, nil
}
