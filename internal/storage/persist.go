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
Table Files
===========

Each table of the paged engine lives in <data_dir>/<database>/<table>.pdb:

	[0:4]   magic "PDB1"
	[4]     flags (bit 0: body is encrypted, bit 1: body is gzip compressed)
	[5:]    body, compressed and then sealed when the flags say so

Body:

	table page
	uint16 column count, column pages
	uint16 index count, for each: index page, uvarint length + foreign key
	        reference ("table" NUL "col" NUL "col" ...), empty when none
	uint32 row count, for each: uvarint length + encoded row

Files are written to a temporary file in the same directory and renamed
over the old one, so a reader never sees a half-written table. Indexes are
not stored; they are rebuilt from the rows on load.
*/
package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pagedb/internal/compression"
	dberrors "pagedb/internal/errors"
)

// gunzip reads compressed files whatever the configured algorithm is.
var gunzip = compression.NewCompressor(compression.Config{Algorithm: compression.AlgorithmGzip})

// TableFileExt is the extension of table files.
const TableFileExt = ".pdb"

var tableFileMagic = []byte("PDB1")

const (
	flagEncrypted  byte = 1 << 0
	flagCompressed byte = 1 << 1
)

func columnCharsets(s *TableSchema, fallback Charset) []Charset {
	out := make([]Charset, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Charset.Resolve(s.Charset.Resolve(fallback))
	}
	return out
}

// encodeTable renders the body of a table file.
func encodeTable(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	s := t.Schema

	tp, err := s.Page()
	if err != nil {
		return nil, err
	}
	buf.Write(tp.Bytes())

	binary.Write(&buf, binary.BigEndian, uint16(len(s.Columns)))
	for _, c := range s.Columns {
		cp, err := c.Page()
		if err != nil {
			return nil, err
		}
		buf.Write(cp.Bytes())
	}

	var scratch [binary.MaxVarintLen64]byte
	writeBytes := func(b []byte) {
		n := binary.PutUvarint(scratch[:], uint64(len(b)))
		buf.Write(scratch[:n])
		buf.Write(b)
	}

	binary.Write(&buf, binary.BigEndian, uint16(len(s.Indexes)))
	for _, d := range s.Indexes {
		ip, err := d.Page()
		if err != nil {
			return nil, err
		}
		buf.Write(ip.Bytes())
		ref := ""
		if d.RefTable != "" {
			ref = strings.Join(append([]string{d.RefTable}, d.RefColumns...), "\x00")
		}
		writeBytes([]byte(ref))
	}

	charsets := columnCharsets(s, t.charset)
	binary.Write(&buf, binary.BigEndian, uint32(t.Len()))
	for _, id := range t.order {
		data, err := MarshalRow(t.rows[id], charsets)
		if err != nil {
			return nil, err
		}
		writeBytes(data)
	}
	return buf.Bytes(), nil
}

// decodeTable parses a table file body.
func decodeTable(database string, body []byte, path string, fallback Charset) (*TableSchema, []Row, error) {
	r := bufio.NewReader(bytes.NewReader(body))
	corrupt := func(reason string) error {
		return dberrors.CorruptFile(path, reason)
	}

	readPage := func(size int) ([]byte, error) {
		b := make([]byte, size)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, corrupt("truncated page")
		}
		return b, nil
	}
	readBytes := func() ([]byte, error) {
		n, err := binary.ReadUvarint(r)
		if err != nil || n > uint64(len(body)) {
			return nil, corrupt("bad length prefix")
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, corrupt("truncated record")
		}
		return b, nil
	}

	raw, err := readPage(TablePageSize)
	if err != nil {
		return nil, nil, err
	}
	tp, err := DecodeTablePage(raw)
	if err != nil {
		return nil, nil, err
	}

	var ncols uint16
	if err := binary.Read(r, binary.BigEndian, &ncols); err != nil {
		return nil, nil, corrupt("missing column count")
	}
	cols := make([]*ColumnPage, 0, ncols)
	for i := 0; i < int(ncols); i++ {
		raw, err := readPage(ColumnPageSize)
		if err != nil {
			return nil, nil, err
		}
		cp, err := DecodeColumnPage(raw)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, cp)
	}

	var nidx uint16
	if err := binary.Read(r, binary.BigEndian, &nidx); err != nil {
		return nil, nil, corrupt("missing index count")
	}
	pages := make([]*IndexPage, 0, nidx)
	refs := make([]string, 0, nidx)
	for i := 0; i < int(nidx); i++ {
		raw, err := readPage(IndexPageSize)
		if err != nil {
			return nil, nil, err
		}
		ip, err := DecodeIndexPage(raw)
		if err != nil {
			return nil, nil, err
		}
		ref, err := readBytes()
		if err != nil {
			return nil, nil, err
		}
		pages = append(pages, ip)
		refs = append(refs, string(ref))
	}

	schema, err := SchemaFromPages(database, tp, cols, pages)
	if err != nil {
		return nil, nil, err
	}
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		parts := strings.Split(ref, "\x00")
		schema.Indexes[i].RefTable = parts[0]
		schema.Indexes[i].RefColumns = parts[1:]
	}

	var nrows uint32
	if err := binary.Read(r, binary.BigEndian, &nrows); err != nil {
		return nil, nil, corrupt("missing row count")
	}
	charsets := columnCharsets(schema, fallback)
	rows := make([]Row, 0, nrows)
	for i := 0; i < int(nrows); i++ {
		data, err := readBytes()
		if err != nil {
			return nil, nil, err
		}
		row, err := UnmarshalRow(data, charsets)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, nil, corrupt("trailing bytes")
	}
	return schema, rows, nil
}

// writeTableFile atomically replaces the file at path with the table.
func writeTableFile(path string, t *Table, enc *Encryptor, comp *compression.Compressor) error {
	body, err := encodeTable(t)
	if err != nil {
		return err
	}

	flags := byte(0)
	if comp != nil {
		var applied bool
		body, applied, err = comp.Compress(body)
		if err != nil {
			return dberrors.IOError(path, err)
		}
		if applied {
			flags |= flagCompressed
		}
	}
	if enc != nil {
		body, err = enc.Encrypt(body, []byte(t.Schema.QualifiedName()))
		if err != nil {
			return dberrors.IOError(path, err)
		}
		flags |= flagEncrypted
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dberrors.IOError(dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return dberrors.IOError(path, err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return dberrors.IOError(path, err)
	}

	if _, err := tmp.Write(tableFileMagic); err != nil {
		return cleanup(err)
	}
	if _, err := tmp.Write([]byte{flags}); err != nil {
		return cleanup(err)
	}
	if _, err := tmp.Write(body); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return dberrors.IOError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return dberrors.IOError(path, err)
	}
	return nil
}

// readTableFile loads a table file written by writeTableFile.
func readTableFile(path, database string, enc *Encryptor, degree int, coll Collator, charset Charset) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dberrors.IOError(path, err)
	}
	if len(data) < len(tableFileMagic)+1 || !bytes.Equal(data[:4], tableFileMagic) {
		return nil, dberrors.CorruptFile(path, "bad magic")
	}
	flags := data[4]
	body := data[5:]

	if flags&flagEncrypted != 0 {
		if enc == nil {
			return nil, dberrors.CorruptFile(path, "file is encrypted but no passphrase is configured")
		}
		name := strings.TrimSuffix(filepath.Base(path), TableFileExt)
		body, err = enc.Decrypt(body, []byte(database+"."+name))
		if err != nil {
			return nil, dberrors.CorruptFile(path, fmt.Sprintf("decryption failed: %v", err))
		}
	}
	if flags&flagCompressed != 0 {
		body, err = gunzip.Decompress(body, compression.AlgorithmGzip)
		if err != nil {
			return nil, dberrors.CorruptFile(path, err.Error())
		}
	}

	schema, rows, err := decodeTable(database, body, path, charset)
	if err != nil {
		return nil, err
	}

	t := NewTable(schema, degree, coll, charset)
	if err := t.restore(rows); err != nil {
		return nil, err
	}
	return t, nil
}
