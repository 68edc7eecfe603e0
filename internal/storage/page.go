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
Schema Pages
============

Table, column and index definitions are stored as fixed-size binary pages.
Every field lives at a fixed byte range; setters splice only their own range
and leave the rest of the page untouched, so a page can be filled in field by
field in any order.

Encoding rules:
  - Strings are NUL-padded to their width on write and NUL-trimmed on read.
    A string wider than its field is an integrity error.
  - Integers are fixed-width big-endian, independent of the host.
  - Decoding a byte block of the wrong length is an integrity error.

Index page (256 bytes):

	offset  width  field
	0       64     name
	64      128    column ids, decimal text separated by NUL
	192     1      index type
	193     1      index engine
	194     1      foreign key ON UPDATE method
	195     1      foreign key ON DELETE method
	196     4      key length
	200     56     reserved

Column page (224 bytes):

	0       64     name
	64      1      data type
	65      4      length
	69      4      second length (decimal scale)
	73      2      flags
	75      2      column id
	77      1      charset
	78      64     default value text
	142     64     comment
	206     18     reserved

Table page (160 bytes):

	0       64     name
	64      1      table engine
	65      8      next auto-increment value
	73      8      create time (unix seconds)
	81      64     comment
	145     1      charset
	146     14     reserved
*/
package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	dberrors "pagedb/internal/errors"
)

// Page sizes in bytes.
const (
	IndexPageSize  = 256
	ColumnPageSize = 224
	TablePageSize  = 160
)

// NameWidth is the width of every name field.
const NameWidth = 64

// ============================================================================
// Field splicing
// ============================================================================

func putString(b []byte, off, width int, field, s string) error {
	if len(s) > width {
		return dberrors.FieldOverflow(field, width, len(s))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return dberrors.InvalidValue(field, "contains a NUL byte")
	}
	return putBytes(b, off, width, field, []byte(s))
}

// putBytes copies raw into a zero-padded field. Unlike putString it allows
// NUL bytes inside the value.
func putBytes(b []byte, off, width int, field string, raw []byte) error {
	if len(raw) > width {
		return dberrors.FieldOverflow(field, width, len(raw))
	}
	region := b[off : off+width]
	n := copy(region, raw)
	for i := n; i < width; i++ {
		region[i] = 0
	}
	return nil
}

func getString(b []byte, off, width int) string {
	region := b[off : off+width]
	if i := bytes.IndexByte(region, 0); i >= 0 {
		region = region[:i]
	}
	return string(region)
}

func putUint16(b []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(b[off:off+2], v)
}

func getUint16(b []byte, off int) uint16 {
	return binary.BigEndian.Uint16(b[off : off+2])
}

func putUint32(b []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(b[off:off+4], v)
}

func getUint32(b []byte, off int) uint32 {
	return binary.BigEndian.Uint32(b[off : off+4])
}

func putUint64(b []byte, off int, v uint64) {
	binary.BigEndian.PutUint64(b[off:off+8], v)
}

func getUint64(b []byte, off int) uint64 {
	return binary.BigEndian.Uint64(b[off : off+8])
}

// ============================================================================
// Index page
// ============================================================================

// IndexType is the kind of an index definition.
type IndexType byte

const (
	IndexPlain IndexType = iota + 1
	IndexUnique
	IndexFulltext
	IndexSpatial
	IndexPrimary
	IndexForeign
)

func (t IndexType) String() string {
	switch t {
	case IndexPlain:
		return "INDEX"
	case IndexUnique:
		return "UNIQUE"
	case IndexFulltext:
		return "FULLTEXT"
	case IndexSpatial:
		return "SPATIAL"
	case IndexPrimary:
		return "PRIMARY"
	case IndexForeign:
		return "FOREIGN"
	}
	return fmt.Sprintf("INDEXTYPE(%d)", byte(t))
}

// IsUnique reports whether the index rejects duplicate keys.
func (t IndexType) IsUnique() bool {
	return t == IndexUnique || t == IndexPrimary
}

// IndexTypeFromByte validates a stored index type tag.
func IndexTypeFromByte(b byte) (IndexType, error) {
	if b < byte(IndexPlain) || b > byte(IndexForeign) {
		return 0, dberrors.InvalidValue("index type", fmt.Sprintf("unknown tag %d", b))
	}
	return IndexType(b), nil
}

// IndexEngine is the structure backing an index.
type IndexEngine byte

const (
	EngineDefault IndexEngine = iota
	EngineBTree
	EngineHash
	EngineRTree
)

func (e IndexEngine) String() string {
	switch e {
	case EngineDefault, EngineBTree:
		return "BTREE"
	case EngineHash:
		return "HASH"
	case EngineRTree:
		return "RTREE"
	}
	return fmt.Sprintf("ENGINE(%d)", byte(e))
}

// IndexEngineByName resolves a USING clause.
func IndexEngineByName(name string) (IndexEngine, bool) {
	switch strings.ToUpper(name) {
	case "BTREE":
		return EngineBTree, true
	case "HASH":
		return EngineHash, true
	case "RTREE":
		return EngineRTree, true
	}
	return EngineDefault, false
}

// IndexEngineFromByte validates a stored engine tag.
func IndexEngineFromByte(b byte) (IndexEngine, error) {
	if b > byte(EngineRTree) {
		return 0, dberrors.InvalidValue("index engine", fmt.Sprintf("unknown tag %d", b))
	}
	return IndexEngine(b), nil
}

// ReferenceOption is a foreign key ON UPDATE / ON DELETE method.
type ReferenceOption byte

const (
	RefNone ReferenceOption = iota
	RefRestrict
	RefCascade
	RefSetNull
	RefNoAction
	RefSetDefault
)

func (r ReferenceOption) String() string {
	switch r {
	case RefNone:
		return ""
	case RefRestrict:
		return "RESTRICT"
	case RefCascade:
		return "CASCADE"
	case RefSetNull:
		return "SET NULL"
	case RefNoAction:
		return "NO ACTION"
	case RefSetDefault:
		return "SET DEFAULT"
	}
	return fmt.Sprintf("REFOPTION(%d)", byte(r))
}

func referenceOptionFromByte(field string, b byte) (ReferenceOption, error) {
	if b > byte(RefSetDefault) {
		return 0, dberrors.InvalidValue(field, fmt.Sprintf("unknown tag %d", b))
	}
	return ReferenceOption(b), nil
}

const (
	idxNameOff     = 0
	idxColumnsOff  = 64
	idxColumnsLen  = 128
	idxTypeOff     = 192
	idxEngineOff   = 193
	idxOnUpdateOff = 194
	idxOnDeleteOff = 195
	idxKeyLenOff   = 196
)

// IndexPage is the binary form of one index definition.
type IndexPage struct {
	data [IndexPageSize]byte
}

// IndexPageFields are the logical fields of an index page.
type IndexPageFields struct {
	Name      string
	ColumnIDs []int
	Type      IndexType
	Engine    IndexEngine
	OnUpdate  ReferenceOption
	OnDelete  ReferenceOption
	KeyLength uint32
}

// NewIndexPage returns an all-zero index page.
func NewIndexPage() *IndexPage {
	return &IndexPage{}
}

// EncodeIndexPage builds a page from its logical fields.
func EncodeIndexPage(f IndexPageFields) (*IndexPage, error) {
	p := NewIndexPage()
	if err := p.SetName(f.Name); err != nil {
		return nil, err
	}
	if err := p.SetColumnIDs(f.ColumnIDs); err != nil {
		return nil, err
	}
	if err := p.SetType(f.Type); err != nil {
		return nil, err
	}
	p.SetEngine(f.Engine)
	p.SetOnUpdate(f.OnUpdate)
	p.SetOnDelete(f.OnDelete)
	p.SetKeyLength(f.KeyLength)
	return p, nil
}

// DecodeIndexPage parses and validates a 256-byte block.
func DecodeIndexPage(b []byte) (*IndexPage, error) {
	if len(b) != IndexPageSize {
		return nil, dberrors.PageLength("index", IndexPageSize, len(b))
	}
	p := &IndexPage{}
	copy(p.data[:], b)
	if _, err := p.Fields(); err != nil {
		return nil, err
	}
	return p, nil
}

// Fields decodes every logical field of the page.
func (p *IndexPage) Fields() (IndexPageFields, error) {
	ids, err := p.ColumnIDs()
	if err != nil {
		return IndexPageFields{}, err
	}
	typ, err := IndexTypeFromByte(p.data[idxTypeOff])
	if err != nil {
		return IndexPageFields{}, err
	}
	engine, err := IndexEngineFromByte(p.data[idxEngineOff])
	if err != nil {
		return IndexPageFields{}, err
	}
	onUpdate, err := referenceOptionFromByte("on update", p.data[idxOnUpdateOff])
	if err != nil {
		return IndexPageFields{}, err
	}
	onDelete, err := referenceOptionFromByte("on delete", p.data[idxOnDeleteOff])
	if err != nil {
		return IndexPageFields{}, err
	}
	return IndexPageFields{
		Name:      p.Name(),
		ColumnIDs: ids,
		Type:      typ,
		Engine:    engine,
		OnUpdate:  onUpdate,
		OnDelete:  onDelete,
		KeyLength: p.KeyLength(),
	}, nil
}

// Bytes returns a copy of the raw page.
func (p *IndexPage) Bytes() []byte {
	out := make([]byte, IndexPageSize)
	copy(out, p.data[:])
	return out
}

func (p *IndexPage) Name() string { return getString(p.data[:], idxNameOff, NameWidth) }

func (p *IndexPage) SetName(name string) error {
	return putString(p.data[:], idxNameOff, NameWidth, "index name", name)
}

// ColumnIDs decodes the NUL-separated column id list.
func (p *IndexPage) ColumnIDs() ([]int, error) {
	raw := strings.TrimRight(string(p.data[idxColumnsOff:idxColumnsOff+idxColumnsLen]), "\x00")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, "\x00")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil || id < 0 {
			return nil, dberrors.NonNumericID(part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *IndexPage) SetColumnIDs(ids []int) error {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 {
			return dberrors.InvalidValue("index columns", fmt.Sprintf("negative column id %d", id))
		}
		parts[i] = strconv.Itoa(id)
	}
	joined := strings.Join(parts, "\x00")
	return putBytes(p.data[:], idxColumnsOff, idxColumnsLen, "index columns", []byte(joined))
}

func (p *IndexPage) Type() IndexType { return IndexType(p.data[idxTypeOff]) }

func (p *IndexPage) SetType(t IndexType) error {
	if _, err := IndexTypeFromByte(byte(t)); err != nil {
		return err
	}
	p.data[idxTypeOff] = byte(t)
	return nil
}

func (p *IndexPage) Engine() IndexEngine     { return IndexEngine(p.data[idxEngineOff]) }
func (p *IndexPage) SetEngine(e IndexEngine) { p.data[idxEngineOff] = byte(e) }

func (p *IndexPage) OnUpdate() ReferenceOption     { return ReferenceOption(p.data[idxOnUpdateOff]) }
func (p *IndexPage) SetOnUpdate(r ReferenceOption) { p.data[idxOnUpdateOff] = byte(r) }

func (p *IndexPage) OnDelete() ReferenceOption     { return ReferenceOption(p.data[idxOnDeleteOff]) }
func (p *IndexPage) SetOnDelete(r ReferenceOption) { p.data[idxOnDeleteOff] = byte(r) }

func (p *IndexPage) KeyLength() uint32     { return getUint32(p.data[:], idxKeyLenOff) }
func (p *IndexPage) SetKeyLength(n uint32) { putUint32(p.data[:], idxKeyLenOff, n) }

// ============================================================================
// Column page
// ============================================================================

// ColumnFlags are the boolean attributes of a column.
type ColumnFlags uint16

const (
	FlagNotNull ColumnFlags = 1 << iota
	FlagPrimary
	FlagUnique
	FlagAutoIncrement
	FlagUnsigned
	FlagZerofill
	FlagHasDefault
	FlagDefaultNull
)

// Has reports whether every bit of f2 is set.
func (f ColumnFlags) Has(f2 ColumnFlags) bool { return f&f2 == f2 }

const (
	colNameOff     = 0
	colTypeOff     = 64
	colLengthOff   = 65
	colSecondOff   = 69
	colFlagsOff    = 73
	colIDOff       = 75
	colCharsetOff  = 77
	colDefaultOff  = 78
	colDefaultLen  = 64
	colCommentOff  = 142
	colCommentLen  = 64
	colReservedOff = 206
)

// ColumnPage is the binary form of one column definition.
type ColumnPage struct {
	data [ColumnPageSize]byte
}

// NewColumnPage returns an all-zero column page.
func NewColumnPage() *ColumnPage {
	return &ColumnPage{}
}

// DecodeColumnPage parses and validates a column page block.
func DecodeColumnPage(b []byte) (*ColumnPage, error) {
	if len(b) != ColumnPageSize {
		return nil, dberrors.PageLength("column", ColumnPageSize, len(b))
	}
	p := &ColumnPage{}
	copy(p.data[:], b)
	if _, err := DataTypeFromByte(p.data[colTypeOff]); err != nil {
		return nil, err
	}
	if _, err := CharsetFromByte(p.data[colCharsetOff]); err != nil {
		return nil, dberrors.InvalidValue("column charset", err.Error())
	}
	return p, nil
}

// Bytes returns a copy of the raw page.
func (p *ColumnPage) Bytes() []byte {
	out := make([]byte, ColumnPageSize)
	copy(out, p.data[:])
	return out
}

func (p *ColumnPage) Name() string { return getString(p.data[:], colNameOff, NameWidth) }

func (p *ColumnPage) SetName(name string) error {
	return putString(p.data[:], colNameOff, NameWidth, "column name", name)
}

func (p *ColumnPage) Type() DataType { return DataType(p.data[colTypeOff]) }

func (p *ColumnPage) SetType(t DataType) error {
	if _, err := DataTypeFromByte(byte(t)); err != nil {
		return err
	}
	p.data[colTypeOff] = byte(t)
	return nil
}

func (p *ColumnPage) Length() uint32     { return getUint32(p.data[:], colLengthOff) }
func (p *ColumnPage) SetLength(n uint32) { putUint32(p.data[:], colLengthOff, n) }

func (p *ColumnPage) SecondLength() uint32     { return getUint32(p.data[:], colSecondOff) }
func (p *ColumnPage) SetSecondLength(n uint32) { putUint32(p.data[:], colSecondOff, n) }

func (p *ColumnPage) Flags() ColumnFlags     { return ColumnFlags(getUint16(p.data[:], colFlagsOff)) }
func (p *ColumnPage) SetFlags(f ColumnFlags) { putUint16(p.data[:], colFlagsOff, uint16(f)) }

func (p *ColumnPage) ID() uint16      { return getUint16(p.data[:], colIDOff) }
func (p *ColumnPage) SetID(id uint16) { putUint16(p.data[:], colIDOff, id) }

func (p *ColumnPage) Charset() Charset     { return Charset(p.data[colCharsetOff]) }
func (p *ColumnPage) SetCharset(c Charset) { p.data[colCharsetOff] = byte(c) }

func (p *ColumnPage) Default() string { return getString(p.data[:], colDefaultOff, colDefaultLen) }

func (p *ColumnPage) SetDefault(s string) error {
	return putString(p.data[:], colDefaultOff, colDefaultLen, "column default", s)
}

func (p *ColumnPage) Comment() string { return getString(p.data[:], colCommentOff, colCommentLen) }

func (p *ColumnPage) SetComment(s string) error {
	return putString(p.data[:], colCommentOff, colCommentLen, "column comment", s)
}

// ============================================================================
// Table page
// ============================================================================

// TableEngine is the storage engine of a table.
type TableEngine byte

const (
	TableEngineDefault TableEngine = iota
	TableEnginePaged
	TableEngineMemory
)

func (e TableEngine) String() string {
	switch e {
	case TableEngineMemory:
		return "MEMORY"
	default:
		return "PAGEDB"
	}
}

// TableEngineByName resolves an ENGINE table option. Engines of other
// databases map onto the paged engine.
func TableEngineByName(name string) TableEngine {
	if strings.EqualFold(name, "MEMORY") || strings.EqualFold(name, "HEAP") {
		return TableEngineMemory
	}
	return TableEnginePaged
}

const (
	tblNameOff    = 0
	tblEngineOff  = 64
	tblAutoIncOff = 65
	tblCreatedOff = 73
	tblCommentOff = 81
	tblCommentLen = 64
	tblCharsetOff = 145
)

// TablePage is the binary form of a table header.
type TablePage struct {
	data [TablePageSize]byte
}

// NewTablePage returns an all-zero table page.
func NewTablePage() *TablePage {
	return &TablePage{}
}

// DecodeTablePage parses and validates a table page block.
func DecodeTablePage(b []byte) (*TablePage, error) {
	if len(b) != TablePageSize {
		return nil, dberrors.PageLength("table", TablePageSize, len(b))
	}
	p := &TablePage{}
	copy(p.data[:], b)
	if p.data[tblEngineOff] > byte(TableEngineMemory) {
		return nil, dberrors.InvalidValue("table engine", fmt.Sprintf("unknown tag %d", p.data[tblEngineOff]))
	}
	if _, err := CharsetFromByte(p.data[tblCharsetOff]); err != nil {
		return nil, dberrors.InvalidValue("table charset", err.Error())
	}
	return p, nil
}

// Bytes returns a copy of the raw page.
func (p *TablePage) Bytes() []byte {
	out := make([]byte, TablePageSize)
	copy(out, p.data[:])
	return out
}

func (p *TablePage) Name() string { return getString(p.data[:], tblNameOff, NameWidth) }

func (p *TablePage) SetName(name string) error {
	return putString(p.data[:], tblNameOff, NameWidth, "table name", name)
}

func (p *TablePage) Engine() TableEngine     { return TableEngine(p.data[tblEngineOff]) }
func (p *TablePage) SetEngine(e TableEngine) { p.data[tblEngineOff] = byte(e) }

func (p *TablePage) AutoIncrement() uint64     { return getUint64(p.data[:], tblAutoIncOff) }
func (p *TablePage) SetAutoIncrement(n uint64) { putUint64(p.data[:], tblAutoIncOff, n) }

func (p *TablePage) CreateTime() int64     { return int64(getUint64(p.data[:], tblCreatedOff)) }
func (p *TablePage) SetCreateTime(t int64) { putUint64(p.data[:], tblCreatedOff, uint64(t)) }

func (p *TablePage) Comment() string { return getString(p.data[:], tblCommentOff, tblCommentLen) }

func (p *TablePage) SetComment(s string) error {
	return putString(p.data[:], tblCommentOff, tblCommentLen, "table comment", s)
}

func (p *TablePage) Charset() Charset     { return Charset(p.data[tblCharsetOff]) }
func (p *TablePage) SetCharset(c Charset) { p.data[tblCharsetOff] = byte(c) }
