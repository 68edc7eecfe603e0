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
	"strconv"
	"strings"
	"time"

	dberrors "pagedb/internal/errors"
)

// Column is the logical form of a column page.
// Columns are addressed by ID from index definitions; the ID never changes
// for the lifetime of the column, while its position can shift on ALTER.
type Column struct {
	ID            uint16
	Name          string
	Type          DataType
	Length        uint32
	SecondLength  uint32
	NotNull       bool
	Primary       bool
	Unique        bool
	AutoIncrement bool
	Unsigned      bool
	Zerofill      bool
	HasDefault    bool
	Default       Value
	Charset       Charset
	Comment       string
}

// CurrentTimestamp is the default-value keyword resolved at insert time.
const CurrentTimestamp = "CURRENT_TIMESTAMP"

// TypeString renders the full SQL type, e.g. "VARCHAR(64)" or "INT UNSIGNED".
func (c *Column) TypeString() string {
	var b strings.Builder
	b.WriteString(c.Type.String())
	switch {
	case c.Length > 0 && c.SecondLength > 0:
		fmt.Fprintf(&b, "(%d,%d)", c.Length, c.SecondLength)
	case c.Length > 0:
		fmt.Fprintf(&b, "(%d)", c.Length)
	}
	if c.Unsigned {
		b.WriteString(" UNSIGNED")
	}
	if c.Zerofill {
		b.WriteString(" ZEROFILL")
	}
	return b.String()
}

// DefaultValue resolves the column default for a new row.
func (c *Column) DefaultValue(now time.Time) Value {
	if !c.HasDefault {
		return nil
	}
	if s, ok := c.Default.(string); ok && strings.EqualFold(s, CurrentTimestamp) {
		if c.Type == TypeDate {
			return now.Format(DateLayout)
		}
		return now.Format(DateTimeLayout)
	}
	return c.Default
}

// ZeroValue is the implicit value used when a NOT NULL column without a
// default is added to a table that already has rows.
func (c *Column) ZeroValue() Value {
	switch {
	case c.Type.IsInteger():
		return int64(0)
	case c.Type.IsFloat():
		return float64(0)
	}
	return ""
}

func (c *Column) flags() ColumnFlags {
	var f ColumnFlags
	set := func(on bool, flag ColumnFlags) {
		if on {
			f |= flag
		}
	}
	set(c.NotNull, FlagNotNull)
	set(c.Primary, FlagPrimary)
	set(c.Unique, FlagUnique)
	set(c.AutoIncrement, FlagAutoIncrement)
	set(c.Unsigned, FlagUnsigned)
	set(c.Zerofill, FlagZerofill)
	set(c.HasDefault, FlagHasDefault)
	set(c.HasDefault && c.Default == nil, FlagDefaultNull)
	return f
}

// Page encodes the column.
func (c *Column) Page() (*ColumnPage, error) {
	p := NewColumnPage()
	if err := p.SetName(c.Name); err != nil {
		return nil, err
	}
	if err := p.SetType(c.Type); err != nil {
		return nil, err
	}
	p.SetLength(c.Length)
	p.SetSecondLength(c.SecondLength)
	p.SetFlags(c.flags())
	p.SetID(c.ID)
	p.SetCharset(c.Charset)
	if c.HasDefault && c.Default != nil {
		if err := p.SetDefault(ToString(c.Default)); err != nil {
			return nil, err
		}
	}
	if err := p.SetComment(c.Comment); err != nil {
		return nil, err
	}
	return p, nil
}

// ColumnFromPage decodes a column page.
func ColumnFromPage(p *ColumnPage) *Column {
	f := p.Flags()
	c := &Column{
		ID:            p.ID(),
		Name:          p.Name(),
		Type:          p.Type(),
		Length:        p.Length(),
		SecondLength:  p.SecondLength(),
		NotNull:       f.Has(FlagNotNull),
		Primary:       f.Has(FlagPrimary),
		Unique:        f.Has(FlagUnique),
		AutoIncrement: f.Has(FlagAutoIncrement),
		Unsigned:      f.Has(FlagUnsigned),
		Zerofill:      f.Has(FlagZerofill),
		HasDefault:    f.Has(FlagHasDefault),
		Charset:       p.Charset(),
		Comment:       p.Comment(),
	}
	if c.HasDefault && !f.Has(FlagDefaultNull) {
		raw := p.Default()
		c.Default = raw
		if !strings.EqualFold(raw, CurrentTimestamp) {
			if v, err := Coerce(raw, c); err == nil {
				c.Default = v
			}
		}
	}
	return c
}

// IndexDef is the logical form of an index page plus the reference target
// of foreign keys.
type IndexDef struct {
	Name       string
	Type       IndexType
	Engine     IndexEngine
	ColumnIDs  []int
	KeyLength  uint32
	OnUpdate   ReferenceOption
	OnDelete   ReferenceOption
	RefTable   string
	RefColumns []string
}

// PrimaryIndexName is the fixed name of the primary key index.
const PrimaryIndexName = "PRIMARY"

// Page encodes the index definition.
func (d *IndexDef) Page() (*IndexPage, error) {
	return EncodeIndexPage(IndexPageFields{
		Name:      d.Name,
		ColumnIDs: d.ColumnIDs,
		Type:      d.Type,
		Engine:    d.Engine,
		OnUpdate:  d.OnUpdate,
		OnDelete:  d.OnDelete,
		KeyLength: d.KeyLength,
	})
}

// IndexDefFromPage decodes an index page.
func IndexDefFromPage(p *IndexPage) (*IndexDef, error) {
	f, err := p.Fields()
	if err != nil {
		return nil, err
	}
	return &IndexDef{
		Name:      f.Name,
		Type:      f.Type,
		Engine:    f.Engine,
		ColumnIDs: f.ColumnIDs,
		KeyLength: f.KeyLength,
		OnUpdate:  f.OnUpdate,
		OnDelete:  f.OnDelete,
	}, nil
}

func (d *IndexDef) clone() *IndexDef {
	out := *d
	out.ColumnIDs = append([]int(nil), d.ColumnIDs...)
	out.RefColumns = append([]string(nil), d.RefColumns...)
	return &out
}

// TableSchema is the ordered, name-addressable set of column definitions of
// a table plus its index definitions.
type TableSchema struct {
	Database      string
	Name          string
	Engine        TableEngine
	Charset       Charset
	Comment       string
	AutoIncrement uint64
	CreateTime    time.Time
	Columns       []*Column
	Indexes       []*IndexDef

	nextColumnID uint16
}

// NewTableSchema creates an empty schema.
func NewTableSchema(database, name string) *TableSchema {
	return &TableSchema{
		Database:      database,
		Name:          name,
		Engine:        TableEnginePaged,
		AutoIncrement: 1,
		CreateTime:    time.Now().UTC().Truncate(time.Second),
	}
}

// QualifiedName returns "database.table".
func (s *TableSchema) QualifiedName() string {
	return s.Database + "." + s.Name
}

// Clone returns a deep copy, used to stage ALTER TABLE changes.
func (s *TableSchema) Clone() *TableSchema {
	out := *s
	out.Columns = make([]*Column, len(s.Columns))
	for i, c := range s.Columns {
		cc := *c
		out.Columns[i] = &cc
	}
	out.Indexes = make([]*IndexDef, len(s.Indexes))
	for i, d := range s.Indexes {
		out.Indexes[i] = d.clone()
	}
	return &out
}

// ColumnIndex returns the position of the named column, or -1.
func (s *TableSchema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (s *TableSchema) HasColumn(name string) bool {
	return s.ColumnIndex(name) >= 0
}

// Column returns the named column or nil.
func (s *TableSchema) Column(name string) *Column {
	if i := s.ColumnIndex(name); i >= 0 {
		return s.Columns[i]
	}
	return nil
}

// ColumnPosition returns the position of the column with the given id, or -1.
func (s *TableSchema) ColumnPosition(id int) int {
	for i, c := range s.Columns {
		if int(c.ID) == id {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in table order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// AddColumn appends c, or inserts it at position pos when pos >= 0, and
// assigns it a fresh id.
func (s *TableSchema) AddColumn(c *Column, pos int) error {
	if s.HasColumn(c.Name) {
		return dberrors.ColumnExists(c.Name, s.Name)
	}
	for _, existing := range s.Columns {
		if existing.ID >= s.nextColumnID {
			s.nextColumnID = existing.ID + 1
		}
	}
	c.ID = s.nextColumnID
	s.nextColumnID++
	if pos < 0 || pos >= len(s.Columns) {
		s.Columns = append(s.Columns, c)
		return nil
	}
	s.Columns = append(s.Columns, nil)
	copy(s.Columns[pos+1:], s.Columns[pos:])
	s.Columns[pos] = c
	return nil
}

// RemoveColumn deletes the named column, dropping it from every index and
// removing indexes left without columns. Returns the old position.
func (s *TableSchema) RemoveColumn(name string) (int, error) {
	pos := s.ColumnIndex(name)
	if pos < 0 {
		return -1, dberrors.ColumnNotFound(name, s.Name)
	}
	id := int(s.Columns[pos].ID)
	s.Columns = append(s.Columns[:pos], s.Columns[pos+1:]...)

	kept := s.Indexes[:0]
	for _, d := range s.Indexes {
		ids := d.ColumnIDs[:0]
		for _, cid := range d.ColumnIDs {
			if cid != id {
				ids = append(ids, cid)
			}
		}
		d.ColumnIDs = ids
		if len(ids) > 0 {
			kept = append(kept, d)
		}
	}
	s.Indexes = kept
	return pos, nil
}

// IndexPosition returns the position of the named index, or -1.
func (s *TableSchema) IndexPosition(name string) int {
	for i, d := range s.Indexes {
		if strings.EqualFold(d.Name, name) {
			return i
		}
	}
	return -1
}

// HasIndex reports whether the named index exists.
func (s *TableSchema) HasIndex(name string) bool {
	return s.IndexPosition(name) >= 0
}

// Index returns the named index definition or nil.
func (s *TableSchema) Index(name string) *IndexDef {
	if i := s.IndexPosition(name); i >= 0 {
		return s.Indexes[i]
	}
	return nil
}

// PrimaryIndex returns the primary key definition or nil.
func (s *TableSchema) PrimaryIndex() *IndexDef {
	for _, d := range s.Indexes {
		if d.Type == IndexPrimary {
			return d
		}
	}
	return nil
}

// PrimaryKeyColumns returns the columns of the primary key in key order.
func (s *TableSchema) PrimaryKeyColumns() []*Column {
	var cols []*Column
	if d := s.PrimaryIndex(); d != nil {
		for _, id := range d.ColumnIDs {
			if pos := s.ColumnPosition(id); pos >= 0 {
				cols = append(cols, s.Columns[pos])
			}
		}
		return cols
	}
	for _, c := range s.Columns {
		if c.Primary {
			cols = append(cols, c)
		}
	}
	return cols
}

// IndexColumnPositions maps an index's column ids to row positions.
func (s *TableSchema) IndexColumnPositions(d *IndexDef) []int {
	out := make([]int, 0, len(d.ColumnIDs))
	for _, id := range d.ColumnIDs {
		out = append(out, s.ColumnPosition(id))
	}
	return out
}

// IndexColumnNames returns the names of an index's columns.
func (s *TableSchema) IndexColumnNames(d *IndexDef) []string {
	out := make([]string, 0, len(d.ColumnIDs))
	for _, pos := range s.IndexColumnPositions(d) {
		if pos >= 0 {
			out = append(out, s.Columns[pos].Name)
		}
	}
	return out
}

// ColumnIDs resolves column names to ids.
func (s *TableSchema) ColumnIDs(names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, n := range names {
		c := s.Column(n)
		if c == nil {
			return nil, dberrors.ColumnNotFound(n, s.Name)
		}
		ids = append(ids, int(c.ID))
	}
	return ids, nil
}

// AddIndex validates and appends an index definition.
func (s *TableSchema) AddIndex(d *IndexDef) error {
	if d.Type == IndexPrimary {
		if s.PrimaryIndex() != nil {
			return dberrors.IndexExists(PrimaryIndexName, s.Name).WithDetail("multiple primary key defined")
		}
		d.Name = PrimaryIndexName
	}
	if d.Name == "" {
		d.Name = s.uniqueIndexName(d)
	}
	if s.HasIndex(d.Name) {
		return dberrors.IndexExists(d.Name, s.Name)
	}
	if len(d.ColumnIDs) == 0 {
		return dberrors.MissingRequired("index columns")
	}
	for _, id := range d.ColumnIDs {
		if s.ColumnPosition(id) < 0 {
			return dberrors.ColumnNotFound(strconv.Itoa(id), s.Name)
		}
	}
	if d.Type == IndexPrimary {
		for _, id := range d.ColumnIDs {
			c := s.Columns[s.ColumnPosition(id)]
			c.Primary = true
			c.NotNull = true
		}
	}
	s.Indexes = append(s.Indexes, d)
	return nil
}

// RemoveIndex deletes the named index definition.
func (s *TableSchema) RemoveIndex(name string) error {
	pos := s.IndexPosition(name)
	if pos < 0 {
		return dberrors.IndexNotFound(name, s.Name)
	}
	if s.Indexes[pos].Type == IndexPrimary {
		for _, c := range s.Columns {
			c.Primary = false
		}
	}
	s.Indexes = append(s.Indexes[:pos], s.Indexes[pos+1:]...)
	return nil
}

func (s *TableSchema) uniqueIndexName(d *IndexDef) string {
	base := "idx"
	if len(d.ColumnIDs) > 0 {
		if pos := s.ColumnPosition(d.ColumnIDs[0]); pos >= 0 {
			base = s.Columns[pos].Name
		}
	}
	name := base
	for i := 2; s.HasIndex(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

// Page encodes the table header.
func (s *TableSchema) Page() (*TablePage, error) {
	p := NewTablePage()
	if err := p.SetName(s.Name); err != nil {
		return nil, err
	}
	p.SetEngine(s.Engine)
	p.SetAutoIncrement(s.AutoIncrement)
	p.SetCreateTime(s.CreateTime.Unix())
	if err := p.SetComment(s.Comment); err != nil {
		return nil, err
	}
	p.SetCharset(s.Charset)
	return p, nil
}

// Validate checks that every page of the schema can be encoded.
func (s *TableSchema) Validate() error {
	if s.Name == "" {
		return dberrors.MissingRequired("table name")
	}
	if len(s.Columns) == 0 {
		return dberrors.MissingRequired("column definitions")
	}
	if _, err := s.Page(); err != nil {
		return err
	}
	auto := 0
	for _, c := range s.Columns {
		if _, err := c.Page(); err != nil {
			return err
		}
		if c.AutoIncrement {
			auto++
			if !c.Type.IsInteger() {
				return dberrors.InvalidValue(c.Name, "AUTO_INCREMENT requires an integer column")
			}
		}
	}
	if auto > 1 {
		return dberrors.InvalidValue(s.Name, "only one AUTO_INCREMENT column is allowed")
	}
	for _, d := range s.Indexes {
		if _, err := d.Page(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaFromPages rebuilds a schema from decoded pages.
func SchemaFromPages(database string, tp *TablePage, cols []*ColumnPage, idx []*IndexPage) (*TableSchema, error) {
	s := &TableSchema{
		Database:      database,
		Name:          tp.Name(),
		Engine:        tp.Engine(),
		Charset:       tp.Charset(),
		Comment:       tp.Comment(),
		AutoIncrement: tp.AutoIncrement(),
		CreateTime:    time.Unix(tp.CreateTime(), 0).UTC(),
	}
	for _, cp := range cols {
		c := ColumnFromPage(cp)
		if c.ID >= s.nextColumnID {
			s.nextColumnID = c.ID + 1
		}
		s.Columns = append(s.Columns, c)
	}
	for _, ip := range idx {
		d, err := IndexDefFromPage(ip)
		if err != nil {
			return nil, err
		}
		for _, id := range d.ColumnIDs {
			if s.ColumnPosition(id) < 0 {
				return nil, dberrors.NewIntegrityError("index references unknown column").
					WithDetail(fmt.Sprintf("index %s, column id %d", d.Name, id))
			}
		}
		s.Indexes = append(s.Indexes, d)
	}
	return s, nil
}
