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
Package storage implements the persistent side of pagedb.

Storage Overview:
=================

  - value.go:     Scalar values and the data-type tags of columns
  - page.go:      Fixed-size schema pages (index, column, table)
  - schema.go:    Table schemas built from pages, addressed by integer ids
  - btree.go:     B-tree secondary indexes with duplicate keys
  - table.go:     Row storage and index maintenance
  - manager.go:   The schema manager: databases and their tables
  - locks.go:     All-or-nothing table locks
  - persist.go:   Table files under the data directory
  - row_codec.go: Binary row encoding used by table files

Values:
=======

A Value is one of nil (SQL NULL), int64, float64 or string. Booleans are
stored as int64 1 and 0. Every value entering storage goes through Normalize
so the rest of the engine only ever sees those four dynamic types.
*/
package storage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	dberrors "pagedb/internal/errors"
)

// Value is a scalar cell value: nil, int64, float64 or string.
type Value = interface{}

// Row is one stored tuple, positionally aligned with its table's columns.
type Row []Value

// Clone returns a copy that shares no backing array with r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Normalize converts Go values into the canonical Value types.
func Normalize(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return x, nil
	case float64:
		return x, nil
	case string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, dberrors.ValueOutOfRange("parameter", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, dberrors.ValueOutOfRange("parameter", x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(DateTimeLayout), nil
	default:
		return nil, dberrors.InvalidValue("parameter", fmt.Sprintf("unsupported type %T", v))
	}
}

// DateTimeLayout is the textual form of DATETIME values and of NOW().
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the textual form of DATE values.
const DateLayout = "2006-01-02"

// IsNumeric reports whether v is an int64 or float64.
func IsNumeric(v Value) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// ToFloat converts v to float64. Strings are parsed by their leading numeric
// prefix; ok is false when no numeric reading exists.
func ToFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		return parseNumericPrefix(x)
	}
	return 0, false
}

// ToInt converts v to int64, truncating toward zero.
func ToInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return i, true
		}
		f, ok := parseNumericPrefix(x)
		return int64(f), ok
	}
	return 0, false
}

// ToString renders v the way it is shown in result sets.
func ToString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// Truthy reports whether v counts as true in a condition. NULL is false.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		f, _ := parseNumericPrefix(x)
		return f != 0
	}
	return false
}

// Bool converts a Go bool to its stored form.
func Bool(b bool) Value {
	if b {
		return int64(1)
	}
	return int64(0)
}

func parseNumericPrefix(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	end := 0
	seenDigit, seenDot := false, false
scan:
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		case (c == '-' || c == '+') && end == 0:
		default:
			break scan
		}
		end++
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimRight(s[:end], "."), 64)
	return f, err == nil
}

// Compare orders two values. NULL sorts before everything else; numbers
// compare numerically; strings use the collator; a number and a string
// compare numerically when the string has a numeric reading.
func Compare(a, b Value, coll Collator) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if ai, ok := a.(int64); ok {
		if bi, ok := b.(int64); ok {
			return cmpInt(ai, bi)
		}
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		if coll == nil {
			coll = &BinaryCollator{}
		}
		return coll.Compare(as, bs)
	}

	af, aok := ToFloat(a)
	bf, bok := ToFloat(b)
	if aok && bok {
		return cmpFloat(af, bf)
	}
	if coll == nil {
		coll = &BinaryCollator{}
	}
	return coll.Compare(ToString(a), ToString(b))
}

// Equal reports whether a and b compare equal. NULL is never equal to
// anything, including NULL.
func Equal(a, b Value, coll Collator) bool {
	if a == nil || b == nil {
		return false
	}
	return Compare(a, b, coll) == 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ============================================================================
// Data types
// ============================================================================

// DataType is the one-byte type tag stored in column pages.
type DataType byte

const (
	TypeUnknown DataType = iota
	TypeTinyInt
	TypeSmallInt
	TypeMediumInt
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeChar
	TypeVarchar
	TypeText
	TypeBlob
	TypeDate
	TypeDateTime
	TypeTimestamp
	TypeTime
	TypeBoolean
)

var dataTypeNames = map[DataType]string{
	TypeTinyInt:   "TINYINT",
	TypeSmallInt:  "SMALLINT",
	TypeMediumInt: "MEDIUMINT",
	TypeInt:       "INT",
	TypeBigInt:    "BIGINT",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
	TypeDecimal:   "DECIMAL",
	TypeChar:      "CHAR",
	TypeVarchar:   "VARCHAR",
	TypeText:      "TEXT",
	TypeBlob:      "BLOB",
	TypeDate:      "DATE",
	TypeDateTime:  "DATETIME",
	TypeTimestamp: "TIMESTAMP",
	TypeTime:      "TIME",
	TypeBoolean:   "BOOLEAN",
}

var dataTypeAliases = map[string]DataType{
	"INTEGER": TypeInt,
	"BOOL":    TypeBoolean,
	"REAL":    TypeDouble,
	"NUMERIC": TypeDecimal,
	"STRING":  TypeVarchar,
}

func (t DataType) String() string {
	if n, ok := dataTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TYPE(%d)", byte(t))
}

// DataTypeByName resolves a SQL type name.
func DataTypeByName(name string) (DataType, bool) {
	upper := strings.ToUpper(name)
	for t, n := range dataTypeNames {
		if n == upper {
			return t, true
		}
	}
	t, ok := dataTypeAliases[upper]
	return t, ok
}

// DataTypeFromByte validates a stored type tag.
func DataTypeFromByte(b byte) (DataType, error) {
	t := DataType(b)
	if _, ok := dataTypeNames[t]; !ok {
		return TypeUnknown, dberrors.InvalidValue("data type", fmt.Sprintf("unknown tag %d", b))
	}
	return t, nil
}

// IsInteger reports whether the type stores int64 values.
func (t DataType) IsInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeMediumInt, TypeInt, TypeBigInt, TypeBoolean:
		return true
	}
	return false
}

// IsFloat reports whether the type stores float64 values.
func (t DataType) IsFloat() bool {
	return t == TypeFloat || t == TypeDouble || t == TypeDecimal
}

// IsString reports whether the type stores string values.
func (t DataType) IsString() bool {
	return !t.IsInteger() && !t.IsFloat()
}

// intRange returns the signed range of an integer type.
func (t DataType) intRange(unsigned bool) (int64, int64) {
	var bits uint
	switch t {
	case TypeTinyInt:
		bits = 8
	case TypeSmallInt:
		bits = 16
	case TypeMediumInt:
		bits = 24
	case TypeInt:
		bits = 32
	case TypeBoolean:
		return 0, 1
	default:
		if unsigned {
			return 0, math.MaxInt64
		}
		return math.MinInt64, math.MaxInt64
	}
	if unsigned {
		return 0, int64(1)<<bits - 1
	}
	return -(int64(1) << (bits - 1)), int64(1)<<(bits-1) - 1
}

// Coerce converts v to the storage form of column c, enforcing range and
// length limits.
func Coerce(v Value, c *Column) (Value, error) {
	if v == nil {
		return nil, nil
	}
	t := c.Type
	switch {
	case t.IsInteger():
		var i int64
		switch x := v.(type) {
		case int64:
			i = x
		case float64:
			i = int64(math.Round(x))
		default:
			f, ok := ToFloat(v)
			if !ok {
				return nil, dberrors.TypeMismatch(t.String(), fmt.Sprintf("%q", ToString(v)), c.Name)
			}
			i = int64(math.Round(f))
		}
		lo, hi := t.intRange(c.Unsigned)
		if i < lo || i > hi {
			return nil, dberrors.ValueOutOfRange(c.Name, i)
		}
		return i, nil

	case t.IsFloat():
		f, ok := ToFloat(v)
		if !ok {
			return nil, dberrors.TypeMismatch(t.String(), fmt.Sprintf("%q", ToString(v)), c.Name)
		}
		if c.Unsigned && f < 0 {
			return nil, dberrors.ValueOutOfRange(c.Name, f)
		}
		if t == TypeDecimal && c.SecondLength > 0 {
			p := math.Pow(10, float64(c.SecondLength))
			f = math.Round(f*p) / p
		}
		return f, nil

	default:
		s := ToString(v)
		switch t {
		case TypeChar, TypeVarchar:
			if c.Length > 0 && len([]rune(s)) > int(c.Length) {
				return nil, dberrors.ValueOutOfRange(c.Name, s)
			}
		case TypeDate:
			if _, err := time.Parse(DateLayout, s); err != nil {
				return nil, dberrors.TypeMismatch("DATE", fmt.Sprintf("%q", s), c.Name)
			}
		case TypeDateTime, TypeTimestamp:
			if _, err := time.Parse(DateTimeLayout, s); err != nil {
				if d, derr := time.Parse(DateLayout, s); derr == nil {
					s = d.Format(DateTimeLayout)
				} else {
					return nil, dberrors.TypeMismatch(t.String(), fmt.Sprintf("%q", s), c.Name)
				}
			}
		}
		if err := c.Charset.Validate(s); err != nil {
			return nil, dberrors.InvalidValue(c.Name, err.Error())
		}
		return s, nil
	}
}
