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
	"encoding/binary"
	"fmt"
	"math"

	dberrors "pagedb/internal/errors"
)

// Binary row codec.
//
// Wire format per row:
//
//	[0:2]  column count (uint16 big-endian)
//	for each column:
//	  [0]    type tag
//	  [1..]  payload
//
// Type tags:
//
//	0x00  NULL
//	0x01  int64, 8 bytes big-endian
//	0x02  float64, 8 bytes big-endian IEEE 754
//	0x03  string, uvarint length + bytes in the column's charset
const (
	tagNull    byte = 0x00
	tagInt64   byte = 0x01
	tagFloat64 byte = 0x02
	tagString  byte = 0x03
)

// MarshalRow encodes row. charsets gives the charset of each column; a nil
// slice stores strings as UTF-8.
func MarshalRow(row Row, charsets []Charset) ([]byte, error) {
	buf := make([]byte, 2, 2+len(row)*9)
	binary.BigEndian.PutUint16(buf, uint16(len(row)))

	var scratch [binary.MaxVarintLen64]byte
	for i, v := range row {
		switch x := v.(type) {
		case nil:
			buf = append(buf, tagNull)
		case int64:
			buf = append(buf, tagInt64)
			buf = binary.BigEndian.AppendUint64(buf, uint64(x))
		case float64:
			buf = append(buf, tagFloat64)
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(x))
		case string:
			data := []byte(x)
			if i < len(charsets) {
				enc, err := charsets[i].Encoder().Encode(x)
				if err != nil {
					return nil, dberrors.InvalidValue(fmt.Sprintf("column %d", i), err.Error())
				}
				data = enc
			}
			buf = append(buf, tagString)
			n := binary.PutUvarint(scratch[:], uint64(len(data)))
			buf = append(buf, scratch[:n]...)
			buf = append(buf, data...)
		default:
			return nil, dberrors.InvalidValue(fmt.Sprintf("column %d", i), fmt.Sprintf("unsupported value type %T", v))
		}
	}
	return buf, nil
}

// UnmarshalRow decodes a row produced by MarshalRow with the same charsets.
func UnmarshalRow(data []byte, charsets []Charset) (Row, error) {
	if len(data) < 2 {
		return nil, dberrors.NewIntegrityError("row data too short")
	}
	count := int(binary.BigEndian.Uint16(data[:2]))
	off := 2
	row := make(Row, count)

	for i := 0; i < count; i++ {
		if off >= len(data) {
			return nil, truncated(i)
		}
		tag := data[off]
		off++

		switch tag {
		case tagNull:
			row[i] = nil
		case tagInt64:
			if off+8 > len(data) {
				return nil, truncated(i)
			}
			row[i] = int64(binary.BigEndian.Uint64(data[off : off+8]))
			off += 8
		case tagFloat64:
			if off+8 > len(data) {
				return nil, truncated(i)
			}
			row[i] = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
			off += 8
		case tagString:
			n, w := binary.Uvarint(data[off:])
			if w <= 0 || off+w+int(n) > len(data) {
				return nil, truncated(i)
			}
			off += w
			raw := data[off : off+int(n)]
			off += int(n)
			if i < len(charsets) {
				s, err := charsets[i].Encoder().Decode(raw)
				if err != nil {
					return nil, dberrors.NewIntegrityError("undecodable string").WithDetail(err.Error())
				}
				row[i] = s
			} else {
				row[i] = string(raw)
			}
		default:
			return nil, dberrors.NewIntegrityError("unknown value tag").WithDetail(fmt.Sprintf("tag 0x%02x at column %d", tag, i))
		}
	}
	if off != len(data) {
		return nil, dberrors.NewIntegrityError("trailing bytes after row")
	}
	return row, nil
}

func truncated(col int) error {
	return dberrors.NewIntegrityError("truncated row").WithDetail(fmt.Sprintf("at column %d", col))
}
