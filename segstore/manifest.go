// Copyright 2019 Michael J. Fromberger. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package segstore

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// A manifestRecord locates one stored segment within the store's flat data
// file: the compressed bytes for key live at data[offset:offset+length].
type manifestRecord struct {
	key    Key
	offset uint64
	length uint64
}

// Field numbers for the hand-encoded manifest wire format. There is no
// .proto source for this: the shape is small, fixed, and internal to this
// package, so the wire primitives are used directly instead of running
// protoc-gen-go over a schema nobody else needs to see.
const (
	fieldRecord = 1 // top level: repeated manifestRecord, length-delimited

	fieldRecordKey    = 1 // manifestRecord.key, bytes (32)
	fieldRecordOffset = 2 // manifestRecord.offset, varint
	fieldRecordLength = 3 // manifestRecord.length, varint
)

func encodeManifest(records []manifestRecord) []byte {
	var buf []byte
	for _, r := range records {
		var rec []byte
		rec = protowire.AppendTag(rec, fieldRecordKey, protowire.BytesType)
		rec = protowire.AppendBytes(rec, r.key[:])
		rec = protowire.AppendTag(rec, fieldRecordOffset, protowire.VarintType)
		rec = protowire.AppendVarint(rec, r.offset)
		rec = protowire.AppendTag(rec, fieldRecordLength, protowire.VarintType)
		rec = protowire.AppendVarint(rec, r.length)

		buf = protowire.AppendTag(buf, fieldRecord, protowire.BytesType)
		buf = protowire.AppendBytes(buf, rec)
	}
	return buf
}

func decodeManifest(data []byte) ([]manifestRecord, error) {
	var records []manifestRecord
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("segstore: manifest: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num != fieldRecord || typ != protowire.BytesType {
			return nil, fmt.Errorf("segstore: manifest: unexpected field %d/%d at top level", num, typ)
		}
		raw, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("segstore: manifest: %w", protowire.ParseError(n))
		}
		data = data[n:]

		rec, err := decodeManifestRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeManifestRecord(data []byte) (manifestRecord, error) {
	var rec manifestRecord
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return rec, fmt.Errorf("segstore: manifest record: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldRecordKey:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return rec, fmt.Errorf("segstore: manifest record: %w", protowire.ParseError(n))
			}
			if len(v) != len(rec.key) {
				return rec, fmt.Errorf("segstore: manifest record: key is %d bytes, want %d", len(v), len(rec.key))
			}
			copy(rec.key[:], v)
			data = data[n:]
		case fieldRecordOffset:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return rec, fmt.Errorf("segstore: manifest record: %w", protowire.ParseError(n))
			}
			rec.offset = v
			data = data[n:]
		case fieldRecordLength:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return rec, fmt.Errorf("segstore: manifest record: %w", protowire.ParseError(n))
			}
			rec.length = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return rec, fmt.Errorf("segstore: manifest record: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return rec, nil
}
