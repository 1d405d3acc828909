/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package hashkv implements the packed-hash value codec and its RocksDB/
// Pebble merge operator (spec.md §4.10-4.11, C10/C11), grounded on
// original_source/src/ssdb/chess_merge.h and chess_filter.h: a blob is a
// sequence of (field code, value) int16 pairs, 4 bytes each, with
// Tombstone as the deleted-field sentinel value.
package hashkv

import "encoding/binary"

// Tombstone marks a field as deleted without shrinking the blob in place;
// it is dropped by FullMerge but kept through PartialMerge chains.
const Tombstone int16 = 0x7FFF

// EntrySize is the encoded width of one (field, value) pair.
const EntrySize = 4

// Entry is one decoded (field code, value) pair.
type Entry struct {
	Field int16
	Value int16
}

// IsTombstone reports whether e represents a deleted field.
func (e Entry) IsTombstone() bool { return e.Value == Tombstone }

// Decode splits a packed blob into its entries, truncating any trailing
// bytes that don't form a whole entry. Callers that must reject a
// malformed operand wholesale (the merge path, spec.md §4.11 step 2a)
// check len(blob)%EntrySize before calling Decode rather than relying on
// this truncation.
func Decode(blob []byte) []Entry {
	n := len(blob) / EntrySize
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		off := i * EntrySize
		out = append(out, Entry{
			Field: int16(binary.LittleEndian.Uint16(blob[off:])),
			Value: int16(binary.LittleEndian.Uint16(blob[off+2:])),
		})
	}
	return out
}

// Encode packs entries back into a blob in the order given; callers that
// need deterministic output should sort by Field first.
func Encode(entries []Entry) []byte {
	out := make([]byte, len(entries)*EntrySize)
	for i, e := range entries {
		off := i * EntrySize
		binary.LittleEndian.PutUint16(out[off:], uint16(e.Field))
		binary.LittleEndian.PutUint16(out[off+2:], uint16(e.Value))
	}
	return out
}

// Count returns the number of live (non-tombstone) fields in blob, used by
// multi_hdel to report how many fields were actually removed.
func Count(blob []byte) int {
	n := 0
	for _, e := range Decode(blob) {
		if !e.IsTombstone() {
			n++
		}
	}
	return n
}

// Get returns the value for field and whether it is present and live.
func Get(blob []byte, field int16) (int16, bool) {
	for _, e := range Decode(blob) {
		if e.Field == field {
			if e.IsTombstone() {
				return 0, false
			}
			return e.Value, true
		}
	}
	return 0, false
}

// SetField returns a new blob with field set to value, replacing any
// existing occurrence (including a tombstone) and appending otherwise.
// Used by DeleteField.
func SetField(blob []byte, field, value int16) []byte {
	entries := Decode(blob)
	for i, e := range entries {
		if e.Field == field {
			entries[i].Value = value
			return Encode(entries)
		}
	}
	entries = append(entries, Entry{Field: field, Value: value})
	return Encode(entries)
}

// DeleteField marks field as a tombstone, appending one if it wasn't
// already present so a later compaction still sees the delete.
func DeleteField(blob []byte, field int16) []byte {
	return SetField(blob, field, Tombstone)
}
