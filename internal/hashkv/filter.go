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

package hashkv

// ShouldDropBlob reproduces ChessCompactionFilter::FilterV2's kValue case
// (chess_filter.h): a value is dropped from the database entirely once it
// carries no live field — either it's empty, not a whole number of
// entries, or every entry in it is a tombstone. Merge operands are never
// dropped by the filter itself (that's PartialMerge/FullMerge's job), so
// this only applies to fully-merged values sitting in an SST.
func ShouldDropBlob(blob []byte) bool {
	if len(blob) == 0 {
		return true
	}
	if len(blob)%EntrySize != 0 {
		return true
	}
	for _, e := range Decode(blob) {
		if !e.IsTombstone() {
			return false
		}
	}
	return true
}
