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

import (
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/google/btree"
)

// MergerName identifies this merge operator in Pebble's manifest; it must
// never change once a database has been created with it.
const MergerName = "packdb.chess_merge"

// NewMerger builds the pebble.Merger wired to the store (spec.md §4.11).
// It reproduces chess_merge.h's FullMergeV2/PartialMerge: operands are
// presented newest-first, and within a merge the first time a field code
// is seen wins — later (older) occurrences of the same field are ignored.
func NewMerger() *pebble.Merger {
	return &pebble.Merger{
		Name: MergerName,
		Merge: func(key, value []byte) (pebble.ValueMerger, error) {
			m := newChessMerger()
			m.absorbNewer(value)
			return m, nil
		},
	}
}

// chessMerger accumulates (field, value) pairs keyed by field code, ordered
// with a btree so Finish produces deterministic output regardless of
// operand arrival order — grounded on third_party/NonLockingReadMap's use
// of an ordered structure for a read-mostly collection, adapted here to the
// compaction-time merge path instead of a live read map.
type chessMerger struct {
	tree *btree.BTreeG[fieldEntry]
}

type fieldEntry struct {
	field int16
	value int16
}

func fieldLess(a, b fieldEntry) bool { return a.field < b.field }

func newChessMerger() *chessMerger {
	return &chessMerger{tree: btree.NewG(8, fieldLess)}
}

// absorbNewer records entries from a value known to be newer than anything
// already in the tree: it always overwrites, since the newest value for a
// field always wins (first-occurrence-wins scanning from the newest side).
// A blob whose length isn't a whole number of entries is malformed and is
// skipped wholesale rather than partially decoded, matching t_hash.h's
// get_hash_bytes (size%4 != 0 => -1 => the whole operand is dropped).
func (m *chessMerger) absorbNewer(blob []byte) {
	if len(blob)%EntrySize != 0 {
		return
	}
	for _, e := range Decode(blob) {
		m.tree.ReplaceOrInsert(fieldEntry{field: e.Field, value: e.Value})
	}
}

// absorbOlder records entries from a value known to be older: only fields
// not already present are added, since whatever is already in the tree
// came from a newer operand and must win. Malformed blobs are skipped
// wholesale, same as absorbNewer.
func (m *chessMerger) absorbOlder(blob []byte) {
	if len(blob)%EntrySize != 0 {
		return
	}
	for _, e := range Decode(blob) {
		if _, found := m.tree.Get(fieldEntry{field: e.Field}); !found {
			m.tree.ReplaceOrInsert(fieldEntry{field: e.Field, value: e.Value})
		}
	}
}

// MergeNewer implements pebble.ValueMerger: value arrived after the merger
// was seeded, but is newer than everything already folded in.
func (m *chessMerger) MergeNewer(value []byte) error {
	// entries already in the tree were folded in under the (incorrect)
	// assumption they were newest; since value is actually newer, it must
	// win on conflicts.
	m.absorbNewer(value)
	return nil
}

// MergeOlder implements pebble.ValueMerger: value is older than the
// merger's current contents.
func (m *chessMerger) MergeOlder(value []byte) error {
	m.absorbOlder(value)
	return nil
}

// Finish implements pebble.ValueMerger. includesBase distinguishes a full
// merge (against the base value / no more operands below) from a partial
// merge performed mid-compaction (original's PartialMerge): only a full
// merge drops tombstones, matching chess_filter.h's "tombstones are only
// ever removed once we know no older value can resurrect the field".
func (m *chessMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	entries := make([]Entry, 0, m.tree.Len())
	m.tree.Ascend(func(fe fieldEntry) bool {
		if includesBase && fe.value == Tombstone {
			return true
		}
		entries = append(entries, Entry{Field: fe.field, Value: fe.value})
		return true
	})
	return Encode(entries), nil, nil
}
