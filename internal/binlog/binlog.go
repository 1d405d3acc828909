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

// Package binlog records every mutating operation in a sequence-keyed range
// of the same Pebble keyspace (spec.md §4.12, C12), emulating the
// original's separate RocksDB column family with a key prefix instead,
// since Pebble has no column family concept. Replication followers resume
// from a sequence number via Since.
package binlog

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// Prefix is prepended to every binlog key so it sorts into its own
// contiguous range, keeping it out of the way of application keys without
// needing a second Pebble instance.
var Prefix = []byte{0x01, 'b', 'l', 'o', 'g', ':'}

// Op mirrors the three mutation shapes a replication follower must replay.
type Op uint8

const (
	OpPut Op = iota
	OpDelete
	OpMerge
)

// Record is one logged mutation.
type Record struct {
	Seq   uint64
	Op    Op
	Key   []byte
	Value []byte
}

func seqKey(seq uint64) []byte {
	k := make([]byte, len(Prefix)+8)
	copy(k, Prefix)
	binary.BigEndian.PutUint64(k[len(Prefix):], seq)
	return k
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+4+len(r.Key)+4+len(r.Value))
	buf[0] = byte(r.Op)
	binary.BigEndian.PutUint32(buf[1:], uint32(len(r.Key)))
	off := 5
	copy(buf[off:], r.Key)
	off += len(r.Key)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Value)))
	off += 4
	copy(buf[off:], r.Value)
	return buf
}

func decodeRecord(seq uint64, raw []byte) Record {
	op := Op(raw[0])
	klen := binary.BigEndian.Uint32(raw[1:])
	off := 5
	key := raw[off : off+int(klen)]
	off += int(klen)
	vlen := binary.BigEndian.Uint32(raw[off:])
	off += 4
	val := raw[off : off+int(vlen)]
	return Record{Seq: seq, Op: op, Key: key, Value: val}
}

// Log appends sequence-numbered mutation records alongside a Pebble
// database's own data, under a single atomic batch so a crash can never
// split a write from its log entry (spec.md §4.12's "atomic batch commit
// across data+binlog").
type Log struct {
	db  *pebble.DB
	seq uint64
}

func Open(db *pebble.DB) (*Log, error) {
	l := &Log{db: db}
	last, err := l.lastSeq()
	if err != nil {
		return nil, err
	}
	l.seq = last
	return l, nil
}

func (l *Log) lastSeq() (uint64, error) {
	upper := append(append([]byte{}, Prefix...), 0xff)
	it, err := l.db.NewIter(&pebble.IterOptions{LowerBound: Prefix, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	if !it.Last() {
		return 0, nil
	}
	key := it.Key()
	return binary.BigEndian.Uint64(key[len(Prefix):]), nil
}

// Append stages one record into batch and returns the sequence number
// assigned to it. The caller commits batch (which should also carry the
// corresponding data mutation) to make both durable together.
func (l *Log) Append(batch *pebble.Batch, op Op, key, value []byte) uint64 {
	seq := atomic.AddUint64(&l.seq, 1)
	rec := Record{Seq: seq, Op: op, Key: key, Value: value}
	_ = batch.Set(seqKey(seq), encodeRecord(rec), nil)
	return seq
}

// Since streams every record with Seq > after, in order, for a replication
// follower resuming from a known offset (spec.md §6's replication backend,
// "find_next").
func (l *Log) Since(after uint64, fn func(Record) error) error {
	lower := seqKey(after + 1)
	upper := append(append([]byte{}, Prefix...), 0xff)
	it, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		seq := binary.BigEndian.Uint64(it.Key()[len(Prefix):])
		rec := decodeRecord(seq, it.Value())
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// FindNext returns the smallest sequence number still retained that is
// greater than after, used by a follower to detect a gap (the leader has
// already reclaimed records the follower needs) versus a clean resume.
func (l *Log) FindNext(after uint64) (uint64, bool, error) {
	lower := seqKey(after + 1)
	upper := append(append([]byte{}, Prefix...), 0xff)
	it, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, false, err
	}
	defer it.Close()
	if !it.First() {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(it.Key()[len(Prefix):]), true, nil
}

// Reclaim deletes logged records with Seq <= upTo. Its only caller is the
// clear_binlog command, which passes CurrentSeq(); no background task
// reclaims records, and follower acknowledgements are not consulted.
func (l *Log) Reclaim(upTo uint64) error {
	lower := Prefix
	upper := seqKey(upTo + 1)
	return l.db.DeleteRange(lower, upper, pebble.Sync)
}

// CurrentSeq returns the last sequence number handed out.
func (l *Log) CurrentSeq() uint64 { return atomic.LoadUint64(&l.seq) }
