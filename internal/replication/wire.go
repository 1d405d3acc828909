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

package replication

import (
	"bytes"
	"strconv"

	"github.com/launix-de/packdb/internal/binlog"
	"github.com/launix-de/packdb/internal/buffer"
)

// encodeBinlogRecord reuses the native wire's own length-prefixed record
// framing (spec.md §4.2) to ship one replayed mutation down a sync140
// connection, so a follower's reader is the very same parser a regular
// client connection uses.
func encodeBinlogRecord(rec binlog.Record) []byte {
	buf := buffer.New()
	defer buf.Release()

	buf.AppendRecord([]byte(strconv.FormatUint(rec.Seq, 10)))
	switch rec.Op {
	case binlog.OpPut:
		buf.AppendRecord([]byte("set"))
	case binlog.OpDelete:
		buf.AppendRecord([]byte("del"))
	case binlog.OpMerge:
		buf.AppendRecord([]byte("merge"))
	}
	buf.AppendRecord(rec.Key)
	buf.AppendRecord(rec.Value)
	buf.AppendString("\n")

	out := append([]byte{}, buf.Unread()...)
	return out
}

// encodeBinlogControl ships an out-of-band control line (e.g.
// "resync_required") using the same record framing so a follower's parser
// never needs a second mode to understand it.
func encodeBinlogControl(msg string) []byte {
	buf := buffer.New()
	defer buf.Release()
	buf.AppendRecord([]byte("0"))
	buf.AppendRecord([]byte("control"))
	buf.AppendRecord([]byte(msg))
	buf.AppendString("\n")
	out := append([]byte{}, buf.Unread()...)
	return out
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
