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

package proto

import (
	"errors"

	"github.com/launix-de/packdb/internal/buffer"
)

// MaxPacketSize bounds a single request's total parsed bytes (spec.md §4.2).
const MaxPacketSize = 128 * 1024 * 1024

// ErrParse is returned by Framer.TryParse on a fatal, connection-closing
// framing error.
var ErrParse = errors.New("native: fatal parse error")

// Framer is the polymorphic capability design note §9 calls for: a
// try-parse/encode pair with one implementation per wire dialect.
type Framer interface {
	// TryParse attempts to parse one request out of buf's unread region.
	// It returns (nil, nil) if more bytes are needed, (req, nil) on a
	// complete request (consuming the bytes it used from buf), or
	// (nil, ErrParse) on a fatal syntax error.
	TryParse(buf *buffer.Buffer) (Request, error)
	// Encode appends the wire encoding of resp to out.
	Encode(resp Response, out *buffer.Buffer)
}

// NativeFramer implements the line-oriented native protocol (spec.md §4.2):
// zero or more leading blank lines are skipped, then a sequence of
// <len>\n<payload>\n records terminated by a blank line. A request with no
// records is a keep-alive and is ignored (TryParse loops internally, so
// callers only ever see NeedMore or a non-empty request).
type NativeFramer struct{}

func (NativeFramer) TryParse(buf *buffer.Buffer) (Request, error) {
	for {
		req, consumed, err := parseNativeOnce(buf.Unread())
		if err != nil {
			return nil, err
		}
		if consumed == 0 {
			return nil, nil // need more bytes
		}
		buf.Consume(consumed)
		if req == nil {
			continue // keep-alive: blank line with no records, try again
		}
		return req, nil
	}
}

// parseNativeOnce scans one message (sequence of records terminated by a
// blank line) out of data. It returns the request (nil if the message had
// zero records), how many bytes were consumed, and an error on malformed
// input. consumed == 0 means "not enough data yet".
func parseNativeOnce(data []byte) (Request, int, error) {
	pos := 0
	var req Request
	for {
		if pos >= len(data) {
			return nil, 0, nil
		}
		// blank line (LF or CRLF) terminates the message
		if data[pos] == '\n' {
			return req, pos + 1, nil
		}
		if data[pos] == '\r' {
			if pos+1 >= len(data) {
				return nil, 0, nil
			}
			if data[pos+1] != '\n' {
				return nil, 0, ErrParse
			}
			return req, pos + 2, nil
		}
		// parse one record: <decimal len>\n<payload>\n
		lineEnd := indexByte(data[pos:], '\n')
		if lineEnd < 0 {
			if len(data)-pos > 20 {
				return nil, 0, ErrParse // length line unreasonably long
			}
			return nil, 0, nil
		}
		lenStr := data[pos : pos+lineEnd]
		if len(lenStr) == 0 || len(lenStr) > 20 {
			return nil, 0, ErrParse
		}
		n := 0
		for _, c := range lenStr {
			if c < '0' || c > '9' {
				return nil, 0, ErrParse
			}
			n = n*10 + int(c-'0')
			if n > MaxPacketSize {
				return nil, 0, ErrParse
			}
		}
		recordStart := pos + lineEnd + 1
		if recordStart+n+1 > len(data) {
			if recordStart+n+1 > MaxPacketSize {
				return nil, 0, ErrParse
			}
			return nil, 0, nil
		}
		payloadEnd := recordStart + n
		// record terminator after the payload: LF or CRLF (spec.md §4.2).
		termLen := 1
		switch data[payloadEnd] {
		case '\n':
		case '\r':
			if payloadEnd+1 >= len(data) {
				if payloadEnd+1 > MaxPacketSize {
					return nil, 0, ErrParse
				}
				return nil, 0, nil // need the \n to know if this is valid
			}
			if data[payloadEnd+1] != '\n' {
				return nil, 0, ErrParse
			}
			termLen = 2
		default:
			return nil, 0, ErrParse
		}
		payload := make([]byte, n)
		copy(payload, data[recordStart:payloadEnd])
		req = append(req, payload)
		pos = payloadEnd + termLen
		if pos > MaxPacketSize {
			return nil, 0, ErrParse
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func (NativeFramer) Encode(resp Response, out *buffer.Buffer) {
	for _, s := range resp.Strings() {
		out.AppendRecord([]byte(s))
	}
	out.AppendString("\n")
}
