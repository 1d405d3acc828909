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
	"strconv"

	"github.com/launix-de/packdb/internal/buffer"
)

// LooksLikeRESP reports whether the first non-whitespace byte of data is
// '*', the signal (spec.md §4.3) that a connection should switch to RESP
// mode for its lifetime.
func LooksLikeRESP(data []byte) (yes bool, needMore bool) {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '*':
			return true, false
		default:
			return false, false
		}
	}
	return false, true
}

// RESPFramer implements the inline Redis RESP dialect (spec.md §4.3). It is
// stateful per-connection: Encode needs to know the strategy and translated
// request of the command it is replying to (mget/hmget key alignment,
// zrange/zscan WITHSCORES stripping), so each connection gets its own
// instance rather than sharing one like NativeFramer.
type RESPFramer struct {
	desc      CommandDesc
	found     bool
	nativeReq Request
}

func (f *RESPFramer) TryParse(buf *buffer.Buffer) (Request, error) {
	req, consumed, err := parseRESPOnce(buf.Unread())
	if err != nil {
		return nil, err
	}
	if consumed == 0 {
		return nil, nil
	}
	buf.Consume(consumed)
	if len(req) == 0 {
		return nil, ErrParse
	}

	name := Lower(string(req[0]))
	desc, ok := lookupCommand(name)
	f.found = ok
	if !ok {
		// unknown to the translation table: pass the (lowercased) name
		// through unchanged, args as-is (original's convert_req() default
		// for a cmd_table miss).
		out := make(Request, len(req))
		copy(out, req)
		out[0] = []byte(name)
		f.nativeReq = out
		return out, nil
	}
	f.desc = desc
	native, okArity := translate(desc, req)
	if !okArity {
		// translation didn't apply (wrong arity): fall through to native
		// dispatch so it reports its own arity error, but keep desc/found
		// so Encode still knows the reply shape.
		native = req
		native[0] = []byte(desc.NativeCmd)
	}
	f.nativeReq = native
	return native, nil
}

func parseRESPOnce(data []byte) (Request, int, error) {
	line, n, ok := readLine(data)
	if !ok {
		return nil, 0, nil
	}
	if len(line) == 0 || line[0] != '*' {
		return nil, 0, ErrParse
	}
	count, err := strconv.Atoi(string(line[1:]))
	if err != nil || count <= 0 {
		return nil, 0, ErrParse
	}
	pos := n
	items := make(Request, 0, count)
	for i := 0; i < count; i++ {
		bulkLine, bn, ok := readLine(data[pos:])
		if !ok {
			return nil, 0, nil
		}
		if len(bulkLine) == 0 || bulkLine[0] != '$' {
			return nil, 0, ErrParse
		}
		blen, err := strconv.Atoi(string(bulkLine[1:]))
		if err != nil || blen < 0 {
			return nil, 0, ErrParse
		}
		pos += bn
		if pos+blen > len(data) {
			return nil, 0, nil
		}
		payload := make([]byte, blen)
		copy(payload, data[pos:pos+blen])
		pos += blen
		term, tn, ok := readLine(data[pos:])
		if !ok {
			return nil, 0, nil
		}
		if len(term) != 0 {
			return nil, 0, ErrParse
		}
		pos += tn
		items = append(items, payload)
		if pos > MaxPacketSize {
			return nil, 0, ErrParse
		}
	}
	return items, pos, nil
}

// readLine scans data for a line terminated by LF (CRLF tolerated, per
// spec.md §4.3's "LF-only line endings are tolerated"). It returns the line
// content (without the terminator), the number of bytes consumed including
// the terminator, and ok=false if no terminator was found yet.
func readLine(data []byte) (line []byte, consumed int, ok bool) {
	idx := indexByte(data, '\n')
	if idx < 0 {
		return nil, 0, false
	}
	end := idx
	if end > 0 && data[end-1] == '\r' {
		end--
	}
	return data[:end], idx + 1, true
}

func (f *RESPFramer) Encode(resp Response, out *buffer.Buffer) {
	if resp.Status != StatusOK {
		switch resp.Status {
		case StatusError, StatusFail, StatusClientError:
			out.AppendString("-ERR ")
			if len(resp.Payload) > 0 {
				out.AppendString(resp.Payload[0])
			}
			out.AppendString("\r\n")
		case StatusNotFound:
			out.AppendString("$-1\r\n")
		case StatusNoAuth:
			out.AppendString("-NOAUTH ")
			if len(resp.Payload) > 0 {
				out.AppendString(resp.Payload[0])
			}
			out.AppendString("\r\n")
		default:
			out.AppendString("-ERR server error\r\n")
		}
		return
	}

	if !f.found {
		// command unknown to the RESP table but understood natively:
		// pass the payload through as a multi-bulk reply.
		writeMultiBulk(out, resp.Payload)
		return
	}

	if f.desc.RedisCmd == "ping" {
		out.AppendString("+PONG\r\n")
		return
	}

	switch f.desc.Reply {
	case ReplyStatus:
		out.AppendString("+OK\r\n")
		return
	case ReplyBulk:
		if len(resp.Payload) >= 1 {
			writeBulk(out, resp.Payload[0])
		} else {
			out.AppendString("$0\r\n")
		}
		return
	case ReplyInt:
		if len(resp.Payload) >= 1 {
			out.AppendString(":")
			out.AppendString(resp.Payload[0])
			out.AppendString("\r\n")
		} else {
			out.AppendString("$0\r\n")
		}
		return
	}

	if f.desc.Strategy == StrategyMGet || f.desc.Strategy == StrategyHMGet {
		f.encodeMGet(out, resp.Payload)
		return
	}

	// ReplyMultiBulk: generic bulk array, with WITHSCORES stripping for the
	// zrange/zscan family (spec.md §4.3).
	withscores := f.multiBulkWithScores()
	if withscores {
		out.AppendString("*")
		out.AppendString(strconv.Itoa(len(resp.Payload)))
		out.AppendString("\r\n")
		for _, v := range resp.Payload {
			writeBulk(out, v)
		}
	} else {
		out.AppendString("*")
		out.AppendString(strconv.Itoa((len(resp.Payload) + 1) / 2))
		out.AppendString("\r\n")
		for i := 0; i < len(resp.Payload); i += 2 {
			writeBulk(out, resp.Payload[i])
		}
	}
}

func (f *RESPFramer) multiBulkWithScores() bool {
	switch f.desc.Strategy {
	case StrategyZRange, StrategyZRevRange:
		return len(f.nativeReq) >= 5 && string(f.nativeReq[4]) == "withscores"
	case StrategyZRangeByScore, StrategyZRevRangeByScore:
		return len(f.nativeReq) >= 1 && string(f.nativeReq[len(f.nativeReq)-1]) == "withscores"
	default:
		return true // hgetall and other REPLY_MULTI_BULK commands emit every item
	}
}

// encodeMGet aligns the (possibly sparse) hash-style key/value response
// onto the originally requested key order, emitting $-1 for keys the
// backend didn't return (spec.md §4.3 "align response to requested keys").
func (f *RESPFramer) encodeMGet(out *buffer.Buffer, payload []string) {
	if len(payload)%2 != 0 {
		out.AppendString("*0\r\n")
		return
	}
	reqStart := 1
	if f.desc.Strategy == StrategyHMGet {
		reqStart = 2
	}
	keys := f.nativeReq[reqStart:]
	out.AppendString("*")
	out.AppendString(strconv.Itoa(len(keys)))
	out.AppendString("\r\n")

	// payload is "key,value,key,value,..." pairs, only for keys the backend
	// found; walk it in lockstep with the requested key order, emitting
	// $-1 for any requested key the backend skipped.
	pi := 0
	for _, reqKey := range keys {
		if pi >= len(payload) || string(reqKey) != payload[pi] {
			out.AppendString("$-1\r\n")
			continue
		}
		writeBulk(out, payload[pi+1])
		pi += 2
	}
}

func writeBulk(out *buffer.Buffer, s string) {
	out.AppendString("$")
	out.AppendString(strconv.Itoa(len(s)))
	out.AppendString("\r\n")
	out.AppendString(s)
	out.AppendString("\r\n")
}

func writeMultiBulk(out *buffer.Buffer, payload []string) {
	out.AppendString("*")
	out.AppendString(strconv.Itoa(len(payload)))
	out.AppendString("\r\n")
	for _, v := range payload {
		writeBulk(out, v)
	}
}
