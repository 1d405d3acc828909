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

// Package conn holds per-socket state for the event loop (spec.md §4.4, C4):
// buffering, wire-dialect auto-detection, auth/readonly flags and the
// generation counter cross-thread worker results are checked against.
package conn

import (
	"net"
	"sync/atomic"

	"github.com/launix-de/packdb/internal/buffer"
	"github.com/launix-de/packdb/internal/proto"
)

// State machine states (spec.md §4.5).
type State int

const (
	StateReading State = iota
	StateDispatching
	StateAwaitingWorker
	StateClosing
)

var connCounter uint64

// nextID hands out small monotonic connection identifiers. Grounded on
// storage/fast_uuid.go's low-entropy-safe counter idiom, simplified since a
// connection ID only needs to be unique within one process lifetime, not
// globally.
func nextID() uint64 {
	return atomic.AddUint64(&connCounter, 1)
}

// Conn is the per-socket state the event loop and dispatcher share. A Conn
// is only ever touched by the loop goroutine that owns it and, while a
// THREAD command is outstanding, by the worker processing that one request;
// the two never run concurrently for the same Conn (spec.md §5's accept
// fairness / single-flight-per-connection invariant).
type Conn struct {
	ID     uint64
	Socket net.Conn
	Remote string

	In  *buffer.Buffer
	Out *buffer.Buffer

	Framer      proto.Framer
	RESPLocked  bool // wire dialect auto-detect has already committed
	Authed      bool
	ReadonlyCap bool // connection is restricted to READ commands (replication follower link, etc.)

	State State

	// Generation increments each time the connection is closed/reused so a
	// worker result racing a close can be detected as stale (spec.md §5's
	// "generation" glossary entry).
	Generation uint64
}

// New wraps an accepted socket. The wire dialect starts as native; the
// first TryParse call may switch it to RESP (spec.md §4.3).
func New(socket net.Conn) *Conn {
	remote := ""
	if a := socket.RemoteAddr(); a != nil {
		remote = NormalizeRemote(a.String())
	}
	return &Conn{
		ID:     nextID(),
		Socket: socket,
		Remote: remote,
		In:     buffer.New(),
		Out:    buffer.New(),
		Framer: proto.NativeFramer{},
		State:  StateReading,
	}
}

// NormalizeRemote strips the IPv6-mapped-IPv4 prefix ("::ffff:") so
// allow/deny lists and logs see the plain dotted-quad form (spec.md §6.3).
func NormalizeRemote(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	const prefix = "::ffff:"
	if len(host) > len(prefix) && host[:len(prefix)] == prefix {
		return host[len(prefix):]
	}
	return host
}

// DetectDialect inspects the unread bytes in c.In, before the first
// request has been parsed, and switches to RESPFramer if the stream looks
// like inline Redis protocol. It may be called before every TryParse: once
// the dialect has been decided it returns true without looking at the
// input again (spec.md §4.3: the dialect is fixed for the connection's
// lifetime).
func (c *Conn) DetectDialect() (decided bool) {
	if c.RESPLocked {
		return true
	}
	isResp, needMore := proto.LooksLikeRESP(c.In.Unread())
	if needMore {
		return false
	}
	if isResp {
		c.Framer = &proto.RESPFramer{}
	}
	c.RESPLocked = true
	return true
}

// Close marks the connection closed and bumps its generation so that any
// worker-pool result still in flight for the old generation is discarded
// by the event loop (spec.md §5).
func (c *Conn) Close() {
	c.State = StateClosing
	atomic.AddUint64(&c.Generation, 1)
	c.In.Release()
	c.Out.Release()
	_ = c.Socket.Close()
}

// CurrentGeneration is read by the event loop when it hands a request to
// the worker pool, and compared against the connection's Generation again
// when the result comes back.
func (c *Conn) CurrentGeneration() uint64 {
	return atomic.LoadUint64(&c.Generation)
}
