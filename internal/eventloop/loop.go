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

//go:build linux

// Package eventloop is the accept loop and per-connection I/O driver
// (spec.md §4.5-4.6, C6): K loop threads, each with its own epoll
// instance, least-loaded accept-fairness (each new connection goes to the
// loop that currently owns the fewest), and a state machine per
// connection (Reading -> Dispatching -> AwaitingWorker -> Reading).
package eventloop

import (
	"net"
	"os"
	"sync/atomic"

	"github.com/launix-de/packdb/internal/conn"
	"github.com/launix-de/packdb/internal/dispatch"
	"github.com/launix-de/packdb/internal/netpoll"
	"github.com/launix-de/packdb/internal/proto"
)

// resultMsg crosses from a worker goroutine back to the owning loop thread
// through a buffered channel, which stands in for the original's
// eventfd-based cross-thread wakeup (spec.md §4.6): Go's runtime scheduler
// makes a channel send/receive as cheap as the eventfd write/read pair
// without needing raw fd plumbing.
type resultMsg struct {
	c          *conn.Conn
	generation uint64
	resp       proto.Response
}

// Loop owns one epoll instance, a set of live connections, and the
// channel workers post results back through.
type Loop struct {
	poller  *netpoll.Poller
	conns   map[int32]*conn.Conn
	fds     map[*conn.Conn]int32
	results chan resultMsg
	disp    *dispatch.Dispatcher
	quit    atomic.Bool
}

func NewLoop(disp *dispatch.Dispatcher) (*Loop, error) {
	p, err := netpoll.New()
	if err != nil {
		return nil, err
	}
	return &Loop{
		poller:  p,
		conns:   make(map[int32]*conn.Conn),
		fds:     make(map[*conn.Conn]int32),
		results: make(chan resultMsg, 1024),
		disp:    disp,
	}, nil
}

// ConnCount implements the "fewest connections" accept-fairness metric
// (spec.md §4.6) the acceptor consults across all loops.
func (l *Loop) ConnCount() int { return len(l.conns) }

// Adopt registers a freshly accepted socket's fd with this loop's poller.
func (l *Loop) Adopt(fd int32, c *conn.Conn) error {
	if err := l.poller.Add(fd, false); err != nil {
		return err
	}
	l.conns[fd] = c
	l.fds[c] = fd
	return nil
}

func (l *Loop) drop(fd int32, c *conn.Conn) {
	l.poller.Del(fd)
	delete(l.conns, fd)
	delete(l.fds, c)
	c.Close()
}

// Stop requests the loop's Run goroutine to return after its current
// iteration.
func (l *Loop) Stop() { l.quit.Store(true) }

// Run is the per-iteration algorithm from spec.md §4.6: poll for
// readiness, drain any worker results posted since the last iteration,
// then service ready connections.
func (l *Loop) Run() {
	events := make([]netpoll.Event, 0, 256)
	for !l.quit.Load() {
		l.drainResults()

		var err error
		events, err = l.poller.Wait(events, 50)
		if err != nil {
			continue
		}
		for _, ev := range events {
			c, ok := l.conns[ev.Fd]
			if !ok {
				continue
			}
			if ev.Err {
				l.drop(ev.Fd, c)
				continue
			}
			if ev.In {
				l.handleReadable(ev.Fd, c)
			}
		}
	}
}

func (l *Loop) drainResults() {
	for {
		select {
		case r := <-l.results:
			l.applyResult(r)
		default:
			return
		}
	}
}

// applyResult checks the connection's generation before writing (spec.md
// §5's stale cross-thread result guard): if the connection was closed and
// possibly reused since the job was submitted, the result is discarded.
func (l *Loop) applyResult(r resultMsg) {
	if r.c.CurrentGeneration() != r.generation {
		return
	}
	l.finishRequest(r.c, r.resp)
}

func (l *Loop) handleReadable(fd int32, c *conn.Conn) {
	buf := make([]byte, 64*1024)
	n, err := c.Socket.Read(buf)
	if n > 0 {
		c.In.Append(buf[:n])
	}
	if err != nil || n == 0 {
		l.drop(fd, c)
		return
	}

	for {
		if !c.DetectDialect() {
			return // need more bytes to tell native from RESP
		}
		req, perr := c.Framer.TryParse(c.In)
		if perr != nil {
			l.drop(fd, c)
			return
		}
		if req == nil {
			return // need more bytes
		}

		gen := c.CurrentGeneration()
		res := l.disp.Dispatch(c, req, func(resp proto.Response) {
			l.results <- resultMsg{c: c, generation: gen, resp: resp}
		})
		if res.Async {
			if fdv, ok := l.fds[c]; ok {
				l.poller.Mod(fdv, false, false) // clear IN interest until the worker posts back
			}
			return
		}
		if res.Backend {
			delete(l.conns, fd)
			delete(l.fds, c)
			l.poller.Del(fd)
			return
		}
		l.finishRequest(c, res.Response)
	}
}

func (l *Loop) finishRequest(c *conn.Conn, resp proto.Response) {
	c.Framer.Encode(resp, c.Out)
	l.flush(c)
	if fdv, ok := l.fds[c]; ok {
		l.poller.Mod(fdv, true, false) // re-arm IN now that the request is done
	}
}

func (l *Loop) flush(c *conn.Conn) {
	data := c.Out.Unread()
	if len(data) == 0 {
		return
	}
	n, err := c.Socket.Write(data)
	if err != nil {
		return
	}
	c.Out.Consume(n)
}

// FdOf exposes the raw fd for a net.Conn obtained via a *net.TCPConn, used
// by the acceptor to register with the right loop's poller. Non-TCP
// connections (e.g. in tests) are not file-descriptor backed and return
// ok=false.
func FdOf(nc net.Conn) (int32, bool) {
	type fileConn interface {
		File() (*os.File, error)
	}
	fc, ok := nc.(fileConn)
	if !ok {
		return 0, false
	}
	f, err := fc.File()
	if err != nil {
		return 0, false
	}
	return int32(f.Fd()), true
}
