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

// Package dispatch implements the per-request routing pipeline (spec.md
// §4.9, C9): auth gate, command lookup, LINK handoff, readonly rejection,
// THREAD enqueue, and the process-wide G lock with its inverted polarity
// (grounded on original_source/src/net/worker.cpp's g_proc_mutex use).
package dispatch

import (
	"strconv"
	"sync"

	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/conn"
	"github.com/launix-de/packdb/internal/ipfilter"
	"github.com/launix-de/packdb/internal/logging"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/workerpool"
)

// GLock is the process-wide reader/writer gate. Its polarity is inverted
// relative to the usual RWMutex convention: WRITE|BLOCK commands take the
// exclusive (Lock) side because they must run alone, plain WRITE commands
// take the shared (RLock) side because independent keys never conflict,
// and READ commands take no lock at all (Pebble's own MVCC snapshots make
// that safe). This mirrors worker.cpp exactly: BLOCK -> lock(),
// WRITE -> lock_shared(), READ -> nothing.
type GLock struct {
	mu sync.RWMutex
}

func (g *GLock) acquire(d command.Desc) (release func()) {
	switch {
	case d.Is(command.WRITE) && d.Is(command.BLOCK):
		g.mu.Lock()
		return g.mu.Unlock
	case d.Is(command.WRITE):
		g.mu.RLock()
		return g.mu.RUnlock
	default:
		return func() {}
	}
}

// Dispatcher routes one parsed request to its handler.
type Dispatcher struct {
	Table    *command.Table
	GLock    *GLock
	Pool     *workerpool.Pool
	Readonly func() bool
	// CheckAuth reports whether c is authorized to run non-auth commands.
	CheckAuth func(c *conn.Conn) bool
}

func New(table *command.Table, pool *workerpool.Pool, readonly func() bool, checkAuth func(c *conn.Conn) bool) *Dispatcher {
	return &Dispatcher{
		Table:     table,
		GLock:     &GLock{},
		Pool:      pool,
		Readonly:  readonly,
		CheckAuth: checkAuth,
	}
}

// Result is what Dispatch hands back to the event loop: either an immediate
// response, a signal that the command is running asynchronously on a
// worker (the loop should clear IN interest and await the job's callback),
// or a signal that a LINK handler took ownership of the connection.
type Result struct {
	Response proto.Response
	Async    bool
	Backend  bool
}

// Dispatch runs the routing pipeline in spec.md §4.9's numbered steps.
// onAsyncDone is invoked from a worker goroutine once a THREAD command
// finishes; the event loop is responsible for re-checking the connection's
// generation before acting on it (spec.md §5).
func (d *Dispatcher) Dispatch(c *conn.Conn, req proto.Request, onAsyncDone func(proto.Response)) Result {
	name := req.Command()
	if name != "auth" && !d.CheckAuth(c) {
		return Result{Response: proto.NoAuth("authentication required")}
	}

	desc, ok := d.Table.Lookup(name)
	if !ok {
		return Result{Response: proto.ClientError("unknown command: " + name)}
	}

	switch name {
	case "list_allow_ip", "add_allow_ip", "del_allow_ip", "migrate_import":
		if !ipfilter.IsLoopback(c.Remote) {
			return Result{Response: proto.NoAuth("admin command allowed from localhost only")}
		}
	}

	if desc.Is(command.LINK) {
		resp, backend := desc.Link(c, req)
		return Result{Response: resp, Backend: backend}
	}

	if d.Readonly != nil && d.Readonly() && desc.Is(command.WRITE) {
		return Result{Response: proto.ClientError("Forbidden Command")}
	}

	reqID := strconv.FormatUint(c.ID, 10) + ":" + name

	if desc.Is(command.THREAD) {
		gen := c.CurrentGeneration()
		job := workerpool.Job{
			ConnID:     c.ID,
			Generation: gen,
			Run: func() {
				var resp proto.Response
				logging.WithRequestID(reqID, func() {
					release := d.GLock.acquire(desc)
					resp = desc.Handler(req)
					release()
				})
				onAsyncDone(resp)
			},
		}
		if d.Pool.Submit(job) {
			return Result{Async: true}
		}
		// ring momentarily full: run inline on the loop thread rather than
		// blocking the caller (spec.md §4.7).
	}

	var resp proto.Response
	logging.WithRequestID(reqID, func() {
		release := d.GLock.acquire(desc)
		resp = desc.Handler(req)
		release()
	})
	return Result{Response: resp}
}
