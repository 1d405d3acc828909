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

// Package command holds the name -> (flags, handler) table the dispatcher
// consults (spec.md §4.8, C8).
package command

import (
	"github.com/launix-de/packdb/internal/conn"
	"github.com/launix-de/packdb/internal/proto"
)

// Flag classifies a command's concurrency and dispatch shape.
type Flag uint8

const (
	READ Flag = 1 << iota
	WRITE
	BLOCK // intensifies WRITE: needs exclusive G-lock access
	THREAD
	LINK // handler takes the raw connection (streaming backends)
)

// Handler is the plain command shape: (request) -> response. The server
// reference is closed over by whoever registers the command (it is a
// *store.Store, *config.Config, etc., but command stays independent of
// those packages to avoid an import cycle).
type Handler func(req proto.Request) proto.Response

// LinkHandler is the handoff shape used by LINK-flagged commands like
// dump/sync (spec.md §6's replication backends): it owns the connection and
// returns true if it has taken over the socket (PROC_BACKEND), in which
// case the event loop stops polling it on the normal path.
type LinkHandler func(c *conn.Conn, req proto.Request) (resp proto.Response, backend bool)

// Desc is one registered command.
type Desc struct {
	Name    string
	Flags   Flag
	Handler Handler
	Link    LinkHandler
}

func (d Desc) Is(f Flag) bool { return d.Flags&f != 0 }

// Table is a name -> Desc registry. Lookup is case-sensitive on the
// already-lowercased key; callers must lowercase with proto.Lower first.
type Table struct {
	entries map[string]Desc
}

func NewTable() *Table {
	return &Table{entries: make(map[string]Desc)}
}

// ParseFlags turns a flag_string like "wbt" into the Flag bitmask, per
// spec.md §4.8: r->READ, w->WRITE, b->BLOCK, t->THREAD, l->LINK,
// p->LINK|BACKEND (BACKEND has no independent bit here: a LINK handler
// signals backend handoff through its own return value instead).
func ParseFlags(flagString string) Flag {
	var f Flag
	for _, c := range flagString {
		switch c {
		case 'r':
			f |= READ
		case 'w':
			f |= WRITE
		case 'b':
			f |= BLOCK
		case 't':
			f |= THREAD
		case 'l', 'p':
			f |= LINK
		}
	}
	return f
}

// SetProc registers a plain handler under name with the given flag string.
func (t *Table) SetProc(name, flagString string, h Handler) {
	t.entries[name] = Desc{Name: name, Flags: ParseFlags(flagString), Handler: h}
}

// SetLinkProc registers a LINK-flagged handler that owns the connection.
func (t *Table) SetLinkProc(name, flagString string, h LinkHandler) {
	t.entries[name] = Desc{Name: name, Flags: ParseFlags(flagString) | LINK, Link: h}
}

// Lookup finds a command by its already-lowercased name.
func (t *Table) Lookup(name string) (Desc, bool) {
	d, ok := t.entries[name]
	return d, ok
}
