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
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/launix-de/packdb/internal/binlog"
	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/conn"
	"github.com/launix-de/packdb/internal/logging"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/store"
)

// Follower is the minimal per-replica bookkeeping entry spec.md §10
// supplements from src/ssdb/binlog.h's find_next: enough state for a
// restarted follower to resume sync140 at its last acknowledged offset
// instead of only ever supporting a from-zero dump.
type Follower struct {
	ID          uuid.UUID
	Remote      string
	LastAck     uint64
	ConnectedAt time.Time
}

// Manager owns the replication-follower table and, optionally, an Archive
// that ArchiveSegment uploads binlog segments to. Dump snapshots are
// streamed to the follower only, never archived, and nothing in the
// server calls ArchiveSegment (clear_binlog reclaims without archiving).
type Manager struct {
	Store   *store.Store
	Archive Archive // nil disables offsite archival; dump/sync140 still work peer-to-peer

	mu        sync.Mutex
	followers map[uuid.UUID]*Follower

	// uploads bounds the number of concurrent archive uploads so a burst of
	// reclaimed segments can't starve the dump/sync140 LINK handlers for
	// bandwidth (the teacher's worker pool bounds compute the same way this
	// bounds background I/O).
	uploads *semaphore.Weighted
}

func NewManager(s *store.Store, archive Archive) *Manager {
	return &Manager{
		Store:     s,
		Archive:   archive,
		followers: make(map[uuid.UUID]*Follower),
		uploads:   semaphore.NewWeighted(4),
	}
}

func (m *Manager) register(remote string) *Follower {
	f := &Follower{ID: uuid.New(), Remote: remote, ConnectedAt: time.Now()}
	m.mu.Lock()
	m.followers[f.ID] = f
	m.mu.Unlock()
	return f
}

func (m *Manager) unregister(id uuid.UUID) {
	m.mu.Lock()
	delete(m.followers, id)
	m.mu.Unlock()
}

// Followers returns a snapshot of currently connected replicas, backing the
// dashboard's live status view.
func (m *Manager) Followers() []Follower {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Follower, 0, len(m.followers))
	for _, f := range m.followers {
		out = append(out, *f)
	}
	return out
}

// ArchiveSegment uploads a reclaimed binlog range, best-effort: a failed
// upload only costs future repair convenience, not correctness, since the
// leader's own Pebble keyspace remains the durable source of truth until
// binlog.Log.Reclaim is actually called.
func (m *Manager) ArchiveSegment(ctx context.Context, name string, records []binlog.Record) {
	if m.Archive == nil || len(records) == 0 {
		return
	}
	if err := m.uploads.Acquire(ctx, 1); err != nil {
		return
	}
	go func() {
		defer m.uploads.Release(1)
		data, err := CompressSegment(records)
		if err != nil {
			logging.Warnf("replication: compressing segment %s: %v", name, err)
			return
		}
		if err := m.Archive.Store(ctx, name, bytesReader(data)); err != nil {
			logging.Warnf("replication: archiving segment %s: %v", name, err)
		}
	}()
}

// Register installs the dump and sync140 LINK|BACKEND commands (spec.md
// §6's replication backends) into table.
func (m *Manager) Register(table *command.Table) {
	table.SetLinkProc("dump", "rl", func(c *conn.Conn, req proto.Request) (proto.Response, bool) {
		go m.serveDump(c)
		return proto.Response{}, true
	})
	table.SetLinkProc("sync140", "rl", func(c *conn.Conn, req proto.Request) (proto.Response, bool) {
		after := uint64(0)
		if len(req) > 1 {
			if n, err := strconv.ParseUint(string(req[1]), 10, 64); err == nil {
				after = n
			}
		}
		go m.serveSync(c, after)
		return proto.Response{}, true
	})
}

// serveDump streams a full point-in-time snapshot followed directly by a
// sync140 tail starting from the sequence the snapshot was consistent as
// of, so the follower never sees a gap between the bulk load and the
// streaming phase (spec.md §10's replication follower bookkeeping).
func (m *Manager) serveDump(c *conn.Conn) {
	f := m.register(c.Remote)
	defer m.unregister(f.ID)
	defer c.Close()

	seq, err := DumpSnapshot(m.Store.DB, m.Store.Log, c.Socket)
	if err != nil {
		logging.Warnf("replication: dump to %s failed: %v", c.Remote, err)
		return
	}
	logging.Infof("replication: dump to %s complete at seq %d, tailing", c.Remote, seq)
	m.tail(c, f, seq)
}

func (m *Manager) serveSync(c *conn.Conn, after uint64) {
	f := m.register(c.Remote)
	defer m.unregister(f.ID)
	defer c.Close()

	if _, ok, err := m.Store.Log.FindNext(after); err != nil {
		logging.Warnf("replication: sync140 FindNext for %s: %v", c.Remote, err)
		return
	} else if !ok && after != m.Store.Log.CurrentSeq() {
		// the requested offset has already been reclaimed: the follower
		// must fall back to a full dump instead of silently missing writes.
		m.sendControl(c, "resync_required")
		return
	}
	m.tail(c, f, after)
}

// tail streams binlog records as native-framed (seq, op, key, value)
// blocks, op being set, del or merge (see encodeBinlogRecord),
// polling for new writes every tick since Pebble has no native
// change-notification hook the way the original's binlog queue offered a
// condition variable for.
func (m *Manager) tail(c *conn.Conn, f *Follower, after uint64) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	cursor := after
	for range ticker.C {
		err := m.Store.Log.Since(cursor, func(rec binlog.Record) error {
			if err := m.sendRecord(c, rec); err != nil {
				return err
			}
			cursor = rec.Seq
			m.mu.Lock()
			f.LastAck = cursor
			m.mu.Unlock()
			return nil
		})
		if err != nil {
			return // socket write failed; follower disconnected
		}
	}
}

func (m *Manager) sendRecord(c *conn.Conn, rec binlog.Record) error {
	out := encodeBinlogRecord(rec)
	_, err := c.Socket.Write(out)
	return err
}

func (m *Manager) sendControl(c *conn.Conn, msg string) {
	out := encodeBinlogControl(msg)
	_, _ = c.Socket.Write(out)
}
