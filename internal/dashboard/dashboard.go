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

// Package dashboard is the admin HTTP+websocket surface SPEC_FULL.md §6
// adds (ambient, not a wire-protocol requirement of spec.md itself):
// GET /stats for a one-shot snapshot and GET /ws for a live push feed,
// adapted from the teacher's HTTP glue in scm/network.go. It is started
// only when dashboard.addr is configured, listens on that address, and is
// gated by the same ipfilter allow/deny list the native listener uses.
package dashboard

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launix-de/packdb/internal/ipfilter"
	"github.com/launix-de/packdb/internal/logging"
	"github.com/launix-de/packdb/internal/replication"
	"github.com/launix-de/packdb/internal/store"
)

// Stats is the JSON shape both /stats and the websocket push feed use.
type Stats struct {
	Version      string   `json:"version"`
	NumSSTables  int64    `json:"num_sstables"`
	BinlogSeq    uint64   `json:"binlog_seq"`
	Followers    int      `json:"followers"`
	FollowerList []string `json:"follower_list,omitempty"`
}

// Server wires a *store.Store and optional *replication.Manager onto the
// dashboard's two handlers.
type Server struct {
	Store   *store.Store
	Repl    *replication.Manager // nil if replication isn't configured
	Filter  *ipfilter.Filter
	Version string

	upgrader websocket.Upgrader
}

func New(s *store.Store, repl *replication.Manager, filter *ipfilter.Filter, version string) *Server {
	return &Server{
		Store:   s,
		Repl:    repl,
		Filter:  filter,
		Version: version,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // admin surface, gated by ipfilter below
		},
	}
}

func (d *Server) snapshot() Stats {
	s := Stats{Version: d.Version}
	m := d.Store.DB.Metrics()
	s.NumSSTables = m.NumSSTables()
	s.BinlogSeq = d.Store.Log.CurrentSeq()
	if d.Repl != nil {
		for _, f := range d.Repl.Followers() {
			s.Followers++
			s.FollowerList = append(s.FollowerList, f.Remote)
		}
	}
	return s
}

func (d *Server) permitted(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ipfilter.IsLoopback(host) {
		return true
	}
	return d.Filter != nil && d.Filter.Permitted(host)
}

func (d *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !d.permitted(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.snapshot())
}

func (d *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !d.permitted(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("dashboard: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(d.snapshot()); err != nil {
			return // client disconnected
		}
	}
}

// Handler returns the http.Handler to mount (or serve standalone via
// http.ListenAndServe on a loopback-bound address).
func (d *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", d.handleStats)
	mux.HandleFunc("/ws", d.handleWS)
	return mux
}
