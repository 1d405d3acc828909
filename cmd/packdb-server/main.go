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

package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/dc0d/onexit"

	"github.com/launix-de/packdb/internal/builtins"
	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/config"
	"github.com/launix-de/packdb/internal/conn"
	"github.com/launix-de/packdb/internal/dashboard"
	"github.com/launix-de/packdb/internal/dispatch"
	"github.com/launix-de/packdb/internal/eventloop"
	"github.com/launix-de/packdb/internal/ipfilter"
	"github.com/launix-de/packdb/internal/logging"
	"github.com/launix-de/packdb/internal/migrate"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/replication"
	"github.com/launix-de/packdb/internal/store"
	"github.com/launix-de/packdb/internal/workerpool"
)

const version = "packdb 0.1"

func main() {
	confPath := flag.String("conf", "packdb.conf", "path to config file")
	dataDir := flag.String("data", "./packdb-data", "data directory")
	loops := flag.Int("loops", 2, "number of event loop threads")
	flag.Parse()

	cfg, err := config.Parse(*confPath)
	if err != nil {
		logging.Errorf("config: %v, falling back to defaults", err)
		cfg = &config.Config{IP: "127.0.0.1", Port: 8888, Workers: runtime.NumCPU(), RingSize: workerpool.DefaultCapacity}
	}

	s, err := store.Open(*dataDir)
	if err != nil {
		logging.Errorf("opening store: %v", err)
		os.Exit(1)
	}
	// onexit runs registered cleanups before os.Exit(1) on a fatal startup
	// error, the same orderly-teardown role it plays in the teacher's
	// storage/settings.go.
	onexit.Register(func() { s.Close() })
	defer s.Close()

	filter := ipfilter.New()
	for _, ip := range cfg.Allow {
		filter.Allow(ip)
	}
	for _, ip := range cfg.Deny {
		filter.Deny(ip)
	}

	var archive replication.Archive
	if cfg.ArchiveDir != "" {
		a, err := replication.NewFileArchive(cfg.ArchiveDir)
		if err != nil {
			logging.Errorf("replication: %v, offsite archival disabled", err)
		} else {
			archive = a
		}
	}
	repl := replication.NewManager(s, archive)

	table := command.NewTable()
	builtins.Register(table, s, filter, version)
	repl.Register(table)
	migrate.Register(table, s)
	if len(cfg.Auth) > 0 {
		// auth is a LINK command here so it can mark the connection itself.
		table.SetLinkProc("auth", "r", func(c *conn.Conn, req proto.Request) (proto.Response, bool) {
			pw := ""
			if len(req) > 1 {
				pw = string(req[1])
			}
			for _, p := range cfg.Auth {
				if p == pw {
					c.Authed = true
					return proto.OK(), false
				}
			}
			return proto.Error("invalid password"), false
		})
	}

	if cfg.DashboardAddr != "" {
		dash := dashboard.New(s, repl, filter, version)
		go func() {
			if err := http.ListenAndServe(cfg.DashboardAddr, dash.Handler()); err != nil {
				logging.Warnf("dashboard: %v", err)
			}
		}()
	}

	pool := workerpool.New(cfg.Workers, cfg.RingSize)
	defer pool.Stop()

	readonly := cfg.Readonly
	authed := len(cfg.Auth) == 0 // no password configured means auth isn't required
	checkAuth := func(c *conn.Conn) bool {
		return authed || c.Authed
	}
	disp := dispatch.New(table, pool, func() bool { return readonly }, checkAuth)

	loopSet := make([]*eventloop.Loop, *loops)
	for i := range loopSet {
		l, err := eventloop.NewLoop(disp)
		if err != nil {
			logging.Errorf("creating event loop: %v", err)
			os.Exit(1)
		}
		loopSet[i] = l
		go l.Run()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.IP, strconv.Itoa(cfg.Port)))
	if err != nil {
		logging.Errorf("listen: %v", err)
		os.Exit(1)
	}
	logging.Infof("packdb listening on %s", ln.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)
	go func() {
		<-sigCh
		logging.Infof("shutting down")
		ln.Close()
		for _, l := range loopSet {
			l.Stop()
		}
		os.Exit(0)
	}()

	acceptLoop(ln, loopSet, filter)
}

func acceptLoop(ln net.Listener, loops []*eventloop.Loop, filter *ipfilter.Filter) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		remote := conn.NormalizeRemote(nc.RemoteAddr().String())
		if !filter.Permitted(remote) {
			nc.Close()
			continue
		}
		fd, ok := eventloop.FdOf(nc)
		if !ok {
			nc.Close()
			continue
		}
		target := pickLeastLoaded(loops)
		c := conn.New(nc)
		if err := target.Adopt(fd, c); err != nil {
			nc.Close()
		}
	}
}

// pickLeastLoaded implements the accept-fairness rule from spec.md §4.6:
// hand each new connection to whichever loop currently owns the fewest.
func pickLeastLoaded(loops []*eventloop.Loop) *eventloop.Loop {
	best := loops[0]
	bestN := best.ConnCount()
	for _, l := range loops[1:] {
		if n := l.ConnCount(); n < bestN {
			best, bestN = l, n
		}
	}
	return best
}
