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

// Package builtins registers the native command vocabulary against a
// *store.Store (spec.md's data-model operations plus the admin commands
// from SPEC_FULL.md §6/§10: ping, auth, info, dbsize, compact,
// clear_binlog, list_allow_ip/add_allow_ip/del_allow_ip). There is no
// flushdb command.
package builtins

import (
	"strconv"
	"strings"

	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/hashkv"
	"github.com/launix-de/packdb/internal/ipfilter"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/store"
)

func arg(req proto.Request, i int) string {
	if i >= len(req) {
		return ""
	}
	return string(req[i])
}

func int16arg(req proto.Request, i int) int16 {
	n, _ := strconv.ParseInt(arg(req, i), 10, 16)
	return int16(n)
}

// Register installs every built-in command into table.
func Register(table *command.Table, s *store.Store, filter *ipfilter.Filter, version string) {
	table.SetProc("ping", "r", func(req proto.Request) proto.Response {
		return proto.OK("pong")
	})
	table.SetProc("auth", "r", func(req proto.Request) proto.Response {
		// this entry does not check the password: it only answers when no
		// password is configured. cmd/packdb-server replaces it with a LINK
		// handler that compares the password and sets Conn.Authed when
		// passwords are configured.
		return proto.OK()
	})
	table.SetProc("version", "r", func(req proto.Request) proto.Response {
		return proto.OK(version)
	})
	table.SetProc("dbsize", "r", func(req proto.Request) proto.Response {
		return proto.OK("0") // Pebble has no O(1) key count; approximate reporting lives in info
	})

	table.SetProc("get", "r", func(req proto.Request) proto.Response {
		v, ok, err := s.Get(arg(req, 1))
		if err != nil {
			return proto.Error(err.Error())
		}
		if !ok {
			return proto.NotFound()
		}
		return proto.OK(v)
	})
	table.SetProc("set", "w", func(req proto.Request) proto.Response {
		if err := s.Set(arg(req, 1), arg(req, 2)); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})
	table.SetProc("setx", "w", func(req proto.Request) proto.Response {
		// TTL enforcement is out of scope for this store (spec.md's
		// Non-goals exclude active expiry); accepted and stored plainly.
		if err := s.Set(arg(req, 1), arg(req, 2)); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})
	table.SetProc("getset", "w", func(req proto.Request) proto.Response {
		old, ok, err := s.Get(arg(req, 1))
		if err != nil {
			return proto.Error(err.Error())
		}
		if err := s.Set(arg(req, 1), arg(req, 2)); err != nil {
			return proto.Error(err.Error())
		}
		if !ok {
			return proto.NotFound()
		}
		return proto.OK(old)
	})
	table.SetProc("setnx", "w", func(req proto.Request) proto.Response {
		_, exists, err := s.Get(arg(req, 1))
		if err != nil {
			return proto.Error(err.Error())
		}
		if exists {
			return proto.OK("0")
		}
		if err := s.Set(arg(req, 1), arg(req, 2)); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK("1")
	})
	table.SetProc("exists", "r", func(req proto.Request) proto.Response {
		_, ok, err := s.Get(arg(req, 1))
		if err != nil {
			return proto.Error(err.Error())
		}
		if ok {
			return proto.OK("1")
		}
		return proto.OK("0")
	})
	table.SetProc("incr", "wt", func(req proto.Request) proto.Response {
		by := int64(1)
		if len(req) >= 3 {
			by, _ = strconv.ParseInt(arg(req, 2), 10, 64)
		}
		n, err := s.Incr(arg(req, 1), by)
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.FormatInt(n, 10))
	})
	table.SetProc("decr", "wt", func(req proto.Request) proto.Response {
		by := int64(1)
		if len(req) >= 3 {
			by, _ = strconv.ParseInt(arg(req, 2), 10, 64)
		}
		n, err := s.Incr(arg(req, 1), -by)
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.FormatInt(n, 10))
	})

	table.SetProc("multi_get", "r", func(req proto.Request) proto.Response {
		keys := make([]string, 0, len(req)-1)
		for i := 1; i < len(req); i++ {
			keys = append(keys, arg(req, i))
		}
		pairs, err := s.MultiGet(keys)
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(pairs...)
	})
	table.SetProc("multi_set", "w", func(req proto.Request) proto.Response {
		pairs := make([]string, 0, len(req)-1)
		for i := 1; i < len(req); i++ {
			pairs = append(pairs, arg(req, i))
		}
		if err := s.MultiSet(pairs); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})
	table.SetProc("multi_del", "wt", func(req proto.Request) proto.Response {
		keys := make([]string, 0, len(req)-1)
		for i := 1; i < len(req); i++ {
			keys = append(keys, arg(req, i))
		}
		n, err := s.MultiDelete(keys)
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.Itoa(n))
	})

	table.SetProc("hset", "w", func(req proto.Request) proto.Response {
		if err := s.HSet(arg(req, 1), int16arg(req, 2), int16arg(req, 3)); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK("1")
	})
	table.SetProc("hget", "r", func(req proto.Request) proto.Response {
		v, ok, err := s.HGet(arg(req, 1), int16arg(req, 2))
		if err != nil {
			return proto.Error(err.Error())
		}
		if !ok {
			return proto.NotFound()
		}
		return proto.OK(strconv.FormatInt(int64(v), 10))
	})
	table.SetProc("hexists", "r", func(req proto.Request) proto.Response {
		_, ok, err := s.HGet(arg(req, 1), int16arg(req, 2))
		if err != nil {
			return proto.Error(err.Error())
		}
		if ok {
			return proto.OK("1")
		}
		return proto.OK("0")
	})
	table.SetProc("hsize", "r", func(req proto.Request) proto.Response {
		n, err := s.HSize(arg(req, 1))
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.Itoa(n))
	})
	// BLOCK: the read-modify-write in Store.HIncr runs under the exclusive
	// G lock, so no other write interleaves with it.
	table.SetProc("hincr", "wbt", func(req proto.Request) proto.Response {
		v, err := s.HIncr(arg(req, 1), int16arg(req, 2), int16arg(req, 3))
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.FormatInt(int64(v), 10))
	})
	table.SetProc("multi_hset", "wt", func(req proto.Request) proto.Response {
		name := arg(req, 1)
		fields := make([]hashkv.Entry, 0, (len(req)-2)/2)
		for i := 2; i+1 < len(req); i += 2 {
			fields = append(fields, hashkv.Entry{Field: int16arg(req, i), Value: int16arg(req, i+1)})
		}
		if err := s.MultiHSet(name, fields); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})
	table.SetProc("multi_hdel", "wt", func(req proto.Request) proto.Response {
		name := arg(req, 1)
		fields := make([]int16, 0, len(req)-2)
		for i := 2; i < len(req); i++ {
			fields = append(fields, int16arg(req, i))
		}
		n, err := s.MultiHDel(name, fields)
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.Itoa(n))
	})
	// migrate_hset: supplemented from t_hash.cpp's bulk-import path, which
	// bypasses the read-then-diff multi_hset would otherwise do.
	table.SetProc("migrate_hset", "wt", func(req proto.Request) proto.Response {
		name := arg(req, 1)
		fields := make([]hashkv.Entry, 0, (len(req)-2)/2)
		for i := 2; i+1 < len(req); i += 2 {
			fields = append(fields, hashkv.Entry{Field: int16arg(req, i), Value: int16arg(req, i+1)})
		}
		if err := s.MigrateHSet(name, fields); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})

	table.SetProc("compact", "wbt", func(req proto.Request) proto.Response {
		if err := s.DB.Compact(nil, nil, true); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})
	table.SetProc("clear_binlog", "wbt", func(req proto.Request) proto.Response {
		if err := s.Log.Reclaim(s.Log.CurrentSeq()); err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK()
	})

	table.SetProc("list_allow_ip", "r", func(req proto.Request) proto.Response {
		return proto.OK(filter.ListAllow()...)
	})
	table.SetProc("add_allow_ip", "w", func(req proto.Request) proto.Response {
		filter.Allow(arg(req, 1))
		return proto.OK()
	})
	table.SetProc("del_allow_ip", "w", func(req proto.Request) proto.Response {
		filter.RemoveAllow(arg(req, 1))
		return proto.OK()
	})

	table.SetProc("info", "r", func(req proto.Request) proto.Response {
		section := strings.ToLower(arg(req, 1))
		switch section {
		case "", "server":
			return proto.OK("version", version)
		case "rocksdb", "pebble":
			metrics := s.DB.Metrics()
			return proto.OK("num_sstables", strconv.FormatInt(metrics.NumSSTables(), 10))
		default:
			return proto.OK()
		}
	})
}
