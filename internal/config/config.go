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

// Package config parses the server's config file (spec.md §6's server.ip,
// server.port, server.auth, server.allow/deny, replication follower
// stanzas) and watches it with fsnotify for hot reload, the way
// storage/settings.go wires onexit for its own global settings (grounding
// for the reload-on-SIGHUP-equivalent lifecycle, not the grammar itself —
// see DESIGN.md for why this isn't built on go-packrat).
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"
)

// Follower describes one replication follower this node streams to.
type Follower struct {
	Host string
	Port int
}

type Config struct {
	IP       string
	Port     int
	SockPath string
	Readonly bool
	Auth     []string
	Allow    []string
	Deny     []string
	Follower []Follower

	Workers  int
	RingSize int

	// ArchiveDir is the directory of the file Archive the server hands to
	// internal/replication; only Manager.ArchiveSegment writes to it.
	ArchiveDir     string
	ArchiveMaxSize int64 // bytes; parsed via docker/go-units so "256MB" etc. are accepted
	DashboardAddr  string

	raw map[string][]string
}

const weakPasswordSentinel = "very-strong-password"

// ValidatePassword rejects passwords that are too short to be meaningful
// or are the placeholder the teacher's sample config ships with, refusing
// to start the server with either (spec.md §6's "any < 32 chars ...
// refused at startup").
func ValidatePassword(pw string) error {
	if pw == weakPasswordSentinel {
		return fmt.Errorf("config: refusing placeholder password %q", weakPasswordSentinel)
	}
	if len(pw) < 32 {
		return fmt.Errorf("config: password must be at least 32 characters")
	}
	return nil
}

// Parse reads a simple "key value" config file, one directive per line,
// blank lines and lines starting with # ignored. Repeated keys (server.auth,
// server.allow, server.deny) accumulate into slices.
func Parse(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &Config{
		IP:       "127.0.0.1",
		Port:     8888,
		Workers:  8,
		RingSize: 1 << 16,
		raw:      make(map[string][]string),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("config: malformed directive %q", line)
		}
		key, val := fields[0], strings.TrimSpace(fields[1])
		c.raw[key] = append(c.raw[key], val)

		switch key {
		case "server.ip":
			c.IP = val
		case "server.port":
			p, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("config: bad server.port %q: %w", val, err)
			}
			c.Port = p
		case "server.sock":
			c.SockPath = val
		case "server.readonly":
			c.Readonly = val == "yes" || val == "true"
		case "server.auth":
			if err := ValidatePassword(val); err != nil {
				return nil, err
			}
			c.Auth = append(c.Auth, val)
		case "server.allow":
			c.Allow = append(c.Allow, val)
		case "server.deny":
			c.Deny = append(c.Deny, val)
		case "replication.follower":
			host, portStr, ok := strings.Cut(val, ":")
			if !ok {
				return nil, fmt.Errorf("config: bad replication.follower %q", val)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("config: bad replication.follower port %q", val)
			}
			c.Follower = append(c.Follower, Follower{Host: host, Port: port})
		case "worker.count":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("config: bad worker.count %q", val)
			}
			c.Workers = n
		case "replication.archive_dir":
			c.ArchiveDir = val
		case "replication.archive_max_size":
			n, err := units.RAMInBytes(val)
			if err != nil {
				return nil, fmt.Errorf("config: bad replication.archive_max_size %q: %w", val, err)
			}
			c.ArchiveMaxSize = n
		case "dashboard.addr":
			c.DashboardAddr = val
		}
	}
	return c, scanner.Err()
}

// Watcher hot-reloads the config file on change, calling onReload with the
// freshly parsed Config. Errors during reload are reported but don't stop
// watching (a config file can be momentarily invalid mid-edit).
type Watcher struct {
	fsw *fsnotify.Watcher
}

func Watch(path string, onReload func(*Config), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c, err := Parse(path)
				if err != nil {
					onError(err)
					continue
				}
				onReload(c)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				onError(err)
			}
		}
	}()
	return &Watcher{fsw: fsw}, nil
}

func (w *Watcher) Close() error { return w.fsw.Close() }
