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

// Package ipfilter is the allow/deny peer list spec.md §6.3 describes:
// admin commands (list_allow_ip/add_allow_ip/del_allow_ip) are only honored
// from loopback, and regular connections are checked against the
// configured allow/deny sets on every accept. That read happens far more
// often than the list is ever edited, so the sets are backed by
// NonLockingReadMap rather than a mutex-guarded map: Permitted is a
// nonblocking O(log N) read off the current snapshot even while an admin
// command is mid-rebuild of the list.
package ipfilter

import (
	nlrm "github.com/launix-de/NonLockingReadMap"
)

type ipEntry struct{ ip string }

func (e ipEntry) GetKey() string    { return e.ip }
func (e ipEntry) ComputeSize() uint { return uint(len(e.ip)) + 16 }

// Filter holds the allow/deny sets. A nil/empty allow set means "allow
// everyone not explicitly denied" (spec.md's default-open posture).
type Filter struct {
	allow nlrm.NonLockingReadMap[ipEntry, string]
	deny  nlrm.NonLockingReadMap[ipEntry, string]
}

func New() *Filter {
	return &Filter{
		allow: nlrm.New[ipEntry, string](),
		deny:  nlrm.New[ipEntry, string](),
	}
}

func (f *Filter) Allow(ip string) {
	e := ipEntry{ip}
	f.allow.Set(&e)
	f.deny.Remove(ip)
}

func (f *Filter) Deny(ip string) {
	e := ipEntry{ip}
	f.deny.Set(&e)
	f.allow.Remove(ip)
}

func (f *Filter) RemoveAllow(ip string) {
	f.allow.Remove(ip)
}

func (f *Filter) ListAllow() []string {
	all := f.allow.GetAll()
	out := make([]string, 0, len(all))
	for _, e := range all {
		out = append(out, e.ip)
	}
	return out
}

// Permitted reports whether ip may open a regular (non-admin) connection.
func (f *Filter) Permitted(ip string) bool {
	if f.deny.Get(ip) != nil {
		return false
	}
	if len(f.allow.GetAll()) == 0 {
		return true
	}
	return f.allow.Get(ip) != nil
}

// IsLoopback reports whether ip may run admin-only commands regardless of
// the allow/deny configuration (spec.md §6.3: admin commands are
// loopback-only by construction).
func IsLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}
