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

// Package netpoll wraps epoll for the event loop's readiness polling
// (spec.md §4.6, C5). One Poller is owned by exactly one loop goroutine.
package netpoll

import (
	"golang.org/x/sys/unix"
)

// Event mirrors the readiness bits the loop cares about.
type Event struct {
	Fd  int32
	In  bool
	Out bool
	Err bool
}

// Poller is a thin epoll(7) wrapper. Not safe for concurrent use from more
// than one goroutine — each event loop thread owns its own instance
// (spec.md §4.6's "one epoll instance per loop thread").
type Poller struct {
	epfd int
}

func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: fd}, nil
}

func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

// Add registers fd for read readiness (edge-triggered isn't used here; the
// native/RESP parsers already loop until NeedMore, so level-triggered keeps
// the implementation simple per spec.md's stated non-goal of edge-triggered
// I/O).
func (p *Poller) Add(fd int32, writeAlso bool) error {
	ev := unix.EpollEvent{Fd: fd, Events: unix.EPOLLIN}
	if writeAlso {
		ev.Events |= unix.EPOLLOUT
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev)
}

// Mod changes a registered fd's interest set, used to clear EPOLLIN while a
// THREAD command is outstanding (spec.md §4.5: no more reads are attempted
// from a connection until its in-flight request completes).
func (p *Poller) Mod(fd int32, in, out bool) error {
	var events uint32
	if in {
		events |= unix.EPOLLIN
	}
	if out {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Fd: fd, Events: events}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev)
}

func (p *Poller) Del(fd int32) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

// Wait blocks up to timeoutMs (negative blocks forever) and appends ready
// events into out, returning the slice it used. Reusing the caller's slice
// avoids an allocation per loop iteration (spec.md §4.6's ready-list
// double-buffering).
func (p *Poller) Wait(out []Event, timeoutMs int) ([]Event, error) {
	raw := make([]unix.EpollEvent, cap(out)+64)
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out[:0], nil
		}
		return nil, err
	}
	out = out[:0]
	for i := 0; i < n; i++ {
		e := raw[i]
		out = append(out, Event{
			Fd:  e.Fd,
			In:  e.Events&unix.EPOLLIN != 0,
			Out: e.Events&unix.EPOLLOUT != 0,
			Err: e.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return out, nil
}
