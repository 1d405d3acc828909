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

// Package buffer implements the growable byte arena each connection uses for
// its input and output queues: raw append/consume plus the length-prefixed
// "record" framing the native wire protocol builds on.
package buffer

import (
	"strconv"
	"sync"
)

// MinCapacity is the smallest backing array handed out by the pool.
const MinCapacity = 4096

// pool recycles backing arrays the way blob-refcount.go recycles blob
// storage: connections churn through many short-lived buffers, so we avoid
// round-tripping every one through the allocator.
var pool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, MinCapacity)
		return &b
	},
}

// Buffer is a growable byte arena. data()[0:w] is the written region;
// data()[r:w] is the unread region. It is not safe for concurrent use: the
// connection that owns a Buffer must not touch it from more than one
// goroutine, and must not call Compact/Grow while a slice handed out by a
// framer is still outstanding (see internal/proto for how requests are
// copied out before that can happen).
type Buffer struct {
	data []byte
	r, w int
}

// New returns a Buffer backed by a pooled array.
func New() *Buffer {
	p := pool.Get().(*[]byte)
	return &Buffer{data: (*p)[:0]}
}

// Release returns the backing array to the pool. The Buffer must not be used
// afterward.
func (b *Buffer) Release() {
	if cap(b.data) == 0 {
		return
	}
	arr := b.data[:0]
	b.data, b.r, b.w = nil, 0, 0
	pool.Put(&arr)
}

// Unread returns the unread region data()[r:w]. The returned slice aliases
// the buffer's backing array and is only valid until the next Compact/Grow.
func (b *Buffer) Unread() []byte { return b.data[b.r:b.w] }

// Size returns the number of unread bytes.
func (b *Buffer) Size() int { return b.w - b.r }

// Space returns the number of bytes that can be appended without growing.
func (b *Buffer) Space() int { return cap(b.data) - b.w }

// Append writes p to the write end of the buffer, growing as needed.
func (b *Buffer) Append(p []byte) {
	for b.Space() < len(p) {
		b.Grow()
	}
	b.w += copy(b.data[b.w:b.w+len(p)], p)
	b.data = b.data[:b.w]
}

// AppendString is a convenience wrapper for Append([]byte(s)).
func (b *Buffer) AppendString(s string) {
	for b.Space() < len(s) {
		b.Grow()
	}
	b.w += copy(b.data[b.w:b.w+len(s)], s)
	b.data = b.data[:b.w]
}

// AppendRecord writes one native-protocol record: decimal length, LF,
// payload, LF (spec.md §4.2).
func (b *Buffer) AppendRecord(p []byte) {
	b.AppendString(strconv.Itoa(len(p)))
	b.AppendString("\n")
	b.Append(p)
	b.AppendString("\n")
}

// Consume advances the read cursor by n bytes.
func (b *Buffer) Consume(n int) {
	b.r += n
	if b.r > b.w {
		b.r = b.w
	}
	if b.r == b.w {
		// nothing left unread: reset to origin so the next Append doesn't
		// need to grow or compact
		b.r, b.w = 0, 0
		b.data = b.data[:0]
	}
}

// Reserve ensures at least n bytes of space are available, growing as
// needed. It returns the writable tail data()[w:w+n] for a direct read(2)
// into the buffer.
func (b *Buffer) Reserve(n int) []byte {
	for b.Space() < n {
		b.Grow()
	}
	return b.data[b.w : b.w+n : cap(b.data)]
}

// Produced records that n bytes were written into the slice returned by a
// prior Reserve call.
func (b *Buffer) Produced(n int) {
	b.w += n
	b.data = b.data[:b.w]
}

// Compact slides the unread region to the origin. Any slice previously
// handed out by Unread/a framer that aliased the old positions is
// invalidated by this call — callers must only compact between requests.
func (b *Buffer) Compact() {
	if b.r == 0 {
		return
	}
	n := copy(b.data[:b.w-b.r], b.data[b.r:b.w])
	b.r, b.w = 0, n
	b.data = b.data[:b.w]
}

// Grow doubles the backing array's capacity, compacting first.
func (b *Buffer) Grow() {
	b.Compact()
	newCap := cap(b.data) * 2
	if newCap == 0 {
		newCap = MinCapacity
	}
	next := make([]byte, b.w, newCap)
	copy(next, b.data[:b.w])
	b.data = next
}
