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

// Package workerpool is the bounded MPMC job ring described in spec.md
// §4.7 (C7): a fixed-capacity slot array with a Lamport CAS sequence number
// per slot, so producers (event loop threads) and consumers (workers) never
// block each other on a single mutex. Go has no portable user-space futex,
// so the "wait for work" side is emulated with sync.Cond rather than the
// original's raw futex syscall — the CAS-sequence admission algorithm
// itself (grounded on third_party/NonLockingReadMap's optimistic
// compare-and-retry style) is unchanged.
package workerpool

import (
	"sync"
	"sync/atomic"
)

// Job is one unit of work the ring carries: a connection generation the
// consumer must re-check before publishing its result (spec.md §5), plus an
// opaque task function.
type Job struct {
	ConnID     uint64
	Generation uint64
	Run        func()
}

type slot struct {
	sequence uint64
	job      Job
}

// Ring is a bounded multi-producer multi-consumer queue. Capacity must be a
// power of two.
type Ring struct {
	mask    uint64
	slots   []slot
	enqueue uint64 // next slot a producer will try to claim
	dequeue uint64 // next slot a consumer will try to claim
	closed  uint64

	mu   sync.Mutex
	cond *sync.Cond
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("workerpool: capacity must be a power of two")
	}
	r := &Ring{
		mask:  uint64(capacity - 1),
		slots: make([]slot, capacity),
	}
	for i := range r.slots {
		r.slots[i].sequence = uint64(i)
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// TryPush attempts a non-blocking enqueue, returning false if the ring is
// full (spec.md §4.7: producers never block; a full ring is handled by the
// caller, e.g. by running the command inline).
func (r *Ring) TryPush(j Job) bool {
	pos := atomic.LoadUint64(&r.enqueue)
	for {
		s := &r.slots[pos&r.mask]
		seq := atomic.LoadUint64(&s.sequence)
		diff := int64(seq) - int64(pos)
		if diff == 0 {
			if atomic.CompareAndSwapUint64(&r.enqueue, pos, pos+1) {
				s.job = j
				atomic.StoreUint64(&s.sequence, pos+1)
				r.mu.Lock()
				r.cond.Broadcast()
				r.mu.Unlock()
				return true
			}
		} else if diff < 0 {
			return false // full
		} else {
			pos = atomic.LoadUint64(&r.enqueue)
		}
	}
}

// Pop blocks until a job is available or the ring is closed, in which case
// it returns a zero Job (Run == nil).
func (r *Ring) Pop() Job {
	pos := atomic.LoadUint64(&r.dequeue)
	for {
		if atomic.LoadUint64(&r.closed) != 0 {
			return Job{}
		}
		s := &r.slots[pos&r.mask]
		seq := atomic.LoadUint64(&s.sequence)
		diff := int64(seq) - int64(pos+1)
		if diff == 0 {
			if atomic.CompareAndSwapUint64(&r.dequeue, pos, pos+1) {
				j := s.job
				atomic.StoreUint64(&s.sequence, pos+uint64(len(r.slots)))
				return j
			}
		} else if diff < 0 {
			r.waitForWork(pos)
			pos = atomic.LoadUint64(&r.dequeue)
		} else {
			pos = atomic.LoadUint64(&r.dequeue)
		}
	}
}

// waitForWork blocks until the slot at pos is ready or the ring closes. The
// readiness check is retried in a loop while holding mu: a TryPush that
// claims pos and broadcasts between Pop's lock-free check and this call
// would otherwise wake no one, leaving the consumer blocked on Wait() with
// a job already sitting in the ring.
func (r *Ring) waitForWork(pos uint64) {
	s := &r.slots[pos&r.mask]
	r.mu.Lock()
	for atomic.LoadUint64(&r.closed) == 0 && atomic.LoadUint64(&s.sequence) != pos+1 {
		r.cond.Wait()
	}
	r.mu.Unlock()
}

// Close wakes every blocked consumer and marks the ring so Pop returns
// immediately from then on (the pool observes the zero Job and exits).
func (r *Ring) Close() {
	atomic.StoreUint64(&r.closed, 1)
	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
}
