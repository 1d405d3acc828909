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

package workerpool

import (
	"sync"
)

// DefaultCapacity is the ring size spec.md §4.7 calls out (2^16 slots).
const DefaultCapacity = 1 << 16

// Pool owns the ring and a fixed number of worker goroutines that pop and
// run jobs until Stop is called.
type Pool struct {
	ring *Ring
	wg   sync.WaitGroup
}

// New starts n worker goroutines pulling from a ring of the given capacity.
func New(workers, capacity int) *Pool {
	p := &Pool{ring: NewRing(capacity)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		j := p.ring.Pop()
		if j.Run == nil {
			return // ring closed, nothing left to drain
		}
		j.Run()
	}
}

// Submit enqueues j, returning false if the ring is momentarily full — the
// caller (the dispatcher) falls back to running the command inline on the
// loop thread rather than blocking (spec.md §4.7).
func (p *Pool) Submit(j Job) bool {
	return p.ring.TryPush(j)
}

// Stop signals all workers to exit after draining what's queued isn't
// guaranteed; Stop is for process shutdown, not graceful drain.
func (p *Pool) Stop() {
	p.ring.Close()
	p.wg.Wait()
}
