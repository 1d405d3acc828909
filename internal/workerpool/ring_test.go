package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRingPushPop(t *testing.T) {
	r := NewRing(4)
	var ran int32
	ok := r.TryPush(Job{Run: func() { atomic.AddInt32(&ran, 1) }})
	if !ok {
		t.Fatalf("push should succeed on empty ring")
	}
	j := r.Pop()
	if j.Run == nil {
		t.Fatalf("expected a job")
	}
	j.Run()
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("job did not run")
	}
}

func TestRingFullReturnsFalse(t *testing.T) {
	r := NewRing(2)
	if !r.TryPush(Job{Run: func() {}}) {
		t.Fatalf("push 1 should succeed")
	}
	if !r.TryPush(Job{Run: func() {}}) {
		t.Fatalf("push 2 should succeed")
	}
	if r.TryPush(Job{Run: func() {}}) {
		t.Fatalf("push 3 should fail: ring is full")
	}
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := New(4, 16)
	defer p.Stop()

	var count int32
	const n = 50
	for i := 0; i < n; i++ {
		for !p.Submit(Job{Run: func() { atomic.AddInt32(&count, 1) }}) {
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&count) != n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt32(&count); got != n {
		t.Fatalf("ran %d jobs, want %d", got, n)
	}
}

func TestRingPopNoLostWakeup(t *testing.T) {
	r := NewRing(2)
	done := make(chan Job, 1)
	go func() { done <- r.Pop() }()

	// Give Pop time to observe an empty ring and enter waitForWork before
	// the push lands, so this actually exercises the race rather than a
	// Pop that simply sees the job already present.
	time.Sleep(20 * time.Millisecond)
	if !r.TryPush(Job{Run: func() {}}) {
		t.Fatalf("push should succeed on empty ring")
	}

	select {
	case j := <-done:
		if j.Run == nil {
			t.Fatalf("expected a job, got zero Job")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Pop missed a push that landed while it was waiting: lost wakeup")
	}
}

func TestPoolStopReturnsPromptly(t *testing.T) {
	p := New(2, 8)
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return: worker goroutines likely leaked")
	}
}
