package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/conn"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/workerpool"
)

func newTestConn() *conn.Conn {
	return &conn.Conn{Authed: true}
}

func TestDispatchReadRunsInline(t *testing.T) {
	table := command.NewTable()
	table.SetProc("get", "r", func(req proto.Request) proto.Response {
		return proto.OK("v1")
	})
	pool := workerpool.New(2, 8)
	defer pool.Stop()
	d := New(table, pool, func() bool { return false }, func(*conn.Conn) bool { return true })

	res := d.Dispatch(newTestConn(), proto.Request{[]byte("get"), []byte("k")}, nil)
	if res.Async {
		t.Fatalf("READ command must not go async")
	}
	if res.Response.Status != proto.StatusOK || res.Response.Payload[0] != "v1" {
		t.Fatalf("unexpected response: %+v", res.Response)
	}
}

func TestDispatchReadonlyRejectsWrite(t *testing.T) {
	table := command.NewTable()
	table.SetProc("set", "w", func(req proto.Request) proto.Response { return proto.OK() })
	pool := workerpool.New(1, 8)
	defer pool.Stop()
	d := New(table, pool, func() bool { return true }, func(*conn.Conn) bool { return true })

	res := d.Dispatch(newTestConn(), proto.Request{[]byte("set"), []byte("k"), []byte("v")}, nil)
	if res.Response.Status != proto.StatusClientError {
		t.Fatalf("expected client_error under readonly mode, got %+v", res.Response)
	}
}

func TestDispatchUnauthenticatedRejected(t *testing.T) {
	table := command.NewTable()
	table.SetProc("get", "r", func(req proto.Request) proto.Response { return proto.OK() })
	pool := workerpool.New(1, 8)
	defer pool.Stop()
	d := New(table, pool, func() bool { return false }, func(*conn.Conn) bool { return false })

	res := d.Dispatch(newTestConn(), proto.Request{[]byte("get"), []byte("k")}, nil)
	if res.Response.Status != proto.StatusNoAuth {
		t.Fatalf("expected noauth, got %+v", res.Response)
	}
}

func TestDispatchThreadCommandRunsAsync(t *testing.T) {
	table := command.NewTable()
	table.SetProc("compact", "wbt", func(req proto.Request) proto.Response { return proto.OK("done") })
	pool := workerpool.New(2, 8)
	defer pool.Stop()
	d := New(table, pool, func() bool { return false }, func(*conn.Conn) bool { return true })

	var wg sync.WaitGroup
	wg.Add(1)
	var got proto.Response
	res := d.Dispatch(newTestConn(), proto.Request{[]byte("compact")}, func(r proto.Response) {
		got = r
		wg.Done()
	})
	if !res.Async {
		t.Fatalf("THREAD command should report Async")
	}
	waitTimeout(t, &wg, time.Second)
	if got.Status != proto.StatusOK || got.Payload[0] != "done" {
		t.Fatalf("unexpected async response: %+v", got)
	}
}

func TestGLockExclusivityFencesSharedWrites(t *testing.T) {
	g := &GLock{}
	blockDesc := command.Desc{Flags: command.WRITE | command.BLOCK}
	writeDesc := command.Desc{Flags: command.WRITE}

	relBlock := g.acquire(blockDesc)
	acquired := make(chan struct{})
	go func() {
		rel := g.acquire(writeDesc)
		close(acquired)
		rel()
	}()
	select {
	case <-acquired:
		t.Fatalf("shared WRITE must not acquire while BLOCK holds the exclusive lock")
	case <-time.After(50 * time.Millisecond):
	}
	relBlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("shared WRITE should acquire once BLOCK releases")
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out waiting for async result")
	}
}
