package conn

import (
	"testing"

	"github.com/launix-de/packdb/internal/proto"
)

func TestNormalizeRemoteStripsIPv4MappedPrefix(t *testing.T) {
	got := NormalizeRemote("[::ffff:192.168.1.5]:4242")
	if got != "192.168.1.5" {
		t.Fatalf("got %q, want 192.168.1.5", got)
	}
}

func TestNormalizeRemotePlainIPv4(t *testing.T) {
	got := NormalizeRemote("10.0.0.1:1234")
	if got != "10.0.0.1" {
		t.Fatalf("got %q, want 10.0.0.1", got)
	}
}

func TestDetectDialectNative(t *testing.T) {
	c := &Conn{In: newBufWith("3\nget\n"), Framer: proto.NativeFramer{}}
	decided := c.DetectDialect()
	if !decided {
		t.Fatalf("expected decision on non-empty input")
	}
	if _, ok := c.Framer.(proto.NativeFramer); !ok {
		t.Fatalf("native input should keep the native framer, got %T", c.Framer)
	}
}

func TestDetectDialectRESP(t *testing.T) {
	c := &Conn{In: newBufWith("*1\r\n$4\r\nPING\r\n"), Framer: proto.NativeFramer{}}
	if !c.DetectDialect() {
		t.Fatalf("expected decision on non-empty input")
	}
	if _, ok := c.Framer.(*proto.RESPFramer); !ok {
		t.Fatalf("RESP input should switch to RESPFramer, got %T", c.Framer)
	}
}

func TestCloseIncrementsGeneration(t *testing.T) {
	c := New(&fakeConn{})
	g0 := c.CurrentGeneration()
	c.Close()
	if c.CurrentGeneration() != g0+1 {
		t.Fatalf("generation = %d, want %d", c.CurrentGeneration(), g0+1)
	}
}
