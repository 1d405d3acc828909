package conn

import (
	"net"
	"time"

	"github.com/launix-de/packdb/internal/buffer"
)

func newBufWith(s string) *buffer.Buffer {
	b := buffer.New()
	b.AppendString(s)
	return b
}

// fakeConn is a minimal net.Conn for exercising New()/Close() without a
// real socket.
type fakeConn struct{}

func (fakeConn) Read(b []byte) (int, error)         { return 0, nil }
func (fakeConn) Write(b []byte) (int, error)        { return len(b), nil }
func (fakeConn) Close() error                       { return nil }
func (fakeConn) LocalAddr() net.Addr                { return fakeAddr("local") }
func (fakeConn) RemoteAddr() net.Addr                { return fakeAddr("10.0.0.2:5555") }
func (fakeConn) SetDeadline(t time.Time) error      { return nil }
func (fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (fakeConn) SetWriteDeadline(t time.Time) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }
