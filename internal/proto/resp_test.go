package proto

import (
	"testing"

	"github.com/launix-de/packdb/internal/buffer"
)

func encodeRESPArray(args ...string) string {
	s := "*" + itoa(len(args)) + "\r\n"
	for _, a := range args {
		s += "$" + itoa(len(a)) + "\r\n" + a + "\r\n"
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestRESPLooksLikeRESP(t *testing.T) {
	if yes, _ := LooksLikeRESP([]byte("  *2\r\n")); !yes {
		t.Fatalf("expected RESP detection on leading '*'")
	}
	if yes, _ := LooksLikeRESP([]byte("3\nget\n")); yes {
		t.Fatalf("native framing must not be detected as RESP")
	}
}

func TestRESPSetexTranslation(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("SETEX", "key", "10", "val"))

	got, err := f.TryParse(buf)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := []string{"setx", "key", "val", "10"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Fatalf("field %d = %q, want %q", i, got[i], want[i])
		}
	}

	out := buffer.New()
	defer out.Release()
	f.Encode(OK(), out)
	if string(out.Unread()) != "+OK\r\n" {
		t.Fatalf("encoded = %q, want +OK", out.Unread())
	}
}

func TestRESPZRangeByScoreWithLimitAndWithscores(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("ZRANGEBYSCORE", "z", "(5", "10", "LIMIT", "0", "2", "WITHSCORES"))

	got, err := f.TryParse(buf)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := []string{"zscan", "z", "", "6", "10", "0", "2", "withscores"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Fatalf("field %d = %q, want %q", i, got[i], want[i])
		}
	}

	out := buffer.New()
	defer out.Release()
	f.Encode(OK("a", "1", "b", "2"), out)
	want2 := "*4\r\n$1\r\na\r\n$1\r\n1\r\n$1\r\nb\r\n$1\r\n2\r\n"
	if string(out.Unread()) != want2 {
		t.Fatalf("encoded = %q, want %q", out.Unread(), want2)
	}
}

func TestRESPZRangeByScoreNoWithscoresStripsAlternates(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("ZRANGEBYSCORE", "z", "5", "10"))
	if _, err := f.TryParse(buf); err != nil {
		t.Fatalf("parse error: %v", err)
	}

	out := buffer.New()
	defer out.Release()
	f.Encode(OK("a", "1", "b", "2"), out)
	want := "*2\r\n$1\r\na\r\n$1\r\nb\r\n"
	if string(out.Unread()) != want {
		t.Fatalf("encoded = %q, want %q", out.Unread(), want)
	}
}

func TestRESPMGetAlignment(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("MGET", "k1", "k2", "k3"))

	got, err := f.TryParse(buf)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got.Command() != "multi_get" {
		t.Fatalf("command = %q, want multi_get", got.Command())
	}

	out := buffer.New()
	defer out.Release()
	// backend only found k1 and k3
	f.Encode(OK("k1", "v1", "k3", "v3"), out)
	want := "*3\r\n$2\r\nv1\r\n$-1\r\n$2\r\nv3\r\n"
	if string(out.Unread()) != want {
		t.Fatalf("encoded = %q, want %q", out.Unread(), want)
	}
}

func TestRESPNotFoundAndError(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("GET", "missing"))
	if _, err := f.TryParse(buf); err != nil {
		t.Fatalf("parse error: %v", err)
	}

	out := buffer.New()
	defer out.Release()
	f.Encode(NotFound(), out)
	if string(out.Unread()) != "$-1\r\n" {
		t.Fatalf("encoded = %q, want $-1", out.Unread())
	}

	out2 := buffer.New()
	defer out2.Release()
	f.Encode(Error("boom"), out2)
	if string(out2.Unread()) != "-ERR boom\r\n" {
		t.Fatalf("encoded = %q, want -ERR boom", out2.Unread())
	}
}

func TestRESPPing(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("PING"))
	if _, err := f.TryParse(buf); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out := buffer.New()
	defer out.Release()
	f.Encode(OK(), out)
	if string(out.Unread()) != "+PONG\r\n" {
		t.Fatalf("encoded = %q, want +PONG", out.Unread())
	}
}

func TestRESPUnknownCommandPassthrough(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString(encodeRESPArray("FOOBAR", "x"))
	got, err := f.TryParse(buf)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got.Command() != "foobar" {
		t.Fatalf("command = %q, want foobar", got.Command())
	}
	out := buffer.New()
	defer out.Release()
	f.Encode(OK("a", "b"), out)
	want := "*2\r\n$1\r\na\r\n$1\r\nb\r\n"
	if string(out.Unread()) != want {
		t.Fatalf("encoded = %q, want %q", out.Unread(), want)
	}
}

func TestRESPNeedMoreOnPartialBulk(t *testing.T) {
	var f RESPFramer
	buf := buffer.New()
	defer buf.Release()
	buf.AppendString("*2\r\n$3\r\nget\r\n$2\r\nk")
	got, err := f.TryParse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("got %v, want NeedMore", got)
	}
}
