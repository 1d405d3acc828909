package buffer

import "testing"

func TestAppendConsume(t *testing.T) {
	b := New()
	defer b.Release()
	b.AppendString("hello")
	if b.Size() != 5 {
		t.Fatalf("size = %d, want 5", b.Size())
	}
	if string(b.Unread()) != "hello" {
		t.Fatalf("unread = %q", b.Unread())
	}
	b.Consume(2)
	if string(b.Unread()) != "llo" {
		t.Fatalf("unread after consume = %q", b.Unread())
	}
}

func TestAppendRecord(t *testing.T) {
	b := New()
	defer b.Release()
	b.AppendRecord([]byte("abc"))
	if string(b.Unread()) != "3\nabc\n" {
		t.Fatalf("record = %q", b.Unread())
	}
}

func TestGrowPreservesData(t *testing.T) {
	b := New()
	defer b.Release()
	payload := make([]byte, MinCapacity*3)
	for i := range payload {
		payload[i] = byte(i)
	}
	b.Append(payload)
	if b.Size() != len(payload) {
		t.Fatalf("size = %d, want %d", b.Size(), len(payload))
	}
	got := b.Unread()
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], payload[i])
		}
	}
}

func TestReserveProduced(t *testing.T) {
	b := New()
	defer b.Release()
	tail := b.Reserve(16)
	n := copy(tail, "0123456789")
	b.Produced(n)
	if string(b.Unread()) != "0123456789" {
		t.Fatalf("unread = %q", b.Unread())
	}
}

func TestCompactInvalidatesOffsets(t *testing.T) {
	b := New()
	defer b.Release()
	b.AppendString("xxxxxhello")
	b.Consume(5)
	b.Compact()
	if string(b.Unread()) != "hello" {
		t.Fatalf("unread after compact = %q", b.Unread())
	}
	if b.r != 0 {
		t.Fatalf("r = %d, want 0", b.r)
	}
}

func TestConsumeResetsToOrigin(t *testing.T) {
	b := New()
	defer b.Release()
	b.AppendString("abc")
	b.Consume(3)
	if b.r != 0 || b.w != 0 {
		t.Fatalf("r,w = %d,%d, want 0,0", b.r, b.w)
	}
}
