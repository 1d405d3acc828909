package store

import (
	"testing"

	"github.com/launix-de/packdb/internal/hashkv"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.Set("a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get("a")
	if err != nil || !ok || v != "1" {
		t.Fatalf("Get = (%q,%v,%v), want (1,true,nil)", v, ok, err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("a"); ok {
		t.Fatalf("key should be gone after Delete")
	}
}

func TestMultiGetPreservesRequestedOrderSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	s.Set("k1", "v1")
	s.Set("k3", "v3")
	got, err := s.MultiGet([]string{"k1", "k2", "k3"})
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	want := []string{"k1", "v1", "k3", "v3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIncr(t *testing.T) {
	s := openTestStore(t)
	n, err := s.Incr("counter", 5)
	if err != nil || n != 5 {
		t.Fatalf("Incr = (%d,%v), want (5,nil)", n, err)
	}
	n, err = s.Incr("counter", -2)
	if err != nil || n != 3 {
		t.Fatalf("Incr = (%d,%v), want (3,nil)", n, err)
	}
}

func TestHSetHGetMergesAcrossCalls(t *testing.T) {
	s := openTestStore(t)
	if err := s.HSet("h", 1, 100); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	if err := s.HSet("h", 2, 200); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	v, ok, err := s.HGet("h", 1)
	if err != nil || !ok || v != 100 {
		t.Fatalf("HGet(1) = (%d,%v,%v), want (100,true,nil)", v, ok, err)
	}
	v, ok, err = s.HGet("h", 2)
	if err != nil || !ok || v != 200 {
		t.Fatalf("HGet(2) = (%d,%v,%v), want (200,true,nil)", v, ok, err)
	}
}

func TestMultiHDelReturnsActuallyRemovedCount(t *testing.T) {
	s := openTestStore(t)
	s.MultiHSet("h", []hashkv.Entry{{Field: 1, Value: 10}, {Field: 2, Value: 20}})
	n, err := s.MultiHDel("h", []int16{1, 2, 3}) // field 3 never existed
	if err != nil {
		t.Fatalf("MultiHDel: %v", err)
	}
	if n != 2 {
		t.Fatalf("MultiHDel removed = %d, want 2", n)
	}
}

func TestHIncrSeedsAtByWhenAbsent(t *testing.T) {
	s := openTestStore(t)
	v, err := s.HIncr("h", 1, 5)
	if err != nil || v != 5 {
		t.Fatalf("HIncr = (%d,%v), want (5,nil)", v, err)
	}
	v, err = s.HIncr("h", 1, 5)
	if err != nil || v != 10 {
		t.Fatalf("HIncr = (%d,%v), want (10,nil)", v, err)
	}
}
