package ipfilter

import "testing"

func TestDefaultOpenWhenAllowEmpty(t *testing.T) {
	f := New()
	if !f.Permitted("203.0.113.7") {
		t.Fatalf("expected default-open posture with empty allow list")
	}
}

func TestDenyWins(t *testing.T) {
	f := New()
	f.Allow("203.0.113.7")
	f.Deny("203.0.113.7")
	if f.Permitted("203.0.113.7") {
		t.Fatalf("deny must override a prior allow")
	}
}

func TestAllowRestrictsToList(t *testing.T) {
	f := New()
	f.Allow("203.0.113.7")
	if f.Permitted("203.0.113.8") {
		t.Fatalf("non-listed peer must be rejected once allow is non-empty")
	}
	if !f.Permitted("203.0.113.7") {
		t.Fatalf("listed peer must be permitted")
	}
}

func TestRemoveAllow(t *testing.T) {
	f := New()
	f.Allow("203.0.113.7")
	f.Allow("203.0.113.8")
	f.RemoveAllow("203.0.113.7")
	if f.Permitted("203.0.113.7") {
		t.Fatalf("removed entry must no longer be permitted while allow is non-empty")
	}
}

func TestListAllow(t *testing.T) {
	f := New()
	f.Allow("203.0.113.7")
	f.Allow("203.0.113.8")
	got := f.ListAllow()
	if len(got) != 2 {
		t.Fatalf("ListAllow = %v, want 2 entries", got)
	}
}

func TestIsLoopback(t *testing.T) {
	for _, ip := range []string{"127.0.0.1", "::1", "localhost"} {
		if !IsLoopback(ip) {
			t.Fatalf("IsLoopback(%q) = false, want true", ip)
		}
	}
	if IsLoopback("203.0.113.7") {
		t.Fatalf("IsLoopback reported a non-loopback address as loopback")
	}
}
