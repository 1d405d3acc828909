package logging

import "testing"

func TestWithRequestIDTagsOnlyInsideCallback(t *testing.T) {
	if got := requestID(); got != "" {
		t.Fatalf("requestID() outside WithRequestID = %q, want empty", got)
	}
	var inside string
	WithRequestID("42:get", func() {
		inside = requestID()
	})
	if inside != "42:get" {
		t.Fatalf("requestID() inside WithRequestID = %q, want 42:get", inside)
	}
	if got := requestID(); got != "" {
		t.Fatalf("requestID() leaked outside WithRequestID: %q", got)
	}
}

func TestTagPrefixesFormatWhenRequestIDSet(t *testing.T) {
	var got string
	WithRequestID("7:set", func() {
		got = tag("storing key")
	})
	if got != "[7:set] storing key" {
		t.Fatalf("tag() = %q, want [7:set] storing key", got)
	}
	if got := tag("no id"); got != "no id" {
		t.Fatalf("tag() outside context = %q, want unchanged", got)
	}
}
