package replication

import (
	"bytes"
	"context"
	"testing"
)

func TestFileArchiveStoreFetchRoundTrip(t *testing.T) {
	a, err := NewFileArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileArchive: %v", err)
	}
	ctx := context.Background()
	want := []byte("segment payload")
	if err := a.Store(ctx, "seg-001", bytes.NewReader(want)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	r, err := a.Fetch(ctx, "seg-001")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("reading fetched segment: %v", err)
	}
	if buf.String() != string(want) {
		t.Fatalf("Fetch = %q, want %q", buf.String(), want)
	}
}

func TestFileArchiveFetchMissingReturnsError(t *testing.T) {
	a, err := NewFileArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileArchive: %v", err)
	}
	if _, err := a.Fetch(context.Background(), "does-not-exist"); err == nil {
		t.Fatalf("expected an error fetching a missing object")
	}
}
