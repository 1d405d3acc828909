package replication

import (
	"testing"

	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/store"
)

func TestRegisterUnregisterFollower(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	m := NewManager(s, nil)
	f := m.register("203.0.113.9")
	if len(m.Followers()) != 1 {
		t.Fatalf("expected 1 follower after register, got %d", len(m.Followers()))
	}
	m.unregister(f.ID)
	if len(m.Followers()) != 0 {
		t.Fatalf("expected 0 followers after unregister, got %d", len(m.Followers()))
	}
}

func TestRegisterInstallsLinkCommands(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	m := NewManager(s, nil)
	table := command.NewTable()
	m.Register(table)

	for _, name := range []string{"dump", "sync140"} {
		desc, ok := table.Lookup(name)
		if !ok {
			t.Fatalf("expected %s to be registered", name)
		}
		if !desc.Is(command.LINK) {
			t.Fatalf("%s must be LINK-flagged", name)
		}
	}
}
