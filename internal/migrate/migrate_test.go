package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/store"
)

func TestRegisterRejectsTooFewArguments(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	table := command.NewTable()
	Register(table, s)

	desc, ok := table.Lookup("migrate_import")
	if !ok {
		t.Fatalf("expected migrate_import to be registered")
	}
	resp := desc.Handler(proto.Request{[]byte("migrate_import"), []byte("mysql")})
	if resp.Status != proto.StatusClientError {
		t.Fatalf("status = %q, want %q", resp.Status, proto.StatusClientError)
	}
}

func TestImportRejectsUnreachableSource(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = Import(ctx, s, MySQL, "127.0.0.1:1/dbname", "tbl", "target")
	if err == nil {
		t.Fatalf("expected Import to fail against an unreachable source")
	}
}
