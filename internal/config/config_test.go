package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "packdb.conf")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseBasics(t *testing.T) {
	path := writeConfig(t, `
# comment
server.ip 0.0.0.0
server.port 9999
server.readonly yes
server.allow 10.0.0.1
server.allow 10.0.0.2
replication.follower backup1:8889
`)
	c, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.IP != "0.0.0.0" || c.Port != 9999 || !c.Readonly {
		t.Fatalf("unexpected config: %+v", c)
	}
	if len(c.Allow) != 2 {
		t.Fatalf("Allow = %v, want 2 entries", c.Allow)
	}
	if len(c.Follower) != 1 || c.Follower[0].Host != "backup1" || c.Follower[0].Port != 8889 {
		t.Fatalf("Follower = %+v", c.Follower)
	}
}

func TestValidatePasswordRejectsPlaceholderAndTooShort(t *testing.T) {
	if err := ValidatePassword("very-strong-password"); err == nil {
		t.Fatalf("expected rejection of placeholder password")
	}
	long := make([]byte, 40)
	for i := range long {
		long[i] = 'x'
	}
	if err := ValidatePassword(string(long)); err != nil {
		t.Fatalf("unexpected rejection of a 40-character password: %v", err)
	}
	if err := ValidatePassword("a-reasonable-secret"); err == nil {
		t.Fatalf("expected rejection of a password shorter than 32 characters")
	}
}

func TestParseRejectsBadAuthPassword(t *testing.T) {
	path := writeConfig(t, "server.auth very-strong-password\n")
	if _, err := Parse(path); err == nil {
		t.Fatalf("expected Parse to reject placeholder password")
	}
}
