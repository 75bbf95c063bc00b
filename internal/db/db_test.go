package db

import (
	"path/filepath"
	"testing"
)

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v, err := Version(d)
	if err != nil || v != 1 {
		t.Fatalf("version = %d, err = %v", v, err)
	}
	var mode string
	if err := d.Get(&mode, `PRAGMA journal_mode`); err != nil || mode != "wal" {
		t.Fatalf("journal_mode = %q, err = %v", mode, err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if v, _ := Version(d); v != 1 {
		t.Fatalf("version after reopen = %d", v)
	}
}

func TestRollbackLast(t *testing.T) {
	d, err := Open("file:db_rollback?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	if err := RollbackLast(d); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if v, _ := Version(d); v != 0 {
		t.Fatalf("version after rollback = %d", v)
	}
	var n int
	if err := d.Get(&n, `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'missions'`); err != nil || n != 0 {
		t.Fatalf("missions table still present: %d %v", n, err)
	}
	// Nothing left to roll back.
	if err := RollbackLast(d); err != nil {
		t.Fatalf("second rollback: %v", err)
	}
}

func TestWithDefaultParams(t *testing.T) {
	cases := map[string]string{
		"dispatch.db":                  "dispatch.db?_txlock=immediate",
		"file:x?mode=memory":           "file:x?mode=memory&_txlock=immediate",
		"dispatch.db?_txlock=deferred": "dispatch.db?_txlock=deferred",
	}
	for in, want := range cases {
		if got := withDefaultParams(in); got != want {
			t.Fatalf("withDefaultParams(%q) = %q, want %q", in, got, want)
		}
	}
}
