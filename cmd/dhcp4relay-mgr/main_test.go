package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadAndDecode(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, ".username")
	if err := os.WriteFile(fn, []byte("root\n"), 0600); err != nil {
		t.Fatal(err)
	}
	u, err := readAndDecode(fn, MAXUSERNAME)
	if err != nil {
		t.Fatal(err)
	}
	if u != "root" {
		t.Fatalf("expected root, got %q", u)
	}

	long := filepath.Join(dir, ".password")
	if err := os.WriteFile(long, []byte(strings.Repeat("x", MAXPASS+1)), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readAndDecode(long, MAXPASS); err == nil {
		t.Fatal("expected error for oversized credentials")
	}
	if _, err := readAndDecode(filepath.Join(dir, "missing"), MAXPASS); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestNewCounterStore(t *testing.T) {
	counterStore = "unknown"
	if _, err := newCounterStore(); err == nil {
		t.Fatal("expected error for an unknown store")
	}

	counterStore = storeBolt
	boltPath = filepath.Join(t.TempDir(), "counters.db")
	store, err := newCounterStore()
	if err != nil {
		t.Fatalf("failed to open bolt store with error: %+v", err)
	}
	c, ok := store.(interface{ Close() error })
	if !ok {
		t.Fatal("bolt store does not implement Close")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
