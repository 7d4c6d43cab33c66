package kvdb

import (
	"path/filepath"
	"testing"
)

func TestOpenSetGetHasRoundTrips(t *testing.T) {
	dir := t.TempDir()
	adapter, err := Open("relayer-test", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer adapter.Close()

	key := []byte("message:1:5")
	if has, err := adapter.Has(key); err != nil || has {
		t.Fatalf("expected key absent before Set, has=%v err=%v", has, err)
	}

	if err := adapter.Set(key, []byte("payload")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if has, err := adapter.Has(key); err != nil || !has {
		t.Fatalf("expected key present after Set, has=%v err=%v", has, err)
	}

	got, err := adapter.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected payload, got %q", got)
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	a, err := Open("relayer-test", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := a.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := Open("relayer-test", dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	got, err := b.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("expected persisted value v, got %q", got)
	}
}
