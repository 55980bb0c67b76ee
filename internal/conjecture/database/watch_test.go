package database

import (
	"testing"
	"time"
)

func TestWatchingDatabaseObservesExternalSaves(t *testing.T) {
	dir := t.TempDir()
	owner, err := NewDirectoryDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	// Pre-create the key's subdirectory so the watch, which isn't
	// recursive, is already listening on it before the external save.
	if err := owner.Save("k", []byte("a")); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatchingDatabase(owner)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	other, err := NewDirectoryDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Save("k", []byte("b")); err != nil {
		t.Fatal(err)
	}

	want := shortHash([]byte("k"))
	select {
	case change, ok := <-w.Changes():
		if !ok {
			t.Fatal("Changes() closed before delivering a notification")
		}
		if change.KeyHash != want {
			t.Fatalf("ExternalChange.KeyHash = %q, want %q", change.KeyHash, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an external change notification")
	}
}

func TestWatchingDatabaseClosesChangesChannelOnClose(t *testing.T) {
	dir := t.TempDir()
	owner, err := NewDirectoryDatabase(dir)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatchingDatabase(owner)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-w.Changes(); ok {
		t.Fatal("Changes() should be closed once the watch is closed")
	}
}
