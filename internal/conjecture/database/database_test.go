package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanDeleteNonExistingKey(t *testing.T) {
	db, err := NewDirectoryDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("never-saved", []byte("value")); err != nil {
		t.Fatalf("Delete on a never-saved key should be a no-op, got %v", err)
	}
}

func TestAppearsInListingAfterSaving(t *testing.T) {
	db, err := NewDirectoryDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Save("k", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := db.Save("k", []byte("b")); err != nil {
		t.Fatal(err)
	}
	values, err := db.Fetch("k")
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 {
		t.Fatalf("Fetch returned %d values, want 2", len(values))
	}
}

func TestCanDeleteKey(t *testing.T) {
	db, err := NewDirectoryDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Save("k", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("k", []byte("a")); err != nil {
		t.Fatal(err)
	}
	values, err := db.Fetch("k")
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 0 {
		t.Fatalf("Fetch after Delete returned %d values, want 0", len(values))
	}
}

func TestFetchOfUnknownKeyIsEmptyNotError(t *testing.T) {
	db, err := NewDirectoryDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	values, err := db.Fetch("nope")
	if err != nil {
		t.Fatal(err)
	}
	if values != nil {
		t.Fatalf("Fetch of an unknown key = %v, want nil", values)
	}
}

func TestSavingSameValueTwiceDeduplicates(t *testing.T) {
	db, err := NewDirectoryDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Save("k", []byte("same")); err != nil {
		t.Fatal(err)
	}
	if err := db.Save("k", []byte("same")); err != nil {
		t.Fatal(err)
	}
	values, err := db.Fetch("k")
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 {
		t.Fatalf("Fetch returned %d values for a duplicate save, want 1", len(values))
	}
}

func TestNoDatabaseDiscardsEverything(t *testing.T) {
	var db NoDatabase
	if err := db.Save("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	values, err := db.Fetch("k")
	if err != nil || len(values) != 0 {
		t.Fatalf("NoDatabase.Fetch = %v, %v; want empty, nil", values, err)
	}
}

func TestFormatFileIsWrittenOnFirstOpen(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewDirectoryDatabase(dir); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "FORMAT"))
	if err != nil {
		t.Fatalf("expected a FORMAT file to be written, got %v", err)
	}
	if string(raw) != currentFormat {
		t.Fatalf("FORMAT = %q, want %q", raw, currentFormat)
	}
}

func TestIncompatibleFormatIsRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "FORMAT"), []byte("2.0.0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDirectoryDatabase(dir); err == nil {
		t.Fatal("expected an error opening a database with an incompatible major FORMAT version")
	}
}
