// Package database persists interesting examples across runs, keyed by an
// opaque test identity, so that a previous failure is replayed before any
// new random generation happens.
package database

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	cjerrors "github.com/conjecture-labs/conjecture/internal/conjecture/errors"
)

// Database stores and retrieves the record blobs of interesting examples
// under a string key (typically derived from the test's name).
type Database interface {
	Save(key string, value []byte) error
	Delete(key string, value []byte) error
	Fetch(key string) ([][]byte, error)
}

// NoDatabase discards everything; Fetch always returns no entries. It is the
// zero-configuration default for tests that don't want persistence.
type NoDatabase struct{}

func (NoDatabase) Save(string, []byte) error          { return nil }
func (NoDatabase) Delete(string, []byte) error         { return nil }
func (NoDatabase) Fetch(string) ([][]byte, error)      { return nil, nil }

// formatConstraint is the semver range of on-disk layouts this build can
// read. Bumping the major component of currentFormat is a breaking change
// to the directory layout and must be paired with a bump here.
const formatConstraint = "^1"
const currentFormat = "1.0.0"

// DirectoryDatabase persists each example as its own file under path,
// grouped into a subdirectory named after a short hash of the key. This
// mirrors a content-addressed blob store: two equal values saved under the
// same key collide onto the same filename and are naturally deduplicated.
type DirectoryDatabase struct {
	path string
}

// NewDirectoryDatabase opens (creating if necessary) a directory-backed
// database at path, verifying its FORMAT file is compatible with this
// build's formatConstraint.
func NewDirectoryDatabase(path string) (*DirectoryDatabase, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, cjerrors.DatabaseIO("mkdir", path, err)
	}
	if err := checkFormat(path); err != nil {
		return nil, err
	}
	return &DirectoryDatabase{path: path}, nil
}

func checkFormat(path string) error {
	formatPath := filepath.Join(path, "FORMAT")
	raw, err := os.ReadFile(formatPath)
	if errors.Is(err, fs.ErrNotExist) {
		return os.WriteFile(formatPath, []byte(currentFormat), 0o644)
	}
	if err != nil {
		return cjerrors.DatabaseIO("read FORMAT", path, err)
	}
	found, err := semver.NewVersion(string(raw))
	if err != nil {
		return cjerrors.UnsupportedFormat(path, string(raw), formatConstraint)
	}
	constraint, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		// formatConstraint is a compile-time constant; a parse failure here
		// is a programming error, not a runtime condition.
		panic(fmt.Sprintf("database: invalid format constraint %q: %v", formatConstraint, err))
	}
	if !constraint.Check(found) {
		return cjerrors.UnsupportedFormat(path, found.String(), formatConstraint)
	}
	return nil
}

func shortHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:7]
}

func (d *DirectoryDatabase) keyDir(key string) string {
	return filepath.Join(d.path, shortHash([]byte(key)))
}

// Save writes value under key, creating the key's subdirectory if needed.
// The write is flushed and synced before returning so a crash immediately
// after Save cannot leave a truncated file behind.
func (d *DirectoryDatabase) Save(key string, value []byte) error {
	dir := d.keyDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cjerrors.DatabaseIO("mkdir", key, err)
	}
	name := filepath.Join(dir, shortHash(value))
	f, err := os.Create(name)
	if err != nil {
		return cjerrors.DatabaseIO("create", key, err)
	}
	defer f.Close()
	if _, err := f.Write(value); err != nil {
		return cjerrors.DatabaseIO("write", key, err)
	}
	return f.Sync()
}

// Delete removes value from under key. Deleting an entry that is already
// gone is not an error.
func (d *DirectoryDatabase) Delete(key string, value []byte) error {
	name := filepath.Join(d.keyDir(key), shortHash(value))
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cjerrors.DatabaseIO("delete", key, err)
	}
	return nil
}

// Fetch returns every value currently saved under key, in directory listing
// order. A key with no entries (including one that was never saved) returns
// an empty, non-nil-error result.
func (d *DirectoryDatabase) Fetch(key string) ([][]byte, error) {
	dir := d.keyDir(key)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, cjerrors.DatabaseIO("readdir", key, err)
	}
	values := make([][]byte, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, cjerrors.DatabaseIO("read", key, err)
		}
		values = append(values, b)
	}
	return values, nil
}
