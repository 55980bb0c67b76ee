package database

import (
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ExternalChange reports that a key's entries were created, written or
// removed in the watched directory. Changes made by this process through the
// same directory are reported too; the source of a change is not recorded.
// The engine does not consume these; cmd/conjecture-demo prints them. KeyHash
// is the hashed directory name (see shortHash), not the original key string,
// since the directory layout never stores the key itself.
type ExternalChange struct {
	KeyHash string
}

// WatchingDatabase decorates a DirectoryDatabase with an fsnotify watch on
// its root, so that concurrent processes sharing one database directory
// (e.g. a fleet of CI workers) observe each other's saved examples without
// polling.
type WatchingDatabase struct {
	*DirectoryDatabase
	watcher *fsnotify.Watcher
	changes chan ExternalChange
	done    chan struct{}
}

// NewWatchingDatabase wraps dir with an fsnotify watch. Changes is a channel
// the caller should drain; it is closed when the watcher is closed.
//
// fsnotify watches are not recursive, so the root watch alone only catches a
// key's subdirectory being created, not blobs later written inside it. Every
// existing key subdirectory is added individually up front, and loop adds
// newly created ones as they appear. A blob written into a new subdirectory
// before loop has added its watch is not reported.
func NewWatchingDatabase(dir *DirectoryDatabase) (*WatchingDatabase, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir.path); err != nil {
		watcher.Close()
		return nil, err
	}
	entries, err := os.ReadDir(dir.path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := watcher.Add(filepath.Join(dir.path, e.Name())); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	w := &WatchingDatabase{
		DirectoryDatabase: dir,
		watcher:           watcher,
		changes:           make(chan ExternalChange, 16),
		done:              make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes returns the channel external-change notifications are delivered
// on.
func (w *WatchingDatabase) Changes() <-chan ExternalChange {
	return w.changes
}

func (w *WatchingDatabase) loop() {
	defer close(w.changes)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}
			info, statErr := os.Lstat(event.Name)
			isDir := statErr == nil && info.IsDir()
			if event.Op&fsnotify.Create != 0 && isDir {
				// A new key subdirectory; start watching it for the blob
				// writes that will follow, but this structural event on
				// its own isn't a saved example worth reporting.
				w.watcher.Add(event.Name)
				continue
			}
			hash := filepath.Base(filepath.Dir(event.Name))
			select {
			case w.changes <- ExternalChange{KeyHash: hash}:
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("database: watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *WatchingDatabase) Close() error {
	close(w.done)
	return w.watcher.Close()
}
