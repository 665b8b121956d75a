package logtail

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RotationWatcher watches a log file's parent directory for the file being
// replaced (rotated) and signals the ingest loop so it can reset its tailer.
// Watching the parent directory, rather than the file itself, is what
// catches the CREATE event after the writer removes and recreates the path.
type RotationWatcher struct {
	path     string
	fallback time.Duration

	watcher *fsnotify.Watcher
	signal  chan struct{}
}

// NewRotationWatcher builds a watcher for path. fallback is the interval at
// which a stat-based size check (a file that has shrunk signals rotation)
// runs as a backstop, and the interval used outright when fsnotify setup
// fails (e.g. no inotify support).
func NewRotationWatcher(path string, fallback time.Duration) *RotationWatcher {
	if fallback <= 0 {
		fallback = 5 * time.Second
	}
	return &RotationWatcher{
		path:     path,
		fallback: fallback,
		signal:   make(chan struct{}, 1),
	}
}

// Signal returns the channel the ingest loop selects on; a rotation is
// signalled by a (non-blocking, coalesced) send.
func (w *RotationWatcher) Signal() <-chan struct{} {
	return w.signal
}

// Run blocks, watching for rotation until done is closed. It is intended
// to run in its own goroutine.
func (w *RotationWatcher) Run(done <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("rotation watcher: fsnotify unavailable, falling back to polling: %v", err)
		w.runPolling(done)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		log.Printf("rotation watcher: watch %s: %v, falling back to polling", dir, err)
		w.runPolling(done)
		return
	}
	w.watcher = watcher

	ticker := time.NewTicker(w.fallback)
	defer ticker.Stop()

	lastSize := w.statSize()

	for {
		select {
		case <-done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename), event.Has(fsnotify.Create):
				w.notify()
				lastSize = w.statSize()
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}

		case <-ticker.C:
			size := w.statSize()
			if size < lastSize {
				w.notify()
			}
			lastSize = size
		}
	}
}

// runPolling is the fsnotify-unavailable fallback: a pure stat-diff loop.
func (w *RotationWatcher) runPolling(done <-chan struct{}) {
	ticker := time.NewTicker(w.fallback)
	defer ticker.Stop()

	lastSize := w.statSize()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			size := w.statSize()
			if size < lastSize {
				w.notify()
			}
			lastSize = size
		}
	}
}

func (w *RotationWatcher) statSize() int64 {
	info, err := os.Stat(w.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (w *RotationWatcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Err returns a descriptive error if path's directory does not exist,
// letting callers fail fast instead of silently never seeing rotations.
func (w *RotationWatcher) Err() error {
	if _, err := os.Stat(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch directory for %s: %w", w.path, err)
	}
	return nil
}
