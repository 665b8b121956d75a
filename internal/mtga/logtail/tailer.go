// Package logtail incrementally reads a log file that is being appended to
// by a process this package does not control, tolerating rotation and
// in-place truncation.
package logtail

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Tailer incrementally reads completed lines from a file. It is not safe
// for concurrent use; callers serialize Open/Poll/Reset themselves (the
// ingest loop owns the tailer exclusively).
//
// A line is complete only once its trailing '\n' has been observed; a
// partial tail is held in pending and prefixed onto the next Poll's read,
// so no line is ever split across two Poll calls.
type Tailer struct {
	path string

	identity os.FileInfo
	lastPos  int64
	lastSize int64
	pending  []byte
}

// New creates a Tailer for path. It does not open the file until Open is called.
func New(path string) *Tailer {
	return &Tailer{path: path}
}

// Open records the file's identity and positions the tailer at offset zero,
// so historical lines are emitted first on the next Poll.
func (t *Tailer) Open() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	t.identity = info
	t.lastPos = 0
	t.lastSize = info.Size()
	t.pending = nil
	return nil
}

// Reset discards internal position tracking and re-opens the path from
// offset zero. The ingest loop calls this after a rotation notification.
func (t *Tailer) Reset() error {
	return t.Open()
}

// Poll returns every complete line appended since the last call (or since
// Open, on the first call). EOF is not an error. If the file has shrunk
// below the last known offset, the tailer assumes the file was truncated
// or replaced in place and restarts from offset zero of the new content.
func (t *Tailer) Poll() ([]string, error) {
	file, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.lastPos, t.lastSize, t.pending = 0, 0, nil
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	// A shrunken file means in-place truncation; a changed identity means
	// the path now names a different file (rotation the watcher has not
	// signalled yet). Either way the new content starts at offset zero.
	if stat.Size() < t.lastPos || (t.identity != nil && !os.SameFile(t.identity, stat)) {
		t.lastPos = 0
		t.pending = nil
	}
	t.identity = stat

	if stat.Size() <= t.lastPos {
		t.lastSize = stat.Size()
		return nil, nil
	}

	if _, err := file.Seek(t.lastPos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to offset %d: %w", t.lastPos, err)
	}

	chunk, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	t.lastPos += int64(len(chunk))
	t.lastSize = stat.Size()

	buf := append(t.pending, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx == -1 {
			break
		}
		line := buf[:idx]
		line = bytes.TrimSuffix(line, []byte("\r"))
		lines = append(lines, string(line))
		buf = buf[idx+1:]
	}
	t.pending = append([]byte(nil), buf...)

	return lines, nil
}

