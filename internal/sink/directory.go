package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramonehamilton/arena-replay/internal/mtga/assembler"
)

// DirectorySink writes one indented JSON file per replay, named after the
// match id, into a directory.
type DirectorySink struct {
	dir string
}

// NewDirectorySink builds a DirectorySink rooted at dir. The directory
// must already exist; creating it is the caller's responsibility.
func NewDirectorySink(dir string) (*DirectorySink, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("replay output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replay output directory %s: not a directory", dir)
	}
	return &DirectorySink{dir: dir}, nil
}

// Write satisfies Sink. A rewrite for the same match id overwrites the
// existing file; at most one file per match id ever exists.
func (s *DirectorySink) Write(ctx context.Context, replay *assembler.MatchReplay) error {
	if replay.Match.ID == "" {
		return fmt.Errorf("replay is missing a match id")
	}

	path := s.path(replay.Match.ID)

	data, err := json.MarshalIndent(replay, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal replay: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write replay file: %w", err)
	}

	return nil
}

func (s *DirectorySink) path(matchID string) string {
	return filepath.Join(s.dir, matchID+".json")
}
