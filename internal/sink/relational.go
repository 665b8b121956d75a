package sink

import (
	"context"

	"github.com/ramonehamilton/arena-replay/internal/mtga/assembler"
	"github.com/ramonehamilton/arena-replay/internal/storage/repository"
)

// RelationalSink writes replays into the SQLite-backed replay schema via a
// ReplayRepository.
type RelationalSink struct {
	repo repository.ReplayRepository
}

// NewRelationalSink builds a RelationalSink over repo.
func NewRelationalSink(repo repository.ReplayRepository) *RelationalSink {
	return &RelationalSink{repo: repo}
}

// Write satisfies Sink.
func (s *RelationalSink) Write(ctx context.Context, replay *assembler.MatchReplay) error {
	return s.repo.Write(ctx, replay)
}
