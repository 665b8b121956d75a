package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/arena-replay/internal/storage"
	"github.com/ramonehamilton/arena-replay/internal/storage/repository"
)

func TestRelationalSink_WriteRoundTrips(t *testing.T) {
	cfg := storage.DefaultConfig(filepath.Join(t.TempDir(), "replay.db"))
	cfg.AutoMigrate = true
	db, err := storage.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewReplayRepository(db)
	s := NewRelationalSink(repo)

	require.NoError(t, s.Write(context.Background(), sampleReplay("match-1")))

	got, err := repo.GetMatch(context.Background(), "match-1")
	require.NoError(t, err)
	assert.Equal(t, "Alara", got.ControllerName)
}

func TestRelationalSink_DuplicateWriteFails(t *testing.T) {
	cfg := storage.DefaultConfig(filepath.Join(t.TempDir(), "replay.db"))
	cfg.AutoMigrate = true
	db, err := storage.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewReplayRepository(db)
	s := NewRelationalSink(repo)

	require.NoError(t, s.Write(context.Background(), sampleReplay("match-dup")))
	err = s.Write(context.Background(), sampleReplay("match-dup"))
	assert.ErrorIs(t, err, repository.ErrDuplicateMatch)
}
