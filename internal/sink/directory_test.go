package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/arena-replay/internal/mtga/assembler"
)

func sampleReplay(matchID string) *assembler.MatchReplay {
	return &assembler.MatchReplay{
		Match: assembler.Match{
			ID:               matchID,
			ControllerSeatID: 1,
			ControllerName:   "Alara",
			OpponentName:     "Nicol Bolas",
			CreatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		GameResults: []assembler.GameResult{
			{GameNumber: 1, WinningSeatID: 1, ResultReason: "GameWin"},
		},
	}
}

func TestDirectorySink_WritesOneFilePerMatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirectorySink(dir)
	require.NoError(t, err)

	replay := sampleReplay("match-1")
	require.NoError(t, s.Write(context.Background(), replay))

	data, err := os.ReadFile(filepath.Join(dir, "match-1.json"))
	require.NoError(t, err)

	var got assembler.MatchReplay
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "match-1", got.Match.ID)
	assert.Equal(t, "Alara", got.Match.ControllerName)
}

func TestDirectorySink_RewriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirectorySink(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), sampleReplay("match-dup")))

	second := sampleReplay("match-dup")
	second.Match.ControllerName = "Updated"
	require.NoError(t, s.Write(context.Background(), second))

	data, err := os.ReadFile(filepath.Join(dir, "match-dup.json"))
	require.NoError(t, err)
	var got assembler.MatchReplay
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Updated", got.Match.ControllerName)
}

func TestDirectorySink_MissingDirectoryFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "replays")
	_, err := NewDirectorySink(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
