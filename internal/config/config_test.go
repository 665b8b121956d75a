package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveAndLoadFromRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.FilePath = "/tmp/Player.log"
	cfg.Output.Dir = "/tmp/replays"
	cfg.Output.DBPath = "/tmp/replays.db"

	t.Setenv("HOME", t.TempDir())
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Dir = "/tmp/replays"
	assert.NoError(t, cfg.Validate())

	cfg.Log.PollInterval = "not-a-duration"
	assert.Error(t, cfg.Validate())

	cfg.Log.PollInterval = "2s"
	cfg.Output.Dir = ""
	cfg.Output.DBPath = ""
	assert.Error(t, cfg.Validate(), "at least one output destination must be configured")
}
