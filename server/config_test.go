package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	pc := cfg.RoomConfig().Phase
	assert.Equal(t, 2, pc.RequiredPlayers)
	assert.Equal(t, 4*time.Second, pc.ReadyDelay)
	assert.Equal(t, 60*time.Second, pc.MatchDuration)
	assert.Equal(t, 3*time.Second, pc.FinishGrace)
	assert.Equal(t, 10*time.Second, pc.ResultDuration)
	assert.Equal(t, 60, pc.StartTimer)
	assert.False(t, pc.FinishOnce)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := writeConfig(t, `
addr: ":9000"
game:
  required_players: 4
  match_duration_ms: 30000
  finish_once: true
  reset_ready_on_drop: true
  duplicate_join: replace
nats:
  url: nats://127.0.0.1:4222
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 4, cfg.Game.RequiredPlayers)
	assert.Equal(t, 30000, cfg.Game.MatchDurationMs)
	assert.Equal(t, 4000, cfg.Game.ReadyDelayMs, "unset keys keep defaults")
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "tileclash.rooms", cfg.NATS.SubjectPrefix)

	rc := cfg.RoomConfig()
	assert.Equal(t, DuplicateReplace, rc.Duplicate)
	assert.True(t, rc.Phase.FinishOnce)
	assert.True(t, rc.Phase.ResetOnDrop)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "game:\n  required_players: 4\n")
	t.Setenv("TILECLASH_REQUIRED_PLAYERS", "3")
	t.Setenv("PORT", "7777")
	t.Setenv("TILECLASH_CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("TILECLASH_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Game.RequiredPlayers)
	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigBadIntEnvIgnored(t *testing.T) {
	t.Setenv("TILECLASH_REQUIRED_PLAYERS", "many")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Game.RequiredPlayers)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "game: [oops"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "game:\n  required_players: 0\n"))
	assert.ErrorContains(t, err, "required_players")

	_, err = LoadConfig(writeConfig(t, "game:\n  match_duration_ms: 0\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "game:\n  ticks_per_second: -1\n"))
	assert.ErrorContains(t, err, "ticks_per_second")
}
