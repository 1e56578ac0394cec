package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(LogConfig{File: path, Level: "info", MaxSizeMB: 1})
	require.NoError(t, err)

	log.Debugw("hidden")
	log.Infow("room opened", "room", "room-1")
	SyncLogger(log)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "room opened")
	assert.Contains(t, string(b), "room-1")
	assert.NotContains(t, string(b), "hidden")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
