package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWritersFansOut(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupWithWriters(&console, &file, slog.LevelInfo)

	logger.Info("encrypting", "filename", "IMG-1.jpg")
	logger.Debug("hidden")

	assert.Contains(t, console.String(), "filename=IMG-1.jpg")
	assert.NotContains(t, console.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "encrypting", rec["msg"])
}

func TestSetupWritesLogFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "wab.log")

	logger, cleanup := Setup(&console, path, slog.LevelInfo)
	logger.Warn("cache miss")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cache miss"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewComponentLoggerNil(t *testing.T) {
	logger := NewComponentLogger(nil, "parse")
	require.NotNil(t, logger)
	logger.Info("no panic")
}
