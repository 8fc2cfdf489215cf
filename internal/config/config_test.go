package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultTimezone, cfg.Timezone)
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.Equal(t, "_transcriptions_cache", cfg.CacheDirName)
	assert.Equal(t, filepath.Join(home, ".config", "wab", "catalog.db"), cfg.CatalogPath)
	assert.True(t, cfg.Transcriber.Subprocess)
}

func TestLoadOverlaysFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "custom.toml")
	body := `
timezone = "Europe/Paris"
language = "fr"
catalog_path = "~/archives/catalog.db"

[transcriber]
command = "whisper-cli"
model = "small"
language = "fr"
timeout = "5m"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Paris", cfg.Location().String())
	assert.Equal(t, "fr", cfg.Language)
	assert.Equal(t, filepath.Join(home, "archives", "catalog.db"), cfg.CatalogPath)
	assert.Equal(t, "whisper-cli", cfg.Transcriber.Command)
	assert.Equal(t, "small", cfg.Transcriber.Model)

	d, err := cfg.Transcriber.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Load("/nonexistent/wab.toml")
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"language", func(c *Config) { c.Language = "de" }},
		{"model", func(c *Config) { c.Transcriber.Model = "huge" }},
		{"transcriber language", func(c *Config) { c.Transcriber.Language = "es" }},
		{"timeout", func(c *Config) { c.Transcriber.Timeout = "soon" }},
		{"cache dir", func(c *Config) { c.CacheDirName = "a/b" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSetTimezone(t *testing.T) {
	cfg := defaults(t.TempDir())
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.SetTimezone("Asia/Tokyo"))
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.Error(t, cfg.SetTimezone("Nowhere/Town"))
}
