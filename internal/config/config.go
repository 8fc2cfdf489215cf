package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultTimezone = "America/New_York"

// Models lists the transcription model names accepted by the engine, fastest first.
var Models = []string{"tiny", "base", "small", "medium", "large"}

type Transcriber struct {
	Command    string   `toml:"command"`
	Args       []string `toml:"args"`
	Model      string   `toml:"model"`
	Language   string   `toml:"language"` // "en", "fr" or "auto"
	Subprocess bool     `toml:"subprocess"`
	Timeout    string   `toml:"timeout"`
}

type Config struct {
	Timezone     string      `toml:"timezone"`
	Language     string      `toml:"language"`
	CacheDirName string      `toml:"cache_dir_name"`
	CatalogPath  string      `toml:"catalog_path"`
	LockPath     string      `toml:"lock_path"`
	LogFile      string      `toml:"log_file"`
	LogLevel     string      `toml:"log_level"`
	Transcriber  Transcriber `toml:"transcriber"`

	location *time.Location
}

func defaults(home string) *Config {
	dir := filepath.Join(home, ".config", "wab")
	return &Config{
		Timezone:     DefaultTimezone,
		Language:     "en",
		CacheDirName: "_transcriptions_cache",
		CatalogPath:  filepath.Join(dir, "catalog.db"),
		LockPath:     filepath.Join(dir, "build.lock"),
		LogFile:      filepath.Join(dir, "wab.log"),
		LogLevel:     "info",
		Transcriber: Transcriber{
			Command: "whisper",
			Args: []string{
				"{file}", "--model", "{model}", "--language", "{language}",
				"--output_format", "txt", "--output_dir", "{outdir}",
			},
			Model:      "large",
			Language:   "auto",
			Subprocess: true,
			Timeout:    "30m",
		},
	}
}

// DefaultPath is the config file consulted when no explicit path is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "wab", "config.toml"), nil
}

// Load overlays the TOML file at path (or the default location when path is
// empty) on top of built-in defaults, then validates the result.
func Load(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := defaults(home)

	cfgPath := path
	if cfgPath == "" {
		cfgPath = filepath.Join(home, ".config", "wab", "config.toml")
	}
	cfgPath = expandHome(cfgPath, home)
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	} else if path != "" {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	// expand ~ in paths
	cfg.CatalogPath = expandHome(cfg.CatalogPath, home)
	cfg.LockPath = expandHome(cfg.LockPath, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes fields and resolves the configured timezone.
func (c *Config) Validate() error {
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language != "en" && c.Language != "fr" {
		return fmt.Errorf("language %q: must be en or fr", c.Language)
	}
	if strings.TrimSpace(c.CacheDirName) == "" || strings.ContainsAny(c.CacheDirName, `/\`) {
		return fmt.Errorf("cache_dir_name %q: must be a plain directory name", c.CacheDirName)
	}

	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	t := &c.Transcriber
	t.Model = strings.ToLower(strings.TrimSpace(t.Model))
	if !validModel(t.Model) {
		return fmt.Errorf("transcriber.model %q: must be one of %s", t.Model, strings.Join(Models, ", "))
	}
	switch t.Language {
	case "en", "fr", "auto":
	default:
		return fmt.Errorf("transcriber.language %q: must be en, fr or auto", t.Language)
	}
	if _, err := t.TimeoutDuration(); err != nil {
		return fmt.Errorf("transcriber.timeout: %w", err)
	}
	return nil
}

// Location is the resolved timezone. Validate must have succeeded first.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// SetTimezone overrides the configured zone (e.g. from a flag) and re-resolves it.
func (c *Config) SetTimezone(name string) error {
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("timezone %q: %w", name, err)
	}
	c.Timezone = name
	c.location = loc
	return nil
}

// TimeoutDuration parses Timeout; empty means no limit.
func (t Transcriber) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(t.Timeout) == "" {
		return 0, nil
	}
	return time.ParseDuration(t.Timeout)
}

func validModel(name string) bool {
	for _, m := range Models {
		if m == name {
			return true
		}
	}
	return false
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
