package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type cacheEntry struct {
	Text string `json:"text"`
}

// Cache stores one JSON file per media stem: <dir>/<stem>.json.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) Dir() string { return c.dir }

// Path is the entry location for mediaPath; the extension is stripped.
func (c *Cache) Path(mediaPath string) string {
	base := filepath.Base(mediaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.dir, stem+".json")
}

// Get returns the cached transcript. Missing, unreadable or malformed
// entries all count as a miss.
func (c *Cache) Get(mediaPath string) (string, bool) {
	data, err := os.ReadFile(c.Path(mediaPath))
	if err != nil {
		return "", false
	}
	var entry struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(data, &entry); err != nil || entry.Text == nil {
		return "", false
	}
	return *entry.Text, true
}

// Put writes the entry atomically, creating the cache directory as needed.
func (c *Cache) Put(mediaPath, text string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(cacheEntry{Text: text}, "", "  ")
	if err != nil {
		return err
	}
	path := c.Path(mediaPath)
	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
