package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
)

func TestWrapLineSkipsEscapes(t *testing.T) {
	assert.Equal(t, []string{"abc", "def"}, wrapLine("abcdef", 3))
	assert.Equal(t, []string{"\033[1mab", "cd\033[0m"}, wrapLine("\033[1mabcd\033[0m", 2))
	// wide runes take two columns
	assert.Equal(t, []string{"好的", "见"}, wrapLine("好的见", 4))
	assert.Equal(t, []string{""}, wrapLine("", 5))
}

func TestHighlightKeywords(t *testing.T) {
	got := highlightKeywords("Dinner at dinner time", `"dinner"`)
	assert.Equal(t, 2, strings.Count(got, colorBoldRed))
	assert.Contains(t, got, colorBoldRed+"Dinner"+colorReset)
	assert.Equal(t, "plain", highlightKeywords("plain", ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello…", Truncate("hello\nworld", 6))
	assert.Equal(t, "short", Truncate("short", 10))
}

func TestRenderArchive(t *testing.T) {
	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(dir, "chat.html")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	a := catalog.Archive{Path: path, Title: "Family", Timezone: "UTC"}
	for i := range 30 {
		a.Events = append(a.Events, catalog.Entry{
			StableID:  fmt.Sprintf("id-%d", i),
			Number:    i + 1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Author:    []string{"Alice", "Bob"}[i%2],
			Text:      fmt.Sprintf("line %d", i),
		})
	}
	a.Events[15].Attachment = "IMG-20240305-WA0001.jpg"
	a.Events[15].Kind = catalog.KindMedia
	a.Events[15].Text = "IMG-20240305-WA0001.jpg\ncaption here"
	id, err := catalog.Record(db, a)
	require.NoError(t, err)

	out, hit, err := RenderArchive(db, id, Options{HitStableID: "id-15", Context: 2, NoColor: true})
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), hit)
	assert.Equal(t, ">> #16 Bob · 2024-03-05T09:15:00Z <<", lines[hit])
	assert.Contains(t, out, "... (13 messages before) ...")
	assert.Contains(t, out, "... (12 messages after) ...")
	assert.Contains(t, out, "  [IMG-20240305-WA0001.jpg]\n  caption here")
	assert.NotContains(t, out, "\033[")

	_, _, err = RenderArchive(db, "missing", Options{})
	assert.Error(t, err)
}
