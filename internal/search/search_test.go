package search

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
)

func seed(t *testing.T) (*catalog.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	path := filepath.Join(dir, "family.html")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	_, err = catalog.Record(db, catalog.Archive{
		Path:  path,
		Title: "Family",
		Events: []catalog.Entry{
			{StableID: "20240305090000-0", Number: 1, Timestamp: base, Author: "Alice", Text: "Are we still on for dinner tonight?"},
			{StableID: "20240305090100-1", Number: 2, Timestamp: base.Add(time.Minute), Author: "Bob", Text: "Yes, don't be late: 7:30"},
			{StableID: "20240305090200-2", Number: 3, Timestamp: base.Add(2 * time.Minute), Author: "Bob", Kind: catalog.KindMedia,
				Attachment: "PTT-20240305-WA0001.opus", Text: "PTT-20240305-WA0001.opus\nbring the dinner rolls"},
			{StableID: "20240305090300-3", Number: 4, Timestamp: base.Add(3 * time.Minute), Author: "Alice", Text: "好的 晚饭见"},
		},
	})
	require.NoError(t, err)
	return db, path
}

func TestSearchFTS(t *testing.T) {
	db, path := seed(t)

	results, err := Search(db, Options{Query: "dinner"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, path, r.Path)
		assert.Contains(t, r.Snippet, ">>>dinner<<<")
	}

	results, err = Search(db, Options{Query: "dinner", Kind: catalog.KindMedia})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Number)
	assert.Equal(t, "PTT-20240305-WA0001.opus", results[0].Attachment)

	results, err = Search(db, Options{Query: "dinner", Author: "alice"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "20240305090000-0", results[0].StableID)
}

func TestSearchQuotesChatText(t *testing.T) {
	db, _ := seed(t)
	results, err := Search(db, Options{Query: "don't"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Bob", results[0].Author)
}

func TestSearchCJKFallsBackToLike(t *testing.T) {
	db, _ := seed(t)
	results, err := Search(db, Options{Query: "晚饭"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "好的 >>>晚饭<<<见", results[0].Snippet)
}

func TestSearchArchiveFilter(t *testing.T) {
	db, path := seed(t)
	results, err := Search(db, Options{Query: "late", Archive: path})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = Search(db, Options{Query: "late", Archive: "/nowhere.html"})
	assert.Error(t, err)

	_, err = Search(db, Options{Query: "  "})
	assert.Error(t, err)
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "...ab >>>Cd<<< ef...", makeSnippet("xxxxab Cd efyyyy", "cd", 3))
	assert.Equal(t, "short", makeSnippet("short", "zzz", 10))
}
