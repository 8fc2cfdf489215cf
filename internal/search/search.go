package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
)

type Result struct {
	ArchiveID  string
	Path       string
	Title      string
	StableID   string
	Number     int
	Ts         string
	Author     string
	Kind       string
	Attachment string
	Snippet    string
	Rank       float64
}

type Options struct {
	Query   string
	Archive string // "" = all, else archive id or document path
	Author  string // "" = all, case-insensitive exact match
	Kind    string // "" = all, "text", "media", "external"
	Since   string // "" = no filter, e.g. "2024-01-01"
	Limit   int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	qRunes := []rune(strings.ToLower(query))
	idx := -1
	if len(lower) == len(runes) {
		idx = runeIndex(lower, qRunes)
	}
	if idx < 0 || len(qRunes) == 0 {
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}
	start := max(idx-contextChars, 0)
	end := min(idx+len(qRunes)+contextChars, len(runes))
	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	snippet := string(runes[start:idx]) +
		">>>" + string(runes[idx:idx+len(qRunes)]) + "<<<" +
		string(runes[idx+len(qRunes):end])
	return prefix + snippet + suffix
}

func runeIndex(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ftsQuery quotes every term so chat text like "don't" or "3:15" is not
// read as FTS5 syntax. Terms are ANDed.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

func Search(db *catalog.DB, opts Options) ([]Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Archive != "" {
		a, err := db.GetArchive(opts.Archive)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("archive not found: %s", opts.Archive)
		}
		opts.Archive = a.ID
	}

	if containsCJK(opts.Query) {
		return searchLike(db, opts)
	}
	return searchFTS(db, opts)
}

func filters(opts Options) ([]string, []any) {
	var conditions []string
	var args []any
	if opts.Archive != "" {
		conditions = append(conditions, "e.archive_id = ?")
		args = append(args, opts.Archive)
	}
	if opts.Author != "" {
		conditions = append(conditions, "e.author = ? COLLATE NOCASE")
		args = append(args, opts.Author)
	}
	if opts.Kind != "" {
		conditions = append(conditions, "e.kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.Since != "" {
		conditions = append(conditions, "e.ts >= ?")
		args = append(args, opts.Since)
	}
	return conditions, args
}

const resultColumns = `e.archive_id, a.path, a.title, e.stable_id, e.number, e.ts, e.author, e.kind, e.attachment`

func searchFTS(db *catalog.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts)
	conditions = append([]string{"events_fts MATCH ?"}, conditions...)
	args = append([]any{ftsQuery(opts.Query)}, args...)

	query := fmt.Sprintf(`
		SELECT %s,
			snippet(events_fts, 0, '>>>','<<<', '...', 24) AS snip,
			bm25(events_fts) AS rank
		FROM events_fts
		JOIN events e ON events_fts.rowid = e.rowid
		JOIN archives a ON e.archive_id = a.archive_id
		WHERE %s
		ORDER BY rank, e.ts
		LIMIT ?
	`, resultColumns, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ArchiveID, &r.Path, &r.Title, &r.StableID, &r.Number, &r.Ts,
			&r.Author, &r.Kind, &r.Attachment, &r.Snippet, &r.Rank); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func searchLike(db *catalog.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts)
	conditions = append([]string{"e.text LIKE ?"}, conditions...)
	args = append([]any{"%" + opts.Query + "%"}, args...)

	query := fmt.Sprintf(`
		SELECT %s, e.text
		FROM events e
		JOIN archives a ON e.archive_id = a.archive_id
		WHERE %s
		ORDER BY e.ts
		LIMIT ?
	`, resultColumns, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	return scanLike(rows, opts.Query)
}

func scanLike(rows *sql.Rows, query string) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(&r.ArchiveID, &r.Path, &r.Title, &r.StableID, &r.Number, &r.Ts,
			&r.Author, &r.Kind, &r.Attachment, &fullText); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}
