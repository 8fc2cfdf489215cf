// Package catalog records every built archive and its events in a local
// sqlite database with a full-text index, for search and preview.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS archives (
    archive_id  TEXT PRIMARY KEY,
    path        TEXT NOT NULL UNIQUE,
    chat_path   TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL DEFAULT '',
    timezone    TEXT NOT NULL DEFAULT '',
    lang        TEXT NOT NULL DEFAULT 'en',
    built_at    TEXT NOT NULL DEFAULT '',
    first_ts    TEXT NOT NULL DEFAULT '',
    last_ts     TEXT NOT NULL DEFAULT '',
    encrypted   INTEGER NOT NULL DEFAULT 0,
    transcribed INTEGER NOT NULL DEFAULT 0,
    size        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
    archive_id  TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    stable_id   TEXT NOT NULL,
    number      INTEGER NOT NULL,
    ts          TEXT NOT NULL DEFAULT '',
    author      TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT 'text',
    text        TEXT NOT NULL,
    attachment  TEXT NOT NULL DEFAULT '',
    line_number INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (archive_id, seq)
);

CREATE INDEX IF NOT EXISTS events_stable_id ON events (archive_id, stable_id);

CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
    text,
    content=events,
    content_rowid=rowid,
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS events_ai AFTER INSERT ON events BEGIN
    INSERT INTO events_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS events_ad AFTER DELETE ON events BEGIN
    INSERT INTO events_fts(events_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS events_au AFTER UPDATE ON events BEGIN
    INSERT INTO events_fts(events_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO events_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion is bumped whenever the events layout changes. Opening a
// catalog with another version drops the recorded archives; they are
// re-recorded by the next build.
const schemaVersion = "1"

// Event kinds stored in the events table.
const (
	KindText     = "text"
	KindMedia    = "media"
	KindExternal = "external"
)

type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// one connection keeps :memory: databases alive and writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrateSchemaVersion(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return d, nil
}

func (d *DB) migrateSchemaVersion() error {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err == nil && ver == schemaVersion {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if _, err := d.db.Exec("DELETE FROM events"); err != nil {
		return err
	}
	if _, err := d.db.Exec("DELETE FROM archives"); err != nil {
		return err
	}
	_, err = d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type ArchiveRow struct {
	ID          string
	Path        string
	ChatPath    string
	Title       string
	Timezone    string
	Lang        string
	BuiltAt     string
	FirstTs     string
	LastTs      string
	Encrypted   bool
	Transcribed bool
	Size        int64
	EventCount  int
}

type EventRow struct {
	ArchiveID  string
	Seq        int
	StableID   string
	Number     int
	Ts         string
	Author     string
	Kind       string
	Text       string
	Attachment string
	LineNumber int
}

const archiveColumns = `a.archive_id, a.path, a.chat_path, a.title, a.timezone, a.lang, a.built_at,
	a.first_ts, a.last_ts, a.encrypted, a.transcribed, a.size,
	(SELECT COUNT(*) FROM events e WHERE e.archive_id = a.archive_id)`

func scanArchive(row interface{ Scan(...any) error }) (*ArchiveRow, error) {
	var a ArchiveRow
	err := row.Scan(&a.ID, &a.Path, &a.ChatPath, &a.Title, &a.Timezone, &a.Lang, &a.BuiltAt,
		&a.FirstTs, &a.LastTs, &a.Encrypted, &a.Transcribed, &a.Size, &a.EventCount)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArchive looks an archive up by id or by document path. It returns
// nil when nothing matches.
func (d *DB) GetArchive(idOrPath string) (*ArchiveRow, error) {
	abs := idOrPath
	if p, err := filepath.Abs(idOrPath); err == nil {
		abs = p
	}
	a, err := scanArchive(d.db.QueryRow(
		"SELECT "+archiveColumns+" FROM archives a WHERE a.archive_id = ? OR a.path = ?",
		idOrPath, abs,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListArchives returns recorded archives, most recently built first.
func (d *DB) ListArchives(limit int) ([]ArchiveRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(
		"SELECT "+archiveColumns+" FROM archives a ORDER BY a.built_at DESC, a.path LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchiveRow
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (d *DB) DeleteArchive(archiveID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events WHERE archive_id = ?", archiveID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM archives WHERE archive_id = ?", archiveID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) ArchiveCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM archives").Scan(&n)
	return n, err
}

func (d *DB) EventCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

const eventColumns = "archive_id, seq, stable_id, number, ts, author, kind, text, attachment, line_number"

func scanEvents(rows *sql.Rows) ([]EventRow, error) {
	var out []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ArchiveID, &e.Seq, &e.StableID, &e.Number, &e.Ts, &e.Author,
			&e.Kind, &e.Text, &e.Attachment, &e.LineNumber); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEvent returns the event with the given stable id, or nil.
func (d *DB) GetEvent(archiveID, stableID string) (*EventRow, error) {
	rows, err := d.db.Query(
		"SELECT "+eventColumns+" FROM events WHERE archive_id = ? AND stable_id = ?",
		archiveID, stableID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// GetEventsWindow returns the events around the one with hitStableID, context
// on each side. With an empty or unknown hit it returns the whole archive.
// startPos is the number of events before the window; hitIdx is -1 when the
// hit is not in the result.
func (d *DB) GetEventsWindow(archiveID, hitStableID string, context int) (events []EventRow, hitIdx int, startPos int, totalCount int, err error) {
	err = d.db.QueryRow(
		"SELECT COUNT(*) FROM events WHERE archive_id = ?", archiveID,
	).Scan(&totalCount)
	if err != nil {
		return nil, -1, 0, 0, err
	}

	hitPos := -1
	if hitStableID != "" {
		err = d.db.QueryRow(
			"SELECT seq FROM events WHERE archive_id = ? AND stable_id = ?",
			archiveID, hitStableID,
		).Scan(&hitPos)
		if err == sql.ErrNoRows {
			hitPos = -1
			err = nil
		} else if err != nil {
			return nil, -1, 0, 0, err
		}
	}

	startPos = 0
	limit := totalCount
	if hitPos >= 0 {
		startPos = max(hitPos-context, 0)
		endPos := min(hitPos+context+1, totalCount)
		limit = endPos - startPos
	}

	rows, err := d.db.Query(
		"SELECT "+eventColumns+" FROM events WHERE archive_id = ? ORDER BY seq LIMIT ? OFFSET ?",
		archiveID, limit, startPos,
	)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	defer rows.Close()

	events, err = scanEvents(rows)
	if err != nil {
		return nil, -1, 0, 0, err
	}
	hitIdx = -1
	for i, e := range events {
		if e.StableID == hitStableID {
			hitIdx = i
			break
		}
	}
	return events, hitIdx, startPos, totalCount, nil
}
