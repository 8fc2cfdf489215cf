package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const tsLayout = "2006-01-02T15:04:05Z07:00"

// Archive describes one finished build.
type Archive struct {
	Path        string
	ChatPath    string
	Title       string
	Timezone    string
	Lang        string
	BuiltAt     time.Time
	Encrypted   bool
	Transcribed bool
	Events      []Entry
}

// Entry is one timeline event as it is searched. Text holds the body plus
// any transcript.
type Entry struct {
	StableID   string
	Number     int
	Timestamp  time.Time
	Author     string
	Kind       string
	Text       string
	Attachment string
	LineNumber int
}

// Record stores a build, replacing any earlier record of the same document
// path. It returns the new archive id.
func Record(db *DB, a Archive) (string, error) {
	path, err := filepath.Abs(a.Path)
	if err != nil {
		return "", err
	}
	if prev, err := db.GetArchive(path); err != nil {
		return "", err
	} else if prev != nil {
		if err := db.DeleteArchive(prev.ID); err != nil {
			return "", fmt.Errorf("replace %s: %w", filepath.Base(path), err)
		}
	}

	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}
	var first, last string
	if n := len(a.Events); n > 0 {
		first = a.Events[0].Timestamp.Format(tsLayout)
		last = a.Events[n-1].Timestamp.Format(tsLayout)
	}
	if a.BuiltAt.IsZero() {
		a.BuiltAt = time.Now()
	}

	id := uuid.NewString()

	tx, err := db.Raw().Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO archives (archive_id, path, chat_path, title, timezone, lang, built_at, first_ts, last_ts, encrypted, transcribed, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, path, a.ChatPath, a.Title, a.Timezone, a.Lang,
		a.BuiltAt.UTC().Format(tsLayout), first, last,
		a.Encrypted, a.Transcribed, size,
	)
	if err != nil {
		return "", err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO events (archive_id, seq, stable_id, number, ts, author, kind, text, attachment, line_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, e := range a.Events {
		kind := e.Kind
		if kind == "" {
			kind = KindText
		}
		if _, err := stmt.Exec(
			id, i, e.StableID, e.Number, e.Timestamp.Format(tsLayout),
			e.Author, kind, e.Text, e.Attachment, e.LineNumber,
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Prune drops archives whose document no longer exists on disk.
func Prune(db *DB) (int, error) {
	archives, err := db.ListArchives(0)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, a := range archives {
		if _, err := os.Stat(a.Path); err == nil {
			continue
		}
		if err := db.DeleteArchive(a.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
