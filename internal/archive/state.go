package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Priority is the per-message marker. It cycles none, red, amber, orange,
// white and back to none.
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityRed    Priority = "red"
	PriorityAmber  Priority = "amber"
	PriorityOrange Priority = "orange"
	PriorityWhite  Priority = "white"
)

var Priorities = []Priority{PriorityNone, PriorityRed, PriorityAmber, PriorityOrange, PriorityWhite}

func ParsePriority(s string) Priority {
	for _, p := range Priorities {
		if string(p) == s {
			return p
		}
	}
	return PriorityNone
}

// Keys of the four per-file stores, plus the prefix of transcript edits.
const (
	KeyCheckboxes       = "checkboxStates"
	KeyPriorities       = "msgPriorities"
	KeyNotes            = "msgNotes"
	KeyDeleted          = "msgDeletedIds"
	TranscriptKeyPrefix = "transcription-pre-"

	checkboxIDPrefix = "cb-"
	noteIDPrefix     = "note-"
)

// FileKey namespaces every stored key: the last path segment of the
// document, as the browser sees it.
func FileKey(documentPath string) string {
	base := filepath.Base(documentPath)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "default"
	}
	return base
}

func StorageKey(fileKey, key string) string {
	return fileKey + ":" + key
}

// Store is a flat string key/value space such as the browser's localStorage.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Keys() []string
}

// MapStore is an in-memory Store.
type MapStore map[string]string

func (m MapStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapStore) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m MapStore) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// migrateKey reads the namespaced key, falling back to the legacy
// un-namespaced one. A legacy value is copied forward; it is never removed.
func migrateKey(s Store, fileKey, key string) (string, error) {
	if v, ok := s.Get(StorageKey(fileKey, key)); ok && v != "" {
		return v, nil
	}
	v, ok := s.Get(key)
	if !ok || v == "" {
		return "", nil
	}
	if err := s.Set(StorageKey(fileKey, key), v); err != nil {
		return v, err
	}
	return v, nil
}

// State is the client-side state of one document, keyed by stable id.
// Absent entries mean the baked defaults: unchecked, no priority, no note,
// not deleted, original transcript.
type State struct {
	Checked     map[string]bool
	Priorities  map[string]Priority
	Notes       map[string]string
	Deleted     map[string]bool
	Transcripts map[string]string
}

func NewState() *State {
	return &State{
		Checked:     map[string]bool{},
		Priorities:  map[string]Priority{},
		Notes:       map[string]string{},
		Deleted:     map[string]bool{},
		Transcripts: map[string]string{},
	}
}

func (s *State) Empty() bool {
	return s == nil || (len(s.Checked) == 0 && len(s.Priorities) == 0 && len(s.Notes) == 0 &&
		len(s.Deleted) == 0 && len(s.Transcripts) == 0)
}

// LoadState rehydrates a document's state from s, applying the legacy
// migration rule to each store. A malformed store is skipped and reported
// in the joined error; the others still load.
func LoadState(s Store, fileKey string) (*State, error) {
	st := NewState()
	var errs []error

	decode := func(key string, into any) {
		raw, err := migrateKey(s, fileKey, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("migrate %s: %w", key, err))
		}
		if raw == "" {
			return
		}
		if err := json.Unmarshal([]byte(raw), into); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", key, err))
		}
	}

	var checks map[string]bool
	decode(KeyCheckboxes, &checks)
	for id, on := range checks {
		if on {
			st.Checked[strings.TrimPrefix(id, checkboxIDPrefix)] = true
		}
	}

	var prios map[string]string
	decode(KeyPriorities, &prios)
	for id, p := range prios {
		if pr := ParsePriority(p); pr != PriorityNone {
			st.Priorities[id] = pr
		}
	}

	var notes map[string]string
	decode(KeyNotes, &notes)
	for id, n := range notes {
		if strings.TrimSpace(n) != "" {
			st.Notes[strings.TrimPrefix(id, noteIDPrefix)] = n
		}
	}

	var deleted []string
	decode(KeyDeleted, &deleted)
	for _, id := range deleted {
		st.Deleted[id] = true
	}

	// transcript edits: one key per message, namespaced wins over legacy
	prefix := StorageKey(fileKey, TranscriptKeyPrefix)
	for _, k := range s.Keys() {
		var id string
		switch {
		case strings.HasPrefix(k, prefix):
			id = strings.TrimPrefix(k, prefix)
		case strings.HasPrefix(k, TranscriptKeyPrefix):
			id = strings.TrimPrefix(k, TranscriptKeyPrefix)
		default:
			continue
		}
		if _, done := st.Transcripts[id]; done || id == "" {
			continue
		}
		if v, ok := s.Get(StorageKey(fileKey, TranscriptKeyPrefix+id)); ok {
			st.Transcripts[id] = v
			continue
		}
		v, _ := s.Get(TranscriptKeyPrefix + id)
		if err := s.Set(StorageKey(fileKey, TranscriptKeyPrefix+id), v); err != nil {
			errs = append(errs, fmt.Errorf("migrate transcript %s: %w", id, err))
		}
		st.Transcripts[id] = v
	}

	return st, errors.Join(errs...)
}

// ExportVersion is the current state dump format.
const ExportVersion = 1

// Export is the JSON file written by a document's "Export state" button.
type Export struct {
	Version int               `json:"version"`
	FileKey string            `json:"file_key"`
	Items   map[string]string `json:"items"`
}

// ReadExport loads a state dump.
func ReadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse state export %s: %w", filepath.Base(path), err)
	}
	if exp.Version > ExportVersion {
		return nil, fmt.Errorf("state export %s: unsupported version %d", filepath.Base(path), exp.Version)
	}
	if exp.Items == nil {
		exp.Items = map[string]string{}
	}
	return &exp, nil
}

// State applies LoadState to the dump's items. A dump without a file key
// is read under the key of the document it is baked into.
func (e *Export) State(documentPath string) (*State, error) {
	fileKey := e.FileKey
	if fileKey == "" {
		fileKey = FileKey(documentPath)
	}
	return LoadState(MapStore(e.Items), fileKey)
}
