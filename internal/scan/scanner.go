package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MediaIndex maps lowercased file names to absolute paths. It is built once
// per run and read-only afterwards.
type MediaIndex struct {
	root  string
	paths map[string]string
}

// BuildIndex walks root once. A missing root yields an empty index.
// Unreadable subdirectories are skipped. When several files share a
// lowercased name the shortest path wins, ties broken lexically, so the
// result does not depend on traversal order.
func BuildIndex(root string) (*MediaIndex, error) {
	idx := &MediaIndex{root: root, paths: make(map[string]string)}
	if root == "" {
		return idx, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	idx.root = abs

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			return nil // skip unreadable dirs
		}
		if d.IsDir() {
			return nil
		}
		key := strings.ToLower(d.Name())
		if prev, ok := idx.paths[key]; ok && !preferPath(path, prev) {
			return nil
		}
		idx.paths[key] = path
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return idx, nil
}

func preferPath(candidate, current string) bool {
	if len(candidate) != len(current) {
		return len(candidate) < len(current)
	}
	return candidate < current
}

// Lookup resolves a file name case-insensitively.
func (m *MediaIndex) Lookup(name string) (string, bool) {
	if m == nil || name == "" {
		return "", false
	}
	p, ok := m.paths[strings.ToLower(name)]
	return p, ok
}

func (m *MediaIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.paths)
}

func (m *MediaIndex) Root() string {
	if m == nil {
		return ""
	}
	return m.root
}

// ExternalAudioName is the author shown for recordings found only on disk.
const ExternalAudioName = "External Recorded Audio"

var externalAudioRe = regexp.MustCompile(`(?i)^(?:AUD|PTT)-(\d{8})-WA\d{4,}\.\w+$`)

// ExternalAudio is a recording inferred from its file name alone.
type ExternalAudio struct {
	FileName  string
	Path      string
	Timestamp time.Time // local midnight of the date in the name
}

// ScanExternalAudio lists files directly under root whose names follow the
// recording pattern, stamped at midnight in loc. Names with an impossible
// date are ignored. A missing root yields nothing.
func ScanExternalAudio(root string, loc *time.Location) ([]ExternalAudio, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []ExternalAudio
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ts, ok := ExternalAudioTime(e.Name(), loc)
		if !ok {
			continue
		}
		out = append(out, ExternalAudio{
			FileName:  e.Name(),
			Path:      filepath.Join(root, e.Name()),
			Timestamp: ts,
		})
	}
	return out, nil
}

// ExternalAudioTime extracts the recording date from name.
func ExternalAudioTime(name string, loc *time.Location) (time.Time, bool) {
	m := externalAudioRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102", m[1], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
