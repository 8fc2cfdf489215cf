package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Kind int

const (
	KindDocument Kind = iota
	KindImage
	KindAudio
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "document"
	}
}

// Extensions groups the known media extensions (lowercase, with dot).
type Extensions struct {
	Image    []string
	Audio    []string
	Video    []string
	Document []string
}

func DefaultExtensions() Extensions {
	return Extensions{
		Image:    []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg"},
		Audio:    []string{".mp3", ".m4a", ".ogg", ".opus", ".wav", ".aac"},
		Video:    []string{".mp4", ".mov", ".mkv", ".webm"},
		Document: []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx"},
	}
}

// CaptureTags are the category prefixes of platform-native capture names.
var CaptureTags = []string{"IMG", "VID", "PTT", "AUD", "DOC", "VOICE", "STK"}

// OmittedPhrases mark a media message whose file was not exported.
var OmittedPhrases = []string{
	"image omitted", "photo omitted", "video omitted", "audio omitted",
	"sticker omitted", "media omitted",
}

// Reference is the outcome of scanning a message body.
type Reference struct {
	FileName string // empty when nothing was referenced
	Omitted  bool   // body says the media was left out of the export
}

func (r Reference) Found() bool { return r.FileName != "" }

// Resolver detects media references in message bodies. It is immutable.
type Resolver struct {
	kinds    map[string]Kind
	filename *regexp.Regexp
	omitted  *regexp.Regexp
}

// NewResolver builds the strict capture-name grammar and the loose
// "token ending in a known extension" fallback from the given sets.
func NewResolver(exts Extensions, tags []string, omitted []string) (*Resolver, error) {
	r := &Resolver{kinds: make(map[string]Kind)}
	add := func(list []string, k Kind) {
		for _, e := range list {
			r.kinds[strings.ToLower(e)] = k
		}
	}
	add(exts.Document, KindDocument)
	add(exts.Image, KindImage)
	add(exts.Audio, KindAudio)
	add(exts.Video, KindVideo)
	if len(r.kinds) == 0 {
		return nil, fmt.Errorf("media resolver: no extensions configured")
	}

	var loose []string
	for e := range r.kinds {
		loose = append(loose, regexp.QuoteMeta(strings.TrimPrefix(e, ".")))
	}
	// longest first so "docx" wins over "doc"
	sort.Slice(loose, func(i, j int) bool {
		if len(loose[i]) != len(loose[j]) {
			return len(loose[i]) > len(loose[j])
		}
		return loose[i] < loose[j]
	})
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = regexp.QuoteMeta(t)
	}

	var strict string
	if len(quoted) > 0 {
		strict = `(?:` + strings.Join(quoted, "|") + `)-\d{4,}-WA\d{4,}\.\w+|`
	}
	re, err := regexp.Compile(`(?i)` + strict + `\S+\.(?:` + strings.Join(loose, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("media resolver: %w", err)
	}
	r.filename = re

	if len(omitted) > 0 {
		q := make([]string, len(omitted))
		for i, p := range omitted {
			q[i] = regexp.QuoteMeta(p)
		}
		r.omitted, err = regexp.Compile(`(?i)(?:` + strings.Join(q, "|") + `)`)
		if err != nil {
			return nil, fmt.Errorf("media resolver: %w", err)
		}
	}
	return r, nil
}

// DefaultResolver uses the platform's default grammars.
func DefaultResolver() *Resolver {
	r, err := NewResolver(DefaultExtensions(), CaptureTags, OmittedPhrases)
	if err != nil {
		panic(err)
	}
	return r
}

// bidi marks that exports put in front of attachment names
const bidiMarks = "\u200e\u200f\u202a\u202b\u202c\u202d\u202e\u2066\u2067\u2068\u2069"

// Find returns the first media file name referenced in body.
func (r *Resolver) Find(body string) Reference {
	if m := r.filename.FindString(body); m != "" {
		if name := strings.TrimLeft(m, bidiMarks); name != "" {
			return Reference{FileName: name}
		}
	}
	if r.omitted != nil && r.omitted.MatchString(body) {
		return Reference{Omitted: true}
	}
	return Reference{}
}

// Names collects every distinct file name referenced across bodies.
func (r *Resolver) Names(bodies []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, b := range bodies {
		if ref := r.Find(b); ref.Found() {
			out[ref.FileName] = struct{}{}
		}
	}
	return out
}

// KindOf classifies a file name by extension; unknown extensions are documents.
func (r *Resolver) KindOf(name string) Kind {
	if k, ok := r.kinds[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return KindDocument
}
