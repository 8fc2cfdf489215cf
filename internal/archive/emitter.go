package archive

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/i18n"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/media"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/timeline"
)

//go:embed assets/archive.html.tmpl assets/archive.css assets/archive.js assets/decrypt.js
var assets embed.FS

// Attachment is a resolved media file of one event.
type Attachment struct {
	FileName  string
	Kind      media.Kind
	Src       string // URL relative to the document
	Encrypted bool   // Src is an .aes artifact

	// Transcript is set for audio that went through transcription.
	Transcript *string
}

// Unit is one event as it will appear in the document.
type Unit struct {
	Event      timeline.Event
	Attachment *Attachment
}

type Options struct {
	Title    string
	Lang     string
	Location *time.Location // zone of the local date and time shown per message
	Key      string         // hex key when media is encrypted

	// State, when non-empty, is baked into the document: it is rendered as
	// the defaults, the baked marker is set and mutating controls are left out.
	State *State
}

// Emitter renders timelines into self-contained HTML documents.
type Emitter struct {
	opts    Options
	strings *i18n.Strings
	tmpl    *template.Template
	css     template.CSS
	script  template.JS
	decrypt template.JS
}

func NewEmitter(opts Options) (*Emitter, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	tmpl, err := template.ParseFS(assets, "assets/archive.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	read := func(name string) (string, error) {
		b, err := assets.ReadFile(name)
		return string(b), err
	}
	css, err := read("assets/archive.css")
	if err != nil {
		return nil, err
	}
	script, err := read("assets/archive.js")
	if err != nil {
		return nil, err
	}
	decrypt, err := read("assets/decrypt.js")
	if err != nil {
		return nil, err
	}
	return &Emitter{
		opts:    opts,
		strings: i18n.For(opts.Lang),
		tmpl:    tmpl,
		css:     template.CSS(css),
		script:  template.JS(script),
		decrypt: template.JS(decrypt),
	}, nil
}

type documentView struct {
	Lang          string
	Title         string
	Baked         bool
	Key           string
	S             *i18n.Strings
	CSS           template.CSS
	Script        template.JS
	DecryptScript template.JS
	JSStrings     map[string]string
	Units         []unitView
}

type unitView struct {
	ID          string
	Number      int
	External    bool
	Style       template.CSS
	Author      string
	DateText    string
	LocalTime   string
	UTCTime     string
	Body        string
	Media       *mediaView
	Omitted     bool
	Checked     bool
	Priority    Priority
	Note        string
	Deleted     bool
	DeletedText string
}

type mediaView struct {
	UnitID        string
	Kind          string
	FileName      string
	Src           string
	Encrypted     bool
	HasTranscript bool
	Transcript    string
}

type colorPair struct {
	light, dark, border string
}

// Authors alternate between two colour pairs in name order.
var palette = [2]colorPair{
	{light: "#e3f2fd", dark: "#0d2a40", border: "#a0cff0"},
	{light: "#f3e5f5", dark: "#3c2a3f", border: "#d6b6da"},
}

func (c colorPair) style() template.CSS {
	return template.CSS(fmt.Sprintf(
		"--bubble-bg-light: %s; --bubble-bg-dark: %s; --bubble-bg-vibrant: %s; border-left-color: %s;",
		c.light, c.dark, c.dark, c.border))
}

var defaultColors = colorPair{light: "var(--bubble-light)", dark: "var(--bubble-dark)", border: "transparent"}

func authorStyles(units []Unit) map[string]template.CSS {
	seen := map[string]bool{}
	var names []string
	for _, u := range units {
		if u.Event.IsExternal || u.Event.Author == "" || seen[u.Event.Author] {
			continue
		}
		seen[u.Event.Author] = true
		names = append(names, u.Event.Author)
	}
	sort.Strings(names)
	styles := make(map[string]template.CSS, len(names))
	for i, n := range names {
		styles[n] = palette[i%len(palette)].style()
	}
	return styles
}

func (e *Emitter) view(units []Unit) documentView {
	s := e.strings
	state := e.opts.State
	baked := !state.Empty()
	if state == nil {
		state = NewState()
	}

	doc := documentView{
		Lang:          s.Lang,
		Title:         e.opts.Title,
		Baked:         baked,
		Key:           e.opts.Key,
		S:             s,
		CSS:           e.css,
		Script:        e.script,
		DecryptScript: e.decrypt,
		JSStrings: map[string]string{
			"messageDeleted":   s.MessageDeleted,
			"statesSaved":      s.StatesSaved,
			"statesReset":      s.StatesReset,
			"storageFailed":    s.StorageFailed,
			"decryptionFailed": s.DecryptionFailed,
		},
		Units: make([]unitView, 0, len(units)),
	}

	styles := authorStyles(units)
	for _, u := range units {
		ev := u.Event
		local := ev.Timestamp.In(e.opts.Location)
		v := unitView{
			ID:        ev.StableID,
			Number:    ev.Number,
			External:  ev.IsExternal,
			Author:    ev.Author,
			DateText:  s.LongDate(local),
			LocalTime: local.Format("15:04"),
			UTCTime:   ev.Timestamp.UTC().Format("15:04") + " UTC",
			Body:      ev.Body,
			Omitted:   ev.Omitted,
			Checked:   state.Checked[ev.StableID],
			Priority:  PriorityNone,
			Note:      state.Notes[ev.StableID],
			Deleted:   state.Deleted[ev.StableID],
		}
		switch {
		case ev.IsExternal:
			v.Author = s.ExternalAudioName
		case ev.Author == "":
			v.Style = defaultColors.style()
		default:
			v.Style = styles[ev.Author]
		}
		if p, ok := state.Priorities[ev.StableID]; ok {
			v.Priority = p
		}
		if v.Deleted {
			v.DeletedText = s.DeletedPlaceholder(ev.Number)
		}
		if a := u.Attachment; a != nil {
			m := &mediaView{
				UnitID:    ev.StableID,
				Kind:      a.Kind.String(),
				FileName:  a.FileName,
				Src:       a.Src,
				Encrypted: a.Encrypted,
			}
			if a.Kind == media.KindAudio && a.Transcript != nil {
				m.HasTranscript = true
				m.Transcript = *a.Transcript
				if edited, ok := state.Transcripts[ev.StableID]; ok {
					m.Transcript = edited
				}
			}
			v.Media = m
		}
		doc.Units = append(doc.Units, v)
	}
	return doc
}

// Render writes the document for units to w. Output is deterministic for
// identical input.
func (e *Emitter) Render(w io.Writer, units []Unit) error {
	return e.tmpl.Execute(w, e.view(units))
}

// WriteFile renders to path atomically.
func (e *Emitter) WriteFile(path string, units []Unit) error {
	var buf bytes.Buffer
	if err := e.Render(&buf, units); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// RelativeSrc turns a file path into an escaped URL path relative to the
// document directory.
func RelativeSrc(documentPath, file string) string {
	rel, err := filepath.Rel(filepath.Dir(documentPath), file)
	if err != nil {
		rel = file
	}
	u := url.URL{Path: filepath.ToSlash(rel)}
	return u.String()
}
