// Package pipeline runs one archive build: parse, index, assemble,
// transcribe, encrypt, emit and record. Progress is reported through a
// closed set of Event values.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/archive"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/crypt"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/logging"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/media"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/parse"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/scan"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/timeline"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/transcribe"
)

var (
	// ErrStopped is returned when the caller cancelled the run.
	ErrStopped = errors.New("stopped by request")
	// ErrBusy is returned when another build holds the run lock.
	ErrBusy = errors.New("another build is already running")
)

// Checker is implemented by engines that can verify their setup before
// a run starts.
type Checker interface {
	Check() error
}

type Options struct {
	ChatPath   string
	OutputPath string
	MediaRoot  string // defaults to the chat file's directory
	Title      string
	Lang       string
	Location   *time.Location
	Range      timeline.DateRange

	Transcribe   bool
	Encrypt      bool // implies Transcribe
	CacheDirName string

	// State, when set, is baked into the document.
	State *archive.State
}

// Worker holds the collaborators of a build. Engine may be nil when
// transcription is never requested; Catalog may be nil to skip recording.
type Worker struct {
	Engine   transcribe.Engine
	Catalog  *catalog.DB
	Grammar  *parse.Grammar
	Resolver *media.Resolver
	LockPath string

	logger *slog.Logger
}

func NewWorker(engine transcribe.Engine, cat *catalog.DB, lockPath string, logger *slog.Logger) *Worker {
	return &Worker{
		Engine:   engine,
		Catalog:  cat,
		Grammar:  parse.DefaultGrammar(),
		Resolver: media.DefaultResolver(),
		LockPath: lockPath,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Summary describes a finished build.
type Summary struct {
	Output    string
	MediaDir  string // set when media was encrypted
	ArchiveID string // catalog id, empty when not recorded
	Size      int64

	Timeline timeline.Stats
	Attached int

	Cached            int
	Transcribed       int
	TranscribeFailed  int
	TranscriptionTime time.Duration

	Encrypted      int
	EncryptSkipped int
	EncryptFailed  int
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %s events, %d attachments",
		filepath.Base(s.Output), humanize.Bytes(uint64(max(s.Size, 0))),
		humanize.Comma(int64(s.Timeline.Events)), s.Attached)
	if s.Timeline.Unparseable > 0 || s.Timeline.Filtered > 0 || s.Timeline.Duplicates > 0 {
		fmt.Fprintf(&b, "; dropped unparseable=%d filtered=%d duplicate-audio=%d",
			s.Timeline.Unparseable, s.Timeline.Filtered, s.Timeline.Duplicates)
	}
	if s.Cached+s.Transcribed+s.TranscribeFailed > 0 {
		fmt.Fprintf(&b, "; transcripts cached=%d new=%d failed=%d in %s",
			s.Cached, s.Transcribed, s.TranscribeFailed, s.TranscriptionTime.Round(time.Millisecond))
	}
	if s.MediaDir != "" {
		fmt.Fprintf(&b, "; encrypted new=%d kept=%d failed=%d into %s",
			s.Encrypted, s.EncryptSkipped, s.EncryptFailed, filepath.Base(s.MediaDir))
	}
	return b.String()
}

// Start runs the build on its own goroutine. Events arrive on the returned
// channel, which is closed after the terminal event. Cancel ctx to stop.
func (w *Worker) Start(ctx context.Context, opts Options) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		w.Run(ctx, opts, func(ev Event) { events <- ev })
	}()
	return events
}

// Run builds an archive synchronously. notify receives every status event
// and exactly one terminal event. The returned error is nil on success,
// ErrStopped, timeline.ErrNoData, or the failure.
func (w *Worker) Run(ctx context.Context, opts Options, notify func(Event)) (Summary, error) {
	if notify == nil {
		notify = func(Event) {}
	}
	sum, err := w.run(ctx, opts, notify)
	switch {
	case err == nil:
		w.logger.Info("archive built", slog.String("summary", sum.String()))
		notify(Finished{Summary: sum})
	case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled):
		w.logger.Info("build stopped", slog.String("output", opts.OutputPath))
		notify(Stopped{})
		err = ErrStopped
	case errors.Is(err, timeline.ErrNoData):
		w.logger.Warn("nothing to archive", slog.String("chat", opts.ChatPath))
		notify(NoData{})
	default:
		w.logger.Error("build failed", slog.String("error", err.Error()))
		notify(Failed{Err: err})
	}
	return sum, err
}

func (w *Worker) lock() (func(), error) {
	if w.LockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(w.LockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(w.LockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() { _ = fl.Unlock() }, nil
}

func stopped(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrStopped
	}
	return nil
}

func (w *Worker) run(ctx context.Context, opts Options, notify func(Event)) (Summary, error) {
	sum := Summary{Output: opts.OutputPath}
	if opts.ChatPath == "" || opts.OutputPath == "" {
		return sum, errors.New("chat file and output path are required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MediaRoot == "" {
		opts.MediaRoot = filepath.Dir(opts.ChatPath)
	}
	if opts.CacheDirName == "" {
		opts.CacheDirName = "_transcriptions_cache"
	}
	if opts.Encrypt {
		opts.Transcribe = true
	}

	unlock, err := w.lock()
	if err != nil {
		return sum, err
	}
	defer unlock()

	if opts.Transcribe {
		notify(CheckingEngine{})
		if w.Engine == nil {
			return sum, fmt.Errorf("%w: no engine configured", transcribe.ErrEngineFailed)
		}
		if c, ok := w.Engine.(Checker); ok {
			if err := c.Check(); err != nil {
				return sum, err
			}
		}
	} else {
		notify(EngineSkipped{})
	}

	var key []byte
	if opts.Encrypt {
		keyHex, reused := crypt.KeyFromDocument(opts.OutputPath)
		if !reused {
			if keyHex, err = crypt.GenerateKey(); err != nil {
				return sum, err
			}
		}
		if key, err = crypt.ParseKey(keyHex); err != nil {
			return sum, err
		}
		sum.MediaDir = crypt.MediaDir(opts.OutputPath)
		notify(CreatingMediaDir{Dir: sum.MediaDir})
		if err := os.MkdirAll(sum.MediaDir, 0o755); err != nil {
			return sum, fmt.Errorf("create media dir: %w", err)
		}
		w.logger.Debug("encryption key ready", slog.Bool("reused", reused))
	}

	notify(LoadingChat{Path: opts.ChatPath})
	records, err := parse.NewParser(w.Grammar).ParseFile(opts.ChatPath)
	if err != nil {
		return sum, fmt.Errorf("read chat: %w", err)
	}
	if err := stopped(ctx); err != nil {
		return sum, err
	}

	index, err := scan.BuildIndex(opts.MediaRoot)
	if err != nil {
		return sum, fmt.Errorf("index media: %w", err)
	}
	w.logger.Debug("media indexed", slog.String("root", index.Root()), slog.Int("files", index.Len()))
	notify(ScanningAudio{})
	externals, err := scan.ScanExternalAudio(opts.MediaRoot, opts.Location)
	if err != nil {
		return sum, fmt.Errorf("scan audio: %w", err)
	}
	notify(FoundExternal{Count: len(externals)})

	notify(Sorting{Count: len(records) + len(externals)})
	asm := timeline.NewAssembler(opts.Location, w.Resolver)
	asm.Range = opts.Range
	events, stats, err := asm.Assemble(records, externals)
	sum.Timeline = stats
	if err != nil {
		return sum, err
	}
	if err := stopped(ctx); err != nil {
		return sum, err
	}

	// resolve attachments once; a miss is plain text
	paths := make([]string, len(events))
	var audio []string
	for i, ev := range events {
		if ev.Attachment == "" {
			continue
		}
		p, ok := index.Lookup(ev.Attachment)
		if !ok {
			w.logger.Debug("media not found", slog.String("file", ev.Attachment))
			continue
		}
		paths[i] = p
		if w.Resolver.KindOf(p) == media.KindAudio {
			audio = append(audio, p)
		}
	}

	var texts map[string]string
	if opts.Transcribe && len(audio) > 0 {
		notify(CountingAudio{})
		runner := transcribe.NewRunner(w.Engine, transcribe.NewCache(filepath.Join(opts.MediaRoot, opts.CacheDirName)), w.logger)
		runner.OnProgress = func(p transcribe.Progress) {
			notify(Transcribing{Current: p.Current, Total: p.Total, FileName: p.FileName})
		}
		res, err := runner.Run(ctx, audio)
		sum.Cached, sum.Transcribed, sum.TranscribeFailed = res.Cached, res.Transcribed, res.Failed
		sum.TranscriptionTime = res.Elapsed
		if err != nil {
			return sum, ErrStopped
		}
		texts = res.Texts
	}

	notify(Processing{})
	units := make([]archive.Unit, len(events))
	for i, ev := range events {
		units[i] = archive.Unit{Event: ev}
		p := paths[i]
		if p == "" {
			continue
		}
		att := &archive.Attachment{
			FileName: filepath.Base(p),
			Kind:     w.Resolver.KindOf(p),
			Src:      archive.RelativeSrc(opts.OutputPath, p),
		}
		if t, ok := texts[p]; ok {
			att.Transcript = &t
		}
		if key != nil {
			if err := stopped(ctx); err != nil {
				return sum, err
			}
			notify(Encrypting{FileName: att.FileName})
			dst, created, err := crypt.EncryptFile(key, p, sum.MediaDir)
			if err != nil {
				sum.EncryptFailed++
				w.logger.Warn("encryption failed",
					slog.String("file", att.FileName),
					slog.String("error", err.Error()),
				)
				notify(EncryptFailed{FileName: att.FileName, Err: err})
				// no playable source, but the transcript is kept
				att.Src = ""
				units[i].Attachment = att
				continue
			}
			if created {
				sum.Encrypted++
			} else {
				sum.EncryptSkipped++
			}
			att.Src = archive.RelativeSrc(opts.OutputPath, dst)
			att.Encrypted = true
		}
		units[i].Attachment = att
		sum.Attached++
	}
	if err := stopped(ctx); err != nil {
		return sum, err
	}

	notify(BuildingHTML{})
	var keyHex string
	if key != nil {
		keyHex = fmt.Sprintf("%x", key)
	}
	title := opts.Title
	if title == "" {
		base := filepath.Base(opts.OutputPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	emitter, err := archive.NewEmitter(archive.Options{
		Title:    title,
		Lang:     opts.Lang,
		Location: opts.Location,
		Key:      keyHex,
		State:    opts.State,
	})
	if err != nil {
		return sum, err
	}
	if err := emitter.WriteFile(opts.OutputPath, units); err != nil {
		return sum, fmt.Errorf("write %s: %w", filepath.Base(opts.OutputPath), err)
	}
	if fi, err := os.Stat(opts.OutputPath); err == nil {
		sum.Size = fi.Size()
	}

	if w.Catalog != nil {
		id, err := catalog.Record(w.Catalog, catalogArchive(opts, title, records, units))
		if err != nil {
			w.logger.Warn("catalog update failed", slog.String("error", err.Error()))
		} else {
			sum.ArchiveID = id
		}
	}
	return sum, nil
}

func catalogArchive(opts Options, title string, records []parse.Record, units []archive.Unit) catalog.Archive {
	a := catalog.Archive{
		Path:        opts.OutputPath,
		ChatPath:    opts.ChatPath,
		Title:       title,
		Timezone:    opts.Location.String(),
		Lang:        opts.Lang,
		BuiltAt:     time.Now(),
		Encrypted:   opts.Encrypt,
		Transcribed: opts.Transcribe,
		Events:      make([]catalog.Entry, 0, len(units)),
	}
	for _, u := range units {
		ev := u.Event
		e := catalog.Entry{
			StableID:   ev.StableID,
			Number:     ev.Number,
			Timestamp:  ev.Timestamp,
			Author:     ev.Author,
			Kind:       catalog.KindText,
			Text:       ev.Body,
			Attachment: ev.Attachment,
		}
		switch {
		case ev.IsExternal:
			e.Kind = catalog.KindExternal
		case ev.Attachment != "":
			e.Kind = catalog.KindMedia
		}
		if !ev.IsExternal && ev.SequenceIndex < len(records) {
			e.LineNumber = records[ev.SequenceIndex].LineNumber
		}
		if u.Attachment != nil && u.Attachment.Transcript != nil {
			e.Text += "\n" + *u.Attachment.Transcript
		}
		a.Events = append(a.Events, e)
	}
	return a
}
