package transcribe

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/logging"
)

// FailurePrefix starts the text stored in place of a transcript that could
// not be produced.
const FailurePrefix = "Transcription failed: "

// Progress is reported before each engine invocation.
type Progress struct {
	Current  int // 1-based among cache misses
	Total    int
	FileName string
}

// Result summarizes one Run.
type Result struct {
	Texts       map[string]string // media path -> transcript or failure text
	Cached      int
	Transcribed int
	Failed      int
	Elapsed     time.Duration // wall-clock time spent inside the engine
}

// Runner transcribes audio files through a cache. Failures never abort the
// batch; cancellation is checked before each file, never during one.
type Runner struct {
	engine Engine
	cache  *Cache
	logger *slog.Logger

	// OnProgress, when set, is called before each cache miss is transcribed.
	OnProgress func(Progress)
}

func NewRunner(engine Engine, cache *Cache, logger *slog.Logger) *Runner {
	return &Runner{
		engine: engine,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
}

// CountPending is the dry pass: how many distinct paths have no usable
// cache entry.
func (r *Runner) CountPending(paths []string) int {
	n := 0
	for _, p := range dedupe(paths) {
		if _, ok := r.cache.Get(p); !ok {
			n++
		}
	}
	return n
}

// Run transcribes paths in order. When ctx is cancelled it returns the
// partial result together with ctx.Err(). The file in flight is not
// interrupted; engine timeouts still apply.
func (r *Runner) Run(ctx context.Context, paths []string) (Result, error) {
	inflight := context.WithoutCancel(ctx)
	paths = dedupe(paths)
	res := Result{Texts: make(map[string]string, len(paths))}
	total := r.CountPending(paths)
	current := 0
	r.logger.Debug("transcribing",
		slog.Int("files", len(paths)),
		slog.Int("pending", total),
		slog.String("cache", r.cache.Dir()))

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if text, ok := r.cache.Get(p); ok {
			res.Texts[p] = text
			res.Cached++
			r.logger.Debug("transcript cache hit", slog.String("file", filepath.Base(p)))
			continue
		}

		current++
		if r.OnProgress != nil {
			r.OnProgress(Progress{Current: current, Total: total, FileName: filepath.Base(p)})
		}

		start := time.Now()
		text, err := r.engine.Transcribe(inflight, p)
		res.Elapsed += time.Since(start)
		if err != nil {
			res.Failed++
			res.Texts[p] = FailurePrefix + err.Error()
			r.logger.Warn("transcription failed",
				slog.String("file", filepath.Base(p)),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Transcribed++
		res.Texts[p] = text
		if err := r.cache.Put(p, text); err != nil {
			r.logger.Warn("transcript cache write failed",
				slog.String("file", filepath.Base(p)),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
