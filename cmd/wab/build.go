package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/archive"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/config"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/i18n"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/pipeline"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/timeline"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/transcribe"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/tui"
)

// Exit codes of "wab build".
const (
	exitFailure = 1
	exitNoData  = 2
	exitBusy    = 3
	exitStopped = 130
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// runError attaches the exit code matching a pipeline outcome.
func runError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrStopped):
		return &exitError{code: exitStopped, err: err}
	case errors.Is(err, timeline.ErrNoData):
		return &exitError{code: exitNoData, err: err}
	case errors.Is(err, pipeline.ErrBusy):
		return &exitError{code: exitBusy, err: err}
	}
	return &exitError{code: exitFailure, err: err}
}

// terminalError turns the last event seen by the build screen into the
// error Run would have returned.
func terminalError(ev pipeline.Event) error {
	switch e := ev.(type) {
	case pipeline.Finished:
		return nil
	case pipeline.Stopped:
		return runError(pipeline.ErrStopped)
	case pipeline.NoData:
		return runError(timeline.ErrNoData)
	case pipeline.Failed:
		return runError(e.Err)
	}
	return runError(errors.New("build ended without a result"))
}

// defaultOutput places "<chat>_archive.html" beside the chat file.
func defaultOutput(chatPath string) string {
	stem := strings.TrimSuffix(filepath.Base(chatPath), filepath.Ext(chatPath))
	return filepath.Join(filepath.Dir(chatPath), stem+"_archive.html")
}

func newEngine(cfg *config.Config, configPath string, logger *slog.Logger) (transcribe.Engine, error) {
	if cfg.Transcriber.Subprocess {
		e, err := transcribe.NewSubprocessEngine(cfg.Transcriber, configPath)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	e, err := transcribe.NewCommandEngine(cfg.Transcriber, logger)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func loadState(path, documentPath string) (*archive.State, error) {
	exp, err := archive.ReadExport(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	st, err := exp.State(documentPath)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return st, nil
}

func buildCmd(a *app) *cobra.Command {
	var out, title, timezone, from, to, lang, statePath, mediaRoot string
	var transcribeAudio, encrypt, plain, noCatalog bool

	cmd := &cobra.Command{
		Use:   "build <chat.txt>",
		Short: "Build a self-contained HTML archive from a WhatsApp chat export",
		Long: `Build reads a WhatsApp "Export chat" text file, finds the media it mentions
in the same folder (or --media), merges standalone voice recordings named
PTT-YYYYMMDD-WAxxxx into the timeline and writes one HTML document.

With --transcribe, audio is transcribed once and cached next to the media.
With --encrypt, media is copied into an encrypted folder beside the output
and the document decrypts it in the browser; encryption implies --transcribe.

Exit codes: 0 done, 1 failure, 2 nothing to archive, 3 another build running,
130 stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if timezone != "" {
				if err := cfg.SetTimezone(timezone); err != nil {
					return err
				}
			}
			if lang != "" {
				cfg.Language = lang
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			chatPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = defaultOutput(chatPath)
			}
			if out, err = filepath.Abs(out); err != nil {
				return err
			}

			loc := cfg.Location()
			var rng timeline.DateRange
			if rng.From, err = timeline.ParseDate(from, loc); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if rng.To, err = timeline.ParseDate(to, loc); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			opts := pipeline.Options{
				ChatPath:     chatPath,
				OutputPath:   out,
				MediaRoot:    mediaRoot,
				Title:        title,
				Lang:         cfg.Language,
				Location:     loc,
				Range:        rng,
				Transcribe:   transcribeAudio || encrypt,
				Encrypt:      encrypt,
				CacheDirName: cfg.CacheDirName,
			}
			if statePath != "" {
				if opts.State, err = loadState(statePath, out); err != nil {
					return err
				}
			}

			interactive := !plain && term.IsTerminal(int(os.Stdout.Fd()))
			console := io.Writer(os.Stderr)
			if interactive {
				console = io.Discard
			}
			logger := a.setupLogging(console)

			var engine transcribe.Engine
			if opts.Transcribe {
				if engine, err = newEngine(cfg, a.configPath, logger); err != nil {
					return fmt.Errorf("transcriber: %w", err)
				}
			}

			var cat *catalog.DB
			if !noCatalog {
				if cat, err = a.openCatalog(); err != nil {
					logger.Warn("catalog unavailable, build will not be recorded", slog.String("error", err.Error()))
					cat = nil
				} else {
					defer cat.Close()
				}
			}

			worker := pipeline.NewWorker(engine, cat, cfg.LockPath, logger)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if interactive {
				ev, err := tui.RunBuild(ctx, worker, opts, "wab · "+filepath.Base(out))
				if err != nil {
					return err
				}
				return terminalError(ev)
			}

			s := i18n.For(opts.Lang)
			sum, err := worker.Run(ctx, opts, func(ev pipeline.Event) {
				fmt.Fprintln(cmd.OutOrStdout(), pipeline.Describe(ev, s))
			})
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), sum.String())
			}
			return runError(err)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output HTML file (default <chat>_archive.html beside the chat)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default derived from the chat file name)")
	cmd.Flags().StringVar(&mediaRoot, "media", "", "Media folder (default the chat file's folder)")
	cmd.Flags().BoolVar(&transcribeAudio, "transcribe", false, "Transcribe audio messages")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt media for sharing (implies --transcribe)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the export (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "Keep messages on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Keep messages on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&lang, "lang", "", "Document language: en or fr (default from config)")
	cmd.Flags().StringVar(&statePath, "state", "", "Bake a state export (JSON from the document's Export button) into the output")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print status lines instead of the interactive screen")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Do not record the archive in the catalog")

	return cmd
}
