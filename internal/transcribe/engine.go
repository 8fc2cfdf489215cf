package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/config"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/logging"
)

// ErrEngineFailed marks a transcription that did not produce text.
var ErrEngineFailed = errors.New("transcription engine failed")

// ErrorMarker prefixes the result file of a failed child transcription.
const ErrorMarker = "ERROR:"

// Engine turns one audio file into text.
type Engine interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, path string) (string, error)

func (f EngineFunc) Transcribe(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// CommandEngine runs an external speech-to-text command. Args may contain
// {file}, {model}, {language} and {outdir}. The transcript is read from
// <outdir>/<stem>.txt when the command writes one, otherwise from stdout.
type CommandEngine struct {
	Command  string
	Args     []string
	Model    string
	Language string
	Timeout  time.Duration

	logger *slog.Logger
}

func NewCommandEngine(t config.Transcriber, logger *slog.Logger) (*CommandEngine, error) {
	timeout, err := t.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return &CommandEngine{
		Command:  t.Command,
		Args:     t.Args,
		Model:    t.Model,
		Language: t.Language,
		Timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "transcribe"),
	}, nil
}

func (e *CommandEngine) Transcribe(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(e.Command) == "" {
		return "", fmt.Errorf("%w: no command configured", ErrEngineFailed)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineFailed, err)
	}
	outdir, err := os.MkdirTemp("", "wab-transcribe-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outdir)

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := expandArgs(e.Args, map[string]string{
		"{file}":     path,
		"{model}":    e.Model,
		"{language}": languageArg(e.Language),
		"{outdir}":   outdir,
	})
	cmd := exec.CommandContext(ctx, e.Command, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("running transcription command",
		slog.String("command", e.Command),
		slog.String("file", path),
	)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s: %v: %s", ErrEngineFailed, e.Command, err, lastLine(stderr.String()))
	}

	base := filepath.Base(path)
	txt := filepath.Join(outdir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
	if data, err := os.ReadFile(txt); err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Check reports whether the configured command can be found.
func (e *CommandEngine) Check() error {
	return checkCommand(e.Command)
}

func checkCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: no command configured", ErrEngineFailed)
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineFailed, err)
	}
	return nil
}

// expandArgs substitutes placeholders. An argument that expands to nothing is
// dropped together with a preceding flag.
func expandArgs(args []string, values map[string]string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if v, ok := values[a]; ok && v == "" {
			if n := len(out); n > 0 && strings.HasPrefix(out[n-1], "-") {
				out = out[:n-1]
			}
			continue
		}
		for k, v := range values {
			a = strings.ReplaceAll(a, k, v)
		}
		out = append(out, a)
	}
	return out
}

func languageArg(lang string) string {
	if lang == "auto" {
		return ""
	}
	return lang
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// SubprocessEngine runs each transcription in a separate "wab transcribe"
// process so a crashing inference runtime cannot take the build down. Only
// the result file is consulted, never stdout.
type SubprocessEngine struct {
	Executable string
	Command    string // engine command the child runs
	ConfigPath string
	Model      string
	Language   string
	Timeout    time.Duration
}

// NewSubprocessEngine re-invokes the running binary.
func NewSubprocessEngine(t config.Transcriber, configPath string) (*SubprocessEngine, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	timeout, err := t.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return &SubprocessEngine{
		Executable: exe,
		Command:    t.Command,
		ConfigPath: configPath,
		Model:      t.Model,
		Language:   t.Language,
		Timeout:    timeout,
	}, nil
}

// Check looks up the engine command the child process will run.
func (e *SubprocessEngine) Check() error {
	return checkCommand(e.Command)
}

func (e *SubprocessEngine) Transcribe(ctx context.Context, path string) (string, error) {
	tmp, err := os.CreateTemp("", "wab-transcript-*.txt")
	if err != nil {
		return "", err
	}
	out := tmp.Name()
	tmp.Close()
	defer os.Remove(out)

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := []string{"transcribe", "--file", path, "--output", out}
	if e.Model != "" {
		args = append(args, "--model", e.Model)
	}
	if e.Language != "" {
		args = append(args, "--language", e.Language)
	}
	if e.ConfigPath != "" {
		args = append(args, "--config", e.ConfigPath)
	}
	cmd := exec.CommandContext(ctx, e.Executable, args...) //nolint:gosec
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	runErr := cmd.Run()

	data, readErr := os.ReadFile(out)
	result := strings.TrimSpace(string(data))
	if strings.HasPrefix(result, ErrorMarker) {
		return "", fmt.Errorf("%w: %s", ErrEngineFailed, strings.TrimSpace(strings.TrimPrefix(result, ErrorMarker)))
	}
	if runErr != nil {
		return "", fmt.Errorf("%w: child process: %v", ErrEngineFailed, runErr)
	}
	if readErr != nil {
		return "", fmt.Errorf("%w: read result: %v", ErrEngineFailed, readErr)
	}
	return result, nil
}

// RunChild is the child side of SubprocessEngine: it writes the transcript,
// or ErrorMarker followed by the reason, to output. The returned error tells
// the caller to exit non-zero.
func RunChild(ctx context.Context, engine Engine, file, output string) error {
	fail := func(err error) error {
		if werr := os.WriteFile(output, []byte(ErrorMarker+" "+err.Error()), 0o644); werr != nil {
			return fmt.Errorf("%v (write result: %v)", err, werr)
		}
		return err
	}
	if _, err := os.Stat(file); err != nil {
		return fail(errors.New("file not found"))
	}
	text, err := engine.Transcribe(ctx, file)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
		return err
	}
	return nil
}
