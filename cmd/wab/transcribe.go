package main

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/config"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/transcribe"
)

// transcribeCmd is the child side of the subprocess engine. It always runs
// the engine command in-process and reports through the --output file only.
func transcribeCmd(a *app) *cobra.Command {
	var file, output, model, language string

	cmd := &cobra.Command{
		Use:    "transcribe",
		Short:  "Transcribe one audio file into an output file",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.cfg.Transcriber
			if model != "" {
				if !slices.Contains(config.Models, model) {
					return fmt.Errorf("model %q: want one of %v", model, config.Models)
				}
				t.Model = model
			}
			if language != "" {
				t.Language = language
			}
			// the parent owns the deadline
			t.Timeout = ""

			engine, err := transcribe.NewCommandEngine(t, a.setupLogging(os.Stderr))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return transcribe.RunChild(ctx, engine, file, output)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Audio file to transcribe")
	cmd.Flags().StringVar(&output, "output", "", "File receiving the transcript or an ERROR: line")
	cmd.Flags().StringVar(&model, "model", "", "Model name (tiny/base/small/medium/large)")
	cmd.Flags().StringVar(&language, "language", "", "Spoken language: en, fr or auto")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("output")

	return cmd
}
