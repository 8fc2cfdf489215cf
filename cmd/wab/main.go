package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/config"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/logging"
)

var version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func main() {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "wab",
		Short:         "WhatsApp Archive Builder - turn a chat export into one self-contained HTML archive",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ~/.config/wab/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug/info/warn/error)")

	rootCmd.AddCommand(buildCmd(a))
	rootCmd.AddCommand(transcribeCmd(a))
	rootCmd.AddCommand(searchCmd(a))
	rootCmd.AddCommand(previewCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(openCmd(a))
	rootCmd.AddCommand(doctorCmd(a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// setupLogging builds the logger with console output going to console.
// The interactive screens pass io.Discard so log lines stay in the file.
func (a *app) setupLogging(console io.Writer) *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	a.logger, a.closeLog = logging.Setup(console, a.cfg.LogFile, logging.ParseLevel(a.cfg.LogLevel))
	return a.logger
}

func (a *app) openCatalog() (*catalog.DB, error) {
	db, err := catalog.Open(a.cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return db, nil
}
