package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/pipeline"
)

func doctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: config, transcription engine, catalog and FTS5",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.setupLogging(os.Stderr)
			cfg := a.cfg
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "=== Config ===")
			rows := [][]string{
				{"timezone", cfg.Timezone},
				{"language", cfg.Language},
				{"cache dir name", cfg.CacheDirName},
				{"catalog", cfg.CatalogPath},
				{"log file", cfg.LogFile},
				{"lock", cfg.LockPath},
			}
			fmt.Fprintln(out, renderTable([]column{{header: "Key"}, {header: "Value"}}, rows))

			fmt.Fprintln(out, "\n=== Transcription ===")
			t := cfg.Transcriber
			fmt.Fprintf(out, "  Command: %s (model %s, language %s, subprocess %t)\n", t.Command, t.Model, t.Language, t.Subprocess)
			engine, err := newEngine(cfg, a.configPath, logger)
			if err != nil {
				fmt.Fprintf(out, "  Status: MISCONFIGURED (%v)\n", err)
			} else if c, ok := engine.(pipeline.Checker); ok {
				if err := c.Check(); err != nil {
					fmt.Fprintf(out, "  Status: NOT AVAILABLE (%v)\n", err)
				} else {
					fmt.Fprintln(out, "  Status: OK")
				}
			}

			fmt.Fprintln(out, "\n=== Catalog ===")
			fmt.Fprintf(out, "  Path: %s\n", cfg.CatalogPath)
			if _, err := os.Stat(cfg.CatalogPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "  Status: NOT FOUND (created by the first 'wab build')")
				return nil
			}

			db, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer db.Close()

			archives, err := db.ArchiveCount()
			if err != nil {
				return fmt.Errorf("count archives: %w", err)
			}
			events, err := db.EventCount()
			if err != nil {
				return fmt.Errorf("count events: %w", err)
			}
			fmt.Fprintf(out, "  Archives: %s\n", humanize.Comma(int64(archives)))
			fmt.Fprintf(out, "  Messages: %s\n", humanize.Comma(int64(events)))

			fmt.Fprintln(out, "\n=== FTS5 ===")
			var ftsCount int
			if err := db.Raw().QueryRow("SELECT COUNT(*) FROM events_fts").Scan(&ftsCount); err != nil {
				fmt.Fprintf(out, "  FTS5 error: %v\n", err)
			} else {
				fmt.Fprintf(out, "  FTS5 entries: %d\n", ftsCount)
				if ftsCount == events {
					fmt.Fprintln(out, "  Status: OK (synced)")
				} else {
					fmt.Fprintf(out, "  Status: MISMATCH (events=%d, fts=%d)\n", events, ftsCount)
				}
			}

			if info, err := os.Stat(cfg.CatalogPath); err == nil {
				fmt.Fprintf(out, "\n=== Catalog Size: %s ===\n", humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
}
