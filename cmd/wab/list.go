package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
)

func listCmd(a *app) *cobra.Command {
	var limit int
	var prune bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built archives, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging(os.Stderr)
			db, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer db.Close()

			if prune {
				n, err := catalog.Prune(db)
				if err != nil {
					return fmt.Errorf("prune: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Removed %d archive(s) whose document is gone.\n", n)
			}

			archives, err := db.ListArchives(limit)
			if err != nil {
				return err
			}
			if len(archives) == 0 {
				fmt.Fprintln(os.Stderr, "No archives yet (run 'wab build <chat.txt>').")
				return nil
			}

			rows := make([][]string, 0, len(archives))
			for _, r := range archives {
				flags := ""
				if r.Transcribed {
					flags += "T"
				}
				if r.Encrypted {
					flags += "E"
				}
				rows = append(rows, []string{
					r.ID[:min(8, len(r.ID))],
					r.Title,
					builtAgo(r.BuiltAt),
					humanize.Comma(int64(r.EventCount)),
					humanize.Bytes(uint64(max(r.Size, 0))),
					flags,
					r.Path,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{header: "ID"},
				{header: "Title", maxWidth: 30},
				{header: "Built"},
				{header: "Messages", right: true},
				{header: "Size", right: true},
				{header: "Flags"},
				{header: "Path", maxWidth: 60},
			}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max archives (0 = no limit)")
	cmd.Flags().BoolVar(&prune, "prune", false, "Forget archives whose document no longer exists")

	return cmd
}

func builtAgo(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
