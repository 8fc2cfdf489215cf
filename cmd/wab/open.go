package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/open"
)

// archiveRef turns an existing file argument into the absolute path the
// catalog stores; anything else is passed through as an archive id.
func archiveRef(arg string) string {
	if _, err := os.Stat(arg); err == nil {
		if abs, err := filepath.Abs(arg); err == nil {
			return abs
		}
	}
	return arg
}

func openCmd(a *app) *cobra.Command {
	var source bool
	var hit string

	cmd := &cobra.Command{
		Use:   "open <archive>",
		Short: "Open an archive in the browser, or its chat export in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging(os.Stderr)
			ref := archiveRef(args[0])
			if !source && filepath.IsAbs(ref) {
				return open.Archive(ref)
			}

			db, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer db.Close()

			if source {
				return open.Source(db, ref, hit)
			}
			row, err := db.GetArchive(ref)
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("archive not found: %s", ref)
			}
			return open.Archive(row.Path)
		},
	}

	cmd.Flags().BoolVar(&source, "source", false, "Open the chat export the archive was built from")
	cmd.Flags().StringVar(&hit, "hit", "", "With --source, jump to this message's line")

	return cmd
}
