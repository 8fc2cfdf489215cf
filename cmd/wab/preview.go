package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/render"
)

func previewCmd(a *app) *cobra.Command {
	var hit, query string
	var context int
	var noColor bool

	cmd := &cobra.Command{
		Use:   "preview <archive>",
		Short: "Print an archive's messages around a hit",
		Long:  `Preview prints messages of a cataloged archive. <archive> is an archive id or the document path.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging(os.Stderr)
			db, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer db.Close()

			width := 0
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			}
			out, _, err := render.RenderArchive(db, archiveRef(args[0]), render.Options{
				HitStableID: hit,
				Context:     context,
				Width:       width,
				Query:       query,
				NoColor:     noColor,
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&hit, "hit", "", "Stable id of the message to highlight")
	cmd.Flags().IntVar(&context, "context", 10, "Messages before/after the hit to show (-1 = all)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colours")

	return cmd
}
