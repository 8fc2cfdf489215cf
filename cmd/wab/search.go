package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/search"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func flatten(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", "").Replace(s)
}

func searchCmd(a *app) *cobra.Command {
	var opts search.Options
	var tsv, asTable bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across built archives",
		Long: `Search the messages of every archive recorded in the catalog.

On a terminal this opens an interactive browser; Enter copies the archive
path. With --table results print as a table. Piped output is TSV for fzf:
  archiveID, stableID, timestamp, author, title, snippet

Example:
  wab search "$*" | fzf --ansi --delimiter='\t' --with-nth=3.. \
    --preview 'wab preview {1} --hit {2} --context 5 --query {q}' \
    --bind 'enter:execute(wab open {1} --source --hit {2})'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging(os.Stderr)
			db, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer db.Close()

			if n, err := catalog.Prune(db); err == nil && n > 0 {
				a.logger.Info("dropped archives whose document is gone", "count", n)
			}

			if !tsv && !asTable && term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Run(db, args[0], opts)
			}

			opts.Query = args[0]
			results, err := search.Search(db, opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			if asTable {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						"#" + strconv.Itoa(r.Number),
						r.Ts,
						r.Author,
						r.Title,
						strings.NewReplacer(">>>", "", "<<<", "").Replace(flatten(r.Snippet)),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "#", right: true},
					{header: "Time"},
					{header: "Author", maxWidth: 20},
					{header: "Archive", maxWidth: 30},
					{header: "Snippet", maxWidth: 60},
				}, rows))
				return nil
			}

			for _, r := range results {
				// the first two fields stay plain for fzf {1} {2}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s%s%s\t%s\t%s\t%s\n",
					r.ArchiveID,
					r.StableID,
					sColorDim, r.Ts, sColorReset,
					flatten(r.Author),
					flatten(r.Title),
					colorizeSnippet(flatten(r.Snippet)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Archive, "archive", "", "Only search this archive (id or document path)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "Filter by author")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Filter by kind (text/media/external)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only messages on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "Max results")
	cmd.Flags().BoolVar(&tsv, "tsv", false, "Print TSV even on a terminal")
	cmd.Flags().BoolVar(&asTable, "table", false, "Print a table")

	return cmd
}
