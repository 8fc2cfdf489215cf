// Package render formats cataloged archive events for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
)

const (
	colorReset   = "\033[0m"
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // keyword highlights
	colorMedia   = "\033[36m"
)

// Authors alternate between these, in name order, like the document palette.
var authorColors = [2]string{"\033[1;34m", "\033[1;35m"}

type Options struct {
	HitStableID string
	Context     int    // events before/after the hit; 0 = 10, <0 = all
	Width       int    // wrap width (0 = no wrap)
	Query       string // search query for keyword highlighting
	NoColor     bool
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	for _, term := range strings.Fields(query) {
		term = strings.Trim(term, `"`)
		if term == "" {
			continue
		}
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			end := pos + len(term)
			if end > len(text) {
				break
			}
			replacement := colorBoldRed + text[pos:end] + colorReset
			text = text[:pos] + replacement + text[end:]
			i = pos + len(replacement)
		}
	}
	return text
}

func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a line into pieces of at most maxWidth visible columns,
// skipping ANSI escape sequences when measuring.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)
		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}
		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// Truncate shortens s to width columns, ending in an ellipsis when cut.
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, width, "…")
}

func authorPalette(events []catalog.EventRow) map[string]string {
	var names []string
	seen := map[string]bool{}
	for _, e := range events {
		if e.Kind == catalog.KindExternal || e.Author == "" || seen[e.Author] {
			continue
		}
		seen[e.Author] = true
		names = append(names, e.Author)
	}
	sort.Strings(names)
	out := make(map[string]string, len(names))
	for i, n := range names {
		out[n] = authorColors[i%len(authorColors)]
	}
	return out
}

// RenderArchive renders a window of an archive's events and returns the
// content and the 0-based line of the hit event header (-1 if no hit).
func RenderArchive(db *catalog.DB, archiveID string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	if opts.Context < 0 {
		opts.Context = 1 << 30
	}

	archive, err := db.GetArchive(archiveID)
	if err != nil {
		return "", -1, fmt.Errorf("get archive: %w", err)
	}
	if archive == nil {
		return "", -1, fmt.Errorf("archive not found: %s", archiveID)
	}

	events, hitIdx, startPos, totalCount, err := db.GetEventsWindow(archive.ID, opts.HitStableID, opts.Context)
	if err != nil {
		return "", -1, fmt.Errorf("get events: %w", err)
	}
	if totalCount == 0 {
		return "(empty archive)", -1, nil
	}
	skipAfter := totalCount - startPos - len(events)

	color := func(code, s string) string {
		if opts.NoColor {
			return s
		}
		return code + s + colorReset
	}

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	title := archive.Title
	if title == "" {
		title = archive.Path
	}
	writeLine(color(colorDim, fmt.Sprintf("--- %s (%d messages, %s) ---", title, totalCount, archive.Timezone)))
	if startPos > 0 {
		writeLine(color(colorDim, fmt.Sprintf("... (%d messages before) ...", startPos)))
	}

	palette := authorPalette(events)
	for i, e := range events {
		author := e.Author
		if author == "" {
			author = "system"
		}
		header := fmt.Sprintf("#%d %s · %s", e.Number, author, e.Ts)
		if i == hitIdx {
			hitLine = lineCount
			writeLine(color(colorHit, ">> "+header+" <<"))
		} else {
			code := palette[e.Author]
			if code == "" {
				code = colorDim
			}
			writeLine(color(code, header))
		}

		text := e.Text
		if e.Attachment != "" {
			text = strings.TrimPrefix(text, e.Attachment)
			text = strings.TrimLeft(text, "\n")
			writeLine("  " + color(colorMedia, "["+e.Attachment+"]"))
		}
		if !opts.NoColor {
			text = highlightKeywords(text, opts.Query)
		}
		if text != "" {
			for _, tl := range strings.Split(indentLines(text, "  "), "\n") {
				writeLine(tl)
			}
		}
		writeLine("")
	}

	if skipAfter > 0 {
		writeLine(color(colorDim, fmt.Sprintf("... (%d messages after) ...", skipAfter)))
	}
	return b.String(), hitLine, nil
}
