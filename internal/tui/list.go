package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/search"
)

// linesPerItem is the number of terminal lines each result occupies.
const linesPerItem = 2

// renderList renders the left panel: search results with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.results) == 0 {
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No results")
	}

	var lines []string
	for i, r := range m.results {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		lines = append(lines, formatResultLine(r, width, i == m.cursor, m.authorStyles)...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// authorStyleMap assigns the two author colours in name order.
func authorStyleMap(results []search.Result) map[string]lipgloss.Style {
	var names []string
	seen := map[string]bool{}
	for _, r := range results {
		if r.Author != "" && !seen[r.Author] {
			seen[r.Author] = true
			names = append(names, r.Author)
		}
	}
	sort.Strings(names)
	out := make(map[string]lipgloss.Style, len(names))
	for i, n := range names {
		out[n] = styleAuthors[i%len(styleAuthors)]
	}
	return out
}

// formatResultLine formats a single search result as two lines:
//
//	line 1: [>] #N  MM-DD author  title
//	line 2:    snippet (dimmed)
func formatResultLine(r search.Result, width int, selected bool, styles map[string]lipgloss.Style) []string {
	date := r.Ts
	if len(date) >= 10 {
		date = date[5:10] // MM-DD
	}

	author := r.Author
	if author == "" {
		author = "system"
	}
	author = runewidth.Truncate(author, 14, "…")
	if st, ok := styles[r.Author]; ok {
		author = st.Render(author)
	}

	title := strings.ReplaceAll(r.Title, "\n", " ")
	titleMax := max(width-2-7-6-16, 0)
	title = runewidth.Truncate(title, titleMax, "")

	line1 := fmt.Sprintf("#%-5d %s %s %s", r.Number, date, author, title)
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	snippet := strings.NewReplacer("\n", " ", "\t", " ", ">>>", "", "<<<", "").Replace(r.Snippet)
	snippet = runewidth.Truncate(snippet, max(width-4, 0), "")
	line2 := "    " + lipgloss.NewStyle().Foreground(colorDim).Render(snippet)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := max(listHeight/linesPerItem, 1)
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
