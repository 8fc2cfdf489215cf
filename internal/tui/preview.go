package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/render"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/search"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	archiveID string
	stableID  string
	content   string
	hitLine   int
	err       error
}

// loadPreviewCmd renders the archive around a hit asynchronously.
func loadPreviewCmd(db *catalog.DB, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.RenderArchive(db, r.ArchiveID, render.Options{
			HitStableID: r.StableID,
			Context:     -1,
			Width:       width,
			Query:       query,
		})
		return previewRenderedMsg{
			archiveID: r.ArchiveID,
			stableID:  r.StableID,
			content:   content,
			hitLine:   hitLine,
			err:       err,
		}
	}
}

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
