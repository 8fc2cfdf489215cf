package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorPrimary   = lipgloss.Color("12")  // bright blue
	colorSecondary = lipgloss.Color("13")  // bright magenta
	colorSuccess   = lipgloss.Color("10")  // bright green
	colorError     = lipgloss.Color("9")   // bright red
	colorDim       = lipgloss.Color("240") // gray
	colorHighlight = lipgloss.Color("11")  // bright yellow
	colorBorder    = lipgloss.Color("238") // dark gray

	// Input area
	styleInput = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	// List items
	styleListSelected = lipgloss.NewStyle().
				Foreground(colorHighlight).
				Bold(true)

	// Authors alternate between two colours, like the document palette.
	styleAuthors = [2]lipgloss.Style{
		lipgloss.NewStyle().Foreground(colorPrimary),
		lipgloss.NewStyle().Foreground(colorSecondary),
	}

	// Panels
	stylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder)

	styleActiveBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary)

	// Status bar
	styleStatusBar = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)

	// Build screen
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleStatus = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	styleDone = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleFailed = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(colorHighlight)
)
