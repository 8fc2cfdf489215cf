package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/i18n"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/pipeline"
)

const maxLogLines = 200

type pipelineEventMsg struct{ ev pipeline.Event }

type eventsClosedMsg struct{}

type buildModel struct {
	title   string
	events  <-chan pipeline.Event
	cancel  context.CancelFunc
	strings *i18n.Strings
	copy    func(string) error

	spinner  spinner.Model
	progress progress.Model
	log      viewport.Model
	lines    []string

	status   string
	current  int
	total    int
	stopping bool
	terminal pipeline.Event
	output   string
	notice   string
	width    int
}

func newBuildModel(title string, events <-chan pipeline.Event, cancel context.CancelFunc, s *i18n.Strings) buildModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)
	return buildModel{
		title:    title,
		events:   events,
		cancel:   cancel,
		strings:  s,
		copy:     clipboard.WriteAll,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		log:      viewport.New(80, 10),
	}
}

// RunBuild shows the build screen until the run ends and the user leaves.
// It returns the terminal event.
func RunBuild(ctx context.Context, worker *pipeline.Worker, opts pipeline.Options, title string) (pipeline.Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newBuildModel(title, worker.Start(ctx, opts), cancel, i18n.For(opts.Lang))
	m.output = opts.OutputPath
	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("tui: %w", err)
	}
	fm := finalModel.(buildModel)
	if fm.terminal == nil {
		// left before the worker finished: wait for its terminal event
		cancel()
		for ev := range fm.events {
			if pipeline.Terminal(ev) {
				fm.terminal = ev
			}
		}
	}
	return fm.terminal, nil
}

func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return pipelineEventMsg{ev: ev}
	}
}

func (m buildModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m buildModel) done() bool { return m.terminal != nil }

func (m *buildModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

func (m buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(min(msg.Width-4, 60), 10)
		m.log.Width = max(msg.Width-2, 20)
		m.log.Height = max(msg.Height-8, 3)
		return m, nil

	case tea.KeyMsg:
		if m.done() {
			switch {
			case key.Matches(msg, buildKeys.Copy):
				if _, ok := m.terminal.(pipeline.Finished); ok {
					if err := m.copy(m.output); err != nil {
						m.notice = "clipboard unavailable: " + m.output
					} else {
						m.notice = "Copied to clipboard: " + m.output
					}
				}
				return m, nil
			case key.Matches(msg, buildKeys.Exit):
				return m, tea.Quit
			}
			return m, nil
		}
		if key.Matches(msg, buildKeys.Stop) && !m.stopping {
			m.stopping = true
			m.status = m.strings.StopRequested
			m.appendLine(m.status)
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case pipelineEventMsg:
		return m.handleEvent(msg.ev)

	case eventsClosedMsg:
		return m, nil

	case spinner.TickMsg:
		if m.done() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m buildModel) handleEvent(ev pipeline.Event) (tea.Model, tea.Cmd) {
	line := pipeline.Describe(ev, m.strings)
	switch e := ev.(type) {
	case pipeline.Transcribing:
		m.current, m.total = e.Current, e.Total
	case pipeline.EncryptFailed:
		line = styleWarn.Render(line)
	case pipeline.Finished:
		m.output = e.Summary.Output
		m.current = m.total
	}
	if !m.stopping || pipeline.Terminal(ev) {
		m.status = pipeline.Describe(ev, m.strings)
	}
	m.appendLine(line)

	if pipeline.Terminal(ev) {
		m.terminal = ev
		return m, nil
	}
	return m, waitForEvent(m.events)
}

func (m buildModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.current) / float64(m.total)
}

func (m buildModel) View() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(m.title))
	b.WriteString("\n\n")

	switch m.terminal.(type) {
	case nil:
		b.WriteString(m.spinner.View() + " " + styleStatus.Render(m.status))
	case pipeline.Finished:
		b.WriteString(styleDone.Render(m.status))
	case pipeline.Stopped, pipeline.NoData:
		b.WriteString(styleWarn.Render(m.status))
	default:
		b.WriteString(styleFailed.Render(m.status))
	}
	b.WriteString("\n")

	if m.total > 0 {
		b.WriteString(m.progress.ViewAs(m.percent()))
		fmt.Fprintf(&b, " %d/%d", m.current, m.total)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.log.View())
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(m.notice + "\n")
	}
	var help string
	switch {
	case !m.done():
		help = "C-c stop"
	case isFinished(m.terminal):
		help = "c copy path | q quit"
	default:
		help = "q quit"
	}
	b.WriteString(styleStatusBar.Render(help))
	return b.String()
}

func isFinished(ev pipeline.Event) bool {
	_, ok := ev.(pipeline.Finished)
	return ok
}
