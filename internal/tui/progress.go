// Package tui renders a live progress view for a running scrape. It
// only reads the runner's atomic counters, so it never interferes with
// the pipeline itself.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dvergara/leadtap/internal/engine/scrape"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).MarginTop(1)
)

type tickMsg time.Time

// DoneMsg ends the view; Err carries the run's outcome.
type DoneMsg struct {
	Err error
}

// Model displays run progress and forwards quit requests to cancel.
type Model struct {
	stats  *scrape.Stats
	cancel func()

	spin  spinner.Model
	bar   progress.Model
	start time.Time
	done  bool
	err   error
}

func New(stats *scrape.Stats, cancel func()) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		stats:  stats,
		cancel: cancel,
		spin:   s,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		start:  time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Cancellation is graceful: the pipeline finishes the
			// current listing, flushes and checkpoints before we exit.
			m.cancel()
			return m, nil
		}
	case tickMsg:
		if m.done {
			return m, tea.Quit
		}
		return m, tick()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	finished := m.stats.TasksDone.Load() + m.stats.TasksFailed.Load()
	ratio := 0.0
	if m.stats.TasksTotal > 0 {
		ratio = float64(finished) / float64(m.stats.TasksTotal)
	}

	view := titleStyle.Render("leadtap — scraping") + "\n"
	view += fmt.Sprintf("%s %s\n\n", m.spin.View(), m.bar.ViewAs(ratio))
	view += row("Tasks", fmt.Sprintf("%d/%d (%d failed)", finished, m.stats.TasksTotal, m.stats.TasksFailed.Load()))
	view += row("Scraped", fmt.Sprintf("%d", m.stats.Scraped.Load()))
	view += row("Duplicates", fmt.Sprintf("%d", m.stats.Duplicates.Load()))
	view += row("Skipped", fmt.Sprintf("%d", m.stats.Skipped.Load()))
	view += row("Elapsed", time.Since(m.start).Truncate(time.Second).String())

	if m.err != nil {
		view += "\n" + errStyle.Render("error: "+m.err.Error())
	}
	view += helpStyle.Render("\nq to stop (flushes and checkpoints first)")
	return view
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}
