// Package tui shows live progress for a sensitivity batch.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/canosim/internal/sobol"
)

const barWidth = 40

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type progressMsg sobol.Progress

type closedMsg struct{}

// Model renders a progress bar driven by engine progress events.
type Model struct {
	total    int
	done     int
	events   <-chan sobol.Progress
	finished bool
	aborted  bool
}

func NewProgress(total int, events <-chan sobol.Progress) Model {
	return Model{total: total, events: events}
}

// Aborted reports whether the user quit before the batch finished.
func (m Model) Aborted() bool { return m.aborted }

func (m Model) Init() tea.Cmd {
	return m.wait()
}

func (m Model) wait() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return progressMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		if msg.Done > m.done {
			m.done = msg.Done
		}
		if m.done >= m.total {
			m.finished = true
			return m, tea.Quit
		}
		return m, m.wait()
	case closedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.finished {
		return ""
	}
	filled := 0
	if m.total > 0 {
		filled = m.done * barWidth / m.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		strings.Repeat("░", barWidth-filled)
	label := labelStyle.Render(fmt.Sprintf("%d/%d integrations", m.done, m.total))
	return fmt.Sprintf("  %s %s\n", bar, label)
}
