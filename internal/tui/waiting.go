package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// returns a new waiting screen
func NewWaitingModel(maxRetries int) *WaitingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPurple)

	return &WaitingModel{
		spinner:    s,
		maxRetries: maxRetries,
	}
}

func (m *WaitingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *WaitingModel) Update(msg tea.Msg) (*WaitingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// applies a queue_status frame
func (m *WaitingModel) SetStatus(waiting, retry, maxRetries int) {
	m.waiting = waiting
	m.retry = retry
	if maxRetries > 0 {
		m.maxRetries = maxRetries
	}
}

func (m *WaitingModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(logo))
	b.WriteString("\n\n")

	line := fmt.Sprintf("  %s looking for a stranger...", m.spinner.View())
	b.WriteString(line)
	b.WriteString("\n\n")

	switch m.waiting {
	case 0:
		b.WriteString(infoStyle.Render("  nobody else is waiting right now"))
	case 1:
		b.WriteString(infoStyle.Render("  1 other person is waiting"))
	default:
		b.WriteString(infoStyle.Render(fmt.Sprintf("  %d other people are waiting", m.waiting)))
	}
	b.WriteString("\n")

	if m.retry > 0 {
		b.WriteString(infoStyle.Render(fmt.Sprintf("  attempt %d of %d", m.retry, m.maxRetries)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("  press esc to stop waiting. press ctrl+c to quit."))

	return b.String()
}
