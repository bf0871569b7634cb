package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// returns a new chat screen for a resolved room
func NewChatModel(selfID string) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "say something..."
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorLightGray)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorWhite)

	return &ChatModel{
		input:         ti,
		selfID:        selfID,
		partnerOnline: true,
	}
}

func (m *ChatModel) Update(msg tea.Msg) (*ChatModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || !m.partnerOnline {
				return m, nil
			}

			m.input.SetValue("")
			return m, func() tea.Msg {
				return OutboundMessageMsg{text: text}
			}

		case "up", "pgup":
			m.viewport.ScrollUp(1)
			return m, nil

		case "down", "pgdown":
			m.viewport.ScrollDown(1)
			return m, nil
		}

		// anything else is a keystroke the partner should see as typing
		if m.partnerOnline {
			m.input, cmd = m.input.Update(msg)
			return m, tea.Batch(cmd, func() tea.Msg {
				return KeystrokeMsg{}
			})
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 10

		viewportHeight := max(3, msg.Height-8)
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = viewportHeight
		}

		m.refreshViewport()
		return m, nil
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// replaces the message history with the latest server delivery
func (m *ChatModel) SetMessages(messages []ChatMessage) {
	m.messages = messages
	m.refreshViewport()
}

func (m *ChatModel) SetPartner(partnerID string) {
	m.partnerID = partnerID
}

func (m *ChatModel) SetPartnerTyping(typing bool) {
	m.partnerTyping = typing
}

// a departed partner freezes the input; the conversation stays readable
func (m *ChatModel) SetPartnerOnline(online bool) {
	m.partnerOnline = online

	if online {
		m.statusNotice = ""
		m.input.Focus()
	} else {
		m.statusNotice = "the stranger disconnected"
		m.partnerTyping = false
		m.input.Blur()
	}
}

func (m *ChatModel) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder

	for _, msg := range m.messages {
		label := strangerStyle.Render("stranger")
		if msg.Sender == m.selfID {
			label = selfStyle.Render("you")
		}

		stamp := infoStyle.Render(msg.Timestamp.Format("15:04"))
		b.WriteString(fmt.Sprintf("%s %s %s\n", stamp, label, msg.Text))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *ChatModel) View() string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorWhite).
		Render("CHATTING WITH A STRANGER")

	help := lipgloss.NewStyle().
		Foreground(colorGray).
		Render("[Enter: Send] [Ctrl+D: Leave] [Ctrl+C: Quit]")

	headerLine := lipgloss.JoinHorizontal(lipgloss.Left,
		header,
		strings.Repeat(" ", max(0, m.width-lipgloss.Width(header)-lipgloss.Width(help)-2)),
		help,
	)

	b.WriteString(headerLine)
	b.WriteString("\n\n")

	historyBox := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorGray).
		Width(m.width-4).
		Padding(0, 1).
		Render(m.viewport.View())

	b.WriteString(historyBox)
	b.WriteString("\n")

	if m.statusNotice != "" {
		b.WriteString(noticeStyle.Render("  " + m.statusNotice))
		b.WriteString("\n")
	} else if m.partnerTyping {
		b.WriteString(typingStyle.Render("  stranger is typing..."))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
	}

	inputBox := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorGray).
		Width(m.width-4).
		Padding(0, 1).
		Render(m.input.View())

	b.WriteString(inputBox)

	return b.String()
}

// sent when the user submits a message
type OutboundMessageMsg struct {
	text string
}

// sent on every keystroke in the chat input
type KeystrokeMsg struct{}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
