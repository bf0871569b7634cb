package tui

import (
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func NewApp() *Model {
	return &Model{
		state:   StateWelcome,
		welcome: NewWelcome(),
		rest:    NewRestClient(),
		ws:      NewWSClient(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.ws.Close()
			return m, tea.Quit

		case "esc":
			if m.state == StateWaiting {
				return m, m.leaveQueue()
			}

		case "ctrl+d":
			if m.state == StateChat {
				return m, m.leaveRoom()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ErrorMsg:
		m.err = msg.err
		return m, nil

	case StartChatMsg:
		if m.ws.IsConnected() {
			return m, m.joinQueue()
		}
		return m, m.ws.ConnectCmd(m.rest)

	case ConnectedMsg:
		return m, tea.Batch(m.joinQueue(), m.ws.WaitForFrame())

	case ConnectionLostMsg:
		m.err = msg.err
		return m, nil

	case OutboundMessageMsg:
		if err := m.ws.SendMessage(msg.text); err != nil {
			m.err = err
		}
		return m, nil

	case KeystrokeMsg:
		m.ws.SendTyping(true) //nolint:errcheck,gosec // typing is best-effort
		return m, nil

	case FrameMsg:
		return m.handleFrame(msg)
	}

	switch m.state {
	case StateWelcome:
		return m.updateWelcome(msg)

	case StateWaiting:
		return m.updateWaiting(msg)

	case StateChat:
		return m.updateChat(msg)

	default:
		return m, nil
	}
}

func (m *Model) View() string {
	if m.err != nil {
		return errorView(m.err)
	}

	switch m.state {
	case StateWelcome:
		return m.welcome.View()

	case StateWaiting:
		return m.waiting.View()

	case StateChat:
		return m.chat.View()

	default:
		return "Unknown state"
	}
}

func (m *Model) joinQueue() tea.Cmd {
	if err := m.ws.JoinQueue(); err != nil {
		return func() tea.Msg {
			return ErrorMsg{err: err}
		}
	}

	m.state = StateWaiting
	m.waiting = NewWaitingModel(0)

	return m.waiting.Init()
}

func (m *Model) leaveQueue() tea.Cmd {
	if err := m.ws.LeaveQueue(); err != nil {
		return func() tea.Msg {
			return ErrorMsg{err: err}
		}
	}

	// queue_left confirms the transition back
	return nil
}

func (m *Model) leaveRoom() tea.Cmd {
	if err := m.ws.LeaveRoom(); err != nil {
		return func() tea.Msg {
			return ErrorMsg{err: err}
		}
	}

	return nil
}

// server frame payloads

type queueStatusPayload struct {
	Waiting    int `json:"waiting"`
	Retry      int `json:"retry"`
	MaxRetries int `json:"max_retries"`
}

type partnerResolvedPayload struct {
	PartnerID string `json:"partner_id"`
}

type wireMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

type messagesPayload struct {
	Messages []wireMessage `json:"messages"`
}

type partnerTypingPayload struct {
	Typing bool `json:"typing"`
}

type partnerPresencePayload struct {
	Online bool `json:"online"`
}

type serverErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// routes one server frame into the current screen, then rearms the wait
func (m *Model) handleFrame(msg FrameMsg) (tea.Model, tea.Cmd) {
	rearm := m.ws.WaitForFrame()

	switch msg.Type {
	case "queue_status":
		var payload queueStatusPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && m.waiting != nil {
			m.waiting.SetStatus(payload.Waiting, payload.Retry, payload.MaxRetries)
		}

	case "matched":
		m.state = StateChat
		m.chat = NewChatModel(m.ws.UserID())
		return m, tea.Batch(rearm, func() tea.Msg {
			return tea.WindowSizeMsg{Width: m.width, Height: m.height}
		})

	case "partner_resolved":
		var payload partnerResolvedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && m.chat != nil {
			m.chat.SetPartner(payload.PartnerID)
		}

	case "messages":
		var payload messagesPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && m.chat != nil {
			m.chat.SetMessages(decodeWireMessages(payload.Messages))
		}

	case "partner_typing":
		var payload partnerTypingPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && m.chat != nil {
			m.chat.SetPartnerTyping(payload.Typing)
		}

	case "partner_presence":
		var payload partnerPresencePayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && m.chat != nil {
			m.chat.SetPartnerOnline(payload.Online)
		}

	case "queue_left", "room_left":
		m.state = StateWelcome
		m.waiting = nil
		m.chat = nil

	case "server_shutdown":
		m.ws.Close()
		m.err = fmt.Errorf("the server is shutting down")

	case "error":
		var payload serverErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			m.err = fmt.Errorf("%s: %s", payload.Code, payload.Message)
		}

	case "pong":
		// keepalive, nothing to do
	}

	return m, rearm
}

func decodeWireMessages(wire []wireMessage) []ChatMessage {
	messages := make([]ChatMessage, 0, len(wire))

	for _, msg := range wire {
		messages = append(messages, ChatMessage{
			ID:        msg.ID,
			Text:      msg.Text,
			Sender:    msg.Sender,
			Timestamp: time.UnixMilli(msg.Timestamp),
		})
	}

	return messages
}

func (m *Model) updateWelcome(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.welcome, cmd = m.welcome.Update(msg)

	return m, cmd
}

func (m *Model) updateWaiting(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.waiting == nil {
		return m, nil
	}

	var cmd tea.Cmd
	m.waiting, cmd = m.waiting.Update(msg)

	return m, cmd
}

func (m *Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.chat == nil {
		return m, nil
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)

	return m, cmd
}

func errorView(err error) string {
	return fmt.Sprintf("\n  Error: %v\n\n  Press Ctrl+C to exit\n", err)
}
