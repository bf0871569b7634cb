package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
)

// represents the current state of the TUI
type AppState int

const (
	StateWelcome AppState = iota
	StateWaiting
	StateChat
)

// main TUI application model
type Model struct {
	state   AppState
	width   int
	height  int
	err     error
	welcome *Welcome
	waiting *WaitingModel
	chat    *ChatModel

	rest *RestClient
	ws   *WSClient
}

// sent when an error occurs
type ErrorMsg struct {
	err error
}

// sent once an anonymous identity is acquired and the socket is up
type ConnectedMsg struct {
	userID string
}

// sent when connecting or the connection itself fails
type ConnectionLostMsg struct {
	err error
}

// one decoded server frame, pulled off the socket by waitForFrame
type FrameMsg struct {
	Type    string
	Payload []byte
}

// waiting screen: spinner, live waiting count, retry progress
type WaitingModel struct {
	spinner    spinner.Model
	waiting    int
	retry      int
	maxRetries int
	width      int
	height     int
}

// chat screen: message history, input line, partner state
type ChatModel struct {
	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool

	selfID        string
	partnerID     string
	messages      []ChatMessage
	partnerTyping bool
	partnerOnline bool
	statusNotice  string
}

// a rendered chat message
type ChatMessage struct {
	ID        string
	Text      string
	Sender    string
	Timestamp time.Time
}

// welcome screen model
type Welcome struct {
	input    string
	commands []Command
}

// represents an available TUI command
type Command struct {
	Name        string
	Description string
}
