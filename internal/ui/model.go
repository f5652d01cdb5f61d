// ABOUTME: Bubbletea model for the interactive message console
// ABOUTME: Defines console state, input editing and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxLines = 500

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	inboundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	outboundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Direction tells which way a line travelled
type Direction int

const (
	Inbound Direction = iota
	Outbound
	Notice
)

// Line is one entry in the message log
type Line struct {
	Direction Direction
	Text      string
	Time      time.Time
}

// SendFunc delivers a line typed by the user
type SendFunc func(text string) error

// Model represents the console state
type Model struct {
	// Connection
	connected bool
	endpoint  string
	clientID  string
	state     string
	lastErr   error

	// Log
	lines      []Line
	timestamps bool

	// Input
	input string
	send  SendFunc

	// Stats
	received      uint64
	sent          uint64
	handlerErrors uint64

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case ReceivedMsg:
		m.appendLine(Line{Direction: Inbound, Text: msg.Text, Time: msg.Time})
	case sentMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.appendLine(Line{Direction: Notice, Text: "send failed: " + msg.err.Error(), Time: time.Now()})
		} else {
			m.appendLine(Line{Direction: Outbound, Text: msg.text, Time: time.Now()})
		}
	case ClosedMsg:
		m.connected = false
		m.state = msg.State
		text := "connection closed"
		if msg.Code != 0 {
			text += fmt.Sprintf(" by peer (%d", msg.Code)
			if msg.Reason != "" {
				text += " " + msg.Reason
			}
			text += ")"
		}
		if msg.Err != nil {
			text += ": " + msg.Err.Error()
		}
		m.appendLine(Line{Direction: Notice, Text: text, Time: time.Now()})
	}

	return m, nil
}

// View renders the console
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderLog())
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	status := "Disconnected"
	if m.connected {
		status = "Connected to " + m.endpoint
	} else if m.state != "" {
		status = fmt.Sprintf("%s (%s)", m.endpoint, m.state)
	}
	return titleStyle.Render("wsclient") + " " + status
}

// logHeight is the number of log lines that fit on screen
func (m Model) logHeight() int {
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

// renderLog renders the tail of the message log
func (m Model) renderLog() string {
	if len(m.lines) == 0 {
		return dimStyle.Render("No messages yet") + "\n"
	}

	lines := m.lines
	if n := m.logHeight(); len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	width := m.width - 14
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	for _, l := range lines {
		prefix := ""
		if m.timestamps {
			prefix = dimStyle.Render(l.Time.Format("15:04:05")) + " "
		}
		text := truncate(l.Text, width)
		switch l.Direction {
		case Inbound:
			b.WriteString(prefix + inboundStyle.Render("< "+text))
		case Outbound:
			b.WriteString(prefix + outboundStyle.Render("> "+text))
		default:
			b.WriteString(prefix + dimStyle.Render("* "+text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderInput renders the input line
func (m Model) renderInput() string {
	if !m.connected {
		return dimStyle.Render("(not connected)")
	}
	return "> " + m.input + "█"
}

// renderStatusBar renders counters, the last error and key help
func (m Model) renderStatusBar() string {
	s := statusBarStyle.Render(fmt.Sprintf("RX: %d  TX: %d  Handler errors: %d  │  enter:send  ctrl+t:time  ctrl+l:clear  esc:quit",
		m.received, m.sent, m.handlerErrors))
	if m.lastErr != nil {
		s += "\n" + errorStyle.Render("Error: "+m.lastErr.Error())
	}
	return s
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		m.input = ""
	case tea.KeyCtrlT:
		m.timestamps = !m.timestamps
	case tea.KeyCtrlL:
		m.lines = nil
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}

	return m, nil
}

// submit sends the current input through the send callback
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input
	if text == "" || m.send == nil || !m.connected {
		return m, nil
	}
	m.input = ""

	send := m.send
	return m, func() tea.Msg {
		return sentMsg{text: text, err: send(text)}
	}
}

// appendLine adds a log line, dropping the oldest past maxLines
func (m *Model) appendLine(l Line) {
	if l.Time.IsZero() {
		l.Time = time.Now()
	}
	m.lines = append(m.lines, l)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.Endpoint != "" {
		m.endpoint = msg.Endpoint
	}
	if msg.ClientID != "" {
		m.clientID = msg.ClientID
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Err != nil {
		m.lastErr = msg.Err
		m.appendLine(Line{Direction: Notice, Text: msg.Err.Error()})
	}
	if msg.Notice != "" {
		m.appendLine(Line{Direction: Notice, Text: msg.Notice})
	}
	if msg.Received != 0 || msg.Sent != 0 || msg.HandlerErrors != 0 {
		m.received = msg.Received
		m.sent = msg.Sent
		m.handlerErrors = msg.HandlerErrors
	}
}

// StatusMsg updates console state
type StatusMsg struct {
	Connected     *bool
	Endpoint      string
	ClientID      string
	State         string
	Err           error
	Notice        string
	Received      uint64
	Sent          uint64
	HandlerErrors uint64
}

// ReceivedMsg appends an inbound message to the log
type ReceivedMsg struct {
	Text string
	Time time.Time
}

// ClosedMsg reports that the connection is gone. The console stays up
// until the user quits.
type ClosedMsg struct {
	State  string
	Err    error
	Code   int
	Reason string
}

// sentMsg reports the outcome of a send started from the input line
type sentMsg struct {
	text string
	err  error
}

func truncate(s string, length int) string {
	if len([]rune(s)) <= length {
		return s
	}
	r := []rune(s)
	return string(r[:length-3]) + "..."
}
