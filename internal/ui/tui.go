// ABOUTME: TUI initialization and client event bridging
// ABOUTME: Wraps the bubbletea program and turns client events into model updates
package ui

import (
	"errors"

	"github.com/Resonate-Protocol/wsclient/pkg/wsclient"
	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a console model for endpoint. send is called for every
// submitted input line.
func NewModel(endpoint string, send SendFunc) Model {
	return Model{
		endpoint: endpoint,
		state:    wsclient.StateIdle.String(),
		send:     send,
	}
}

// Run creates the TUI program
func Run(model Model) *tea.Program {
	return tea.NewProgram(model, tea.WithAltScreen())
}

// Sender is the part of *tea.Program used to push updates
type Sender interface {
	Send(msg tea.Msg)
}

// EventBridge forwards client events to a running program
type EventBridge struct {
	program Sender
	stats   func() wsclient.Stats
}

// NewEventBridge creates a bridge. stats may be nil.
func NewEventBridge(program Sender, stats func() wsclient.Stats) *EventBridge {
	return &EventBridge{program: program, stats: stats}
}

// OnEvent is suitable for wsclient.Config.OnEvent
func (b *EventBridge) OnEvent(ev wsclient.Event) {
	for _, msg := range EventMessages(ev) {
		b.program.Send(msg)
	}
	if b.stats != nil {
		st := b.stats()
		b.program.Send(StatusMsg{Received: st.Received, Sent: st.Sent, HandlerErrors: st.HandlerErrors})
	}
}

// EventMessages maps one client event to console updates
func EventMessages(ev wsclient.Event) []tea.Msg {
	switch ev.Type {
	case wsclient.EventConnected:
		connected := true
		return []tea.Msg{StatusMsg{Connected: &connected, ClientID: ev.ClientID, State: ev.State.String()}}
	case wsclient.EventConnectFailed:
		return []tea.Msg{ClosedMsg{State: ev.State.String(), Err: ev.Err}}
	case wsclient.EventMessage:
		if ev.Message == nil {
			return nil
		}
		return []tea.Msg{ReceivedMsg{Text: wsclient.Preview(*ev.Message, 4096), Time: ev.Time}}
	case wsclient.EventError:
		return []tea.Msg{StatusMsg{Err: ev.Err}}
	case wsclient.EventClosed:
		err := ev.Err
		if errors.Is(err, wsclient.ErrNormalClosure) {
			err = nil
		}
		return []tea.Msg{ClosedMsg{State: ev.State.String(), Err: err, Code: ev.CloseCode, Reason: ev.CloseReason}}
	}
	return nil
}
