// ABOUTME: Lifecycle and error events reported by the client
// ABOUTME: Replaces print-based status output with an explicit callback channel
package wsclient

import "time"

// EventType identifies what happened.
type EventType int

const (
	// EventConnected is reported once the connection is open.
	EventConnected EventType = iota + 1
	// EventConnectFailed is reported when Connect fails; Err holds the
	// *ConnectionError.
	EventConnectFailed
	// EventMessage is reported for each inbound message before it is
	// handed to the Handler.
	EventMessage
	// EventError is reported for listener-side failures (TransportError,
	// HandlerError) and fatal send failures.
	EventError
	// EventClosed is reported once the connection has been released. Err
	// is nil after a local Close, wraps ErrNormalClosure after a peer close
	// frame (CloseCode and CloseReason are then set), or is the terminal
	// error when State is StateFailed.
	EventClosed
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is delivered to Config.OnEvent.
type Event struct {
	Type     EventType
	ClientID string
	State    State
	Message  *Message
	Err      error
	Time     time.Time

	// CloseCode and CloseReason carry the peer's close frame on EventClosed.
	CloseCode   int
	CloseReason string
}
