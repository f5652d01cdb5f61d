// ABOUTME: Client lifecycle state enumeration
// ABOUTME: Idle -> Connecting -> Open -> Closing -> Closed, or Failed
package wsclient

// State is the lifecycle state of a Client.
type State uint8

const (
	// StateIdle is the state of a freshly constructed client.
	StateIdle State = iota
	// StateConnecting means the opening handshake is in progress.
	StateConnecting
	// StateOpen means the connection is usable and the listener is running.
	StateOpen
	// StateClosing means teardown has begun.
	StateClosing
	// StateClosed means the connection was released after a close request
	// or a clean peer closure.
	StateClosed
	// StateFailed means connecting failed or the connection broke.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}
