// ABOUTME: Error taxonomy for the WebSocket client
// ABOUTME: Connection, state, transport, send and handler errors plus sentinels
package wsclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is matched by every *StateError.
	ErrInvalidState = errors.New("invalid client state")
	// ErrNormalClosure marks a clean closure by the peer. It is reported on
	// EventClosed and is informational, not a failure.
	ErrNormalClosure = errors.New("normal closure")
	// ErrHandlerPanic is wrapped by a HandlerError built from a recovered panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// StateError reports an operation invoked in a state that forbids it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid in state %s", e.Op, e.State)
}

// Is makes errors.Is(err, ErrInvalidState) true.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ConnectionError reports a failed opening handshake.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransportError reports a read or write failure on an open connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SendError is returned by Send when the transport rejected the write.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// HandlerError reports a Handler failure for the Seq-th inbound message
// (1-based).
type HandlerError struct {
	Seq uint64
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed on message %d: %v", e.Seq, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
