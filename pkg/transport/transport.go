// ABOUTME: Transport primitive contract shared by all WebSocket implementations
// ABOUTME: Defines Message, Dialer, Conn and the clean-closure sentinel
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrClosed is matched by errors returned from Conn.Receive when the peer
// closed the connection with a close frame. It is a normal termination,
// not a failure.
var ErrClosed = errors.New("transport: connection closed by peer")

// CloseError is returned by Conn.Receive when the peer sent a close frame.
// It matches ErrClosed and the underlying library error with errors.Is/As.
type CloseError struct {
	Code   int
	Reason string
	Err    error
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("closed by peer with status %d", e.Code)
	}
	return fmt.Sprintf("closed by peer with status %d: %s", e.Code, e.Reason)
}

func (e *CloseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrClosed}
	}
	return []error{ErrClosed, e.Err}
}

// ErrConnReleased is returned by Conn operations after Close.
var ErrConnReleased = errors.New("transport: connection released")

// MessageType identifies the payload kind of a message.
type MessageType int

const (
	// MessageText is a UTF-8 text message.
	MessageText MessageType = iota + 1
	// MessageBinary is a binary message.
	MessageBinary
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Message is one opaque payload exchanged over the connection.
type Message struct {
	Type MessageType
	Data []byte
}

// TextMessage builds a text message.
func TextMessage(s string) Message {
	return Message{Type: MessageText, Data: []byte(s)}
}

// BinaryMessage builds a binary message.
func BinaryMessage(b []byte) Message {
	return Message{Type: MessageBinary, Data: b}
}

// String returns the payload as text.
func (m Message) String() string {
	return string(m.Data)
}

// Conn is an open duplex message channel.
//
// Receive and Send may be called concurrently with each other, but Receive
// must not be called from more than one goroutine, and neither may be
// called after Close.
type Conn interface {
	// Receive blocks until the next message arrives. It returns a
	// *CloseError, matching ErrClosed, once the peer sent a close frame
	// (whatever its status) and ctx.Err() if ctx is cancelled first.
	Receive(ctx context.Context) (Message, error)

	// Send writes one message.
	Send(ctx context.Context, msg Message) error

	// Close releases the connection. Calls after the first return nil.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Open(ctx context.Context, uri string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, uri string) (Conn, error)

// Open calls f(ctx, uri).
func (f DialerFunc) Open(ctx context.Context, uri string) (Conn, error) {
	return f(ctx, uri)
}

// Options configure the bundled dialers.
type Options struct {
	// HandshakeTimeout bounds the opening handshake (default: 10s)
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single Send (default: 10s)
	WriteTimeout time.Duration

	// ReadLimit is the maximum inbound message size in bytes (0 = library default)
	ReadLimit int64

	// Header is sent with the handshake request.
	Header http.Header
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeGracePeriod        = time.Second
)

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	return o
}

// ValidateURI checks that uri is an absolute ws:// or wss:// URL.
func ValidateURI(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", uri, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", uri)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", uri)
	}
	return nil
}

// NewDialer returns the dialer registered under name ("gorilla" or "coder").
func NewDialer(name string, opts Options) (Dialer, error) {
	switch name {
	case "", "gorilla":
		return NewGorillaDialer(opts), nil
	case "coder":
		return NewCoderDialer(opts), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}
