// ABOUTME: Connection lifecycle manager and outbound sender
// ABOUTME: Owns the transport handle, the state machine and exactly-once teardown
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/Resonate-Protocol/wsclient/pkg/transport"
	"github.com/google/uuid"
)

// DefaultCloseTimeout bounds how long Close waits for the listener to stop
// before releasing the connection anyway.
const DefaultCloseTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	// Endpoint is the ws:// or wss:// URI to connect to
	Endpoint string

	// Dialer opens the transport (default: gorilla/websocket)
	Dialer transport.Dialer

	// Handler receives inbound messages (default: LogHandler)
	Handler Handler

	// HandlerErrorPolicy decides whether a handler failure stops the listener
	HandlerErrorPolicy HandlerErrorPolicy

	// CloseTimeout bounds the wait for the listener during Close (default: 5s)
	CloseTimeout time.Duration

	// OnEvent is called for lifecycle, message and error events. It runs
	// synchronously on the goroutine that produced the event and must not
	// block.
	OnEvent func(Event)

	// Logger receives structured logs (default: discard)
	Logger *slog.Logger
}

// Stats are running message counters.
type Stats struct {
	Received      uint64
	Sent          uint64
	HandlerErrors uint64
}

// Client owns one WebSocket connection.
type Client struct {
	id     string
	config Config
	log    *slog.Logger

	mu             sync.Mutex
	state          State
	conn           transport.Conn
	handler        Handler
	err            error
	dialCancel     context.CancelFunc
	closeRequested bool
	listenCancel   context.CancelFunc
	listenerDone   chan struct{}

	// sendMu is held shared by in-flight sends and exclusively while the
	// connection is released.
	sendMu sync.RWMutex

	done     chan struct{}
	doneOnce sync.Once

	received      atomic.Uint64
	sent          atomic.Uint64
	handlerErrors atomic.Uint64
}

// New creates a client in StateIdle. No connection is made until Connect.
func New(config Config) (*Client, error) {
	if err := transport.ValidateURI(config.Endpoint); err != nil {
		return nil, err
	}

	if config.Logger == nil {
		config.Logger = logging.Nop()
	}
	if config.Dialer == nil {
		config.Dialer = transport.NewGorillaDialer(transport.Options{})
	}
	if config.Handler == nil {
		config.Handler = NewLogHandler(config.Logger)
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultCloseTimeout
	}

	id := uuid.NewString()

	return &Client{
		id:      id,
		config:  config,
		log:     config.Logger.With("client_id", id, "endpoint", config.Endpoint),
		state:   StateIdle,
		handler: config.Handler,
		done:    make(chan struct{}),
	}, nil
}

// ID returns the unique client identifier used in logs and events.
func (c *Client) ID() string {
	return c.id
}

// Endpoint returns the configured endpoint URI.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that put the client into StateFailed, or nil.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the client reaches a terminal state and the
// connection, if any, has been released.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Stats returns a snapshot of the message counters.
func (c *Client) Stats() Stats {
	return Stats{
		Received:      c.received.Load(),
		Sent:          c.sent.Load(),
		HandlerErrors: c.handlerErrors.Load(),
	}
}

// SetHandler replaces the message handler. Only valid before Connect.
func (c *Client) SetHandler(h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return &StateError{Op: "set handler", State: c.state}
	}
	if h == nil {
		h = NewLogHandler(c.config.Logger)
	}
	c.handler = h
	return nil
}

// Connect performs the opening handshake and starts the listener. It
// returns once the connection is open; ctx bounds the handshake only.
//
// Only valid from StateIdle. A failed handshake moves the client to
// StateFailed and returns a *ConnectionError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		st := c.state
		c.mu.Unlock()
		return &StateError{Op: "connect", State: st}
	}
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.state = StateConnecting
	c.dialCancel = cancel
	handler := c.handler
	c.mu.Unlock()

	c.log.Info("connecting")
	conn, err := c.config.Dialer.Open(dialCtx, c.config.Endpoint)

	c.mu.Lock()
	c.dialCancel = nil

	if c.closeRequested {
		c.state = StateClosed
		c.mu.Unlock()

		if err == nil {
			_ = conn.Close()
			err = context.Canceled
		}
		cerr := &ConnectionError{Endpoint: c.config.Endpoint, Err: err}
		c.log.Info("connect aborted by close")
		c.markDone()
		c.emit(Event{Type: EventClosed, State: StateClosed})
		return cerr
	}

	if err != nil {
		cerr := &ConnectionError{Endpoint: c.config.Endpoint, Err: err}
		c.state = StateFailed
		c.err = cerr
		c.mu.Unlock()

		c.log.Error("connection failed", "error", err)
		c.markDone()
		c.emit(Event{Type: EventConnectFailed, State: StateFailed, Err: cerr})
		return cerr
	}

	listenCtx, listenCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.conn = conn
	c.state = StateOpen
	c.listenCancel = listenCancel
	c.listenerDone = done
	c.mu.Unlock()

	c.log.Info("connected")
	c.emit(Event{Type: EventConnected, State: StateOpen})

	go c.listen(listenCtx, conn, handler, done)

	return nil
}

// Send writes msg to the connection. Only valid in StateOpen; otherwise a
// *StateError is returned and nothing is written.
//
// If ctx is already done the send is abandoned without touching the
// connection. Any transport failure is treated as fatal: the client moves
// to StateFailed and a *SendError is returned. When called from a Handler
// with the context it was given, the failure is torn down without waiting
// for the listener.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if st := c.State(); st != StateOpen {
		return &StateError{Op: "send", State: st}
	}

	c.sendMu.RLock()
	c.mu.Lock()
	st, conn := c.state, c.conn
	c.mu.Unlock()

	if st != StateOpen {
		c.sendMu.RUnlock()
		return &StateError{Op: "send", State: st}
	}
	if err := ctx.Err(); err != nil {
		c.sendMu.RUnlock()
		return &SendError{Err: err}
	}

	err := conn.Send(ctx, msg)
	c.sendMu.RUnlock()

	if err != nil {
		c.log.Error("send failed", "error", err)
		c.abort(&TransportError{Op: "send", Err: err}, c.onListener(ctx))
		return &SendError{Err: err}
	}

	c.sent.Add(1)
	c.log.Debug("message sent", "type", msg.Type.String(), "size", len(msg.Data))
	return nil
}

// SendText sends a text message.
func (c *Client) SendText(ctx context.Context, s string) error {
	return c.Send(ctx, transport.TextMessage(s))
}

// SendBinary sends a binary message.
func (c *Client) SendBinary(ctx context.Context, b []byte) error {
	return c.Send(ctx, transport.BinaryMessage(b))
}

// Close stops the listener and releases the connection. It is safe to call
// any number of times from any goroutine; only the call that performs the
// release can return an error. Close does not return before the
// connection is released.
//
// Close waits up to CloseTimeout for a running Handler to return. A Handler
// that closes its own client should use CloseContext with the context it
// was given.
func (c *Client) Close() error {
	return c.CloseContext(context.Background())
}

// CloseContext is Close for callers that may be running inside a Handler.
// Given the Handler's context, it releases the connection immediately
// instead of waiting for the listener, which is the caller.
func (c *Client) CloseContext(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateClosed, StateFailed:
		c.mu.Unlock()
		return nil

	case StateConnecting:
		c.closeRequested = true
		if c.dialCancel != nil {
			c.dialCancel()
		}
		c.mu.Unlock()
		<-c.done
		return nil

	case StateClosing:
		c.mu.Unlock()
		<-c.done
		return nil
	}

	c.state = StateClosing
	cancel, listenerDone := c.listenCancel, c.listenerDone
	c.mu.Unlock()

	if c.onListener(ctx) {
		listenerDone = nil
	}

	c.log.Info("closing")
	return c.shutdown(cancel, listenerDone, StateClosed, nil, nil)
}

// abort tears the connection down after a fatal send failure. From the
// listener goroutine it must not wait for the listener.
func (c *Client) abort(cause error, fromListener bool) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	cancel, listenerDone := c.listenCancel, c.listenerDone
	c.mu.Unlock()

	if fromListener {
		listenerDone = nil
	}

	c.emit(Event{Type: EventError, State: StateClosing, Err: cause})
	_ = c.shutdown(cancel, listenerDone, StateFailed, cause, cause)
}

// shutdown stops the listener, waiting at most CloseTimeout, then releases.
// A nil listenerDone skips the wait.
func (c *Client) shutdown(cancel context.CancelFunc, listenerDone <-chan struct{}, final State, cause, eventErr error) error {
	cancel()

	if listenerDone == nil {
		return c.release(final, cause, eventErr)
	}

	timer := time.NewTimer(c.config.CloseTimeout)
	defer timer.Stop()

	select {
	case <-listenerDone:
	case <-timer.C:
		c.log.Warn("listener did not stop in time, releasing connection",
			"timeout", c.config.CloseTimeout)
	}

	return c.release(final, cause, eventErr)
}

// terminate is the listener's own teardown path. It must not wait for the
// listener, which is the caller.
func (c *Client) terminate(final State, cause, eventErr error) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	cancel := c.listenCancel
	c.mu.Unlock()

	cancel()
	_ = c.release(final, cause, eventErr)
}

// release closes the transport exactly once. Callers must have moved the
// state to StateClosing, which only one caller can do.
func (c *Client) release(final State, cause, eventErr error) error {
	c.sendMu.Lock()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		if err = conn.Close(); err != nil {
			c.log.Warn("error releasing connection", "error", err)
			err = fmt.Errorf("release connection: %w", err)
		}
	}

	c.mu.Lock()
	c.state = final
	if cause != nil && c.err == nil {
		c.err = cause
	}
	c.mu.Unlock()

	c.sendMu.Unlock()

	ev := Event{Type: EventClosed, State: final, Err: eventErr}
	var ce *transport.CloseError
	if errors.As(eventErr, &ce) {
		ev.CloseCode = ce.Code
		ev.CloseReason = ce.Reason
	}

	c.log.Info("connection released", "state", final.String())
	c.markDone()
	c.emit(ev)

	return err
}

// onListener reports whether ctx was handed out by this client's listener,
// meaning the caller is running inside a Handler.
func (c *Client) onListener(ctx context.Context) bool {
	owner, _ := ctx.Value(listenerKey{}).(*Client)
	return owner == c
}

func (c *Client) markDone() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) emit(ev Event) {
	if c.config.OnEvent == nil {
		return
	}
	ev.ClientID = c.id
	ev.Time = time.Now()
	c.config.OnEvent(ev)
}
