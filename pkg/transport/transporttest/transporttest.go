// ABOUTME: Scripted in-memory transport for tests
// ABOUTME: Lets tests feed inbound messages, closures and errors and count releases
// Package transporttest provides an in-memory transport.Conn and
// transport.Dialer whose behaviour is driven by the test.
package transporttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/wsclient/pkg/transport"
)

type inbound struct {
	msg transport.Message
	err error
}

// Conn is a fake transport.Conn. Inbound traffic is queued with Deliver,
// DeliverClose and DeliverError; outbound traffic is recorded.
type Conn struct {
	in     chan inbound
	closed chan struct{}

	closeOnce sync.Once
	closes    atomic.Int32
	receiving atomic.Int32

	mu      sync.Mutex
	sent    []transport.Message
	sendErr error

	// OnSend, if set, runs after each successful Send.
	OnSend func(c *Conn, msg transport.Message)
}

// NewConn creates a fake connection with a generous inbound queue
func NewConn() *Conn {
	return &Conn{
		in:     make(chan inbound, 1024),
		closed: make(chan struct{}),
	}
}

// Deliver queues an inbound message.
func (c *Conn) Deliver(msg transport.Message) {
	c.in <- inbound{msg: msg}
}

// DeliverText queues an inbound text message.
func (c *Conn) DeliverText(s string) {
	c.Deliver(transport.TextMessage(s))
}

// DeliverClose queues a clean peer closure with status 1000.
func (c *Conn) DeliverClose() {
	c.DeliverCloseStatus(1000, "")
}

// DeliverCloseStatus queues a peer close frame with the given status and reason.
func (c *Conn) DeliverCloseStatus(code int, reason string) {
	c.in <- inbound{err: &transport.CloseError{Code: code, Reason: reason}}
}

// DeliverError queues a receive failure.
func (c *Conn) DeliverError(err error) {
	c.in <- inbound{err: err}
}

// FailSends makes every later Send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Receive implements transport.Conn.
func (c *Conn) Receive(ctx context.Context) (transport.Message, error) {
	c.receiving.Add(1)
	defer c.receiving.Add(-1)

	select {
	case <-c.closed:
		return transport.Message{}, transport.ErrConnReleased
	default:
	}

	select {
	case item := <-c.in:
		return item.msg, item.err
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	case <-c.closed:
		return transport.Message{}, transport.ErrConnReleased
	}
}

// Send implements transport.Conn.
func (c *Conn) Send(ctx context.Context, msg transport.Message) error {
	select {
	case <-c.closed:
		return transport.ErrConnReleased
	default:
	}

	c.mu.Lock()
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, msg)
	hook := c.OnSend
	c.mu.Unlock()

	if hook != nil {
		hook(c, msg)
	}
	return nil
}

// Close implements transport.Conn and counts every call.
func (c *Conn) Close() error {
	c.closes.Add(1)
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// Sent returns a copy of all messages written so far.
func (c *Conn) Sent() []transport.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transport.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// CloseCount returns how many times Close was called.
func (c *Conn) CloseCount() int {
	return int(c.closes.Load())
}

// Closed is closed once Close has been called.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Receiving reports whether a Receive call is currently blocked.
func (c *Conn) Receiving() bool {
	return c.receiving.Load() > 0
}

// ErrRefused is the default error returned by a failing Dialer.
var ErrRefused = errors.New("transporttest: connection refused")

// Dialer hands out Conn on Open, or fails with Err.
type Dialer struct {
	Conn *Conn
	Err  error

	// Block, if non-nil, makes Open wait until it is closed or ctx ends.
	Block chan struct{}

	opens atomic.Int32
}

// NewDialer returns a dialer that succeeds with conn
func NewDialer(conn *Conn) *Dialer {
	return &Dialer{Conn: conn}
}

// Open implements transport.Dialer.
func (d *Dialer) Open(ctx context.Context, uri string) (transport.Conn, error) {
	if d.Block != nil {
		select {
		case <-d.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	d.opens.Add(1)
	return d.Conn, nil
}

// Opens returns the number of successful Open calls.
func (d *Dialer) Opens() int {
	return int(d.opens.Load())
}
