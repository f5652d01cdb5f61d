// ABOUTME: coder/websocket implementation of the transport primitive
// ABOUTME: Context-native reads and writes over github.com/coder/websocket
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// CoderDialer opens connections with github.com/coder/websocket.
type CoderDialer struct {
	opts Options
}

// NewCoderDialer creates a dialer using coder/websocket
func NewCoderDialer(opts Options) *CoderDialer {
	return &CoderDialer{opts: opts.withDefaults()}
}

// Open performs the opening handshake against uri
func (d *CoderDialer) Open(ctx context.Context, uri string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.opts.HandshakeTimeout)
	defer cancel()

	ws, resp, err := websocket.Dial(dialCtx, uri, &websocket.DialOptions{
		HTTPHeader: d.opts.Header,
	})
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if d.opts.ReadLimit > 0 {
		ws.SetReadLimit(d.opts.ReadLimit)
	}

	return &coderConn{ws: ws, writeTimeout: d.opts.WriteTimeout}, nil
}

type coderConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	released    atomic.Bool
	peerClosed  atomic.Bool
	interrupted atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

func (c *coderConn) Receive(ctx context.Context) (Message, error) {
	if c.released.Load() {
		return Message{}, ErrConnReleased
	}

	mt, data, err := c.ws.Read(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// coder/websocket tears the connection down on a cancelled read
			c.interrupted.Store(true)
			return Message{}, ctxErr
		}
		var ce websocket.CloseError
		if errors.As(err, &ce) && ce.Code != websocket.StatusAbnormalClosure {
			c.peerClosed.Store(true)
			return Message{}, &CloseError{Code: int(ce.Code), Reason: ce.Reason, Err: err}
		}
		if c.released.Load() {
			return Message{}, ErrConnReleased
		}
		return Message{}, err
	}

	typ := MessageText
	if mt == websocket.MessageBinary {
		typ = MessageBinary
	}
	return Message{Type: typ, Data: data}, nil
}

func (c *coderConn) Send(ctx context.Context, msg Message) error {
	if c.released.Load() {
		return ErrConnReleased
	}

	mt := websocket.MessageText
	if msg.Type == MessageBinary {
		mt = websocket.MessageBinary
	}

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	return c.ws.Write(wctx, mt, msg.Data)
}

func (c *coderConn) Close() error {
	c.closeOnce.Do(func() {
		c.released.Store(true)

		err := c.ws.Close(websocket.StatusNormalClosure, "")
		if err != nil && (c.peerClosed.Load() || c.interrupted.Load()) {
			// already torn down by the library
			err = nil
		}
		c.closeErr = err
	})
	return c.closeErr
}
