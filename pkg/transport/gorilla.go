// ABOUTME: gorilla/websocket implementation of the transport primitive
// ABOUTME: Handles dialing, whole-message reads/writes and close handshake
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// GorillaDialer opens connections with github.com/gorilla/websocket.
type GorillaDialer struct {
	opts   Options
	dialer websocket.Dialer
}

// NewGorillaDialer creates a dialer using gorilla/websocket
func NewGorillaDialer(opts Options) *GorillaDialer {
	opts = opts.withDefaults()
	return &GorillaDialer{
		opts: opts,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
}

// Open performs the opening handshake against uri
func (d *GorillaDialer) Open(ctx context.Context, uri string) (Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, uri, d.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if d.opts.ReadLimit > 0 {
		ws.SetReadLimit(d.opts.ReadLimit)
	}

	return &gorillaConn{ws: ws, writeTimeout: d.opts.WriteTimeout}, nil
}

type gorillaConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	// gorilla allows one concurrent writer
	writeMu   sync.Mutex
	released  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *gorillaConn) Receive(ctx context.Context) (Message, error) {
	if c.released.Load() {
		return Message{}, ErrConnReleased
	}

	// ReadMessage has no context; force the deadline to unblock it.
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.NetConn().SetReadDeadline(time.Now())
	})
	defer stop()

	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		// 1006 is synthesized locally when no close frame arrived
		var ce *websocket.CloseError
		if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
			return Message{}, &CloseError{Code: ce.Code, Reason: ce.Text, Err: err}
		}
		if c.released.Load() {
			return Message{}, ErrConnReleased
		}
		return Message{}, err
	}

	typ := MessageText
	if mt == websocket.BinaryMessage {
		typ = MessageBinary
	}
	return Message{Type: typ, Data: data}, nil
}

func (c *gorillaConn) Send(ctx context.Context, msg Message) error {
	if c.released.Load() {
		return ErrConnReleased
	}

	mt := websocket.TextMessage
	if msg.Type == MessageBinary {
		mt = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return c.ws.WriteMessage(mt, msg.Data)
}

func (c *gorillaConn) Close() error {
	c.closeOnce.Do(func() {
		c.released.Store(true)

		// Best effort; fails with ErrCloseSent if the peer closed first.
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))

		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
