// ABOUTME: Inbound listener loop
// ABOUTME: Drains the transport and dispatches messages to the handler in order
package wsclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/wsclient/pkg/transport"
)

// listenerKey marks contexts passed to the Handler.
type listenerKey struct{}

// listen reads until the connection ends or ctx is cancelled. Each message
// is fully handled before the next Receive.
func (c *Client) listen(ctx context.Context, conn transport.Conn, handler Handler, done chan struct{}) {
	defer close(done)

	hctx := context.WithValue(ctx, listenerKey{}, c)

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := conn.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				// Close or abort owns the teardown
			case errors.Is(err, transport.ErrClosed):
				var ce *transport.CloseError
				if errors.As(err, &ce) {
					c.log.Info("connection closed by peer", "code", ce.Code, "reason", ce.Reason)
				} else {
					c.log.Info("connection closed by peer")
				}
				c.terminate(StateClosed, nil, fmt.Errorf("%w: %w", ErrNormalClosure, err))
			default:
				terr := &TransportError{Op: "receive", Err: err}
				c.log.Error("receive failed", "error", err)
				c.emit(Event{Type: EventError, State: StateOpen, Err: terr})
				c.terminate(StateFailed, terr, terr)
			}
			return
		}

		seq := c.received.Add(1)
		c.emit(Event{Type: EventMessage, State: StateOpen, Message: &msg})

		herr := dispatch(hctx, handler, seq, msg)
		if herr != nil {
			c.handlerErrors.Add(1)
		}
		if ctx.Err() != nil {
			// the handler closed the client, or a send from it failed
			return
		}
		if herr == nil {
			continue
		}

		c.log.Error("handler failed", "seq", seq, "error", herr.Err)
		c.emit(Event{Type: EventError, State: StateOpen, Err: herr})

		if c.config.HandlerErrorPolicy == PolicyTerminate {
			c.terminate(StateFailed, herr, herr)
			return
		}
	}
}

// dispatch runs the handler, converting a panic into a HandlerError.
func dispatch(ctx context.Context, h Handler, seq uint64, msg Message) (herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			herr = &HandlerError{Seq: seq, Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()

	if err := h.HandleMessage(ctx, msg); err != nil {
		return &HandlerError{Seq: seq, Err: err}
	}
	return nil
}
