// ABOUTME: Message handler strategy invoked for each inbound message
// ABOUTME: Handler interface, func adapter, logging default, fan-out and error policy
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/Resonate-Protocol/wsclient/pkg/transport"
)

// Message is one inbound or outbound payload.
type Message = transport.Message

// Handler processes inbound messages. It is called from the listener
// goroutine, one message at a time, in receipt order.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) error

// HandleMessage calls f(ctx, msg).
func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogHandler logs every message it receives. It is the default handler.
type LogHandler struct {
	Logger *slog.Logger

	// MaxPreview caps the logged payload length (default: 256 bytes)
	MaxPreview int
}

// NewLogHandler creates a LogHandler writing to logger
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogHandler{Logger: logger}
}

// HandleMessage logs the message type, size and a payload preview.
func (h *LogHandler) HandleMessage(ctx context.Context, msg Message) error {
	limit := h.MaxPreview
	if limit <= 0 {
		limit = 256
	}
	h.Logger.InfoContext(ctx, "message received",
		"type", msg.Type.String(),
		"size", len(msg.Data),
		"payload", Preview(msg, limit))
	return nil
}

// Preview renders a message for display: text is truncated to limit bytes,
// binary payloads are summarised.
func Preview(msg Message, limit int) string {
	if msg.Type == transport.MessageBinary || !utf8.Valid(msg.Data) {
		return fmt.Sprintf("<%d bytes binary>", len(msg.Data))
	}
	s := string(msg.Data)
	if limit > 3 && len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}

// MultiHandler calls each handler in order. Every handler sees every
// message; their errors are joined.
type MultiHandler []Handler

// HandleMessage implements Handler.
func (m MultiHandler) HandleMessage(ctx context.Context, msg Message) error {
	var errs []error
	for _, h := range m {
		if h == nil {
			continue
		}
		if err := h.HandleMessage(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandlerErrorPolicy decides what the listener does after a handler failure.
type HandlerErrorPolicy int

const (
	// PolicyContinue reports the failure and keeps listening.
	PolicyContinue HandlerErrorPolicy = iota
	// PolicyTerminate reports the failure, stops listening and releases
	// the connection.
	PolicyTerminate
)

// String returns the policy name.
func (p HandlerErrorPolicy) String() string {
	switch p {
	case PolicyContinue:
		return "continue"
	case PolicyTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// ParseHandlerErrorPolicy parses "continue" or "terminate". An empty
// string means PolicyContinue.
func ParseHandlerErrorPolicy(s string) (HandlerErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "skip":
		return PolicyContinue, nil
	case "terminate", "stop":
		return PolicyTerminate, nil
	default:
		return PolicyContinue, fmt.Errorf("unknown handler error policy %q", s)
	}
}
