// ABOUTME: Message handler that forwards inbound WebSocket messages to NATS
// ABOUTME: Wraps a nats.go connection with optional JetStream publishing
package forward

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/Resonate-Protocol/wsclient/pkg/wsclient"
	"github.com/nats-io/nats.go"
)

// Header keys set on every forwarded message
const (
	HeaderMessageType = "Ws-Message-Type"
	HeaderClientID    = "Ws-Client-Id"
)

// MsgPublisher publishes a fully formed NATS message.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL     string
	Subject string
	// Name identifies the connection to the NATS server
	Name string

	// JetStream publishes with acknowledgement instead of fire-and-forget
	JetStream bool

	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int

	Logger *slog.Logger
}

// NATSPublisher owns a NATS connection.
type NATSPublisher struct {
	config NATSConfig
	log    *slog.Logger

	mu        sync.RWMutex
	nc        *nats.Conn
	js        nats.JetStreamContext
	connected bool
}

// NewNATSPublisher creates an unconnected publisher
func NewNATSPublisher(config NATSConfig) *NATSPublisher {
	if config.URL == "" {
		config.URL = nats.DefaultURL
	}
	if config.Name == "" {
		config.Name = "wsclient"
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = 2 * time.Second
	}
	if config.MaxReconnects == 0 {
		config.MaxReconnects = 60
	}
	if config.Logger == nil {
		config.Logger = logging.Nop()
	}

	return &NATSPublisher{
		config: config,
		log:    config.Logger.With("component", "nats", "name", config.Name),
	}
}

// Connect establishes the NATS connection and, if configured, the JetStream
// context.
func (p *NATSPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil && p.nc.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(p.config.Name),
		nats.Timeout(p.config.ConnectTimeout),
		nats.ReconnectWait(p.config.ReconnectWait),
		nats.MaxReconnects(p.config.MaxReconnects),
		nats.ClosedHandler(func(nc *nats.Conn) {
			p.log.Info("NATS connection closed")
			p.setConnected(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			p.log.Warn("NATS disconnected, attempting reconnect", "error", err)
			p.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.log.Info("NATS reconnected", "url", nc.ConnectedUrl())
			p.setConnected(true)
		}),
	}

	nc, err := nats.Connect(p.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}

	if p.config.JetStream {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return fmt.Errorf("jetstream context creation failed: %w", err)
		}
		p.js = js
	}

	p.nc = nc
	p.connected = true
	p.log.Info("connected to NATS", "url", nc.ConnectedUrl(), "jetstream", p.config.JetStream)
	return nil
}

func (p *NATSPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// IsConnected reports whether the NATS connection is up
func (p *NATSPublisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// PublishMsg implements MsgPublisher
func (p *NATSPublisher) PublishMsg(msg *nats.Msg) error {
	p.mu.RLock()
	nc, js, connected := p.nc, p.js, p.connected
	p.mu.RUnlock()

	if nc == nil || !connected {
		return fmt.Errorf("nats client not connected")
	}

	if js != nil {
		if _, err := js.PublishMsg(msg); err != nil {
			return fmt.Errorf("jetstream publish to %s: %w", msg.Subject, err)
		}
		return nil
	}
	return nc.PublishMsg(msg)
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	nc := p.nc
	p.nc = nil
	p.js = nil
	p.mu.Unlock()

	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Handler forwards each inbound message to a NATS subject. It implements
// wsclient.Handler.
type Handler struct {
	publisher MsgPublisher
	subject   string
	clientID  string
}

// NewHandler creates a forwarding handler publishing to subject
func NewHandler(publisher MsgPublisher, subject string) (*Handler, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	return &Handler{publisher: publisher, subject: subject}, nil
}

// WithClientID tags forwarded messages with the originating client ID
func (h *Handler) WithClientID(id string) *Handler {
	h.clientID = id
	return h
}

// HandleMessage publishes msg. A publish failure is returned as the
// handler error.
func (h *Handler) HandleMessage(ctx context.Context, msg wsclient.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := nats.NewMsg(h.subject)
	out.Data = msg.Data
	out.Header.Set(HeaderMessageType, msg.Type.String())
	if h.clientID != "" {
		out.Header.Set(HeaderClientID, h.clientID)
	}

	if err := h.publisher.PublishMsg(out); err != nil {
		return fmt.Errorf("forward to %s: %w", h.subject, err)
	}
	return nil
}
