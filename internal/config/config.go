// ABOUTME: YAML configuration for the client tools
// ABOUTME: Loads, defaults and validates settings and maps them onto library configs
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/Resonate-Protocol/wsclient/pkg/discovery"
	"github.com/Resonate-Protocol/wsclient/pkg/forward"
	"github.com/Resonate-Protocol/wsclient/pkg/transport"
	"github.com/Resonate-Protocol/wsclient/pkg/wsclient"
	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrNoEndpoint   = errors.New("no endpoint configured")
)

// Config is the top-level configuration file.
type Config struct {
	Endpoint           string            `yaml:"endpoint"`
	Transport          string            `yaml:"transport"`
	Headers            map[string]string `yaml:"headers,omitempty"`
	HandshakeTimeout   time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration     `yaml:"write_timeout"`
	CloseTimeout       time.Duration     `yaml:"close_timeout"`
	ReadLimit          int64             `yaml:"read_limit"`
	HandlerErrorPolicy string            `yaml:"handler_error_policy"`

	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Forward   ForwardConfig   `yaml:"forward"`
}

// LogConfig selects log level and format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DiscoveryConfig controls mDNS endpoint discovery
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Service string        `yaml:"service"`
	Domain  string        `yaml:"domain"`
	Timeout time.Duration `yaml:"timeout"`
}

// ForwardConfig lists message forwarding sinks
type ForwardConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures forwarding to NATS. Forwarding is off while URL is
// empty.
type NATSConfig struct {
	URL       string `yaml:"url"`
	Subject   string `yaml:"subject"`
	Name      string `yaml:"name"`
	JetStream bool   `yaml:"jetstream"`
}

// Enabled reports whether NATS forwarding is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Transport:          "gorilla",
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       10 * time.Second,
		CloseTimeout:       wsclient.DefaultCloseTimeout,
		HandlerErrorPolicy: wsclient.PolicyContinue.String(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Discovery: DiscoveryConfig{
			Service: discovery.DefaultService,
			Domain:  discovery.DefaultDomain,
			Timeout: 3 * time.Second,
		},
		Forward: ForwardConfig{
			NATS: NATSConfig{
				Subject: "wsclient.messages",
			},
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values. An empty endpoint is allowed since it can
// come from the command line or discovery.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint != "" {
		if err := transport.ValidateURI(c.Endpoint); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := transport.NewDialer(c.Transport, transport.Options{}); err != nil {
		errs = append(errs, err)
	}
	if _, err := wsclient.ParseHandlerErrorPolicy(c.HandlerErrorPolicy); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]time.Duration{
		"handshake_timeout": c.HandshakeTimeout,
		"write_timeout":     c.WriteTimeout,
		"close_timeout":     c.CloseTimeout,
		"discovery.timeout": c.Discovery.Timeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.ReadLimit < 0 {
		errs = append(errs, fmt.Errorf("read_limit must not be negative"))
	}
	if c.Forward.NATS.Enabled() && c.Forward.NATS.Subject == "" {
		errs = append(errs, fmt.Errorf("forward.nats.subject is required when forward.nats.url is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Logger builds the configured logger. Unknown levels and formats fall
// back to info and text.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(c.Log.Level),
		Format: logging.ParseFormat(c.Log.Format),
		Output: w,
	})
}

// TransportOptions maps the transport settings
func (c *Config) TransportOptions() transport.Options {
	var header http.Header
	if len(c.Headers) > 0 {
		header = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			header.Set(k, v)
		}
	}
	return transport.Options{
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		ReadLimit:        c.ReadLimit,
		Header:           header,
	}
}

// ClientConfig builds a wsclient.Config. Handler and OnEvent are left for
// the caller.
func (c *Config) ClientConfig(logger *slog.Logger) (wsclient.Config, error) {
	if c.Endpoint == "" {
		return wsclient.Config{}, ErrNoEndpoint
	}

	dialer, err := transport.NewDialer(c.Transport, c.TransportOptions())
	if err != nil {
		return wsclient.Config{}, err
	}
	policy, err := wsclient.ParseHandlerErrorPolicy(c.HandlerErrorPolicy)
	if err != nil {
		return wsclient.Config{}, err
	}

	return wsclient.Config{
		Endpoint:           c.Endpoint,
		Dialer:             dialer,
		HandlerErrorPolicy: policy,
		CloseTimeout:       c.CloseTimeout,
		Logger:             logger,
	}, nil
}

// DiscoveryConfig maps the discovery settings
func (c *Config) DiscoveryConfig(logger *slog.Logger) discovery.Config {
	return discovery.Config{
		Service: c.Discovery.Service,
		Domain:  c.Discovery.Domain,
		Timeout: c.Discovery.Timeout,
		Logger:  logger,
	}
}

// NATSConfig maps the NATS forwarding settings
func (c *Config) NATSConfig(logger *slog.Logger) forward.NATSConfig {
	return forward.NATSConfig{
		URL:       c.Forward.NATS.URL,
		Subject:   c.Forward.NATS.Subject,
		Name:      c.Forward.NATS.Name,
		JetStream: c.Forward.NATS.JetStream,
		Logger:    logger,
	}
}
