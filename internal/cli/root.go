// ABOUTME: Cobra command tree for the wsclient tool
// ABOUTME: Loads configuration, applies flag overrides and builds clients
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Resonate-Protocol/wsclient/internal/config"
	"github.com/Resonate-Protocol/wsclient/internal/version"
	"github.com/Resonate-Protocol/wsclient/pkg/discovery"
	"github.com/Resonate-Protocol/wsclient/pkg/forward"
	"github.com/Resonate-Protocol/wsclient/pkg/wsclient"
	"github.com/spf13/cobra"
)

// DefaultEndpoint is dialed when no endpoint is given anywhere
const DefaultEndpoint = "ws://localhost:8080"

// app carries state shared by all commands
type app struct {
	// Global flags
	cfgFile     string
	transport   string
	logLevel    string
	logFormat   string
	policy      string
	natsURL     string
	natsSubject string
	discover    bool

	// Set during PersistentPreRun
	cfg *config.Config
	log *slog.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "wsclient",
		Short: "WebSocket client: connect, send, discover and echo",
		Long: `wsclient opens a single WebSocket connection, prints or forwards
every message the server sends and lets you send messages back.

Endpoints can be given on the command line, in the config file or
found on the local network via mDNS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.StringVar(&a.transport, "transport", "", "WebSocket implementation: gorilla or coder")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&a.policy, "on-handler-error", "", "handler error policy: continue or terminate")
	flags.StringVar(&a.natsURL, "nats-url", "", "forward received messages to this NATS server")
	flags.StringVar(&a.natsSubject, "nats-subject", "", "NATS subject for forwarded messages")
	flags.BoolVar(&a.discover, "discover", false, "find the endpoint via mDNS when none is given")

	root.AddCommand(
		newConnectCmd(a),
		newSendCmd(a),
		newDiscoverCmd(a),
		newEchoCmd(a),
		newVersionCmd(),
	)

	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the config file and applies flag overrides
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = config.Load(a.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		a.cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		a.cfg.Transport = a.transport
	}
	if flags.Changed("log-level") {
		a.cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		a.cfg.Log.Format = a.logFormat
	}
	if flags.Changed("on-handler-error") {
		a.cfg.HandlerErrorPolicy = a.policy
	}
	if flags.Changed("nats-url") {
		a.cfg.Forward.NATS.URL = a.natsURL
	}
	if flags.Changed("nats-subject") {
		a.cfg.Forward.NATS.Subject = a.natsSubject
	}
	if flags.Changed("discover") {
		a.cfg.Discovery.Enabled = a.discover
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.log = a.cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// resolveEndpoint picks the endpoint: argument, then config, then mDNS,
// then DefaultEndpoint.
func (a *app) resolveEndpoint(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.Endpoint != "" {
		return a.cfg.Endpoint, nil
	}
	if a.cfg.Discovery.Enabled {
		a.log.Info("starting endpoint discovery", "service", a.cfg.Discovery.Service)
		servers, err := discovery.Discover(ctx, a.cfg.DiscoveryConfig(a.log))
		if err != nil {
			return "", err
		}
		if len(servers) == 0 {
			return "", fmt.Errorf("no endpoint found after %s", a.cfg.Discovery.Timeout)
		}
		uri := servers[0].URI()
		a.log.Info("discovered endpoint", "name", servers[0].Name, "uri", uri)
		return uri, nil
	}
	return DefaultEndpoint, nil
}

// newClient builds a client for endpoint. If NATS forwarding is configured
// every message also goes to NATS. The returned cleanup closes the client
// and any forwarding connection.
func (a *app) newClient(endpoint string, handler wsclient.Handler, onEvent func(wsclient.Event), logger *slog.Logger) (*wsclient.Client, func(), error) {
	cfg := *a.cfg
	cfg.Endpoint = endpoint
	cfg.Headers = withUserAgent(cfg.Headers)

	clientCfg, err := cfg.ClientConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	clientCfg.OnEvent = onEvent

	var publisher *forward.NATSPublisher
	if cfg.Forward.NATS.Enabled() {
		publisher = forward.NewNATSPublisher(cfg.NATSConfig(logger))
		if err := publisher.Connect(); err != nil {
			return nil, nil, err
		}
	}

	client, err := wsclient.New(clientCfg)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return nil, nil, err
	}

	if publisher != nil {
		fwd, err := forward.NewHandler(publisher, cfg.Forward.NATS.Subject)
		if err != nil {
			_ = publisher.Close()
			return nil, nil, err
		}
		handler = wsclient.MultiHandler{handler, fwd.WithClientID(client.ID())}
	}
	if err := client.SetHandler(handler); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("error closing client", "error", err)
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("error closing NATS connection", "error", err)
			}
		}
	}
	return client, cleanup, nil
}

func withUserAgent(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	for k := range out {
		if strings.EqualFold(k, "User-Agent") {
			return out
		}
	}
	out["User-Agent"] = version.UserAgent()
	return out
}

// printHandler writes each message to w, one per line
type printHandler struct {
	w io.Writer
}

func (h printHandler) HandleMessage(ctx context.Context, msg wsclient.Message) error {
	_, err := fmt.Fprintf(h.w, "< %s\n", wsclient.Preview(msg, 4096))
	return err
}

// waitOrDone waits for d, the client to finish or ctx, whichever is first
func waitOrDone(ctx context.Context, client *wsclient.Client, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-client.Done():
	case <-ctx.Done():
	}
}
