// ABOUTME: mDNS discovery of WebSocket endpoints
// ABOUTME: Handles both advertisement (server side) and browsing (client side)
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/hashicorp/mdns"
)

const (
	// DefaultService is the service type browsed and advertised by default
	DefaultService = "_ws._tcp"
	// DefaultDomain is the mDNS domain
	DefaultDomain = "local"
	// DefaultPath is the WebSocket path advertised when none is set
	DefaultPath = "/ws"

	defaultBrowseTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	// ServiceName is the instance name used when advertising
	ServiceName string
	// Service is the service type (default: _ws._tcp)
	Service string
	// Domain is the mDNS domain (default: local)
	Domain string
	// Port is the advertised port
	Port int
	// Path is the advertised WebSocket path (default: /ws)
	Path string
	// Timeout bounds each browse round (default: 3s)
	Timeout time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultBrowseTimeout
	}
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	return c
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered endpoint
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URI returns the ws:// URI of the endpoint
func (s *ServerInfo) URI() string {
	path := s.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise advertises an endpoint via mDNS until Stop is called
func (m *Manager) Advertise() error {
	if m.config.Port <= 0 {
		return fmt.Errorf("invalid port %d", m.config.Port)
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	name := m.config.ServiceName
	if name == "" {
		name = "wsclient"
	}

	service, err := mdns.NewMDNSService(
		name,
		m.config.Service,
		strings.TrimSuffix(m.config.Domain, ".")+".",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.config.Logger.Info("advertising mDNS service",
		"name", name, "port", m.config.Port, "service", m.config.Service)

	go func() {
		<-m.ctx.Done()
		_ = server.Shutdown()
	}()

	return nil
}

// Browse searches for endpoints in the background until Stop is called.
// Results arrive on Servers.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for endpoints
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if err := m.query(m.ctx, func(s *ServerInfo) bool {
			select {
			case m.servers <- s:
				return true
			case <-m.ctx.Done():
				return false
			}
		}); err != nil {
			m.config.Logger.Warn("mDNS query failed", "error", err)
			select {
			case <-time.After(m.config.Timeout):
			case <-m.ctx.Done():
				return
			}
		}
	}
}

// query runs one browse round, passing each entry to found until it
// returns false.
func (m *Manager) query(ctx context.Context, found func(*ServerInfo) bool) error {
	entries := make(chan *mdns.ServiceEntry, 10)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		accepting := true
		for entry := range entries {
			if !accepting {
				continue
			}
			server := entryToServer(entry)
			if server == nil {
				continue
			}
			m.config.Logger.Debug("discovered server",
				"name", server.Name, "host", server.Host, "port", server.Port)
			accepting = found(server)
		}
	}()

	params := mdns.DefaultParams(m.config.Service)
	params.Domain = m.config.Domain
	params.Timeout = m.config.Timeout
	params.Entries = entries
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-drained

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("mdns query: %w", err)
	}
	return nil
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// Discover runs a single browse round and returns the unique endpoints seen.
func Discover(ctx context.Context, config Config) ([]ServerInfo, error) {
	m := NewManager(config)
	defer m.Stop()

	seen := make(map[string]bool)
	var found []ServerInfo
	err := m.query(ctx, func(s *ServerInfo) bool {
		key := s.URI()
		if !seen[key] {
			seen[key] = true
			found = append(found, *s)
		}
		return true
	})
	return found, err
}

// entryToServer converts an mDNS entry, or returns nil if it has no usable
// address.
func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	case entry.Host != "":
		host = strings.TrimSuffix(entry.Host, ".")
	default:
		return nil
	}

	return &ServerInfo{
		Name: entry.Name,
		Host: host,
		Port: entry.Port,
		Path: pathFromTXT(entry.InfoFields),
	}
}

// pathFromTXT extracts the path= record, if any
func pathFromTXT(fields []string) string {
	for _, f := range fields {
		if v, ok := strings.CutPrefix(f, "path="); ok {
			return v
		}
	}
	return ""
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	ips := []net.IP{}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
