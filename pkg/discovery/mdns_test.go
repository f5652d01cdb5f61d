// ABOUTME: Tests for mDNS discovery
// ABOUTME: Validates Manager defaults, lifecycle and entry conversion
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	config := Config{
		ServiceName: "test-service",
		Port:        8080,
	}

	manager := NewManager(config)
	defer manager.Stop()

	if manager.config.ServiceName != "test-service" {
		t.Errorf("Expected ServiceName 'test-service', got '%s'", manager.config.ServiceName)
	}
	if manager.config.Port != 8080 {
		t.Errorf("Expected Port 8080, got %d", manager.config.Port)
	}
	if manager.config.Service != DefaultService {
		t.Errorf("Expected Service %q, got %q", DefaultService, manager.config.Service)
	}
	if manager.config.Domain != DefaultDomain {
		t.Errorf("Expected Domain %q, got %q", DefaultDomain, manager.config.Domain)
	}
	if manager.config.Path != DefaultPath {
		t.Errorf("Expected Path %q, got %q", DefaultPath, manager.config.Path)
	}
	if manager.config.Timeout != defaultBrowseTimeout {
		t.Errorf("Expected Timeout %v, got %v", defaultBrowseTimeout, manager.config.Timeout)
	}
	if manager.config.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
	if manager.Servers() == nil {
		t.Error("Servers() returned nil channel")
	}
}

func TestManagerStop(t *testing.T) {
	manager := NewManager(Config{})
	manager.Stop()

	select {
	case <-manager.ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("Context should be cancelled after Stop()")
	}
}

func TestAdvertiseRejectsInvalidPort(t *testing.T) {
	manager := NewManager(Config{ServiceName: "x"})
	defer manager.Stop()

	if err := manager.Advertise(); err == nil {
		t.Error("expected error for zero port")
	}
}

func TestServerInfoURI(t *testing.T) {
	tests := []struct {
		name     string
		info     ServerInfo
		expected string
	}{
		{
			name:     "explicit path",
			info:     ServerInfo{Host: "192.168.1.100", Port: 8080, Path: "/socket"},
			expected: "ws://192.168.1.100:8080/socket",
		},
		{
			name:     "default path",
			info:     ServerInfo{Host: "10.0.0.2", Port: 9000},
			expected: "ws://10.0.0.2:9000/ws",
		},
		{
			name:     "path without slash",
			info:     ServerInfo{Host: "host.local", Port: 80, Path: "echo"},
			expected: "ws://host.local:80/echo",
		},
		{
			name:     "ipv6 host",
			info:     ServerInfo{Host: "fe80::1", Port: 8080, Path: "/ws"},
			expected: "ws://[fe80::1]:8080/ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.URI(); got != tt.expected {
				t.Errorf("URI() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEntryToServer(t *testing.T) {
	tests := []struct {
		name     string
		entry    *mdns.ServiceEntry
		expected *ServerInfo
	}{
		{
			name:  "ipv4 with path",
			entry: &mdns.ServiceEntry{Name: "echo._ws._tcp.local.", AddrV4: net.IPv4(192, 168, 1, 5), Port: 8080, InfoFields: []string{"path=/echo"}},
			expected: &ServerInfo{
				Name: "echo._ws._tcp.local.", Host: "192.168.1.5", Port: 8080, Path: "/echo",
			},
		},
		{
			name:     "host fallback",
			entry:    &mdns.ServiceEntry{Name: "n", Host: "box.local.", Port: 9000},
			expected: &ServerInfo{Name: "n", Host: "box.local", Port: 9000},
		},
		{
			name:  "no port",
			entry: &mdns.ServiceEntry{Name: "n", AddrV4: net.IPv4(10, 0, 0, 1)},
		},
		{
			name:  "no address",
			entry: &mdns.ServiceEntry{Name: "n", Port: 80},
		},
		{
			name: "nil entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entryToServer(tt.entry)
			if tt.expected == nil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected server info, got nil")
			}
			if *got != *tt.expected {
				t.Errorf("got %+v, want %+v", *got, *tt.expected)
			}
		})
	}
}

func TestPathFromTXT(t *testing.T) {
	if got := pathFromTXT([]string{"version=1", "path=/ws"}); got != "/ws" {
		t.Errorf("expected /ws, got %q", got)
	}
	if got := pathFromTXT(nil); got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	if err != nil {
		t.Fatalf("getLocalIPs failed: %v", err)
	}

	if ips == nil {
		t.Error("getLocalIPs returned nil slice")
	}

	for _, ip := range ips {
		if ip.To4() == nil {
			t.Errorf("getLocalIPs returned non-IPv4 address: %v", ip)
		}
		if ip.IsLoopback() {
			t.Errorf("getLocalIPs returned loopback address: %v", ip)
		}
	}
}
