// ABOUTME: mDNS service discovery package
// ABOUTME: Discover and advertise WebSocket endpoints on the local network
// Package discovery finds WebSocket endpoints on the local network via mDNS
// and advertises local ones.
//
// Endpoints are advertised as _ws._tcp services with a "path=" TXT record.
//
// Example:
//
//	servers, err := discovery.Discover(ctx, discovery.Config{Timeout: 3 * time.Second})
//	for _, s := range servers {
//	    fmt.Printf("Found: %s at %s\n", s.Name, s.URI())
//	}
package discovery
