// ABOUTME: Version information for the client tools
// ABOUTME: Product identity reported by the CLI and sent as the User-Agent
package version

// Version is set at build time via -ldflags "-X github.com/Resonate-Protocol/wsclient/internal/version.Version=x.y.z"
var Version = "0.1.0"

const (
	// Product is the product name
	Product = "wsclient"
	// Manufacturer is the maker reported in the User-Agent
	Manufacturer = "Resonate Protocol"
)

// UserAgent returns the User-Agent header value sent on the handshake
func UserAgent() string {
	return Product + "/" + Version
}
