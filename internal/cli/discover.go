// ABOUTME: mDNS discover command
// ABOUTME: Lists WebSocket endpoints advertised on the local network
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Resonate-Protocol/wsclient/pkg/discovery"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List WebSocket endpoints advertised via mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := a.cfg.DiscoveryConfig(a.log)
			if cmd.Flags().Changed("timeout") {
				dc.Timeout = timeout
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), dc.Timeout+time.Second)
			defer cancel()

			servers, err := discovery.Discover(ctx, dc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, "No endpoints found")
				return nil
			}
			return printServers(out, servers)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to browse")
	return cmd
}

func printServers(out io.Writer, servers []discovery.ServerInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURI")
	for _, s := range servers {
		fmt.Fprintf(w, "%s\t%s\n", s.Name, s.URI())
	}
	return w.Flush()
}
