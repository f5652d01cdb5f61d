// ABOUTME: Echo server command
// ABOUTME: Runs the bundled echo server until interrupted
package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/wsclient/internal/echoserver"
	"github.com/spf13/cobra"
)

func newEchoCmd(a *app) *cobra.Command {
	var config echoserver.Config

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a WebSocket echo server",
		Long: `Run a WebSocket server that echoes every message back. Useful as a
local peer for connect and send.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Logger = a.log
			srv := echoserver.New(config)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				select {
				case <-sigChan:
					a.log.Info("shutdown signal received")
				case <-cmd.Context().Done():
				}
				srv.Stop()
			}()

			return srv.Start()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.Addr, "addr", ":8080", "listen address")
	flags.StringVar(&config.Path, "path", "/ws", "WebSocket path")
	flags.StringVar(&config.Name, "name", "wsclient-echo", "name advertised via mDNS")
	flags.BoolVar(&config.EnableMDNS, "mdns", false, "advertise via mDNS")
	flags.IntVar(&config.CloseAfter, "close-after", 0, "close each session after echoing N messages (0 = never)")
	return cmd
}
