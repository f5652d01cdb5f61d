// ABOUTME: One-shot send command
// ABOUTME: Connects, sends a message, prints replies for a while and closes
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// DefaultMessage is sent when none is given
const DefaultMessage = "Hello from Go!"

func newSendCmd(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send [endpoint] [message]",
		Short: "Connect, send one message, print replies and close",
		Long: `Connect to the endpoint, send a single text message, print whatever
the server sends for --wait, then close the connection.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			endpoint, err := a.resolveEndpoint(ctx, args)
			if err != nil {
				return err
			}
			message := DefaultMessage
			if len(args) > 1 {
				message = args[1]
			}

			out := cmd.OutOrStdout()
			client, cleanup, err := a.newClient(endpoint, printHandler{w: out}, nil, a.log)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := client.Connect(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Connected to %s\n", endpoint)

			if err := client.SendText(ctx, message); err != nil {
				return err
			}
			fmt.Fprintf(out, "> %s\n", message)

			waitOrDone(ctx, client, wait)

			if err := client.Close(); err != nil {
				return err
			}
			if err := client.Err(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Connection closed")
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for replies before closing")
	return cmd
}
