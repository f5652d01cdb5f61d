// ABOUTME: Interactive connect command
// ABOUTME: Runs the console or a stdin/stdout line session over one connection
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/Resonate-Protocol/wsclient/internal/ui"
	"github.com/Resonate-Protocol/wsclient/pkg/wsclient"
	"github.com/spf13/cobra"
)

func newConnectCmd(a *app) *cobra.Command {
	var (
		noTUI   bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "connect [endpoint]",
		Short: "Open an interactive session with a WebSocket server",
		Long: `Connect to a WebSocket server and keep the connection open.

By default an interactive console shows received messages and sends
each line you type. With --no-tui, lines read from stdin are sent and
received messages are printed to stdout.

Key bindings:
  Enter       Send the input line
  Ctrl+T      Toggle timestamps
  Ctrl+L      Clear the log
  Esc/Ctrl+C  Quit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			endpoint, err := a.resolveEndpoint(ctx, args)
			if err != nil {
				return err
			}

			if noTUI {
				return a.runLines(ctx, cmd, endpoint)
			}
			return a.runConsole(ctx, endpoint, logFile)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable the console, use stdin/stdout lines")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs here while the console is running")
	return cmd
}

// runLines sends stdin lines and prints received messages until stdin
// ends, the connection closes or ctx is cancelled.
func (a *app) runLines(ctx context.Context, cmd *cobra.Command, endpoint string) error {
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

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return client.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := client.SendText(ctx, line); err != nil {
				return err
			}
			fmt.Fprintf(out, "> %s\n", line)
		}
	}
}

// runConsole runs the interactive console
func (a *app) runConsole(ctx context.Context, endpoint, logFile string) error {
	// Logs would corrupt the console; send them to a file or nowhere.
	logger := logging.Nop()
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger = a.cfg.Logger(f)
	}

	var client *wsclient.Client
	model := ui.NewModel(endpoint, func(text string) error {
		return client.SendText(ctx, text)
	})
	program := ui.Run(model)

	var bridge *ui.EventBridge
	client, cleanup, err := a.newClient(endpoint, wsclient.HandlerFunc(func(context.Context, wsclient.Message) error {
		// messages reach the console through events
		return nil
	}), func(ev wsclient.Event) { bridge.OnEvent(ev) }, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	bridge = ui.NewEventBridge(program, client.Stats)

	done := make(chan error, 1)
	go func() {
		_, err := program.Run()
		done <- err
	}()

	go func() {
		if err := client.Connect(ctx); err != nil {
			logger.Error("connection failed", "error", err)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		program.Quit()
		return <-done
	}
}
