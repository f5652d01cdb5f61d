// ABOUTME: Entry point for the standalone WebSocket echo server
// ABOUTME: Parses CLI flags and runs the echo server until interrupted
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/wsclient/internal/echoserver"
	"github.com/Resonate-Protocol/wsclient/internal/logging"
)

var (
	addr       = flag.String("addr", ":8080", "Listen address")
	path       = flag.String("path", "/ws", "WebSocket path")
	name       = flag.String("name", "", "Server friendly name (default: hostname-wsecho)")
	logFile    = flag.String("log-file", "", "Also write logs to this file")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	jsonLogs   = flag.Bool("json", false, "Log as JSON")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	closeAfter = flag.Int("close-after", 0, "Close each session after echoing N messages (0 = never)")
)

func main() {
	flag.Parse()

	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		out = io.MultiWriter(os.Stdout, f)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Output = out
	if *debug {
		logCfg.Level = logging.LevelDebug
	}
	if *jsonLogs {
		logCfg.Format = logging.FormatJSON
	}
	logger := logging.New(logCfg)

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-wsecho", hostname)
	}

	srv := echoserver.New(echoserver.Config{
		Addr:       *addr,
		Name:       serverName,
		Path:       *path,
		EnableMDNS: !*noMDNS,
		CloseAfter: *closeAfter,
		Logger:     logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutting down gracefully", "signal", sig.String())
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
