// ABOUTME: WebSocket echo server used to exercise the client
// ABOUTME: Echoes every message back, optionally closing after N and advertising via mDNS
package echoserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/wsclient/internal/logging"
	"github.com/Resonate-Protocol/wsclient/pkg/discovery"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds server configuration
type Config struct {
	// Addr is the listen address (default: :8080)
	Addr string
	// Name is advertised over mDNS
	Name string
	// Path is the WebSocket path (default: /ws)
	Path string
	// EnableMDNS advertises the server as a _ws._tcp service
	EnableMDNS bool
	// CloseAfter closes each session normally after echoing this many
	// messages (0 = never)
	CloseAfter int

	Logger *slog.Logger
}

// Server is a WebSocket echo server
type Server struct {
	config   Config
	serverID string
	log      *slog.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux
	listener   net.Listener

	sessions   map[string]*websocket.Conn
	sessionsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	if config.Name == "" {
		config.Name = "wsclient-echo"
	}
	if config.Logger == nil {
		config.Logger = logging.Nop()
	}

	id := uuid.New().String()
	s := &Server{
		config:   config,
		serverID: id,
		log:      config.Logger.With("server_id", id),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Non-browser clients send no Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*websocket.Conn),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	return s
}

// Listen binds the listen address. Start calls it if needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the ws:// URL clients should dial
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port) + s.config.Path
}

// Start serves until Stop is called
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.log.Info("echo server starting", "name", s.config.Name, "url", s.URL())

	if s.config.EnableMDNS {
		port := 0
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Path:        s.config.Path,
			Logger:      s.config.Logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn("failed to start mDNS advertisement", "error", err)
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.log.Info("echo server shutting down")
	case err := <-errChan:
		s.log.Error("HTTP server error", "error", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("HTTP server shutdown error", "error", err)
	}
	_ = s.listener.Close()

	// Hijacked connections are not closed by Shutdown
	s.closeSessions()
	s.wg.Wait()
	s.log.Info("echo server stopped")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Sessions returns the number of connected sessions
func (s *Server) Sessions() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) closeSessions() {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	for _, conn := range s.sessions {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade error", "error", err)
		return
	}

	s.handleConnection(conn, r.RemoteAddr)
}

// handleConnection echoes until the peer goes away
func (s *Server) handleConnection(conn *websocket.Conn, remote string) {
	defer conn.Close()

	id := uuid.New().String()
	log := s.log.With("session_id", id, "remote", remote)

	s.sessionsMu.Lock()
	s.sessions[id] = conn
	s.sessionsMu.Unlock()

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, id)
		s.sessionsMu.Unlock()
		log.Info("session ended")
	}()

	log.Info("session started")

	echoed := 0
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read error", "error", err)
			}
			return
		}

		if err := conn.WriteMessage(mt, data); err != nil {
			log.Warn("write error", "error", err)
			return
		}
		echoed++
		log.Debug("echoed message", "size", len(data))

		if s.config.CloseAfter > 0 && echoed >= s.config.CloseAfter {
			log.Info("closing session after limit", "echoed", echoed)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "limit reached"),
				time.Now().Add(time.Second))
			// Wait briefly for the client's close reply
			_ = conn.SetReadDeadline(time.Now().Add(time.Second))
			_, _, _ = conn.ReadMessage()
			return
		}
	}
}
