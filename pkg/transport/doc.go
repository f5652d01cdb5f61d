// ABOUTME: WebSocket transport primitive package
// ABOUTME: Defines the Dialer/Conn contract and its gorilla and coder implementations
// Package transport provides the duplex message channel a wsclient.Client
// runs on top of.
//
// A Dialer performs the handshake and returns a Conn. A Conn exchanges whole
// messages; framing, masking and control frames are handled by the
// underlying WebSocket library.
//
// Two implementations are provided:
//   - GorillaDialer: github.com/gorilla/websocket (default)
//   - CoderDialer: github.com/coder/websocket
//
// Example:
//
//	conn, err := transport.NewGorillaDialer(transport.Options{}).Open(ctx, "ws://localhost:8080/ws")
//	err = conn.Send(ctx, transport.TextMessage("ping"))
//	msg, err := conn.Receive(ctx)
//	err = conn.Close()
package transport
