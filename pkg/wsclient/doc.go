// ABOUTME: Single-connection WebSocket client package
// ABOUTME: Lifecycle manager, inbound listener, outbound sender and handler strategy
// Package wsclient implements a client that owns exactly one outbound
// WebSocket connection.
//
// Connect opens the connection and starts a listener goroutine that hands
// every inbound message, in receipt order, to the configured Handler. Send
// may be called concurrently from any goroutine while the client is open.
// Close stops the listener and releases the connection exactly once.
//
// A client is single use: once it reaches StateClosed or StateFailed a new
// Client is required. Nothing is retried automatically.
//
// Example:
//
//	client, err := wsclient.New(wsclient.Config{
//	    Endpoint: "ws://localhost:8080/ws",
//	    Handler: wsclient.HandlerFunc(func(ctx context.Context, msg wsclient.Message) error {
//	        fmt.Printf("Received: %s\n", msg)
//	        return nil
//	    }),
//	})
//	err = client.Connect(ctx)
//	err = client.SendText(ctx, "Hello")
//	err = client.Close()
package wsclient
