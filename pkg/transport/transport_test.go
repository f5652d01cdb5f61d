// ABOUTME: Tests for both transport implementations against a live server
// ABOUTME: Uses an httptest server speaking gorilla/websocket on the far side
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer echoes every message. A text message "bye" makes the server
// close the connection normally; "close <code>" closes with that status and
// reason "bye".
func newTestServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if code, ok := closeRequest(mt, data); ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, "bye"),
					time.Now().Add(time.Second))
				// wait for the client's close reply
				_, _, _ = ws.ReadMessage()
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func closeRequest(mt int, data []byte) (int, bool) {
	if mt != websocket.TextMessage {
		return 0, false
	}
	text := string(data)
	if text == "bye" {
		return websocket.CloseNormalClosure, true
	}
	if rest, ok := strings.CutPrefix(text, "close "); ok {
		code, err := strconv.Atoi(rest)
		return code, err == nil
	}
	return 0, false
}

func dialers() map[string]Dialer {
	opts := Options{HandshakeTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second}
	return map[string]Dialer{
		"gorilla": NewGorillaDialer(opts),
		"coder":   NewCoderDialer(opts),
	}
}

func TestEcho(t *testing.T) {
	uri := newTestServer(t)

	for name, dialer := range dialers() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, err := dialer.Open(ctx, uri)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.Send(ctx, TextMessage("ping")))
			msg, err := conn.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, MessageText, msg.Type)
			assert.Equal(t, "ping", msg.String())

			payload := []byte{0, 1, 2, 250}
			require.NoError(t, conn.Send(ctx, BinaryMessage(payload)))
			msg, err = conn.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, MessageBinary, msg.Type)
			assert.Equal(t, payload, msg.Data)
		})
	}
}

func TestPeerClosure(t *testing.T) {
	uri := newTestServer(t)

	for name, dialer := range dialers() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, err := dialer.Open(ctx, uri)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.Send(ctx, TextMessage("bye")))
			_, err = conn.Receive(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
		})
	}
}

func TestPeerClosureWithStatus(t *testing.T) {
	uri := newTestServer(t)

	for name, dialer := range dialers() {
		for _, code := range []int{1000, 1001, 1008, 1011, 4000} {
			t.Run(fmt.Sprintf("%s/%d", name, code), func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				conn, err := dialer.Open(ctx, uri)
				require.NoError(t, err)
				defer conn.Close()

				require.NoError(t, conn.Send(ctx, TextMessage(fmt.Sprintf("close %d", code))))
				_, err = conn.Receive(ctx)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrClosed)

				var ce *CloseError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, code, ce.Code)
				assert.Equal(t, "bye", ce.Reason)
				assert.NoError(t, conn.Close())
			})
		}
	}
}

func TestCloseErrorUnwrap(t *testing.T) {
	cause := errors.New("library close error")
	err := error(&CloseError{Code: 4000, Reason: "policy", Err: cause})

	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "closed by peer with status 4000: policy", err.Error())
	assert.Equal(t, "closed by peer with status 1005", (&CloseError{Code: 1005}).Error())
	assert.ErrorIs(t, &CloseError{Code: 1000}, ErrClosed)
}

func TestReceiveHonoursContext(t *testing.T) {
	uri := newTestServer(t)

	for name, dialer := range dialers() {
		t.Run(name, func(t *testing.T) {
			conn, err := dialer.Open(context.Background(), uri)
			require.NoError(t, err)
			defer conn.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err = conn.Receive(ctx)
			assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	uri := newTestServer(t)

	for name, dialer := range dialers() {
		t.Run(name, func(t *testing.T) {
			conn, err := dialer.Open(context.Background(), uri)
			require.NoError(t, err)

			first := conn.Close()
			assert.Equal(t, first, conn.Close())

			err = conn.Send(context.Background(), TextMessage("late"))
			assert.True(t, errors.Is(err, ErrConnReleased))
			_, err = conn.Receive(context.Background())
			assert.True(t, errors.Is(err, ErrConnReleased))
		})
	}
}

func TestOpenFailure(t *testing.T) {
	uri := newTestServer(t)
	bad := strings.TrimSuffix(uri, "/ws") + "/missing"

	for name, dialer := range dialers() {
		t.Run(name, func(t *testing.T) {
			conn, err := dialer.Open(context.Background(), bad)
			assert.Error(t, err)
			assert.Nil(t, conn)
		})
	}
}

func TestValidateURI(t *testing.T) {
	tests := []struct {
		uri       string
		expectErr bool
	}{
		{uri: "ws://localhost:8080/ws"},
		{uri: "wss://example.com"},
		{uri: "http://example.com", expectErr: true},
		{uri: "ws://", expectErr: true},
		{uri: "localhost:8080", expectErr: true},
		{uri: "", expectErr: true},
		{uri: "ws://%zz", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			err := ValidateURI(tt.uri)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewDialer(t *testing.T) {
	d, err := NewDialer("", Options{})
	require.NoError(t, err)
	assert.IsType(t, &GorillaDialer{}, d)

	d, err = NewDialer("gorilla", Options{})
	require.NoError(t, err)
	assert.IsType(t, &GorillaDialer{}, d)

	d, err = NewDialer("coder", Options{})
	require.NoError(t, err)
	assert.IsType(t, &CoderDialer{}, d)

	_, err = NewDialer("netty", Options{})
	assert.Error(t, err)
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "text", MessageText.String())
	assert.Equal(t, "binary", MessageBinary.String())
	assert.Equal(t, "MessageType(9)", MessageType(9).String())
}
