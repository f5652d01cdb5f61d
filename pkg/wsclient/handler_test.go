// ABOUTME: Tests for handlers, error policy parsing and state names
// ABOUTME: Covers preview rendering, fan-out and error type matching
package wsclient

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/wsclient/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		limit    int
		expected string
	}{
		{name: "short text", msg: transport.TextMessage("hello"), limit: 10, expected: "hello"},
		{name: "exact limit", msg: transport.TextMessage("0123456789"), limit: 10, expected: "0123456789"},
		{name: "truncated", msg: transport.TextMessage("0123456789abc"), limit: 10, expected: "0123456..."},
		{name: "binary", msg: transport.BinaryMessage([]byte{1, 2, 3}), limit: 10, expected: "<3 bytes binary>"},
		{name: "invalid utf8 text", msg: Message{Type: transport.MessageText, Data: []byte{0xff, 0xfe}}, limit: 10, expected: "<2 bytes binary>"},
		{name: "empty", msg: transport.TextMessage(""), limit: 10, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Preview(tt.msg, tt.limit))
		})
	}
}

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := NewLogHandler(logger)
	h.MaxPreview = 8

	err := h.HandleMessage(context.Background(), transport.TextMessage("a long message body"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "message received")
	assert.Contains(t, out, "type=text")
	assert.Contains(t, out, "size=19")
	assert.Contains(t, out, "a lon...")
	assert.NotContains(t, out, "message body")
}

func TestLogHandlerNilLogger(t *testing.T) {
	h := NewLogHandler(nil)
	assert.NoError(t, h.HandleMessage(context.Background(), transport.TextMessage("x")))
}

func TestMultiHandler(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	var calls []string
	record := func(name string, err error) Handler {
		return HandlerFunc(func(ctx context.Context, msg Message) error {
			calls = append(calls, name+":"+msg.String())
			return err
		})
	}

	m := MultiHandler{record("a", errA), nil, record("b", nil), record("c", errC)}
	err := m.HandleMessage(context.Background(), transport.TextMessage("x"))

	assert.Equal(t, []string{"a:x", "b:x", "c:x"}, calls)
	assert.True(t, errors.Is(err, errA))
	assert.True(t, errors.Is(err, errC))

	calls = nil
	ok := MultiHandler{record("b", nil)}
	assert.NoError(t, ok.HandleMessage(context.Background(), transport.TextMessage("y")))
	assert.Equal(t, []string{"b:y"}, calls)
}

func TestParseHandlerErrorPolicy(t *testing.T) {
	tests := []struct {
		input     string
		expected  HandlerErrorPolicy
		expectErr bool
	}{
		{input: "", expected: PolicyContinue},
		{input: "continue", expected: PolicyContinue},
		{input: "Skip", expected: PolicyContinue},
		{input: "terminate", expected: PolicyTerminate},
		{input: " STOP ", expected: PolicyTerminate},
		{input: "explode", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHandlerErrorPolicy(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.Equal(t, "continue", PolicyContinue.String())
	assert.Equal(t, "terminate", PolicyTerminate.String())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		name     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateConnecting, "connecting", false},
		{StateOpen, "open", false},
		{StateClosing, "closing", false},
		{StateClosed, "closed", true},
		{StateFailed, "failed", true},
		{State(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

func TestEventTypeString(t *testing.T) {
	names := map[EventType]string{
		EventConnected:     "connected",
		EventConnectFailed: "connect_failed",
		EventMessage:       "message",
		EventError:         "error",
		EventClosed:        "closed",
		EventType(0):       "unknown",
	}
	for et, name := range names {
		assert.Equal(t, name, et.String())
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("root cause")

	stateErr := &StateError{Op: "send", State: StateClosed}
	assert.True(t, errors.Is(stateErr, ErrInvalidState))
	assert.Equal(t, "send: invalid in state closed", stateErr.Error())

	connErr := &ConnectionError{Endpoint: "ws://h", Err: cause}
	assert.True(t, errors.Is(connErr, cause))
	assert.False(t, errors.Is(connErr, ErrInvalidState))
	assert.True(t, strings.HasPrefix(connErr.Error(), "connect to ws://h"))

	sendErr := &SendError{Err: &TransportError{Op: "send", Err: cause}}
	var te *TransportError
	assert.True(t, errors.As(sendErr, &te))
	assert.True(t, errors.Is(sendErr, cause))

	herr := &HandlerError{Seq: 3, Err: cause}
	assert.Contains(t, herr.Error(), "message 3")
	assert.True(t, errors.Is(herr, cause))
}
