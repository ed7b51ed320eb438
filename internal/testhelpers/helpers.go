// Package testhelpers provides common utilities for testing the relay over
// real websocket connections.
//
// It wraps server start-up, dialing with an allowed Origin, and reading
// envelopes with deadlines so tests can assert on what each client sees.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gridiron-relay/internal/session"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// WebSocketURL turns an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with TestOrigin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header. An
// empty origin sends no header.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// MustConnect dials the /ws endpoint of srv and registers cleanup.
func MustConnect(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, err := ConnectWebSocket(WebSocketURL(srv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one envelope.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := session.EncodeFrame(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// ReceiveEvent reads one envelope, failing the test after timeout.
func ReceiveEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) session.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env session.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

// ExpectEvent reads one envelope and checks its event name.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string) session.Envelope {
	t.Helper()
	env := ReceiveEvent(t, conn, 2*time.Second)
	require.Equal(t, event, env.Event)
	return env
}

// ExpectNoEvent fails if an envelope arrives within timeout. gorilla keeps
// failing reads after a timeout, so this must be the last read on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", frame)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, cond, timeout, 10*time.Millisecond)
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
