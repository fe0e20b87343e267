// Package testhelpers provides shared utilities for the integration tests:
// starting a chat server on an ephemeral port, dialing it with a reference
// WebSocket client, and asserting on relayed messages.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/store"
	"github.com/nexuschat/server/internal/ws"
)

// StartWSServer starts a WebSocket server on an ephemeral loopback port and
// registers a cleanup that shuts it down. It returns the server and its
// ws:// URL.
func StartWSServer(t *testing.T, st *store.Store, reg *registry.Registry, cfg ws.Config) (*ws.Server, string) {
	t.Helper()

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	srv := ws.NewServer(cfg, st, reg)
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start WebSocket server: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(5 * time.Second)
	})

	return srv, "ws://" + srv.Addr().String()
}

// DialWebSocket connects a reference client to the given ws:// URL. The
// dialer performs the full RFC 6455 handshake, including verification of the
// Sec-WebSocket-Accept token the server computes.
func DialWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, err := TryDialWebSocket(url, "")
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// TryDialWebSocket connects with an optional Origin header and returns the
// dial error instead of failing the test, for rejection-path assertions.
func TryDialWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// JoinRoom sends the join control line over the connection and waits for the
// server's acknowledgement.
func JoinRoom(t *testing.T, conn *websocket.Conn, userID, roomID int) {
	t.Helper()

	line := fmt.Sprintf("join %d %d", userID, roomID)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		t.Fatalf("Failed to send join message: %v", err)
	}

	want := "joined " + strconv.Itoa(roomID)
	got := ExpectTextMessage(t, conn, 2*time.Second)
	if got != want {
		t.Fatalf("Join acknowledgement %q, want %q", got, want)
	}
}

// ExpectTextMessage reads one text message within the timeout and returns
// its payload as a string.
func ExpectTextMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) string {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	kind, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("Received message type %d, want text", kind)
	}
	return string(payload)
}

// ExpectNoMessage asserts that nothing arrives on the connection within the
// timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, received %q", payload)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// ExpectClosed asserts that the next read fails because the server has
// terminated the connection.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected connection to be closed, received %q", payload)
	}
}

// PostJSON sends a JSON POST request and decodes the JSON response body.
func PostJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Failed to POST %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	decoded := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response from %s: %v", url, err)
	}
	return resp.StatusCode, decoded
}

// GetJSON sends a GET request and decodes the JSON response body.
func GetJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	decoded := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response from %s: %v", url, err)
	}
	return resp.StatusCode, decoded
}

// SeedUserInRoom creates a user and makes them a member of the given room,
// bypassing the HTTP API.
func SeedUserInRoom(t *testing.T, st *store.Store, name string, roomID int) int {
	t.Helper()

	id, err := st.CreateUser(name, "test-hash", store.RoleUser)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	if err := st.AddUserToRoom(roomID, id); err != nil {
		t.Fatalf("Failed to add user %s to room %d: %v", name, roomID, err)
	}
	return id
}

// SeedRoom creates a room, bypassing the HTTP API.
func SeedRoom(t *testing.T, st *store.Store, name string, createdBy int) int {
	t.Helper()

	id, err := st.CreateRoom(name, createdBy)
	if err != nil {
		t.Fatalf("Failed to create room %s: %v", name, err)
	}
	return id
}
