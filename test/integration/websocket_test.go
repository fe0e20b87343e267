// Package integration verifies the assembled system end to end: the
// hand-rolled WebSocket protocol against a reference client, room fan-out
// through the registry, and the HTTP API driving broadcasts to live
// connections.
package integration

import (
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/store"
	"github.com/nexuschat/server/internal/ws"
	"github.com/nexuschat/server/test/testhelpers"
)

// TestHandshakeConformance dials with a reference client, which rejects the
// connection itself if the Sec-WebSocket-Accept token is wrong.
func TestHandshakeConformance(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	conn := testhelpers.DialWebSocket(t, url)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// TestPingPong verifies that the server answers pings while a connection
// idles.
func TestPingPong(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	conn := testhelpers.DialWebSocket(t, url)

	pong := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		pong <- struct{}{}
		return nil
	})

	if err := conn.WriteControl(websocket.PingMessage, []byte("ping"),
		time.Now().Add(time.Second)); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	// Pongs are only surfaced while a read is in flight.
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, _ = conn.ReadMessage()
	}()

	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("No pong received within 2 seconds")
	}
}

// TestJoinAndRelay runs the core chat flow: two members join over WebSocket
// and a message from one is relayed to the other but not echoed back.
func TestJoinAndRelay(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)

	roomID := testhelpers.SeedRoom(t, st, "General Chat", 1)
	alice := testhelpers.SeedUserInRoom(t, st, "alice", roomID)
	bob := testhelpers.SeedUserInRoom(t, st, "bob", roomID)

	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	aliceConn := testhelpers.DialWebSocket(t, url)
	bobConn := testhelpers.DialWebSocket(t, url)
	testhelpers.JoinRoom(t, aliceConn, alice, roomID)
	testhelpers.JoinRoom(t, bobConn, bob, roomID)

	if err := aliceConn.WriteMessage(websocket.TextMessage, []byte("hello bob")); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	if got := testhelpers.ExpectTextMessage(t, bobConn, 2*time.Second); got != "hello bob" {
		t.Errorf("Bob received %q, want %q", got, "hello bob")
	}
	testhelpers.ExpectNoMessage(t, aliceConn, 300*time.Millisecond)

	// The relayed message is also recorded in the room history.
	messages := st.RoomMessages(roomID, 0)
	if len(messages) != 1 || messages[0].Content != "hello bob" {
		t.Errorf("Room history %v, want the single relayed message", messages)
	}
	if messages[0].SenderName != "alice" {
		t.Errorf("Recorded sender %q, want %q", messages[0].SenderName, "alice")
	}
}

// TestRelayIsRoomScoped verifies that a member of another room receives
// nothing.
func TestRelayIsRoomScoped(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)

	room1 := testhelpers.SeedRoom(t, st, "room one", 1)
	room2 := testhelpers.SeedRoom(t, st, "room two", 1)
	alice := testhelpers.SeedUserInRoom(t, st, "alice", room1)
	bob := testhelpers.SeedUserInRoom(t, st, "bob", room1)
	carol := testhelpers.SeedUserInRoom(t, st, "carol", room2)

	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	aliceConn := testhelpers.DialWebSocket(t, url)
	bobConn := testhelpers.DialWebSocket(t, url)
	carolConn := testhelpers.DialWebSocket(t, url)
	testhelpers.JoinRoom(t, aliceConn, alice, room1)
	testhelpers.JoinRoom(t, bobConn, bob, room1)
	testhelpers.JoinRoom(t, carolConn, carol, room2)

	if err := aliceConn.WriteMessage(websocket.TextMessage, []byte("room one only")); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	if got := testhelpers.ExpectTextMessage(t, bobConn, 2*time.Second); got != "room one only" {
		t.Errorf("Bob received %q, want %q", got, "room one only")
	}
	testhelpers.ExpectNoMessage(t, carolConn, 300*time.Millisecond)
}

// TestJoinRejectsUnknownUser verifies that a join for a user that does not
// exist terminates the connection.
func TestJoinRejectsUnknownUser(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	conn := testhelpers.DialWebSocket(t, url)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("join 999 1")); err != nil {
		t.Fatalf("Failed to send join message: %v", err)
	}
	testhelpers.ExpectClosed(t, conn, 2*time.Second)
}

// TestJoinRequiresMembership verifies that a socket cannot bind to a room
// its user has not joined through the API.
func TestJoinRequiresMembership(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)

	roomID := testhelpers.SeedRoom(t, st, "members only", 1)
	outsider, err := st.CreateUser("outsider", "test-hash", store.RoleUser)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	conn := testhelpers.DialWebSocket(t, url)
	line := []byte("join " + strconv.Itoa(outsider) + " " + strconv.Itoa(roomID))
	if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
		t.Fatalf("Failed to send join message: %v", err)
	}
	testhelpers.ExpectClosed(t, conn, 2*time.Second)
}

// TestJoinRejectsMalformedLine verifies that the first text frame must be a
// well-formed join control line.
func TestJoinRejectsMalformedLine(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	for _, line := range []string{"hello", "join", "join one two", "join -1 3"} {
		conn, err := testhelpers.TryDialWebSocket(url, "")
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			t.Fatalf("Failed to send %q: %v", line, err)
		}
		testhelpers.ExpectClosed(t, conn, 2*time.Second)
		_ = conn.Close()
	}
}

// TestConnectionCapacity verifies that accepts beyond the registry capacity
// are rejected and slots are reusable after a disconnect.
func TestConnectionCapacity(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(1)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	first := testhelpers.DialWebSocket(t, url)

	second, err := testhelpers.TryDialWebSocket(url, "")
	if err == nil {
		// The server closes the socket before the upgrade; depending on
		// timing the dial itself may succeed, but the first read must fail.
		testhelpers.ExpectClosed(t, second, 2*time.Second)
		_ = second.Close()
	}

	_ = first.Close()
	waitFor(t, func() bool { return reg.ActiveCount() == 0 })

	third := testhelpers.DialWebSocket(t, url)
	if err := third.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
		t.Errorf("Slot not reusable after disconnect: %v", err)
	}
}

// TestDisallowedOrigin verifies the 403 path for browser connections from
// unconfigured origins.
func TestDisallowedOrigin(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{
		AllowedOrigins: []string{"http://trusted.example.com"},
	})

	if _, err := testhelpers.TryDialWebSocket(url, "http://evil.example.com"); err == nil {
		t.Error("Connection from disallowed origin was accepted")
	}

	if conn, err := testhelpers.TryDialWebSocket(url, "http://trusted.example.com"); err != nil {
		t.Errorf("Connection from allowed origin rejected: %v", err)
	} else {
		_ = conn.Close()
	}
}

// TestIdleConnectionReaped verifies that a silent connection is dropped once
// the idle timeout expires.
func TestIdleConnectionReaped(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{
		IdleTimeout: 200 * time.Millisecond,
	})

	conn := testhelpers.DialWebSocket(t, url)
	waitFor(t, func() bool { return reg.ActiveCount() == 1 })

	testhelpers.ExpectClosed(t, conn, 3*time.Second)
	waitFor(t, func() bool { return reg.ActiveCount() == 0 })
}

// TestDisconnectMarksOffline verifies teardown bookkeeping: the registry
// entry goes away and the user's online flag clears.
func TestDisconnectMarksOffline(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)

	roomID := testhelpers.SeedRoom(t, st, "room", 1)
	alice := testhelpers.SeedUserInRoom(t, st, "alice", roomID)

	_, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	conn := testhelpers.DialWebSocket(t, url)
	testhelpers.JoinRoom(t, conn, alice, roomID)

	if user, _ := st.UserByID(alice); !user.Online {
		t.Error("User not marked online after join")
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitFor(t, func() bool { return reg.ActiveCount() == 0 })
	waitFor(t, func() bool {
		user, _ := st.UserByID(alice)
		return !user.Online
	})
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not reached within 2 seconds")
}
