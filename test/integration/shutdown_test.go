package integration

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/store"
	"github.com/nexuschat/server/internal/ws"
	"github.com/nexuschat/server/test/testhelpers"
)

// TestShutdownClosesConnections verifies that Shutdown tears down live
// connections and returns once the handlers have exited.
func TestShutdownClosesConnections(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)

	roomID := testhelpers.SeedRoom(t, st, "room", 1)
	alice := testhelpers.SeedUserInRoom(t, st, "alice", roomID)

	srv, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	conn := testhelpers.DialWebSocket(t, url)
	testhelpers.JoinRoom(t, conn, alice, roomID)

	if err := srv.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	testhelpers.ExpectClosed(t, conn, 2*time.Second)
	if got := reg.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after shutdown = %d, want 0", got)
	}
}

// TestShutdownRejectsNewConnections verifies that the listener is gone after
// Shutdown.
func TestShutdownRejectsNewConnections(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)
	srv, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	if err := srv.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if conn, err := testhelpers.TryDialWebSocket(url, ""); err == nil {
		_ = conn.Close()
		t.Error("Dial succeeded after shutdown")
	}
}

// TestShutdownIdempotentWithActiveTraffic starts a connection mid-chat and
// shuts down while frames may be in flight.
func TestShutdownIdempotentWithActiveTraffic(t *testing.T) {
	st := store.New(store.Limits{})
	reg := registry.New(16)

	roomID := testhelpers.SeedRoom(t, st, "room", 1)
	alice := testhelpers.SeedUserInRoom(t, st, "alice", roomID)
	bob := testhelpers.SeedUserInRoom(t, st, "bob", roomID)

	srv, url := testhelpers.StartWSServer(t, st, reg, ws.Config{})

	aliceConn := testhelpers.DialWebSocket(t, url)
	bobConn := testhelpers.DialWebSocket(t, url)
	testhelpers.JoinRoom(t, aliceConn, alice, roomID)
	testhelpers.JoinRoom(t, bobConn, bob, roomID)

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		for i := 0; i < 50; i++ {
			if err := aliceConn.WriteMessage(websocket.TextMessage, []byte("spam")); err != nil {
				return
			}
		}
	}()

	if err := srv.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	<-stop
}
