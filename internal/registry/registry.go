// Package registry tracks live WebSocket connections and performs message
// fan-out. It is the single shared table between the connection handlers and
// the HTTP broadcast path; one registry-wide lock protects table mutation
// and iteration, never the socket writes themselves.
package registry

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuschat/server/internal/wire"
)

const writeTimeout = 10 * time.Second

var (
	// ErrFull signals that the registry is at its connection capacity.
	ErrFull = errors.New("registry: connection table is full")

	// ErrNotFound signals an operation on a connection that is not registered.
	ErrNotFound = errors.New("registry: connection not found")
)

// Connection is one registered WebSocket connection. The handler goroutine
// owns the transport; the registry holds a non-owning reference used only
// for lookup and fan-out.
type Connection struct {
	id     string
	conn   net.Conn
	userID int
	roomID int
	alive  bool
}

// ID returns the connection's log-correlation identifier.
func (c *Connection) ID() string { return c.id }

// UserID returns the bound user identifier, zero when unbound.
func (c *Connection) UserID() int { return c.userID }

// RoomID returns the bound room identifier, zero when unbound.
func (c *Connection) RoomID() int { return c.roomID }

// Registry is the capacity-bounded table of live connections.
type Registry struct {
	mu       sync.Mutex
	conns    []*Connection
	capacity int
}

// New creates an empty registry holding at most capacity connections.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 1
	}
	return &Registry{capacity: capacity}
}

// Add registers a transport with its initial user and room association
// (zero meaning none). It fails with ErrFull past capacity.
func (r *Registry) Add(conn net.Conn, userID, roomID int) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) >= r.capacity {
		return nil, ErrFull
	}

	c := &Connection{
		id:     uuid.NewString(),
		conn:   conn,
		userID: userID,
		roomID: roomID,
		alive:  true,
	}
	r.conns = append(r.conns, c)

	log.Printf("Connection %s registered (user=%d room=%d). Active connections: %d",
		c.id, userID, roomID, len(r.conns))
	return c, nil
}

// Remove deletes the entry for the given transport, keeping the table dense
// with the relative order of the remaining entries unchanged. Removing an
// absent transport returns ErrNotFound without side effects.
func (r *Registry) Remove(conn net.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.conns {
		if c.conn == conn {
			c.alive = false
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			log.Printf("Connection %s removed. Active connections: %d", c.id, len(r.conns))
			return nil
		}
	}
	return ErrNotFound
}

// Bind tags a registered connection with a user and room. It is how a socket
// acquires an identity after the join control message.
func (r *Registry) Bind(conn net.Conn, userID, roomID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.conns {
		if c.conn == conn {
			c.userID = userID
			c.roomID = roomID
			log.Printf("Connection %s bound to user %d, room %d", c.id, userID, roomID)
			return nil
		}
	}
	return ErrNotFound
}

// Capacity returns the maximum number of concurrent connections.
func (r *Registry) Capacity() int {
	return r.capacity
}

// ActiveCount reports the number of registered connections.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// BroadcastToRoom sends payload as a text frame to every live connection
// tagged with roomID and returns the number of successful sends. Fan-out is
// best effort: individual send failures are logged and skipped, never
// failing the whole call.
func (r *Registry) BroadcastToRoom(roomID int, payload []byte) int {
	return r.broadcast(roomID, nil, payload)
}

// BroadcastToRoomExcept behaves like BroadcastToRoom but skips the sender's
// own transport.
func (r *Registry) BroadcastToRoomExcept(roomID int, except net.Conn, payload []byte) int {
	return r.broadcast(roomID, except, payload)
}

func (r *Registry) broadcast(roomID int, except net.Conn, payload []byte) int {
	frame := wire.EncodeText(payload)

	// Copy the matching targets out under the lock, then send with the lock
	// released so a slow socket never stalls the table.
	r.mu.Lock()
	targets := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if c.alive && c.roomID == roomID && c.conn != except {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	sent := 0
	for _, c := range targets {
		if err := writeFrame(c.conn, frame); err != nil {
			log.Printf("Broadcast send to connection %s failed: %v", c.id, err)
			continue
		}
		sent++
	}
	return sent
}

// SendTo sends payload as a text frame to a single registered transport.
func (r *Registry) SendTo(conn net.Conn, payload []byte) error {
	r.mu.Lock()
	var target *Connection
	for _, c := range r.conns {
		if c.conn == conn && c.alive {
			target = c
			break
		}
	}
	r.mu.Unlock()

	if target == nil {
		return ErrNotFound
	}
	return writeFrame(target.conn, wire.EncodeText(payload))
}

// CloseAll closes every registered transport and empties the table. The
// handler goroutines observe the close as a read error and finish their own
// teardown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	for _, c := range conns {
		c.alive = false
	}
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.conn.Close(); err != nil && !IsExpectedCloseError(err) {
			log.Printf("Error closing connection %s: %v", c.id, err)
		}
	}
	log.Printf("Closed %d connections", len(conns))
}

func writeFrame(conn net.Conn, frame []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(frame)
	return err
}
