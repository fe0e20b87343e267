package ws

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/wire"
)

const (
	maxHandshakeSize = 8 * 1024
	readChunkSize    = 4 * 1024

	// A buffered frame can be at most header (14 bytes) plus payload.
	maxBufferedFrame = wire.MaxFramePayload + 14
)

// handler drives one connection's lifecycle: handshake, registration, frame
// loop, teardown. All handler state is owned by its goroutine; only the
// registry entry is shared.
type handler struct {
	srv     *Server
	conn    net.Conn
	addr    string
	limiter *rateLimiter

	// Set by the join control message.
	userID   int
	roomID   int
	userName string
}

func (s *Server) handleConn(conn net.Conn) {
	h := &handler{
		srv:     s,
		conn:    conn,
		addr:    conn.RemoteAddr().String(),
		limiter: newRateLimiter(s.cfg.RateLimitBurst, s.cfg.RateLimitRefill),
	}

	leftover, ok := h.handshake()
	if !ok {
		_ = conn.Close()
		return
	}

	if _, err := s.reg.Add(conn, 0, 0); err != nil {
		log.Printf("Failed to register connection from %s: %v", h.addr, err)
		_, _ = conn.Write(wire.EncodeClose())
		_ = conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", h.addr)

	h.readLoop(leftover)

	if err := s.reg.Remove(conn); err != nil && err != registry.ErrNotFound {
		log.Printf("Error removing connection from %s: %v", h.addr, err)
	}
	if h.userID != 0 {
		if err := s.store.SetOnline(h.userID, false); err != nil {
			log.Printf("Error marking user %d offline: %v", h.userID, err)
		}
	}
	if err := conn.Close(); err != nil && !registry.IsExpectedCloseError(err) {
		log.Printf("Error closing connection from %s: %v", h.addr, err)
	}
	log.Printf("WebSocket client disconnected: %s", h.addr)
}

// handshake reads the HTTP upgrade request, validates the origin, and sends
// the 101 response. It returns any bytes the client pipelined after the
// header block and whether the connection was promoted.
func (h *handler) handshake() ([]byte, bool) {
	h.refreshDeadline()

	raw, leftover, err := h.readRequest()
	if err != nil {
		log.Printf("Failed to read handshake from %s: %v", h.addr, err)
		return nil, false
	}

	if origin := wire.HeaderValue(raw, "Origin"); !h.srv.origins.allow(origin) {
		log.Printf("Blocked WebSocket connection from disallowed origin: %q", origin)
		_, _ = h.conn.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
		return nil, false
	}

	token, err := wire.Negotiate(raw)
	if err != nil {
		log.Printf("Handshake from %s failed: %v", h.addr, err)
		_, _ = h.conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		return nil, false
	}

	if _, err := h.conn.Write(wire.HandshakeResponse(token)); err != nil {
		log.Printf("Failed to send handshake response to %s: %v", h.addr, err)
		return nil, false
	}
	return leftover, true
}

// readRequest accumulates bytes until the header block terminator arrives,
// bounded by maxHandshakeSize. Bytes after the terminator are returned
// separately so pipelined frames are not lost.
func (h *handler) readRequest() (header, leftover []byte, err error) {
	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		n, err := h.conn.Read(chunk)
		if err != nil {
			return nil, nil, err
		}
		buf = append(buf, chunk[:n]...)

		if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx >= 0 {
			end := idx + 4
			return buf[:end], buf[end:], nil
		}
		if len(buf) > maxHandshakeSize {
			return nil, nil, fmt.Errorf("handshake request exceeds %d bytes", maxHandshakeSize)
		}
	}
}

// readLoop drains frames until the peer closes, a protocol violation occurs,
// or the socket errors out. Partial frames accumulate in buf across reads.
func (h *handler) readLoop(initial []byte) {
	buf := initial
	chunk := make([]byte, readChunkSize)

	for {
		// Drain every complete frame already buffered before blocking on the
		// socket again; the handshake read may have pipelined frames in.
		for {
			frame, consumed, err := h.nextFrame(buf)
			if err == wire.ErrIncompleteFrame {
				break
			}
			if err != nil {
				log.Printf("Dropping %s: %v", h.addr, err)
				return
			}
			buf = buf[consumed:]

			if !h.dispatch(frame) {
				return
			}
		}

		h.refreshDeadline()

		n, err := h.conn.Read(chunk)
		if err != nil {
			if !registry.IsExpectedCloseError(err) {
				log.Printf("Read error from %s: %v", h.addr, err)
			}
			return
		}
		buf = append(buf, chunk[:n]...)
	}
}

func (h *handler) nextFrame(buf []byte) (*wire.Frame, int, error) {
	frame, n, err := wire.DecodeFrame(buf)
	if err == wire.ErrIncompleteFrame && len(buf) > maxBufferedFrame {
		return nil, 0, fmt.Errorf("frame larger than %d bytes buffered", maxBufferedFrame)
	}
	return frame, n, err
}

// dispatch handles one decoded frame and reports whether the loop should
// continue.
func (h *handler) dispatch(frame *wire.Frame) bool {
	switch frame.Opcode {
	case wire.OpText:
		return h.handleText(frame.Payload)

	case wire.OpPing:
		// Zero-length pong, regardless of the ping payload.
		if _, err := h.conn.Write(wire.EncodePong(nil)); err != nil {
			log.Printf("Error writing pong to %s: %v", h.addr, err)
			return false
		}
		return true

	case wire.OpPong:
		return true

	case wire.OpBinary:
		log.Printf("Ignoring binary frame from %s", h.addr)
		return true

	case wire.OpClose:
		log.Printf("Client %s sent close frame", h.addr)
		_, _ = h.conn.Write(wire.EncodeClose())
		return false

	case wire.OpContinuation:
		// Fragmentation is unsupported; a fragment we cannot reassemble
		// would corrupt the text stream.
		log.Printf("Dropping %s: continuation frames not supported", h.addr)
		_, _ = h.conn.Write(wire.EncodeClose())
		return false

	default:
		log.Printf("Dropping %s: unknown opcode 0x%X", h.addr, byte(frame.Opcode))
		return false
	}
}

// handleText processes one inbound text payload. The first text frame must
// be the join control line binding the socket to a user and room; everything
// after is relayed to the rest of the room.
func (h *handler) handleText(payload []byte) bool {
	if !h.limiter.allow() {
		log.Printf("Rate limit exceeded for %s; discarding message", h.addr)
		return true
	}

	if h.userID == 0 {
		return h.handleJoin(string(payload))
	}

	content := string(payload)
	if _, err := h.srv.store.CreateMessage(h.userID, h.roomID, h.userName, content); err != nil {
		log.Printf("Failed to store message from %s: %v", h.addr, err)
		h.sendError(err.Error())
		return true
	}

	sent := h.srv.reg.BroadcastToRoomExcept(h.roomID, h.conn, payload)
	log.Printf("Relayed message from %s to %d connections in room %d", h.userName, sent, h.roomID)
	return true
}

// handleJoin parses and applies the "join <userID> <roomID>" control line.
// Any malformed or unauthorized join terminates the connection.
func (h *handler) handleJoin(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "join" {
		log.Printf("Dropping %s: expected join control message, got %q", h.addr, line)
		_, _ = h.conn.Write(wire.EncodeClose())
		return false
	}

	userID, err1 := strconv.Atoi(fields[1])
	roomID, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || userID <= 0 || roomID <= 0 {
		log.Printf("Dropping %s: malformed join ids in %q", h.addr, line)
		_, _ = h.conn.Write(wire.EncodeClose())
		return false
	}

	user, ok := h.srv.store.UserByID(userID)
	if !ok {
		log.Printf("Dropping %s: join for unknown user %d", h.addr, userID)
		_, _ = h.conn.Write(wire.EncodeClose())
		return false
	}

	members, err := h.srv.store.RoomMembers(roomID)
	if err != nil || !slices.Contains(members, userID) {
		log.Printf("Dropping %s: user %d is not a member of room %d", h.addr, userID, roomID)
		_, _ = h.conn.Write(wire.EncodeClose())
		return false
	}

	if err := h.srv.reg.Bind(h.conn, userID, roomID); err != nil {
		log.Printf("Dropping %s: bind failed: %v", h.addr, err)
		return false
	}

	h.userID = userID
	h.roomID = roomID
	h.userName = user.Name
	_ = h.srv.store.SetCurrentRoom(userID, roomID)
	_ = h.srv.store.SetOnline(userID, true)

	h.sendText("joined " + strconv.Itoa(roomID))
	log.Printf("Connection from %s joined: user %d (%s), room %d", h.addr, userID, user.Name, roomID)
	return true
}

func (h *handler) sendText(msg string) {
	if _, err := h.conn.Write(wire.EncodeText([]byte(msg))); err != nil {
		log.Printf("Error writing to %s: %v", h.addr, err)
	}
}

func (h *handler) sendError(msg string) {
	h.sendText("error " + msg)
}

func (h *handler) refreshDeadline() {
	if err := h.conn.SetReadDeadline(time.Now().Add(h.srv.cfg.IdleTimeout)); err != nil {
		log.Printf("Error setting read deadline for %s: %v", h.addr, err)
	}
}
