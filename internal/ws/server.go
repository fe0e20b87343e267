package ws

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/store"
)

// Config holds the WebSocket listener settings.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	RateLimitBurst  int
	RateLimitRefill time.Duration
	IdleTimeout     time.Duration
}

// Server accepts raw TCP connections, upgrades them to WebSocket, and runs
// one handler goroutine per connection. Concurrent connections are bounded
// by the registry's capacity; accepts beyond it are rejected before a
// handler is spawned.
type Server struct {
	cfg     Config
	store   *store.Store
	reg     *registry.Registry
	origins *originPolicy

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a WebSocket server over the given store and registry.
func NewServer(cfg Config, st *store.Store, reg *registry.Registry) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.RateLimitRefill <= 0 {
		cfg.RateLimitRefill = time.Second
	}

	return &Server{
		cfg:     cfg,
		store:   st,
		reg:     reg,
		origins: newOriginPolicy(cfg.AllowedOrigins),
	}
}

// Start binds the listener and begins accepting connections in a background
// goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("WebSocket server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && !registry.IsExpectedCloseError(err) {
				log.Printf("Failed to accept WebSocket connection: %v", err)
				continue
			}
			return
		}

		// The registry already bounds live connections; checking here keeps
		// the handler-goroutine count bounded by the same capacity.
		if s.reg.ActiveCount() >= s.reg.Capacity() {
			log.Printf("Rejecting connection from %s: registry full", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops accepting, closes every live connection, and waits for the
// handler goroutines to finish or the timeout to expire. Handlers observe
// the socket close as a read error and exit their loops on their own.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down WebSocket server...")
	s.running.Store(false)

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !registry.IsExpectedCloseError(err) {
			log.Printf("Error closing WebSocket listener: %v", err)
		}
	}
	s.reg.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("WebSocket server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("WebSocket server shutdown timeout reached, some handlers may still be running")
		return context.DeadlineExceeded
	}
}
