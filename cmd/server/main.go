package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexuschat/server/internal/archive"
	"github.com/nexuschat/server/internal/auth"
	"github.com/nexuschat/server/internal/config"
	"github.com/nexuschat/server/internal/httpapi"
	"github.com/nexuschat/server/internal/pool"
	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/store"
	"github.com/nexuschat/server/internal/ws"
)

func main() {
	log.Println("Starting chat server...")

	cfg := config.FromEnv()

	st := store.New(store.Limits{})
	reg := registry.New(cfg.MaxConnections)
	workers := pool.New(cfg.PoolWorkers, cfg.PoolQueueSize)
	tokens := auth.NewTokenManager(cfg.JWTSecret, "nexuschat")
	authSvc := auth.NewService(st, tokens)

	var archiver httpapi.Archiver
	if cfg.DatabaseURL != "" {
		arch, err := archive.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect message archive: %v", err)
		}
		defer arch.Close()
		archiver = arch
	}

	if cfg.SeedDemoData {
		seedDemoData(st, authSvc)
	}

	wsServer := ws.NewServer(ws.Config{
		Addr:            cfg.WSAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitRefill: cfg.RateLimitRefill,
		IdleTimeout:     cfg.IdleTimeout,
	}, st, reg)
	if err := wsServer.Start(); err != nil {
		log.Fatalf("Failed to start WebSocket server: %v", err)
	}

	api := httpapi.New(st, authSvc, reg, archiver)
	handler := httpapi.WithCORS(httpapi.WithPool(workers, api.Routes()))
	httpServer := httpapi.CreateServer(cfg.HTTPAddr, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpapi.StartServer(httpServer)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Shutdown signal received: %v", sig)
	case err := <-errCh:
		log.Printf("HTTP server stopped: %v", err)
	}

	if err := httpapi.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := wsServer.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("WebSocket shutdown incomplete: %v", err)
	}
	workers.Shutdown()

	log.Println("Chat server stopped")
}

// seedDemoData creates the demo accounts and rooms used during development.
func seedDemoData(st *store.Store, authSvc *auth.Service) {
	alice, err := authSvc.Register("alice", "password123", store.RoleUser)
	if err != nil {
		log.Printf("Seed: failed to register alice: %v", err)
		return
	}
	bob, err := authSvc.Register("bob", "password123", store.RoleUser)
	if err != nil {
		log.Printf("Seed: failed to register bob: %v", err)
		return
	}
	admin, err := authSvc.Register("admin", "admin123", store.RoleAdmin)
	if err != nil {
		log.Printf("Seed: failed to register admin: %v", err)
		return
	}

	general, err := st.CreateRoom("General Chat", admin)
	if err == nil {
		_ = st.AddUserToRoom(general, admin)
		_ = st.AddUserToRoom(general, alice)
		_ = st.AddUserToRoom(general, bob)
	}
	tech, err := st.CreateRoom("Tech Discussion", alice)
	if err == nil {
		_ = st.AddUserToRoom(tech, alice)
	}

	stats := st.Stats()
	log.Printf("Seeded demo data: %d users, %d rooms", stats.Users, stats.Rooms)
}
