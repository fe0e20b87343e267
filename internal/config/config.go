// Package config defines runtime defaults and environment-variable loading
// for the chat server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration settings.
type Config struct {
	HTTPAddr string
	WSAddr   string

	AllowedOrigins []string

	PoolWorkers   int
	PoolQueueSize int

	MaxConnections int

	RateLimitBurst  int
	RateLimitRefill time.Duration

	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	JWTSecret   string
	DatabaseURL string

	SeedDemoData bool
}

// New creates a Config populated with default values for all settings.
func New() *Config {
	return &Config{
		HTTPAddr:        ":3005",
		WSAddr:          ":7070",
		AllowedOrigins:  []string{"*"},
		PoolWorkers:     10,
		PoolQueueSize:   100,
		MaxConnections:  1000,
		RateLimitBurst:  5,
		RateLimitRefill: time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		JWTSecret:       "change-me-in-production",
	}
}

// FromEnv creates a Config from environment variables, falling back to the
// defaults for anything unset.
func FromEnv() *Config {
	cfg := New()

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if addr := os.Getenv("WS_ADDR"); addr != "" {
		cfg.WSAddr = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if workers := os.Getenv("POOL_WORKERS"); workers != "" {
		cfg.PoolWorkers = parseIntValue(workers, cfg.PoolWorkers)
	}
	if queue := os.Getenv("POOL_QUEUE_SIZE"); queue != "" {
		cfg.PoolQueueSize = parseIntValue(queue, cfg.PoolQueueSize)
	}
	if maxConns := os.Getenv("MAX_CONNECTIONS"); maxConns != "" {
		cfg.MaxConnections = parseIntValue(maxConns, cfg.MaxConnections)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimitBurst = parseIntValue(burst, cfg.RateLimitBurst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimitRefill = parseSeconds(interval, cfg.RateLimitRefill)
	}
	if idle := os.Getenv("IDLE_TIMEOUT"); idle != "" {
		cfg.IdleTimeout = parseSeconds(idle, cfg.IdleTimeout)
	}
	if shutdown := os.Getenv("SHUTDOWN_TIMEOUT"); shutdown != "" {
		cfg.ShutdownTimeout = parseSeconds(shutdown, cfg.ShutdownTimeout)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SeedDemoData = os.Getenv("SEED_DEMO_DATA") == "true"

	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
