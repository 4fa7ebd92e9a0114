package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DefaultAddr         = "localhost:8080"
	DefaultBacklog      = 10
	DefaultTick         = 250 * time.Millisecond
	DefaultRedisChannel = "pegrelay:broadcast"
)

var (
	ErrNoAddr     = errors.New("config: address is empty")
	ErrBadBacklog = errors.New("config: backlog must be positive")
	ErrBadTick    = errors.New("config: tick must be positive")
)

// Server holds relay settings
type Server struct {
	Addr         string
	WSAddr       string // empty disables the websocket gateway
	MetricsAddr  string // empty disables /metrics and /healthz
	Backlog      int
	LogLevel     string
	LogJSON      bool
	ActivityLog  string
	RedisURL     string // empty disables the cluster bridge
	RedisChannel string
	UI           bool
}

// Client holds terminal client settings
type Client struct {
	Addr     string
	Tick     time.Duration
	LogLevel string
	Username string // optional, registers right away when set
}

func DefaultServer() Server {
	return Server{
		Addr:         DefaultAddr,
		Backlog:      DefaultBacklog,
		LogLevel:     "info",
		ActivityLog:  "chat.log",
		RedisChannel: DefaultRedisChannel,
	}
}

func DefaultClient() Client {
	return Client{
		Addr:     DefaultAddr,
		Tick:     DefaultTick,
		LogLevel: "info",
	}
}

// FromEnv overlays PEGRELAY_* variables on c
func (c Server) FromEnv() Server {
	c.Addr = getEnv("PEGRELAY_ADDR", c.Addr)
	c.LogLevel = getEnv("PEGRELAY_LOG_LEVEL", c.LogLevel)
	c.RedisURL = getEnv("PEGRELAY_REDIS_URL", c.RedisURL)
	c.MetricsAddr = getEnv("PEGRELAY_METRICS_ADDR", c.MetricsAddr)
	if n, err := strconv.Atoi(getEnv("PEGRELAY_BACKLOG", "")); err == nil {
		c.Backlog = n
	}
	return c
}

func (c Server) Validate() error {
	if c.Addr == "" {
		return ErrNoAddr
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("%w: %d", ErrBadBacklog, c.Backlog)
	}
	return nil
}

// FromEnv overlays PEGRELAY_* variables on c
func (c Client) FromEnv() Client {
	c.Addr = getEnv("PEGRELAY_ADDR", c.Addr)
	c.LogLevel = getEnv("PEGRELAY_LOG_LEVEL", c.LogLevel)
	return c
}

func (c Client) Validate() error {
	if c.Addr == "" {
		return ErrNoAddr
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: %v", ErrBadTick, c.Tick)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
