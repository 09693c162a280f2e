package main

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mashetes/repository"
	"mashetes/socket"
)

const (
	backendTables = "tables"
	backendMemory = "memory"
)

type config struct {
	ListenAddr   string
	Debug        bool
	Redis        *redis.Options
	Backend      string
	StorageConn  string
	Table        string
	CacheTTL     time.Duration
	SocketOpts   socket.Options
	LayoutFile   string
	StreamPeriod time.Duration
	MaxMashetes  int
}

// loadConfig reads the server configuration through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		ListenAddr:   ":8080",
		Backend:      backendTables,
		Table:        repository.DefaultTable,
		CacheTTL:     5 * time.Minute,
		StreamPeriod: 30 * time.Second,
		MaxMashetes:  256,
		LayoutFile:   getenv("LAYOUT_FILE"),
	}
	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return config{}, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.ListenAddr = ":" + v
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil {
		cfg.Debug = dbg
	}

	if v := getenv("REPOSITORY_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	switch cfg.Backend {
	case backendTables:
		cfg.StorageConn = getenv("STORAGE_CONNECTION_STRING")
		if cfg.StorageConn == "" {
			return config{}, fmt.Errorf("missing STORAGE_CONNECTION_STRING")
		}
		if v := getenv("REPOSITORY_TABLE"); v != "" {
			cfg.Table = v
		}
	case backendMemory:
	default:
		return config{}, fmt.Errorf("invalid REPOSITORY_BACKEND %q", cfg.Backend)
	}

	if v := getenv("REPOSITORY_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return config{}, fmt.Errorf("invalid REPOSITORY_CACHE_TTL: %q", v)
		}
		cfg.CacheTTL = d
	}
	if v := getenv("SOCKET_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("invalid SOCKET_TIMEOUT: %q", v)
		}
		cfg.SocketOpts.Timeout = d
	}
	cfg.SocketOpts.ReplyPrefix = getenv("SOCKET_REPLY_PREFIX")
	if v := getenv("STREAM_HEARTBEAT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("invalid STREAM_HEARTBEAT: %q", v)
		}
		cfg.StreamPeriod = d
	}

	if v := getenv("MAX_MASHETES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return config{}, fmt.Errorf("invalid MAX_MASHETES: %q", v)
		}
		cfg.MaxMashetes = n
	}

	if v := getenv("REDIS_CONNECTION_STRING"); v != "" {
		cfg.Redis = parseRedisOptions(v)
	}
	return cfg, nil
}

// parseRedisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=true" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
