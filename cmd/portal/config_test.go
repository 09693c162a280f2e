package main

import (
	"testing"
	"time"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(env(map[string]string{"REPOSITORY_BACKEND": "memory"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Backend != backendMemory || cfg.CacheTTL != 5*time.Minute || cfg.MaxMashetes != 256 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Redis != nil {
		t.Fatal("redis configured without connection string")
	}
}

func TestLoadConfigTables(t *testing.T) {
	cfg, err := loadConfig(env(map[string]string{
		"STORAGE_CONNECTION_STRING": "UseDevelopmentStorage=true",
		"REPOSITORY_TABLE":          "portal",
		"PORT":                      "9001",
		"DEBUG":                     "true",
		"SOCKET_TIMEOUT":            "3s",
		"SOCKET_REPLY_PREFIX":       "/r/",
		"REPOSITORY_CACHE_TTL":      "0",
		"REDIS_CONNECTION_STRING":   "localhost:6379",
		"MAX_MASHETES":              "0",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != backendTables || cfg.Table != "portal" || cfg.ListenAddr != ":9001" || !cfg.Debug || cfg.MaxMashetes != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SocketOpts.Timeout != 3*time.Second || cfg.SocketOpts.ReplyPrefix != "/r/" || cfg.CacheTTL != 0 {
		t.Fatalf("unexpected socket config %+v", cfg)
	}
	if cfg.Redis == nil || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected redis options %+v", cfg.Redis)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing storage": {},
		"backend":         {"REPOSITORY_BACKEND": "mongo"},
		"port":            {"REPOSITORY_BACKEND": "memory", "PORT": "http"},
		"cache ttl":       {"REPOSITORY_BACKEND": "memory", "REPOSITORY_CACHE_TTL": "soon"},
		"socket timeout":  {"REPOSITORY_BACKEND": "memory", "SOCKET_TIMEOUT": "0s"},
		"heartbeat":       {"REPOSITORY_BACKEND": "memory", "STREAM_HEARTBEAT": "-1s"},
		"max mashetes":    {"REPOSITORY_BACKEND": "memory", "MAX_MASHETES": "-3"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadConfig(env(vars)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseRedisOptions(t *testing.T) {
	opts := parseRedisOptions("cache.example.net:6380,password=secret,ssl=True,abortConnect=False")
	if opts.Addr != "cache.example.net:6380" || opts.Password != "secret" || opts.TLSConfig == nil {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts = parseRedisOptions("redis://:pw@localhost:6379/2")
	if opts.Addr != "localhost:6379" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected url options %+v", opts)
	}
}
