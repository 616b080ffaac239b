package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Server defaults
const (
	DefaultAddr              = ":8080"
	DefaultStoreDriver       = "memory"
	DefaultRedisAddr         = "localhost:6379"
	DefaultDSN               = "warpmeet.db"
	DefaultIdentityCacheSize = 1024
	DefaultIdentityCacheTTL  = 5 * time.Minute
	DefaultSendBuffer        = 256
)

// Server holds the signaling server configuration.
type Server struct {
	Addr string

	StoreDriver   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DSN           string

	IdentityURL       string
	IdentityCacheSize int
	IdentityCacheTTL  time.Duration

	// AllowedOrigins for websocket upgrades. Empty allows every origin.
	AllowedOrigins []string

	// SendBuffer is the per-session outbound queue length.
	SendBuffer int
}

// ServerOptions carries CLI flag overrides. Zero values fall through.
type ServerOptions struct {
	Addr        string
	StoreDriver string
	DSN         string
	EnvFile     string
}

// LoadServer reads configuration with the following priority:
// 1. CLI flags (passed via ServerOptions)
// 2. Environment variables, optionally seeded from a .env file
// 3. Defaults
func LoadServer(opts ServerOptions) (*Server, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg := &Server{
		Addr:              pick(opts.Addr, "ADDR", DefaultAddr),
		StoreDriver:       strings.ToLower(pick(opts.StoreDriver, "STORE_DRIVER", DefaultStoreDriver)),
		RedisAddr:         pick("", "REDIS_ADDR", DefaultRedisAddr),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           cast.ToInt(os.Getenv("REDIS_DB")),
		DSN:               pick(opts.DSN, "DSN", DefaultDSN),
		IdentityURL:       os.Getenv("IDENTITY_URL"),
		IdentityCacheSize: positiveInt(os.Getenv("IDENTITY_CACHE_SIZE"), DefaultIdentityCacheSize),
		IdentityCacheTTL:  positiveDuration(os.Getenv("IDENTITY_CACHE_TTL"), DefaultIdentityCacheTTL),
		AllowedOrigins:    splitList(os.Getenv("ALLOWED_ORIGINS")),
		SendBuffer:        positiveInt(os.Getenv("SEND_BUFFER"), DefaultSendBuffer),
	}
	return cfg, nil
}

// OriginAllowed reports whether a websocket Origin header may connect.
func (c *Server) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// loadEnvFile seeds the environment from path, or from ./.env when path is
// empty. Existing variables win. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

// pick returns flag, else the environment variable key, else def.
func pick(flag, key, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(raw string, def int) int {
	if n, err := cast.ToIntE(raw); err == nil && n > 0 {
		return n
	}
	return def
}

func positiveDuration(raw string, def time.Duration) time.Duration {
	if d, err := cast.ToDurationE(raw); err == nil && d > 0 {
		return d
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
