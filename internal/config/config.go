// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Grid     GridConfig
	Loader   LoaderConfig
	Cache    CacheConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required unless Memory is set)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Memory serves a seeded in-memory store instead of PostgreSQL (default: false)
	Memory bool `env:"DB_MEMORY" default:"false"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// GridConfig holds grid session settings.
type GridConfig struct {
	// DefaultPageSize is used when a screen does not set one (default: 10)
	DefaultPageSize int `env:"GRID_DEFAULT_PAGE_SIZE" default:"10"`

	// MaxPageSize caps client-requested page sizes (default: 200)
	MaxPageSize int `env:"GRID_MAX_PAGE_SIZE" default:"200"`

	// SessionIdleTimeout closes sessions nobody touched for this long (default: 30m)
	SessionIdleTimeout time.Duration `env:"GRID_SESSION_IDLE_TIMEOUT" default:"30m"`

	// MaxSessions caps the number of open sessions (default: 500)
	MaxSessions int `env:"GRID_MAX_SESSIONS" default:"500"`

	// ResetPageOnRefresh returns to the first page after every reload (default: false)
	ResetPageOnRefresh bool `env:"GRID_RESET_PAGE_ON_REFRESH" default:"false"`

	// CommitTimeout bounds a single commit round-trip (default: 30s)
	CommitTimeout time.Duration `env:"GRID_COMMIT_TIMEOUT" default:"30s"`
}

// LoaderConfig holds data loading settings.
type LoaderConfig struct {
	// ChunkSize is the page size used for progressive loading (default: 500)
	ChunkSize int `env:"LOADER_CHUNK_SIZE" default:"500"`

	// MaxRows stops progressive loading after this many rows, 0 for no cap (default: 20000)
	MaxRows int `env:"LOADER_MAX_ROWS" default:"20000"`

	// RefreshInterval is how often open sessions reload silently, 0 to disable (default: 5m)
	RefreshInterval time.Duration `env:"LOADER_REFRESH_INTERVAL" default:"5m"`

	// MaxConcurrent is the maximum number of parallel loads (default: 4)
	MaxConcurrent int `env:"LOADER_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a load slot (default: 30s)
	MaxWaitTime time.Duration `env:"LOADER_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one full load (default: 2m)
	Timeout time.Duration `env:"LOADER_TIMEOUT" default:"2m"`

	// DefaultLookback is how far back a session loads when no date is given (default: 720h)
	DefaultLookback time.Duration `env:"LOADER_DEFAULT_LOOKBACK" default:"720h"`
}

// CacheConfig holds reference data cache settings.
type CacheConfig struct {
	// TTL is how long reference lists stay fresh (default: 30m)
	TTL time.Duration `env:"CACHE_TTL" default:"30m"`

	// RedisURL enables a shared second-level cache when set
	RedisURL string `env:"CACHE_REDIS_URL" envAlt:"REDIS_URL"`

	// RedisPrefix namespaces cache keys (default: casegrid:)
	RedisPrefix string `env:"CACHE_REDIS_PREFIX" default:"casegrid:"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// CommitLimit is requests per minute for commit and refresh endpoints (default: 30)
	CommitLimit int `env:"RATE_LIMIT_COMMIT" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
