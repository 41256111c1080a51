package config

import (
	"context"
	"time"
)

// ListenerConfig holds the network settings for the HTTP listener.
type ListenerConfig struct {
	Port              int
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the travel service.
type Config struct {
	// Database
	DBURL  string
	DBName string

	// Datastore backend type
	DatastoreType string // "mongo" or "memory"

	// Run index setup on startup. Failures are logged, never fatal:
	// the chat path must come up even when the store is down.
	DatastoreMigrateAtStart bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Conversation history
	HistoryRetention time.Duration // fixed window; never renewed on activity
	HistoryLimit     int           // default bounded-recency read size
	StoreTimeout     time.Duration // per-call bound; timeout == store unreachable

	// ReaperInterval is how often the background sweep deletes expired
	// records for backends without native expiring-record support.
	ReaperInterval time.Duration

	// Cache backend type
	CacheType string // "redis" or "none"

	// Redis
	RedisURL string

	// JourneyCacheTTL bounds how long a journey lookup is reused.
	JourneyCacheTTL time.Duration

	// Auth
	JWTSecret   string
	TokenExpiry time.Duration

	// Model runtime (OpenAI-compatible local server, e.g. llama.cpp)
	LLMBaseURL string
	LLMModel   string
	LLMTimeout time.Duration

	// Google Maps
	MapsAPIKey string

	// SystemPromptFile optionally overrides the built-in travel agent
	// preamble with the contents of a file.
	SystemPromptFile string

	// Server
	Listener    ListenerConfig
	CORSEnabled bool
	CORSOrigins string
	AccessLog   bool

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Body size limit (bytes)
	MaxBodySize int64

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBURL:                   "mongodb://localhost:27017",
		DBName:                  "tourplanner",
		DatastoreType:           "mongo",
		DatastoreMigrateAtStart: true,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		HistoryRetention:        30 * time.Minute,
		HistoryLimit:            10,
		StoreTimeout:            3 * time.Second,
		ReaperInterval:          time.Minute,
		CacheType:               "none",
		JourneyCacheTTL:         5 * time.Minute,
		TokenExpiry:             30 * time.Minute,
		LLMBaseURL:              "http://localhost:8081/v1",
		LLMModel:                "llama-3.2-3b-instruct",
		LLMTimeout:              2 * time.Minute,
		Listener: ListenerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
		},
		AccessLog:    true,
		MaxBodySize:  1 * 1024 * 1024, // 1 MB
		DrainTimeout: 30,
	}
}
