package serve

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tourplanner/travel-service/internal/config"
	registrycache "github.com/tourplanner/travel-service/internal/registry/cache"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
	"github.com/urfave/cli/v3"

	// Import all plugins to trigger init() registration
	_ "github.com/tourplanner/travel-service/internal/plugin/cache/noop"
	_ "github.com/tourplanner/travel-service/internal/plugin/cache/redis"
	_ "github.com/tourplanner/travel-service/internal/plugin/route/system"
	_ "github.com/tourplanner/travel-service/internal/plugin/store/memory"
	_ "github.com/tourplanner/travel-service/internal/plugin/store/mongo"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var readHeaderTimeoutSecs int = 5
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the travel service HTTP server",
		Flags: flags(&cfg, &readHeaderTimeoutSecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.Listener.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config, readHeaderTimeoutSecs *int) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Server:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_PORT"),
			Destination: &cfg.Listener.Port,
			Value:       cfg.Listener.Port,
			Usage:       "HTTP server port",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.BoolFlag{
			Name:        "access-log",
			Category:    "Server:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_ACCESS_LOG"),
			Destination: &cfg.AccessLog,
			Value:       cfg.AccessLog,
			Usage:       "Enable HTTP access logging",
		},
		&cli.BoolFlag{
			Name:        "cors-enabled",
			Category:    "Server:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_CORS_ENABLED"),
			Destination: &cfg.CORSEnabled,
			Usage:       "Enable CORS handling",
		},
		&cli.StringFlag{
			Name:        "cors-origins",
			Category:    "Server:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_CORS_ORIGINS"),
			Destination: &cfg.CORSOrigins,
			Usage:       "Comma-separated allowed CORS origins; empty allows any",
		},
		&cli.IntFlag{
			Name:        "drain-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DRAIN_TIMEOUT_SECONDS"),
			Destination: &cfg.DrainTimeout,
			Value:       cfg.DrainTimeout,
			Usage:       "Graceful shutdown drain timeout in seconds",
		},

		// ── Datastore ─────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Store backend (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DB_URL"),
			Destination: &cfg.DBURL,
			Value:       cfg.DBURL,
			Usage:       "Database connection URL",
		},
		&cli.StringFlag{
			Name:        "db-name",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DB_NAME"),
			Destination: &cfg.DBName,
			Value:       cfg.DBName,
			Usage:       "Database name",
		},
		&cli.BoolFlag{
			Name:        "db-migrate-at-start",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DB_MIGRATE_AT_START"),
			Destination: &cfg.DatastoreMigrateAtStart,
			Value:       cfg.DatastoreMigrateAtStart,
			Usage:       "Create indexes at startup",
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum open database connections",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Datastore:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Minimum pooled database connections",
		},

		// ── Conversation History ──────────────────────────────────
		&cli.DurationFlag{
			Name:        "history-ttl",
			Category:    "Conversation History:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_HISTORY_TTL"),
			Destination: &cfg.HistoryRetention,
			Value:       cfg.HistoryRetention,
			Usage:       "Fixed lifetime of stored conversation records",
		},
		&cli.IntFlag{
			Name:        "history-limit",
			Category:    "Conversation History:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_HISTORY_LIMIT"),
			Destination: &cfg.HistoryLimit,
			Value:       cfg.HistoryLimit,
			Usage:       "Number of recent turns included in the model session",
		},
		&cli.DurationFlag{
			Name:        "store-timeout",
			Category:    "Conversation History:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_STORE_TIMEOUT"),
			Destination: &cfg.StoreTimeout,
			Value:       cfg.StoreTimeout,
			Usage:       "Per-call bound on store operations",
		},
		&cli.DurationFlag{
			Name:        "reaper-interval",
			Category:    "Conversation History:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_REAPER_INTERVAL"),
			Destination: &cfg.ReaperInterval,
			Value:       cfg.ReaperInterval,
			Usage:       "How often expired records are swept",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache-kind",
			Category:    "Cache:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_CACHE_KIND"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "Cache backend (" + strings.Join(registrycache.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL",
		},
		&cli.DurationFlag{
			Name:        "journey-cache-ttl",
			Category:    "Cache:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_JOURNEY_CACHE_TTL"),
			Destination: &cfg.JourneyCacheTTL,
			Value:       cfg.JourneyCacheTTL,
			Usage:       "How long journey lookups are reused",
		},

		// ── Auth ──────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "jwt-secret",
			Category:    "Auth:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_JWT_SECRET", "SECRET_KEY"),
			Destination: &cfg.JWTSecret,
			Usage:       "HMAC secret for access tokens",
		},
		&cli.DurationFlag{
			Name:        "token-expiry",
			Category:    "Auth:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_TOKEN_EXPIRY"),
			Destination: &cfg.TokenExpiry,
			Value:       cfg.TokenExpiry,
			Usage:       "Access token lifetime",
		},

		// ── Model Runtime ─────────────────────────────────────────
		&cli.StringFlag{
			Name:        "llm-base-url",
			Category:    "Model Runtime:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_LLM_BASE_URL"),
			Destination: &cfg.LLMBaseURL,
			Value:       cfg.LLMBaseURL,
			Usage:       "OpenAI-compatible base URL of the local model runtime",
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Category:    "Model Runtime:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_LLM_MODEL"),
			Destination: &cfg.LLMModel,
			Value:       cfg.LLMModel,
			Usage:       "Model name passed to the runtime",
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Category:    "Model Runtime:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_LLM_TIMEOUT"),
			Destination: &cfg.LLMTimeout,
			Value:       cfg.LLMTimeout,
			Usage:       "Completion request timeout",
		},
		&cli.StringFlag{
			Name:        "system-prompt-file",
			Category:    "Model Runtime:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_SYSTEM_PROMPT_FILE"),
			Destination: &cfg.SystemPromptFile,
			Usage:       "File overriding the built-in system preamble",
		},

		// ── Maps ──────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "maps-api-key",
			Category:    "Maps:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_MAPS_API_KEY", "GOOGLE_MAPS_API_KEY"),
			Destination: &cfg.MapsAPIKey,
			Usage:       "Google Maps API key; empty disables journey enrichment",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("TRAVEL_SERVICE_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       "service=travel-service",
			Usage:       "Comma-separated key=value pairs added as constant labels to all Prometheus metrics. Supports ${VAR} expansion.",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout)*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	}
}
