package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/tourplanner/travel-service/internal/config"
	"github.com/tourplanner/travel-service/internal/history"
	"github.com/tourplanner/travel-service/internal/journey"
	"github.com/tourplanner/travel-service/internal/llm"
	"github.com/tourplanner/travel-service/internal/model"
	routeauth "github.com/tourplanner/travel-service/internal/plugin/route/auth"
	routechat "github.com/tourplanner/travel-service/internal/plugin/route/chat"
	routeconversations "github.com/tourplanner/travel-service/internal/plugin/route/conversations"
	routemaps "github.com/tourplanner/travel-service/internal/plugin/route/maps"
	routesystem "github.com/tourplanner/travel-service/internal/plugin/route/system"
	registrycache "github.com/tourplanner/travel-service/internal/registry/cache"
	registrymigrate "github.com/tourplanner/travel-service/internal/registry/migrate"
	registryroute "github.com/tourplanner/travel-service/internal/registry/route"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
	"github.com/tourplanner/travel-service/internal/security"
	"github.com/tourplanner/travel-service/internal/service"
	"github.com/tourplanner/travel-service/internal/session"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config *config.Config
	Store  registrystore.Datastore
	Router *gin.Engine
	Port   int

	httpServer *http.Server
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.Store.Close(ctx); err == nil {
		err = closeErr
	}
	return err
}

// StartServer initializes all subsystems and starts the HTTP listener.
// Use cfg.Listener.Port=0 for a random port; the bound port is in
// Server.Port. The server comes up even when the record store is down:
// chat degrades to empty history and auth answers 503.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting travel service",
		"httpPort", cfg.Listener.Port,
		"db", cfg.DatastoreType,
		"cache", cfg.CacheType,
		"model", cfg.LLMModel,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	// Index setup is best effort; a down database must not block startup.
	if err := registrymigrate.RunAll(ctx); err != nil {
		log.Warn("Index setup failed; continuing without it", "err", err)
	}

	// Initialize cache and inject into context so collaborators can read it.
	var journeyCache registrycache.JourneyCache
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Cache not available", "cache", cfg.CacheType, "err", err)
	} else if c, err := cacheLoader(ctx); err != nil {
		log.Warn("Failed to initialize cache", "cache", cfg.CacheType, "err", err)
	} else {
		journeyCache = c
		ctx = registrycache.WithJourneyCacheContext(ctx, c)
	}

	// Initialize store. Failures leave a sentinel store in place whose
	// errors the history service collapses to empty results.
	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		log.Warn("Record store unavailable; history and auth degraded", "err", err)
		store = &unavailableStore{err: err}
	}

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.AccessLog {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount main route plugins on the main router.
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Core services.
	hist := history.NewService(store, cfg.HistoryRetention, cfg.HistoryLimit, cfg.StoreTimeout)
	assembler := session.NewAssembler(hist, loadPreamble(cfg))
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout)
	journeys, err := journey.NewService(cfg.MapsAPIKey, journeyCache, cfg.JourneyCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journey service: %w", err)
	}

	if cfg.JWTSecret == "" {
		log.Warn("No JWT secret configured; tokens will not survive restarts")
		cfg.JWTSecret = fmt.Sprintf("ephemeral-%d", time.Now().UnixNano())
	}
	issuer := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenExpiry)
	auth := security.AuthMiddleware(issuer)

	// Mount API routes.
	routeauth.MountRoutes(router, store, issuer)
	routechat.MountRoutes(router, routechat.Deps{
		History:   hist,
		Assembler: assembler,
		LLM:       llmClient,
		Journeys:  journeys,
	}, auth)
	routemaps.MountRoutes(router, journeys, auth)
	routeconversations.MountRoutes(router, hist, auth)

	// Background sweep of expired records.
	reaper := service.NewReaperService(store, cfg.ReaperInterval)
	go reaper.Start(ctx)

	// Mount management route plugins on the main router.
	for _, loader := range registryroute.ManagementRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load management routes: %w", err)
		}
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Listener.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: cfg.Listener.ReadHeaderTimeout,
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "err", err)
		}
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	log.Info("Server listening", "port", port)
	routesystem.MarkReady()

	return &Server{
		Config:     cfg,
		Store:      store,
		Router:     router,
		Port:       port,
		httpServer: httpServer,
	}, nil
}

func loadPreamble(cfg *config.Config) string {
	if cfg.SystemPromptFile == "" {
		return ""
	}
	data, err := os.ReadFile(cfg.SystemPromptFile)
	if err != nil {
		log.Warn("Failed to read system prompt file; using built-in preamble", "err", err)
		return ""
	}
	return string(data)
}

// unavailableStore stands in when the configured store cannot be
// reached at startup. Every call reports the original connect error.
type unavailableStore struct {
	err error
}

func (s *unavailableStore) AppendMessage(context.Context, model.Message) error { return s.err }
func (s *unavailableStore) RecentMessages(context.Context, registrystore.HistoryQuery) ([]model.Message, error) {
	return nil, s.err
}
func (s *unavailableStore) ClearMessages(context.Context, string) (int64, error) { return 0, s.err }
func (s *unavailableStore) MessageStats(context.Context, string, time.Time) (*model.HistoryStats, error) {
	return nil, s.err
}
func (s *unavailableStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, s.err
}
func (s *unavailableStore) CreateUser(context.Context, model.User) (*model.User, error) {
	return nil, s.err
}
func (s *unavailableStore) GetUserByEmail(context.Context, string) (*model.User, error) {
	return nil, s.err
}
func (s *unavailableStore) EnsureIndexes(context.Context) error { return s.err }
func (s *unavailableStore) Close(context.Context) error         { return nil }
