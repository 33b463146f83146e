package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soulscribe/soulscribe/internal/api"
	"github.com/soulscribe/soulscribe/internal/config"
	"github.com/soulscribe/soulscribe/internal/llmcall"
	"github.com/soulscribe/soulscribe/internal/metrics"
	"github.com/soulscribe/soulscribe/internal/prompts"
	"github.com/soulscribe/soulscribe/internal/prompts/chapter"
	"github.com/soulscribe/soulscribe/internal/prompts/review"
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/schema"
	"github.com/soulscribe/soulscribe/internal/server/endpoints"
	"github.com/soulscribe/soulscribe/internal/storedb"
	"github.com/soulscribe/soulscribe/internal/story"
	"github.com/soulscribe/soulscribe/internal/storygen"
	"github.com/soulscribe/soulscribe/internal/svcctx"
)

// Server is the main SoulScribe HTTP server.
// It manages the document store container lifecycle - starting it on server
// start and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	storeManager *storedb.DockerManager
	storeClient  *storedb.Client
	sink         *storedb.Sink
	runner       *storygen.Runner
	registry     *providers.Registry
	configMgr    *config.Manager
	logger       *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// StoreDataPath is the path to persist document store data
	StoreDataPath string
	// StoreConfig holds document store container settings
	StoreConfig storedb.DockerConfig
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.StoreDataPath != "" {
		cfg.StoreConfig.DataPath = cfg.StoreDataPath
	}

	storeManager, err := storedb.NewDockerManager(cfg.StoreConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create store manager: %w", err)
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	defaults := config.DefaultConfig().Defaults

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())
		defaults = cfg.ConfigManager.Get().Defaults

		// Watch for config changes
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		storeManager: storeManager,
		registry:     registry,
		configMgr:    cfg.ConfigManager,
		logger:       cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{StoreManager: storeManager, Defaults: defaults}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	// No WriteTimeout: narration requests stream audio generation and can
	// legitimately run for minutes.
	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start starts the server and the document store.
// It blocks until the context is cancelled or an error occurs.
// If an existing store container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Validate any existing container matches our config
	if err := s.storeManager.ValidateExisting(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("existing store container incompatible: %w", err)
	}

	// Start the document store
	s.logger.Info("starting document store")
	if err := s.storeManager.Start(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to start document store: %w", err)
	}

	// Create client after the store is up
	s.storeClient = storedb.NewClient(s.storeManager.URL())

	// Verify the store is healthy
	if err := s.storeClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up the store on failure
		return fmt.Errorf("document store health check failed: %w", err)
	}
	s.logger.Info("document store is ready", "url", s.storeManager.URL())

	// Initialize schemas
	s.logger.Info("initializing schemas")
	if err := schema.Initialize(ctx, s.storeClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Build the service graph on top of the store client
	if err := s.buildServices(ctx); err != nil {
		_ = s.shutdown()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up the store on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildServices wires the full service graph once the store is reachable.
func (s *Server) buildServices(ctx context.Context) error {
	s.sink = storedb.NewSink(storedb.SinkConfig{
		Client: s.storeClient,
		Logger: s.logger,
	})
	s.sink.Start(ctx)

	storyStore := story.NewStore(s.storeClient, s.logger)

	promptStore := prompts.NewStore(s.storeClient, s.logger)
	resolver := prompts.NewResolver(promptStore, s.logger)
	chapter.RegisterPrompts(resolver)
	review.RegisterPrompts(resolver)
	if err := resolver.SyncAll(ctx); err != nil {
		return fmt.Errorf("prompt sync failed: %w", err)
	}

	metricsRecorder := metrics.NewRecorder(s.storeClient)
	callRecorder := llmcall.NewRecorder(s.sink)

	runner, err := storygen.NewRunner(storygen.RunnerConfig{
		Store:    storyStore,
		Registry: s.registry,
		Resolver: resolver,
		Metrics:  metricsRecorder,
		Calls:    callRecorder,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	s.runner = runner

	s.services = &svcctx.Services{
		StoreClient:     s.storeClient,
		StoreSink:       s.sink,
		StoryStore:      storyStore,
		Runner:          runner,
		Registry:        s.registry,
		Resolver:        resolver,
		PromptStore:     promptStore,
		MetricsQuery:    metrics.NewQuery(s.storeClient),
		MetricsRecorder: metricsRecorder,
		LLMCallStore:    llmcall.NewStore(s.storeClient),
		Logger:          s.logger,
	}

	return nil
}

// shutdown performs graceful shutdown of the HTTP server, the write sink,
// and the document store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the write sink so queued writes flush before the store goes away
	if s.sink != nil {
		s.sink.Stop()
	}

	// Stop the document store
	s.logger.Info("stopping document store")
	if err := s.storeManager.Stop(shutdownCtx); err != nil {
		s.logger.Error("document store stop error", "error", err)
	}

	// Close Docker client
	if err := s.storeManager.Close(); err != nil {
		s.logger.Error("store manager close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// StoreClient returns the document store client.
// Returns nil if the server hasn't started yet.
func (s *Server) StoreClient() *storedb.Client {
	return s.storeClient
}

// Runner returns the generation runner.
// Returns nil if the server hasn't started yet.
func (s *Server) Runner() *storygen.Runner {
	return s.runner
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store and runner are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.storeClient == nil || s.runner == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
