// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/tariffdesk/internal/catalog"
	"github.com/mbd888/tariffdesk/internal/circuitbreaker"
	"github.com/mbd888/tariffdesk/internal/config"
	"github.com/mbd888/tariffdesk/internal/editor"
	"github.com/mbd888/tariffdesk/internal/health"
	"github.com/mbd888/tariffdesk/internal/healthscores"
	"github.com/mbd888/tariffdesk/internal/logging"
	"github.com/mbd888/tariffdesk/internal/metrics"
	"github.com/mbd888/tariffdesk/internal/ratelimit"
	"github.com/mbd888/tariffdesk/internal/realtime"
	"github.com/mbd888/tariffdesk/internal/retry"
	"github.com/mbd888/tariffdesk/internal/security"
	"github.com/mbd888/tariffdesk/internal/source"
	"github.com/mbd888/tariffdesk/internal/traces"
	"github.com/mbd888/tariffdesk/internal/validation"
)

// Version is reported by /health and attached to traces.
var Version = "dev"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	db           *sql.DB // nil without DATABASE_URL
	breaker      *circuitbreaker.Breaker
	tariffSource source.Source
	scoreSource  source.Source
	catalog      *catalog.Catalog
	healthScores *healthscores.Service
	sessions     *editor.Manager
	janitor      *editor.Janitor
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	health       *health.Registry
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger

	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run
	shutdownTracing func(context.Context) error
	drainDelay      time.Duration

	ready atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTariffSource overrides the source built from TARIFFS_SOURCE.
func WithTariffSource(src source.Source) Option {
	return func(s *Server) {
		s.tariffSource = src
	}
}

// WithHealthScoreSource overrides the source built from HEALTH_SCORES_SOURCE.
func WithHealthScoreSource(src source.Source) Option {
	return func(s *Server) {
		s.scoreSource = src
	}
}

// New creates a new server instance and performs the first document load.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.health.Register("postgres", health.PingChecker("postgres", db))
		s.logger.Info("using PostgreSQL", "url", maskDSN(cfg.DatabaseURL))
	}

	s.breaker = circuitbreaker.New(5, 30*time.Second)
	s.breaker.OnTransition(func(key string, from, to circuitbreaker.State) {
		s.logger.Warn("source circuit changed", "host", key, "from", from.String(), "to", to.String())
	})

	srcOpts := source.Options{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		Breaker:    s.breaker,
		Retry: retry.Policy{
			Attempts:  cfg.FetchAttempts,
			BaseDelay: retry.DefaultPolicy.BaseDelay,
			OnRetry: func(attempt int, err error) {
				s.logger.Debug("retrying document fetch", "attempt", attempt, "error", err)
			},
		},
		DB: s.db,
		S3: source.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Secure:    cfg.S3Secure,
		},
		DocumentName: cfg.TariffsDocument,
	}

	if s.tariffSource == nil {
		src, err := source.Open(cfg.TariffsSource, srcOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to open tariffs source: %w", err)
		}
		s.tariffSource = src
	}
	if p, ok := s.tariffSource.(health.Pinger); ok && s.db == nil {
		s.health.Register("tariffs_source", health.PingChecker("tariffs_source", p))
	}

	if s.scoreSource == nil && cfg.HealthScoresSource != "" {
		src, err := source.Open(cfg.HealthScoresSource, srcOpts)
		if err != nil {
			// The chart is optional; the page renders without it.
			s.logger.Warn("health scores disabled", "error", err)
		} else {
			s.scoreSource = src
		}
	}

	loader := source.NewLoader(s.tariffSource, s.logger)
	s.catalog = catalog.New(loader, s.logger)
	s.health.Register("catalog", health.LoadedChecker("catalog", s.catalog))
	if s.scoreSource != nil {
		s.healthScores = healthscores.NewService(s.scoreSource, s.logger)
	}

	s.realtimeHub = realtime.NewHub(s.logger)

	if cfg.EditorEnabled {
		s.sessions = editor.NewManager(editor.NewMemoryStore(), loader, s.logger)
		s.janitor = editor.NewJanitor(s.sessions, cfg.EditorSessionTTL, s.logger)
		s.logger.Info("tariff editor enabled", "session_ttl", cfg.EditorSessionTTL)
	}

	s.reload(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))
	s.router.Use(validation.RequestSizeMiddleware(s.cfg.MaxBodyBytes))

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = s.cfg.RateLimitRPM
	limits.Skip = func(c *gin.Context) bool {
		switch c.Request.URL.Path {
		case "/health", "/health/live", "/health/ready", "/metrics", "/ws":
			return true
		}
		return false
	}
	s.rateLimiter = ratelimit.New(limits)
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health.ReadyHandler(Version))
	s.router.GET("/health/live", health.Live)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/", s.pageHandler)
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	v1 := s.router.Group("/v1")
	catalog.NewHandler(s.catalog).RegisterRoutes(v1)
	v1.GET("/health-scores", s.healthScoresHandler)

	if s.sessions != nil {
		editor.NewHandler(s.sessions).WithEvents(s.realtimeHub).RegisterRoutes(v1)
	}
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	s.health.ReadyHandler(Version)(c)
}

func (s *Server) healthScoresHandler(c *gin.Context) {
	if s.healthScores == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Health scores are not configured",
		})
		return
	}
	s.healthScores.Handler(c)
}

// -----------------------------------------------------------------------------
// Documents
// -----------------------------------------------------------------------------

// reload refreshes the public catalog and the chart series and tells
// connected clients. Open editor sessions keep their working copies.
func (s *Server) reload(ctx context.Context) {
	ctx, span := traces.StartSpan(ctx, "server.reload", traces.SourceName(s.tariffSource.Name()))
	defer span.End()

	n := s.catalog.Load(ctx)
	span.SetAttributes(traces.TariffCount(n))
	if s.healthScores != nil {
		s.healthScores.Load(ctx)
	}
	s.realtimeHub.EmitCatalogReloaded(n)
}

// reloadLoop reloads documents every interval until ctx is done.
func (s *Server) reloadLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reload(ctx)
		}
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTracing, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, Version, s.logger)
	if err != nil {
		s.logger.Warn("tracing disabled", "error", err)
	} else {
		s.shutdownTracing = shutdownTracing
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"tariffs", s.tariffSource.Name(),
			"editor", s.sessions != nil,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.janitor != nil {
		go s.janitor.Start(runCtx)
	}

	if s.cfg.ReloadInterval > 0 {
		go s.reloadLoop(runCtx, s.cfg.ReloadInterval)
	}

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.janitor != nil {
		s.janitor.Stop()
		s.logger.Info("session janitor stopped")
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	for _, src := range []source.Source{s.tariffSource, s.scoreSource} {
		if closer, ok := src.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Error("source close error", "source", src.Name(), "error", err)
			}
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
