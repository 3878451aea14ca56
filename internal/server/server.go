// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
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

	"github.com/credlens/credlens/internal/analysis"
	"github.com/credlens/credlens/internal/config"
	"github.com/credlens/credlens/internal/engine"
	"github.com/credlens/credlens/internal/health"
	"github.com/credlens/credlens/internal/logging"
	"github.com/credlens/credlens/internal/metrics"
	"github.com/credlens/credlens/internal/ratelimit"
	"github.com/credlens/credlens/internal/security"
	"github.com/credlens/credlens/internal/traces"
	"github.com/credlens/credlens/internal/transactions"
	"github.com/credlens/credlens/internal/users"
	"github.com/credlens/credlens/internal/validation"
	"github.com/credlens/credlens/internal/webhooks"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg *config.Config

	userService     *users.Service
	txnService      *transactions.Service
	analysisService *analysis.Service
	analysisTimer   *analysis.Timer
	webhookStore    webhooks.Store
	dispatcher      *webhooks.Dispatcher
	rateLimiter     *ratelimit.Limiter
	healthReg       *health.Registry

	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	tracesStop   func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, cfg.LogFormat),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	eng, err := engine.New(cfg.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("configure risk engine: %w", err)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		userStore users.Store
		txnStore  transactions.Store
		asmStore  analysis.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		us := users.NewPostgresStore(db)
		if err := us.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate users store", "error", err)
		}
		ts := transactions.NewPostgresStore(db)
		if err := ts.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate transactions store", "error", err)
		}
		as := analysis.NewPostgresStore(db)
		if err := as.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate assessments store", "error", err)
		}
		ws := webhooks.NewPostgresStore(db)
		if err := ws.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate webhook store", "error", err)
		}

		userStore, txnStore, asmStore = us, ts, as
		s.webhookStore = ws

		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		userStore = users.NewMemoryStore()
		txnStore = transactions.NewMemoryStore()
		asmStore = analysis.NewMemoryStore()
		s.webhookStore = webhooks.NewMemoryStore()
	}

	// Webhook delivery
	s.dispatcher = webhooks.NewDispatcher(s.webhookStore)
	emitter := webhooks.NewEmitter(s.dispatcher, s.logger)
	s.logger.Info("webhooks enabled")

	// Domain services
	s.userService = users.NewService(userStore).WithEvents(emitter)
	s.txnService = transactions.NewService(txnStore, s.userService).WithEvents(emitter)
	s.analysisService = analysis.NewService(
		asmStore,
		&historyAdapter{s.txnService},
		s.userService,
		eng,
		emitter,
	)
	s.analysisTimer = analysis.NewTimer(
		s.analysisService,
		cfg.AnalysisRefreshInterval,
		cfg.AnalysisMaxAge,
		s.logger,
	)
	s.logger.Info("risk analysis enabled",
		"refresh_interval", cfg.AnalysisRefreshInterval,
		"max_age", cfg.AnalysisMaxAge,
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

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
	// Recovery with logging
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

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	rlCfg.BurstSize = s.cfg.RateLimitRPS
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
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

		// Log level based on status code
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

// adminMiddleware guards destructive routes with the admin secret. With
// no secret configured (development), the routes stay open.
func (s *Server) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminSecret)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin secret required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.UserIDParamMiddleware())

	userHandler := users.NewHandler(s.userService)
	userHandler.RegisterRoutes(v1)

	txnHandler := transactions.NewHandler(s.txnService)
	txnHandler.RegisterRoutes(v1)

	analysisHandler := analysis.NewHandler(s.analysisService)
	analysisHandler.RegisterRoutes(v1)

	webhookHandler := webhooks.NewHandler(s.webhookStore)
	webhookHandler.RegisterRoutes(v1)

	// Destructive routes require the admin secret
	admin := v1.Group("")
	admin.Use(s.adminMiddleware())
	txnHandler.RegisterAdminRoutes(admin)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Credlens",
		"description": "Transaction risk analytics for lending platforms",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Distributed tracing (no-op without an OTLP endpoint)
	stopTraces, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesStop = stopTraces
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start stale-assessment refresh timer
	go s.analysisTimer.Start(runCtx)

	// Start DB stats collector
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

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

	// Cancel the context for all background goroutines
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop refresh timer
	if s.analysisTimer != nil {
		s.analysisTimer.Stop()
		s.logger.Info("analysis timer stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesStop != nil {
		if err := s.tracesStop(ctx); err != nil {
			s.logger.Warn("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
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
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// historyAdapter bridges the transactions service to the analysis
// package's record shape.
type historyAdapter struct {
	svc *transactions.Service
}

func (a *historyAdapter) History(ctx context.Context, userID string) ([]*analysis.Record, error) {
	recs, err := a.svc.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*analysis.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, &analysis.Record{
			ID:          r.ID,
			UserID:      r.UserID,
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Type:        r.Type,
			Category:    r.Category,
			Channel:     r.Channel,
		})
	}
	return out, nil
}
