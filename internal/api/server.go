package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"folio/internal/auth"
	"folio/internal/config"
	apperrors "folio/internal/errors"
	"folio/internal/gateway"
	"folio/internal/logger"
	"folio/internal/middleware"
	"folio/internal/monitoring"
	"folio/internal/quotes"
	"folio/internal/scheduler"
	"folio/internal/store"
)

// Dependencies are the services the server routes requests to
type Dependencies struct {
	Documents store.DocumentStore
	Auth      *auth.Service
	Quotes    *quotes.Proxy
	Metrics   *monitoring.Metrics  // optional
	Scheduler *scheduler.Scheduler // optional, reported by /health
}

// Server represents the API server
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	deps       Dependencies

	auth    *AuthHandler
	quotes  *QuoteHandler
	limiter *middleware.RateLimiter
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Documents == nil {
		return nil, errors.New("api: document store is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("api: auth service is required")
	}
	if deps.Quotes == nil {
		var recorder quotes.Recorder
		if deps.Metrics != nil {
			recorder = deps.Metrics
		}
		deps.Quotes = quotes.NewProxy(cfg.Quotes, recorder)
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config: cfg,
		router: gin.New(),
		deps:   deps,
		auth:   NewAuthHandler(deps.Auth),
		quotes: NewQuoteHandler(deps.Quotes),
	}

	server.setupRoutes()
	return server, nil
}

// Router exposes the handler for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger())
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.MetricsMiddleware())
	}
	s.router.Use(middleware.ErrorHandler())
	s.router.Use(middleware.HandleError)
	s.router.Use(corsMiddleware(s.config.CORS))
	if s.config.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(s.config.RateLimit.RequestsPerMinute, s.config.RateLimit.Burst)
		s.router.Use(s.limiter.Middleware())
	}

	s.router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NewAppError(apperrors.ErrCodeNotFound, "Route not found", nil))
	})

	if s.config.App.IsDevelopment() {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if s.config.Monitoring.PrometheusEnabled && s.deps.Metrics != nil {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(s.deps.Metrics.Handler()))
	}

	s.router.GET("/health", s.health)

	basePath := s.config.Server.BasePath
	if basePath == "" {
		basePath = "/"
	}
	v1 := s.router.Group(basePath)
	{
		// Public routes
		v1.POST("/register", s.auth.Register)
		v1.POST("/token", s.auth.Login)
		v1.POST("/token/refresh", s.auth.Refresh)
		v1.POST("/logout", s.auth.Logout)

		protected := v1.Group("")
		protected.Use(s.deps.Auth.JWT().AuthMiddleware())
		{
			protected.GET("/me", s.auth.Me)

			protected.GET("/yahoo-finance/", s.quotes.Yahoo)
			protected.GET("/alpha-vantage/", s.quotes.AlphaVantage)

			var recorder gateway.Recorder
			if s.deps.Metrics != nil {
				recorder = s.deps.Metrics
			}
			registerResources(protected, s.deps.Documents, recorder)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	storeHealth := "ok"
	if err := s.deps.Documents.Ping(c.Request.Context()); err != nil {
		storeHealth = "error"
		logger.WithContext(c.Request.Context()).Warn("Store health check failed", "error", err)
	}

	status := "ok"
	if storeHealth != "ok" {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:  status,
		Version: s.config.App.Version,
		Time:    time.Now().UTC(),
		Services: map[string]string{
			"store": storeHealth,
		},
	}
	if s.deps.Scheduler != nil {
		resp.Tasks = s.deps.Scheduler.ListTasks()
	}

	c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           s.config.Server.Addr(),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	logger.Info("Starting API server", "addr", s.httpServer.Addr, "store", s.config.Store.Driver)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully stops the server and closes the store
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("Shutting down server...")

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	if s.limiter != nil {
		s.limiter.Close()
	}

	if err := s.deps.Documents.Close(); err != nil {
		logger.Error("Error closing document store", "error", err)
	}

	if shutdownErr != nil {
		return shutdownErr
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// corsMiddleware adds CORS headers
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	if headers == "" {
		headers = "Origin, Content-Type, Accept, Authorization, X-Request-ID"
	}

	allowAll := len(cfg.AllowedOrigins) == 0
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		if cfg.AllowCredentials && !allowAll {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
