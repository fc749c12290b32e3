// Package api is the HTTP gateway for note classification and discharge
// summary retrieval.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/cache"
	"github.com/clinical-note-classifier/internal/domain"
	"github.com/clinical-note-classifier/internal/middleware"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Dependencies are the loaded components the gateway serves
type Dependencies struct {
	Predictor      domain.NotePredictor
	Discharge      domain.DischargeFetcher
	VocabularySize int
	Logger         *logrus.Logger

	// Optional components reported by GET /health
	Cache   cache.PredictionCache
	Audit   audit.Store
	Breaker CircuitState
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	predictor     domain.NotePredictor
	discharge     domain.DischargeFetcher
	vocabSize     int
	healthChecks  []HealthCheck
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(middleware.CorrelationID())
	router.Use(middleware.AccessLog(logger))
	router.Use(recovery(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	server := &Server{
		configManager: configManager,
		predictor:     deps.Predictor,
		discharge:     deps.Discharge,
		vocabSize:     deps.VocabularySize,
		healthChecks:  healthChecks(deps),
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

func healthChecks(deps Dependencies) []HealthCheck {
	var checks []HealthCheck
	if deps.Cache != nil {
		checks = append(checks, cacheHealthCheck{cache: deps.Cache})
	}
	if deps.Breaker != nil {
		checks = append(checks, documentStoreHealthCheck{breaker: deps.Breaker})
	}
	if deps.Audit != nil {
		checks = append(checks, auditHealthCheck{store: deps.Audit})
	}
	return checks
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/getPrediction", s.handleGetPrediction)
	s.router.POST("/fetchDischarge", s.handleFetchDischarge)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
}

// recovery turns a panic into a bare 500; the stack goes to the log only
func recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"correlation_id": middleware.GetCorrelationID(c),
			"panic":          fmt.Sprint(recovered),
			"path":           c.Request.URL.Path,
		}).Error("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+middleware.CorrelationIDHeader)
		c.Header("Access-Control-Expose-Headers", middleware.CorrelationIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
