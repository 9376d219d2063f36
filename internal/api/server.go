// Package api exposes the risk pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/middleware"
	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIVersion is reported by /healthz and /version
const APIVersion = "0.1.0"

// Server represents the HTTP server
type Server struct {
	cfg      *domain.Config
	risk     *service.RiskService
	outcomes outcome.Store
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance. outcomes may be nil, in
// which case the outcome endpoints answer 503.
func NewServer(cfg *domain.Config, risk *service.RiskService, outcomes outcome.Store, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"panic":          fmt.Sprint(recovered),
		}).Error("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrInternalServer, "Internal server error", "", c.GetString(middleware.CorrelationIDKey),
		))
	}))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AccessLogger(logger))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	}

	s := &Server{
		cfg:      cfg,
		risk:     risk,
		outcomes: outcomes,
		logger:   logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
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
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/version", s.handleVersion)

	v1 := s.router.Group("/v1")
	{
		v1.GET("/medications", s.handleMedications)
		v1.POST("/score", s.handleScore)
		v1.POST("/score-file", s.handleScoreFile)

		outcomes := v1.Group("/outcomes", s.requireOutcomeStore)
		outcomes.POST("", s.handleRecordOutcome)
		outcomes.GET("", s.handleListOutcomes)
		outcomes.GET("/export", s.handleExportOutcomes)

		v1.POST("/admin/knowledge/reload", s.handleReloadKnowledge)
	}
}
