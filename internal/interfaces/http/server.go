// Package http exposes the template, generation and compliance use cases over HTTP.
// It is a thin adapter that translates requests into application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/service"
	"github.com/garyjia/legal-docgen/internal/container"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxUploadSize bounds multipart template uploads
	MaxUploadSize int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          8080,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
		MaxUploadSize: 20 << 20,
	}
}

// HealthChecker reports the health of the running components
type HealthChecker interface {
	Health(ctx context.Context) *container.HealthStatus
}

// Services groups the application services the handlers call
type Services struct {
	Templates   service.TemplateService
	Generations service.GenerationService
	Integrity   service.IntegrityService
	Compliance  service.ComplianceService
	Delivery    service.DeliveryService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, health HealthChecker, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadSize

	s := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))
	s.setupRoutes(NewHandlers(services, health, config.MaxUploadSize, logger))

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	api.GET("/health", h.HealthCheck)

	templates := api.Group("/templates")
	{
		templates.POST("", h.UploadTemplate)
		templates.GET("", h.ListTemplates)
		templates.GET("/:id", h.GetTemplate)
		templates.POST("/:id/reparse", h.ReparseTemplate)
		templates.POST("/:id/activate", h.ActivateTemplate)
		templates.POST("/:id/deactivate", h.DeactivateTemplate)
		templates.DELETE("/:id", h.DeleteTemplate)
		templates.POST("/:id/compliance", h.CheckCompliance)
		templates.GET("/:id/compliance", h.GetComplianceReport)
	}

	compliance := api.Group("/compliance")
	{
		compliance.POST("/check-all", h.CheckAllCompliance)
		compliance.GET("/stats", h.ComplianceStats)
	}

	generations := api.Group("/generations")
	{
		generations.POST("", h.Generate)
		generations.GET("", h.ListGenerations)
		generations.GET("/by-number/:legal_number", h.FindByLegalNumber)
		generations.GET("/:id", h.GetGeneration)
		generations.POST("/:id/corrections", h.CreateCorrective)
		generations.POST("/:id/retry", h.RetryGeneration)
		generations.POST("/:id/archive", h.ArchiveGeneration)
		generations.GET("/:id/verify", h.VerifyGeneration)
		generations.GET("/:id/download", h.DownloadGeneration)
		generations.POST("/:id/deliveries", h.DeliverGeneration)
		generations.GET("/:id/deliveries", h.ListDeliveries)
	}
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
