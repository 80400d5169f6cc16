// Package http exposes the factoring console over REST. It is a thin
// adapter: handlers translate requests into controller and service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andescap/factoring-console/internal/auth"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns sensible local defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the console's HTTP adapter.
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	resolver   *auth.Resolver
	logger     *zap.Logger
}

// NewServer wires the router, middleware and routes.
func NewServer(config ServerConfig, handlers *Handlers, resolver *auth.Resolver, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		resolver: resolver,
		logger:   logger,
	}
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.setupRoutes()
	return s
}

// requestIDMiddleware tags each request with an id, honoring one already
// set by the gateway.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(s.authMiddleware())
	{
		api.GET("/operaciones", s.handlers.ListOperations)
		api.POST("/operaciones", s.handlers.SubmitOperation)
		api.POST("/operaciones/:id/gestiones", requireVerify(), s.handlers.CreateGestion)
		api.POST("/operaciones/:id/gestiones/abrir", requireVerify(), s.handlers.OpenGestionForm)
		api.PATCH("/operaciones/:id/facturas/:folio", requireVerify(), s.handlers.UpdateInvoiceStatus)
		api.POST("/operaciones/:id/adelanto-express", requireVerify(), s.handlers.EscalateExpress)
		api.PATCH("/operaciones/:id/completar", requireVerify(), s.handlers.CompleteOperation)
		api.PATCH("/operaciones/:id/asignar", requireAssign(), s.handlers.AssignAnalyst)
		api.GET("/operaciones/:id/sugerencia", requireVerify(), s.handlers.SuggestNextMove)
		api.GET("/analistas", s.handlers.ListAnalysts)
		api.GET("/dashboard", s.handlers.Dashboard)
		api.GET("/archivo", s.handlers.ListArchived)
		api.GET("/reporte", s.handlers.ExportOperations)
		api.DELETE("/error", s.handlers.ClearError)
		api.DELETE("/aviso", s.handlers.ClearNotice)
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
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
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop shuts the server down gracefully.
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

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
