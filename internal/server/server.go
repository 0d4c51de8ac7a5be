package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/config"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/handler"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/middleware"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ridwanfathin/invoice-fetcher-service/docs"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server of the invoice fetcher
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *config.Config
	closers    []io.Closer
	log        *logrus.Entry
}

// NewServer creates and configures a new server instance
func NewServer(cfg *config.Config, invoiceHandler *handler.InvoiceHandler) *Server {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORSOrigins...))
	router.Use(middleware.RequestResponseLogger(middleware.LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
		Bodies:    cfg.LogLevel == "debug",
	}))

	server := &Server{
		router: router,
		config: cfg,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: logrus.StandardLogger().WithField("type", "server"),
	}

	server.setupRoutes()
	if invoiceHandler != nil {
		invoiceHandler.RegisterRoutes(router)
	}

	return server
}

// OnShutdown registers resources released after the HTTP server stopped, in order
func (s *Server) OnShutdown(c ...io.Closer) {
	s.closers = append(s.closers, c...)
}

// GetRouter returns the gin router instance
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// setupRoutes configures the routes that do not belong to a handler
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger UI at /api-docs/index.html
	swaggerHandler := ginSwagger.WrapHandler(swaggerFiles.Handler)
	s.router.GET("/api-docs/*any", swaggerHandler)

	s.router.GET("/api-docs", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/api-docs/index.html")
	})
}

// Start begins listening for requests and handles graceful shutdown on SIGINT or SIGTERM
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.config.Port).Info("server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.closeResources()
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.log.Info("server exited gracefully")
	return nil
}

// Shutdown gracefully stops the server, then releases the registered resources
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.WithError(err).Warn("failed to release resource")
		}
	}
	s.closers = nil
}
