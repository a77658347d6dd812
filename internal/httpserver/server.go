// Package httpserver hosts the REST facade: a gin engine carrying the
// service middleware stack, plus lifecycle helpers for async start and
// graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

const defaultShutdownTimeout = 10 * time.Second

// Server wraps the gin engine and its http.Server.
type Server struct {
	router          *gin.Engine
	server          *http.Server
	log             logger.Logger
	shutdownTimeout time.Duration
}

// NewServer builds the engine with the standard middleware stack, in
// order: panic recovery, request IDs, request logging, CORS. Service
// routes are added by setupRoutes after the stack is in place.
func NewServer(cfg config.ServerConfig, debug bool, log logger.Logger, tel *telemetry.Provider, setupRoutes func(*gin.Engine)) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log, tel))
	router.Use(CORSMiddleware())

	if setupRoutes != nil {
		setupRoutes(router)
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// Router exposes the engine for extra route registration.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until Shutdown is called or the listener fails. A clean
// shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("http server starting", logger.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine and returns a channel
// that delivers the eventual listener error, then closes.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests, bounded by the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down",
		logger.Duration("timeout", s.shutdownTimeout),
	)
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// RunWithGracefulShutdown serves until ctx is cancelled or the listener
// fails, then drains. Shutdown runs on a fresh context because ctx is
// already cancelled by the time it matters.
func (s *Server) RunWithGracefulShutdown(ctx context.Context) error {
	errCh := s.StartAsync()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.Shutdown(context.Background())
}
