// Package server exposes the streamer's operational endpoints: Prometheus
// metrics and liveness/readiness probes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
)

// Config holds configuration for the ops server.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// ReadyChecks are evaluated by /readyz. /healthz always answers ok
	// while the process serves requests.
	ReadyChecks map[string]healthz.Checker
}

// Server is the plain HTTP server for metrics and probes.
type Server struct {
	config Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a new ops server.
func NewServer(config Config, logger *zap.Logger) *Server {
	return &Server{
		config: config,
		logger: logger.Named("server"),
	}
}

// Handler returns the router serving /metrics, /healthz and /readyz.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	health := &healthz.Handler{Checks: map[string]healthz.Checker{"ping": healthz.Ping}}
	ready := &healthz.Handler{Checks: s.config.ReadyChecks}
	if len(ready.Checks) == 0 {
		ready.Checks = map[string]healthz.Checker{"ping": healthz.Ping}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", gin.WrapH(http.StripPrefix("/healthz", health)))
	r.GET("/readyz", gin.WrapH(http.StripPrefix("/readyz", ready)))
	return r
}

// Start starts the server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting ops server", zap.String("addr", s.config.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down ops server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
