// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/core/api"
	"github.com/meritkeeper/meritkeeper/internal/core/config"
)

const shutdownTimeout = 30 * time.Second

// HTTPServer manages HTTP server lifecycle.
type HTTPServer struct {
	server *http.Server
	config *config.EngineAPIConfig
}

// NewHTTPServer creates the server with the service's route table mounted.
func NewHTTPServer(cfg *config.EngineAPIConfig, service *api.EngineAPIService) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           http.TimeoutHandler(service.Router(), cfg.RequestTimeout, "request timed out"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &HTTPServer{server: srv, config: cfg}, nil
}

// Start serves HTTP requests. Blocks until Shutdown is called.
func (s *HTTPServer) Start(_ context.Context) error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.server.Addr, err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests up to
// the shutdown timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
