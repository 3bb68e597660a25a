package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/avolkhin/revgate/internal/config"
	"github.com/avolkhin/revgate/internal/observability"
)

// Server wraps the gateway's HTTP listener with lifecycle management.
type Server struct {
	srv    *http.Server
	logger observability.Logger
}

// NewServer creates the HTTP server for the gateway handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger observability.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:           cfg.ListenAddress,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout.Duration(),
			WriteTimeout:   cfg.WriteTimeout.Duration(),
			IdleTimeout:    cfg.IdleTimeout.Duration(),
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		logger: logger,
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("gateway listening",
		observability.String("address", s.srv.Addr),
	)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server failed", observability.Error(err))
		}
	}()
}

// Stop shuts the server down gracefully, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
