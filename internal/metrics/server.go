package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/lanbridge/internal/logging"
)

// Server exposes a Registry at /metrics.
type Server struct {
	mux      *http.ServeMux
	srv      *http.Server
	listener net.Listener
	logger   *logging.Logger
}

// Listen binds addr and prepares the HTTP server. Call Serve to start it.
func Listen(addr string, registry *Registry, logger *logging.Logger) (*Server, error) {
	if registry == nil {
		registry = Get()
	}
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.Gatherer(), promhttp.HandlerOpts{}))

	return &Server{
		mux: mux,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Handle registers an extra handler on the endpoint. It must be called
// before Serve.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	s.logger.Info("Serving metrics", "addr", s.listener.Addr().String())
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
