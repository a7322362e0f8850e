// Package httpserver runs the HTTP transport in front of the application:
// a chi router for the request-scoped middleware and an http.Server with
// graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/config"
)

var (
	// ErrServerNotStarted is returned when stopping a server that is not running.
	ErrServerNotStarted = errors.New("server not started")

	// ErrServerAlreadyStarted is returned when starting a running server.
	ErrServerAlreadyStarted = errors.New("server already started")

	// ErrNoHandler is returned when the server has nothing to serve.
	ErrNoHandler = errors.New("no HTTP handler available")
)

// DefaultShutdownTimeout bounds Stop when the config leaves it unset.
const DefaultShutdownTimeout = 10 * time.Second

// Server owns the listener and the http.Server.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  baseapp.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan error
}

func New(cfg config.ServerConfig, handler http.Handler, logger baseapp.Logger) *Server {
	if logger == nil {
		logger = baseapp.NopLogger{}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// Start binds the configured address and serves in the background. The
// listener is open when Start returns.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler == nil {
		return ErrNoHandler
	}
	if s.server != nil {
		return ErrServerAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
		}
		done <- err
	}()

	s.server, s.listener, s.done = srv, ln, done
	s.logger.Info("HTTP server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done yields the serve error once the server exits, nil after a graceful
// stop. It is nil before Start.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop drains in-flight requests, waiting at most the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return ErrServerNotStarted
	}
	s.logger.Info("Stopping HTTP server", "timeout", s.cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		_ = s.server.Close()
		s.server, s.listener = nil, nil
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	s.server, s.listener = nil, nil
	s.logger.Info("HTTP server stopped")
	return nil
}
