package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meshwx/weather-proxy/pkg/logging"
)

// Server runs the HTTP listener for the proxy. Binding happens in Start,
// so an occupied port surfaces as an error before any request is served.
type Server struct {
	srv      *http.Server
	listener net.Listener
	grace    time.Duration
	logger   zerolog.Logger
	done     chan error
}

// NewServer builds a server on the given address. addr is of the form
// ":8080" or "127.0.0.1:0".
func NewServer(addr string, handler http.Handler, grace time.Duration) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		grace:  grace,
		logger: logging.NewLogger("server"),
		done:   make(chan error, 1),
	}
}

// Start binds the listen address and begins serving in the background.
// A bind failure (occupied port, bad address) is returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.srv.Addr, err)
	}
	s.listener = ln

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	return nil
}

// Addr returns the bound address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests within the grace period, then forces
// the listener closed.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	s.logger.Info().Dur("grace", s.grace).Msg("Shutting down HTTP server")

	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Graceful shutdown incomplete, closing")
		s.srv.Close()
		return err
	}
	return <-s.done
}
