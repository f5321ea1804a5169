package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server runs an http.Handler (the router) as a registry service.
type Server struct {
	listen  string
	handler http.Handler
	logger  zerolog.Logger

	server *http.Server
	addr   net.Addr
	wg     sync.WaitGroup
}

// NewServer creates a Server for the given listen address.
func NewServer(listen string, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		listen:  listen,
		handler: handler,
		logger:  logger,
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.server != nil {
		s.logger.Warn().Msg("Control server is already running")
		return errors.New("control server is already running")
	}

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.addr = ln.Addr()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Control server failed")
		}
	}()

	s.logger.Info().Str("addr", s.addr.String()).Msg("Control server started")
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (s *Server) Stop() error {
	if s.server == nil {
		s.logger.Warn().Msg("Control server is not running")
		return errors.New("control server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	s.server = nil

	s.logger.Info().Msg("Control server stopped")
	return err
}
