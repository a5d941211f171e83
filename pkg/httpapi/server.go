// Package httpapi is the HTTP transport adapter: it exposes the query,
// transaction, database-admin, resource, health, metrics, and OpenAPI
// endpoints over the service aggregate in pkg/service, serving
// always-on h2c HTTP/2 with a fallback to HTTP/1.1.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/GrafeoDB/grafeo-server/pkg/service"
)

// Config configures a Server's listen address and HTTP timeouts.
type Config struct {
	Address string // default "127.0.0.1"
	Port    int    // default 8080

	ReadTimeout  time.Duration // default 30s
	WriteTimeout time.Duration // default 300s
	IdleTimeout  time.Duration // default 120s

	HTTP2MaxConcurrentStreams uint32 // default 250, matches net/http2's own default

	// UIRoot is where GET / redirects to with a 308; empty disables the
	// redirect (headless mode).
	UIRoot string

	DrainTimeout time.Duration // graceful shutdown budget; default 30s
}

// DefaultConfig returns the server's baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:                   "127.0.0.1",
		Port:                      8080,
		ReadTimeout:               30 * time.Second,
		WriteTimeout:              300 * time.Second,
		IdleTimeout:               120 * time.Second,
		HTTP2MaxConcurrentStreams: 250,
		UIRoot:                    "/ui/",
		DrainTimeout:              30 * time.Second,
	}
}

// Server is the HTTP surface over one service.Service aggregate.
type Server struct {
	config *Config
	svc    *service.Service

	httpServer *http.Server
	listener   net.Listener
	started    time.Time
	closed     atomic.Bool

	duplexHandler http.HandlerFunc // GET /ws; nil disables the endpoint
}

// New constructs a Server bound to svc. Pass nil for config to use
// DefaultConfig().
func New(svc *service.Service, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{config: config, svc: svc}
}

// SetDuplexHandler wires the full-duplex WebSocket endpoint (GET /ws)
// into the route table; call before Start.
func (s *Server) SetDuplexHandler(h http.HandlerFunc) { s.duplexHandler = h }

// Addr returns the server's bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Start begins serving HTTP/2 cleartext (h2c) traffic, falling back to
// HTTP/1.1 for older clients.
func (s *Server) Start() error {
	if s.closed.Load() {
		return errors.New("httpapi: server already closed")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	mux := s.buildRouter()
	handler := s.withMiddleware(mux)

	s.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	http2Config := &http2.Server{MaxConcurrentStreams: s.config.HTTP2MaxConcurrentStreams}
	s.httpServer.Handler = h2c.NewHandler(handler, http2Config)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("httpapi: server error: %v\n", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server within the configured drain
// budget, then forcibly closes any remaining connections.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, s.config.DrainTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.httpServer.Shutdown(drainCtx) }()

	select {
	case err := <-done:
		if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			_ = s.httpServer.Close()
		}
		return err
	case <-drainCtx.Done():
		_ = s.httpServer.Close()
		return drainCtx.Err()
	}
}
