// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/common"
	"github.com/noldarim/agentbridge/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	chatPath   = "/api/agui/chat"
	wsPath     = "/api/agui/ws"
	agentsPath = "/api/agents"
	livePath   = "/health/live"
	readyPath  = "/health/ready"

	maxBodyBytes = 1 << 20
)

// Server is the HTTP + WebSocket ingress of the bridge.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// New wires up the routes. It does NOT start listening; call Run for that.
func New(cfg *config.ServerConfig, runner Runner, agents []Agent) *Server {
	handler := NewRouter(cfg.AllowedOrigins, runner, agents)

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// No WriteTimeout: a run streams for as long as the upstream
			// request budget allows.
			IdleTimeout: 60 * time.Second,
		},
		handler: handler,
	}
}

// NewRouter returns the route tree. It is separate from New so tests can
// mount it on an httptest server.
func NewRouter(allowedOrigins []string, runner Runner, agents []Agent) http.Handler {
	handlers := NewHandlers(runner, agents, agui.NewSSEEncoder())

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(otelhttp.NewMiddleware(common.ServiceName, otelhttp.WithSpanNameFormatter(spanName)))
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(allowedOrigins))
	r.Use(MaxBodySize(maxBodyBytes))

	r.Get("/", handlers.Root)
	r.Get(livePath, handlers.Live)
	r.Get(readyPath, handlers.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Get("/agents", handlers.ListAgents)
		r.Post("/agui/chat", handlers.Chat)
		r.Get("/agui/ws", HandleWebSocket(runner, allowedOrigins))
	})

	return r
}

func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

// Handler returns the route tree served by s.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until Shutdown is called or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown is called or ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			getLog().Error().Err(err).Msg("API server shutdown failed")
		}
	})
	defer stop()

	getLog().Info().Str("addr", ln.Addr().String()).Msg("API server listening")
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
