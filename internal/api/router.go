// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the relay over HTTP: a REST surface under /api/v1 and
// the /ws chat WebSocket.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tailscale/tscert"

	"github.com/wingedpig/clauderelay/internal/api/handlers"
	"github.com/wingedpig/clauderelay/internal/api/middleware"
	"github.com/wingedpig/clauderelay/internal/api/version"
	"github.com/wingedpig/clauderelay/internal/config"
	"github.com/wingedpig/clauderelay/internal/events"
)

// Dependencies holds the components the router serves.
type Dependencies struct {
	Projects    handlers.ProjectService
	Logs        handlers.SessionLogs
	Checkpoints handlers.CheckpointService
	Runner      handlers.Runner
	Health      handlers.HealthSource
	EventBus    events.Bus

	// RunContext bounds CLI invocations started from chat connections.
	RunContext context.Context
	Version    string
	PageSize   int
}

// NewRouter creates the HTTP router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	runCtx := deps.RunContext
	if runCtx == nil {
		runCtx = context.Background()
	}

	projectHandler := handlers.NewProjectHandler(deps.Projects, deps.EventBus)
	sessionHandler := handlers.NewSessionHandler(deps.Projects, deps.Logs, deps.EventBus, deps.PageSize)
	checkpointHandler := handlers.NewCheckpointHandler(deps.Checkpoints, deps.Projects, deps.EventBus)
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	chatHandler := handlers.NewChatHandler(runCtx, deps.Runner, deps.Projects, deps.EventBus)
	healthHandler := handlers.NewHealthHandler(deps.Version, deps.Health)

	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.HandleFunc("/ws", chatHandler.WebSocket)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(version.Middleware)

	apiRouter.HandleFunc("/health", healthHandler.Health).Methods("GET")

	// Projects
	apiRouter.HandleFunc("/projects", projectHandler.List).Methods("GET")
	apiRouter.HandleFunc("/projects", projectHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/projects/{project}", projectHandler.Rename).Methods("PATCH")
	apiRouter.HandleFunc("/projects/{project}", projectHandler.Delete).Methods("DELETE")

	// Sessions
	apiRouter.HandleFunc("/projects/{project}/sessions", sessionHandler.List).Methods("GET")
	apiRouter.HandleFunc("/projects/{project}/sessions/{session}/messages", sessionHandler.Messages).Methods("GET")
	apiRouter.HandleFunc("/projects/{project}/sessions/{session}/export", sessionHandler.Export).Methods("GET")
	apiRouter.HandleFunc("/projects/{project}/sessions/{session}", sessionHandler.Delete).Methods("DELETE")

	// Checkpoints
	apiRouter.HandleFunc("/projects/{project}/checkpoints", checkpointHandler.List).Methods("GET")
	apiRouter.HandleFunc("/projects/{project}/checkpoints", checkpointHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/projects/{project}/checkpoints/{id}/restore", checkpointHandler.Restore).Methods("POST")
	apiRouter.HandleFunc("/projects/{project}/checkpoints/{id}", checkpointHandler.Delete).Methods("DELETE")

	// Events
	apiRouter.HandleFunc("/events", eventHandler.History).Methods("GET")
	apiRouter.HandleFunc("/events/ws", eventHandler.WebSocket)

	return r
}

// Server wraps the HTTP server.
type Server struct {
	server *http.Server
	cfg    config.ServerConfig
}

// NewServer creates a server for handler.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe starts the server. It serves HTTPS when a certificate pair
// is configured or when certificates come from the local tailscaled.
func (s *Server) ListenAndServe() error {
	if s.cfg.TLSTailscale {
		s.server.TLSConfig = &tls.Config{GetCertificate: tscert.GetCertificate}
		log.Printf("api: serving https on %s (tailscale certificates)", s.server.Addr)
		return s.server.ListenAndServeTLS("", "")
	}

	useTLS, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return err
	}
	if useTLS {
		log.Printf("api: serving https on %s", s.server.Addr)
		return s.server.ListenAndServeTLS(config.ExpandPath(s.cfg.TLSCert), config.ExpandPath(s.cfg.TLSKey))
	}
	log.Printf("api: serving http on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
