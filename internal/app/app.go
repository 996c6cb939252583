// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the relay server from its components and runs it.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/clauderelay/internal/api"
	"github.com/wingedpig/clauderelay/internal/checkpoint"
	"github.com/wingedpig/clauderelay/internal/claude"
	"github.com/wingedpig/clauderelay/internal/config"
	"github.com/wingedpig/clauderelay/internal/events"
	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/internal/sessionlog"
	"github.com/wingedpig/clauderelay/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.Mutex

	version string
	config  *config.Config

	eventBus    *events.MemoryBus
	reader      *sessionlog.Reader
	registry    *projects.Registry
	projects    *projects.Manager
	checkpoints *checkpoint.Manager
	bridge      *claude.Bridge
	watcher     *watcher.ProjectsWatcher
	apiServer   *api.Server

	// runCtx bounds CLI invocations; cancelled on shutdown.
	runCtx    context.Context
	runCancel context.CancelFunc

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string // Optional; defaults apply without a file
	Host       string
	Port       int
	Debug      bool
	Version    string
}

// New loads configuration and creates an App. Components are built by
// Initialize.
func New(opts Options) (*App, error) {
	cfg, err := config.NewLoader().LoadOrDefault(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Debug {
		cfg.Logging.Level = "debug"
	}

	return NewWithConfig(cfg, opts.Version), nil
}

// NewWithConfig creates an App from an already loaded configuration.
func NewWithConfig(cfg *config.Config, version string) *App {
	runCtx, cancel := context.WithCancel(context.Background())
	return &App{
		version:   version,
		config:    cfg,
		runCtx:    runCtx,
		runCancel: cancel,
		done:      make(chan struct{}),
		eventBus: events.NewMemoryBus(
			cfg.Events.History.MaxEvents,
			config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
		),
	}
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	logRoot := config.ExpandPath(cfg.Claude.ProjectsDir)
	app.reader = sessionlog.NewReader(logRoot)

	registry, err := projects.OpenRegistry(config.ExpandPath(cfg.Store.ProjectConfig))
	if err != nil {
		return fmt.Errorf("failed to open project registry: %w", err)
	}
	app.registry = registry
	app.projects = projects.NewManager(app.reader, registry, cfg.Sessions.SnapshotSessions)

	app.checkpoints = checkpoint.NewManager(
		config.ExpandPath(cfg.Store.CheckpointsDir),
		checkpoint.NewRealGitExecutor(),
		app.reader,
	)
	app.projects.AddCleaner(app.checkpoints)

	searchPaths := make([]string, len(cfg.Claude.SearchPaths))
	for i, p := range cfg.Claude.SearchPaths {
		searchPaths[i] = config.ExpandPath(p)
	}
	app.bridge = claude.NewBridge(claude.Config{
		Executable:  config.ExpandPath(cfg.Claude.Executable),
		SearchPaths: searchPaths,
		Model:       cfg.Claude.Model,
		Permissions: claude.Permissions{
			Mode:            cfg.Claude.PermissionMode,
			AllowedTools:    cfg.Claude.AllowedTools,
			DisallowedTools: cfg.Claude.DisallowedTools,
			SkipPermissions: cfg.Claude.SkipPermissions,
		},
		StdinGrace:        config.ParseDuration(cfg.Claude.StdinGrace, 500*time.Millisecond),
		PostExitScanDelay: config.ParseDuration(cfg.Claude.PostExitScanDelay, time.Second),
		RecoveryWindow:    config.ParseDuration(cfg.Claude.RecoveryWindow, 5*time.Second),
		Finder:            app.reader,
		Debug:             cfg.Logging.Debug(),
	})
	if path, err := app.bridge.Locate(); err != nil {
		// Surfaced again on first use; the server still serves history.
		log.Printf("Warning: %v", err)
	} else {
		log.Printf("Using claude executable %s", path)
	}

	app.watcher = watcher.NewProjectsWatcher(
		logRoot,
		cfg.Watch.IgnoreDirs,
		config.ParseDuration(cfg.Watch.Debounce, 300*time.Millisecond),
		app.onLogsChanged,
	)

	router := api.NewRouter(api.Dependencies{
		Projects:    app.projects,
		Logs:        app.reader,
		Checkpoints: app.checkpoints,
		Runner:      app.bridge,
		Health:      healthSource{bridge: app.bridge, reader: app.reader},
		EventBus:    app.eventBus,
		RunContext:  app.runCtx,
		Version:     app.version,
		PageSize:    cfg.Sessions.PageSize,
	})
	app.apiServer = api.NewServer(cfg.Server, router)

	return nil
}

// onLogsChanged rebuilds the snapshot after a settled burst of log changes
// and publishes it.
func (app *App) onLogsChanged(c watcher.Change) {
	app.reader.InvalidateCache()

	ctx, cancel := context.WithTimeout(app.runCtx, 30*time.Second)
	defer cancel()
	snapshot, err := app.projects.Snapshot(ctx)
	if err != nil {
		log.Printf("watcher: snapshot after %s %s: %v", c.Type, c.Path, err)
		return
	}
	if app.config.Logging.Debug() {
		log.Printf("watcher: %s %s (%d changes), %d projects", c.Type, c.Path, c.Count, len(snapshot))
	}

	err = app.eventBus.Publish(ctx, events.Event{
		Type: events.ProjectsUpdated,
		Payload: map[string]interface{}{
			"projects":    snapshot,
			"changeType":  string(c.Type),
			"changedFile": c.Path,
			"count":       c.Count,
		},
	})
	if err != nil && err != events.ErrBusClosed {
		log.Printf("watcher: publish: %v", err)
	}
}

// Start starts the watcher and the API server.
func (app *App) Start(ctx context.Context) error {
	if err := app.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	go func() {
		log.Printf("Starting API server on %s", app.apiServer.Addr())
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
			app.Stop()
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown stops components in reverse order of startup.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop API server first to stop accepting new requests
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			log.Printf("Error closing watcher: %v", err)
		}
	}

	if app.bridge != nil {
		app.bridge.Shutdown(10 * time.Second)
	}
	app.runCancel()

	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

// Config returns the effective configuration.
func (app *App) Config() *config.Config {
	return app.config
}

type healthSource struct {
	bridge *claude.Bridge
	reader *sessionlog.Reader
}

func (h healthSource) Running() []string  { return h.bridge.Running() }
func (h healthSource) ParseErrors() int64 { return h.reader.ParseErrors() }
