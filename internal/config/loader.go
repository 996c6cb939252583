// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// ErrConfigNotFound is returned by FindConfig when no config file exists.
var ErrConfigNotFound = errors.New("config file not found (looked for clauderelay.hjson, clauderelay.json)")

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return l.Parse(data)
}

// Parse decodes HJSON config data.
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied and validates it.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, or returns defaults when path is
// empty. A config file is optional for clauderelay.
func (l *Loader) LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}
	return l.LoadWithDefaults(ctx, path)
}

// FindConfig searches for a config file in the current directory.
// It looks for clauderelay.hjson first, then clauderelay.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"clauderelay.hjson",
		"clauderelay.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", ErrConfigNotFound
}

// ApplyDefaults sets default values for missing config fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	// Claude defaults
	if cfg.Claude.Executable == "" {
		cfg.Claude.Executable = "claude"
	}
	if len(cfg.Claude.SearchPaths) == 0 {
		cfg.Claude.SearchPaths = []string{"~/.claude/local", "~/.local/bin", "/usr/local/bin", "/opt/homebrew/bin"}
	}
	if cfg.Claude.ProjectsDir == "" {
		cfg.Claude.ProjectsDir = "~/.claude/projects"
	}
	if cfg.Claude.PermissionMode == "" {
		cfg.Claude.PermissionMode = "default"
	}
	if cfg.Claude.StdinGrace == "" {
		cfg.Claude.StdinGrace = "500ms"
	}
	if cfg.Claude.PostExitScanDelay == "" {
		cfg.Claude.PostExitScanDelay = "1s"
	}
	if cfg.Claude.RecoveryWindow == "" {
		cfg.Claude.RecoveryWindow = "5s"
	}

	// Watch defaults
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "300ms"
	}
	if len(cfg.Watch.IgnoreDirs) == 0 {
		cfg.Watch.IgnoreDirs = []string{".git", "node_modules", "dist", "build", ".cache", "__pycache__", ".next", "coverage"}
	}

	// Events defaults
	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 1000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	// Store defaults
	if cfg.Store.ProjectConfig == "" {
		cfg.Store.ProjectConfig = "~/.claude/project-config.json"
	}
	if cfg.Store.CheckpointsDir == "" {
		cfg.Store.CheckpointsDir = "~/.claude/checkpoints"
	}

	// Session listing defaults
	if cfg.Sessions.PageSize == 0 {
		cfg.Sessions.PageSize = 20
	}
	if cfg.Sessions.SnapshotSessions == 0 {
		cfg.Sessions.SnapshotSessions = 5
	}

	// Client defaults
	if cfg.Client.StatePath == "" {
		cfg.Client.StatePath = "~/.clauderelay/client.db"
	}
	if cfg.Client.PlaceholderMaxAge == "" {
		cfg.Client.PlaceholderMaxAge = "24h"
	}
	if cfg.Client.PendingTimeout == "" {
		cfg.Client.PendingTimeout = "5m"
	}
	if cfg.Client.DedupSize == 0 {
		cfg.Client.DedupSize = 500
	}
	if cfg.Client.CheckpointTolerance == "" {
		cfg.Client.CheckpointTolerance = "5s"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
