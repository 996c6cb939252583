// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading and validation.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for clauderelay.
type Config struct {
	Version  string         `json:"version"`
	Server   ServerConfig   `json:"server"`
	Claude   ClaudeConfig   `json:"claude"`
	Watch    WatchConfig    `json:"watch"`
	Events   EventsConfig   `json:"events"`
	Store    StoreConfig    `json:"store"`
	Sessions SessionsConfig `json:"sessions"`
	Client   ClientConfig   `json:"client"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	TLSCert      string `json:"tls_cert"`      // Path to TLS certificate file (enables HTTPS if both cert and key set)
	TLSKey       string `json:"tls_key"`       // Path to TLS private key file
	TLSTailscale bool   `json:"tls_tailscale"` // Fetch certificates from the local tailscaled
}

// ClaudeConfig configures how the claude CLI is located and invoked.
type ClaudeConfig struct {
	Executable        string   `json:"executable"`   // Explicit path or command name
	SearchPaths       []string `json:"search_paths"` // Extra directories to search when not on PATH
	ProjectsDir       string   `json:"projects_dir"` // Root of the CLI's per-project session logs
	Model             string   `json:"model"`
	PermissionMode    string   `json:"permission_mode"` // "default", "acceptEdits", "plan", "bypassPermissions"
	AllowedTools      []string `json:"allowed_tools"`
	DisallowedTools   []string `json:"disallowed_tools"`
	SkipPermissions   bool     `json:"skip_permissions"`
	StdinGrace        string   `json:"stdin_grace"`          // Delay before stdin is closed after the command is written
	PostExitScanDelay string   `json:"post_exit_scan_delay"` // Delay before scanning logs for an uncaptured session id
	RecoveryWindow    string   `json:"recovery_window"`      // Clock tolerance when the post-exit scan matches log entries
}

// WatchConfig configures the session log watcher.
type WatchConfig struct {
	Debounce   string   `json:"debounce"`
	IgnoreDirs []string `json:"ignore_dirs"`
}

// EventsConfig configures the event system.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// StoreConfig configures server-side persistence.
type StoreConfig struct {
	ProjectConfig  string `json:"project_config"`  // Project registry file (custom names, manual projects)
	CheckpointsDir string `json:"checkpoints_dir"` // Checkpoint index directory
}

// SessionsConfig configures session listing.
type SessionsConfig struct {
	PageSize         int `json:"page_size"`         // Default page size for session listings
	SnapshotSessions int `json:"snapshot_sessions"` // Sessions included per project in a snapshot
}

// ClientConfig configures the terminal chat client's local state.
type ClientConfig struct {
	StatePath           string `json:"state_path"`
	PlaceholderMaxAge   string `json:"placeholder_max_age"`
	PendingTimeout      string `json:"pending_timeout"`
	DedupSize           int    `json:"dedup_size"`
	CheckpointTolerance string `json:"checkpoint_tolerance"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `json:"level"` // "debug", "info"
}

// Debug reports whether debug logging is enabled.
func (l LoggingConfig) Debug() bool {
	return strings.EqualFold(l.Level, "debug")
}

// ParseDuration parses a duration string, returning a default if empty.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
