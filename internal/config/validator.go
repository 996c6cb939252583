// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateClaude(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateSessions(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server.tls_cert", "tls_cert and tls_key must be set together")
	}
	if cfg.Server.TLSTailscale && cfg.Server.TLSCert != "" {
		errs.Add("server.tls_tailscale", "cannot be combined with tls_cert/tls_key")
	}
}

var validPermissionModes = map[string]bool{
	"default":           true,
	"acceptEdits":       true,
	"plan":              true,
	"bypassPermissions": true,
}

func (v *Validator) validateClaude(cfg *Config, errs *ValidationError) {
	if strings.TrimSpace(cfg.Claude.Executable) == "" {
		errs.Add("claude.executable", "is required")
	}
	if cfg.Claude.ProjectsDir == "" {
		errs.Add("claude.projects_dir", "is required")
	}
	if cfg.Claude.PermissionMode != "" && !validPermissionModes[cfg.Claude.PermissionMode] {
		errs.Add("claude.permission_mode", fmt.Sprintf("invalid mode '%s'", cfg.Claude.PermissionMode))
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info":
	default:
		errs.Add("logging.level", fmt.Sprintf("invalid level '%s' (want debug or info)", cfg.Logging.Level))
	}
}

func (v *Validator) validateSessions(cfg *Config, errs *ValidationError) {
	if cfg.Sessions.PageSize < 0 {
		errs.Add("sessions.page_size", "must not be negative")
	}
	if cfg.Sessions.SnapshotSessions < 0 {
		errs.Add("sessions.snapshot_sessions", "must not be negative")
	}
	if cfg.Client.DedupSize < 0 {
		errs.Add("client.dedup_size", "must not be negative")
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	durations := map[string]string{
		"watch.debounce":              cfg.Watch.Debounce,
		"events.history.max_age":      cfg.Events.History.MaxAge,
		"claude.stdin_grace":          cfg.Claude.StdinGrace,
		"claude.post_exit_scan_delay": cfg.Claude.PostExitScanDelay,
		"claude.recovery_window":      cfg.Claude.RecoveryWindow,
		"client.placeholder_max_age":  cfg.Client.PlaceholderMaxAge,
		"client.pending_timeout":      cfg.Client.PendingTimeout,
		"client.checkpoint_tolerance": cfg.Client.CheckpointTolerance,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs.Add(field, fmt.Sprintf("invalid duration format: %s", err))
		} else if d < 0 {
			errs.Add(field, "must be positive")
		}
	}
}
