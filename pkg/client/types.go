// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"time"
)

// Project is a workspace directory and its most recent sessions.
type Project struct {
	// Name is the encoded directory name used as the project identifier.
	Name string `json:"name"`

	// DisplayName is the custom name if one is set, otherwise the directory's
	// base name.
	DisplayName string `json:"displayName"`

	// Path is the decoded working directory, FullPath the same path as
	// reported by the session logs when they disagree with the decoding.
	Path     string `json:"path"`
	FullPath string `json:"fullPath"`

	// Sessions holds the newest sessions only; SessionMeta says how many
	// exist in total.
	Sessions    []Session   `json:"sessions"`
	SessionMeta SessionMeta `json:"sessionMeta"`

	IsCustomName    bool `json:"isCustomName"`
	IsManuallyAdded bool `json:"isManuallyAdded"`
}

// SessionMeta describes how much of the session list a snapshot carries.
type SessionMeta struct {
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Session is a session as listed within a project.
type Session struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastActivity time.Time `json:"lastActivity"`
	MessageCount int       `json:"messageCount"`
	CWD          string    `json:"cwd,omitempty"`

	ProjectName   string `json:"projectName"`
	IsPlaceholder bool   `json:"isPlaceholder"`
}

// SessionPage is one page of a project's sessions, newest first.
type SessionPage struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Transcript is a session converted to renderable entries. Each element of
// Entries is an object with a "type" discriminator: user, assistant,
// tool_use, tool_result, interactive_prompt, system or error.
type Transcript struct {
	SessionID string          `json:"sessionId"`
	Entries   json.RawMessage `json:"entries"`
}

// Checkpoint records the working tree as it was when a user message was
// sent.
type Checkpoint struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	SessionID string    `json:"sessionId,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Ref       string    `json:"ref,omitempty"`
	WorkDir   string    `json:"workDir,omitempty"`
}

// CheckpointRequest creates a checkpoint. WorkDir defaults to the project's
// directory and Timestamp to the server's clock.
type CheckpointRequest struct {
	SessionID string    `json:"sessionId,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	WorkDir   string    `json:"workDir,omitempty"`
}

// Event is a record from the server's event history.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Health is the server status.
type Health struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	Uptime      string   `json:"uptime"`
	Running     []string `json:"running"`
	ParseErrors int64    `json:"parseErrors"`
}

// ExportFormat selects the document format of a transcript export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
)
