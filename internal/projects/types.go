// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package projects builds the project/session snapshot served to clients and
// keeps the user's project registry (custom names, manually added projects).
package projects

import (
	"errors"
	"time"

	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

var (
	// ErrProjectNotFound is returned when a project is neither on disk nor registered.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicatePath is returned when registering a path that already has a project.
	ErrDuplicatePath = errors.New("project already exists for path")
)

// Project is a workspace directory and its recent sessions.
type Project struct {
	Name            string      `json:"name"`
	DisplayName     string      `json:"displayName"`
	Path            string      `json:"path"`
	FullPath        string      `json:"fullPath"`
	Sessions        []Session   `json:"sessions"`
	SessionMeta     SessionMeta `json:"sessionMeta"`
	IsCustomName    bool        `json:"isCustomName"`
	IsManuallyAdded bool        `json:"isManuallyAdded"`
}

// SessionMeta describes how much of the session list a snapshot carries.
type SessionMeta struct {
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Session is a session as listed within a project.
type Session struct {
	sessionlog.SessionInfo
	ProjectName   string `json:"projectName"`
	IsPlaceholder bool   `json:"isPlaceholder"`
}

// SameListing reports whether two sessions would render identically in a
// listing: same identity, title and timestamps.
func (s Session) SameListing(o Session) bool {
	return s.ID == o.ID &&
		s.Summary == o.Summary &&
		s.IsPlaceholder == o.IsPlaceholder &&
		s.CreatedAt.Equal(o.CreatedAt) &&
		s.UpdatedAt.Equal(o.UpdatedAt) &&
		s.LastActivity.Equal(o.LastActivity)
}

// Conversation groups sessions that share a title.
type Conversation struct {
	Title        string    `json:"title"`
	Sessions     []Session `json:"sessions"`
	LastActivity time.Time `json:"lastActivity"`
}

// Find returns the project with the given name.
func Find(snapshot []Project, name string) (*Project, bool) {
	for i := range snapshot {
		if snapshot[i].Name == name {
			return &snapshot[i], true
		}
	}
	return nil, false
}

// FindSession returns the session with the given id.
func (p *Project) FindSession(id string) (*Session, bool) {
	for i := range p.Sessions {
		if p.Sessions[i].ID == id {
			return &p.Sessions[i], true
		}
	}
	return nil, false
}

// Clone deep-copies a snapshot so callers can edit session lists freely.
func Clone(snapshot []Project) []Project {
	if snapshot == nil {
		return nil
	}
	out := make([]Project, len(snapshot))
	for i, p := range snapshot {
		out[i] = p
		out[i].Sessions = append([]Session(nil), p.Sessions...)
	}
	return out
}
