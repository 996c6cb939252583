// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/wingedpig/clauderelay/internal/events"
	"github.com/wingedpig/clauderelay/internal/projects"
)

// ProjectService is the subset of projects.Manager the handlers use.
type ProjectService interface {
	Snapshot(ctx context.Context) ([]projects.Project, error)
	Project(name string) (projects.Project, error)
	Sessions(name string, limit, offset int) ([]projects.Session, projects.SessionMeta, error)
	ResolvePath(name string) (string, error)
	AddProject(path, displayName string) (projects.Project, error)
	RenameProject(name, displayName string) error
	DeleteProject(name string) error
}

// ProjectHandler handles project API requests.
type ProjectHandler struct {
	projects ProjectService
	bus      events.Bus
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(svc ProjectService, bus events.Bus) *ProjectHandler {
	return &ProjectHandler{projects: svc, bus: bus}
}

// List returns the current project snapshot.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.projects.Snapshot(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if snapshot == nil {
		snapshot = []projects.Project{}
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// Create registers a directory as a project.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path        string `json:"path"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.Path) == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "path is required")
		return
	}

	p, err := h.projects.AddProject(body.Path, body.DisplayName)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	publish(r.Context(), h.bus, events.ProjectCreated, p.Name, "", map[string]interface{}{"path": p.FullPath})
	WriteJSON(w, http.StatusCreated, p)
}

// Rename sets or clears a project's display name.
func (h *ProjectHandler) Rename(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["project"]

	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if err := h.projects.RenameProject(name, body.DisplayName); err != nil {
		WriteDomainError(w, err)
		return
	}

	p, err := h.projects.Project(name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	publish(r.Context(), h.bus, events.ProjectRenamed, name, "", map[string]interface{}{"displayName": p.DisplayName})
	WriteJSON(w, http.StatusOK, p)
}

// Delete removes a project with its logs and checkpoints.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["project"]
	if err := h.projects.DeleteProject(name); err != nil {
		WriteDomainError(w, err)
		return
	}
	publish(r.Context(), h.bus, events.ProjectDeleted, name, "", nil)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// publish emits an event, ignoring a nil or closed bus.
func publish(ctx context.Context, bus events.Bus, typ, project, sessionID string, payload map[string]interface{}) {
	if bus == nil {
		return
	}
	_ = bus.Publish(ctx, events.Event{
		Type:      typ,
		Project:   project,
		SessionID: sessionID,
		Payload:   payload,
	})
}
