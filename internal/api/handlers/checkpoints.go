// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wingedpig/clauderelay/internal/checkpoint"
	"github.com/wingedpig/clauderelay/internal/events"
	"github.com/wingedpig/clauderelay/internal/transcript"
)

// CheckpointService is the subset of checkpoint.Manager the handlers use.
type CheckpointService interface {
	Create(ctx context.Context, project string, req checkpoint.CreateRequest) (transcript.Checkpoint, error)
	List(project string) ([]transcript.Checkpoint, error)
	Restore(ctx context.Context, project, id string) (transcript.Checkpoint, error)
	Delete(project, id string) error
}

// CheckpointHandler handles checkpoint API requests.
type CheckpointHandler struct {
	checkpoints CheckpointService
	projects    ProjectService
	bus         events.Bus
}

// NewCheckpointHandler creates a new checkpoint handler.
func NewCheckpointHandler(svc CheckpointService, projects ProjectService, bus events.Bus) *CheckpointHandler {
	return &CheckpointHandler{checkpoints: svc, projects: projects, bus: bus}
}

// List returns a project's checkpoints, oldest first.
func (h *CheckpointHandler) List(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	cps, err := h.checkpoints.List(project)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if cps == nil {
		cps = []transcript.Checkpoint{}
	}
	WriteJSON(w, http.StatusOK, cps)
}

// Create records a checkpoint for a user message. The working directory
// defaults to the project's resolved path.
func (h *CheckpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	var req checkpoint.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if req.Content == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "content is required")
		return
	}
	if req.WorkDir == "" {
		path, err := h.projects.ResolvePath(project)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		req.WorkDir = path
	}

	cp, err := h.checkpoints.Create(r.Context(), project, req)
	if err != nil {
		WriteErrorWithDetails(w, http.StatusInternalServerError, ErrCheckpointError, err.Error(),
			map[string]interface{}{"workDir": req.WorkDir})
		return
	}
	publish(r.Context(), h.bus, events.CheckpointCreated, project, cp.SessionID, map[string]interface{}{"id": cp.ID})
	WriteJSON(w, http.StatusCreated, cp)
}

// Restore puts a checkpoint's files back and truncates its session log.
func (h *CheckpointHandler) Restore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cp, err := h.checkpoints.Restore(r.Context(), vars["project"], vars["id"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	publish(r.Context(), h.bus, events.CheckpointRestored, cp.Project, cp.SessionID, map[string]interface{}{"id": cp.ID})
	WriteJSON(w, http.StatusOK, cp)
}

// Delete removes a checkpoint.
func (h *CheckpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.checkpoints.Delete(vars["project"], vars["id"]); err != nil {
		WriteDomainError(w, err)
		return
	}
	publish(r.Context(), h.bus, events.CheckpointDeleted, vars["project"], "", map[string]interface{}{"id": vars["id"]})
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
