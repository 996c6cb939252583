// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wingedpig/clauderelay/internal/events"
	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/internal/sessionlog"
	"github.com/wingedpig/clauderelay/internal/transcript"
)

// SessionLogs reads and edits session logs.
type SessionLogs interface {
	ListMessages(project, sessionID string) ([]sessionlog.Message, error)
	DeleteSession(project, sessionID string) error
}

// SessionHandler handles session API requests.
type SessionHandler struct {
	projects ProjectService
	logs     SessionLogs
	bus      events.Bus
	pageSize int
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc ProjectService, logs SessionLogs, bus events.Bus, pageSize int) *SessionHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &SessionHandler{projects: svc, logs: logs, bus: bus, pageSize: pageSize}
}

// SessionPage is the response of a session listing.
type SessionPage struct {
	Sessions []projects.Session `json:"sessions"`
	Total    int                `json:"total"`
	HasMore  bool               `json:"hasMore"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// List returns a page of a project's sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["project"]
	query := r.URL.Query()

	limit := h.pageSize
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	offset := 0
	if s := query.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	sessions, meta, err := h.projects.Sessions(name, limit, offset)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if sessions == nil {
		sessions = []projects.Session{}
	}
	WriteJSON(w, http.StatusOK, SessionPage{
		Sessions: sessions,
		Total:    meta.Total,
		HasMore:  meta.HasMore,
		Limit:    limit,
		Offset:   offset,
	})
}

// Messages returns the transcript of a session. With format=raw the log
// entries are returned as stored.
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	msgs, err := h.logs.ListMessages(vars["project"], vars["session"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "raw" {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
		return
	}

	data, err := transcript.MarshalEntries(transcript.Convert(msgs))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": vars["session"],
		"entries":   json.RawMessage(data),
	})
}

// Delete removes a session's entries from the project logs.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.logs.DeleteSession(vars["project"], vars["session"]); err != nil {
		WriteDomainError(w, err)
		return
	}
	publish(r.Context(), h.bus, events.SessionDeleted, vars["project"], vars["session"], nil)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Export returns a session transcript as a JSON or YAML document.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, sessionID := vars["project"], vars["session"]

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "yaml" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "format must be 'json' or 'yaml'")
		return
	}

	msgs, err := h.logs.ListMessages(project, sessionID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if len(msgs) == 0 {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}

	src := transcript.Source{Project: project, SessionID: sessionID}
	if path, err := h.projects.ResolvePath(project); err == nil {
		src.ProjectPath = path
	}
	if p, err := h.projects.Project(project); err == nil {
		if s, ok := p.FindSession(sessionID); ok {
			src.Summary = s.Summary
		}
	}
	export := transcript.NewExport(src, transcript.Convert(msgs), time.Now())

	var (
		body        []byte
		contentType string
	)
	if format == "yaml" {
		body, err = export.YAML()
		contentType = "application/yaml"
	} else {
		body, err = json.MarshalIndent(export, "", "  ")
		contentType = "application/json"
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+sessionID+`.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
