// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"time"
)

// HealthSource reports runtime state for the health endpoint.
type HealthSource interface {
	Running() []string
	ParseErrors() int64
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	version string
	started time.Time
	src     HealthSource
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, src HealthSource) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now(), src: src}
}

// Health reports liveness and a few counters.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if h.src != nil {
		running := h.src.Running()
		if running == nil {
			running = []string{}
		}
		resp["running"] = running
		resp["parseErrors"] = h.src.ParseErrors()
	}
	WriteJSON(w, http.StatusOK, resp)
}
