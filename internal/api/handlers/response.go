// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wingedpig/clauderelay/internal/checkpoint"
	"github.com/wingedpig/clauderelay/internal/claude"
	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

// Response is the standard API response wrapper.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
	Meta  *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains response metadata.
type MetaInfo struct {
	Timestamp time.Time `json:"timestamp"`
}

// Common error codes
const (
	ErrNotFound           = "NOT_FOUND"
	ErrBadRequest         = "BAD_REQUEST"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrConflict           = "CONFLICT"
	ErrConfigurationError = "CONFIGURATION_ERROR"
	ErrProcessError       = "PROCESS_ERROR"
	ErrCheckpointError    = "CHECKPOINT_ERROR"
)

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	resp := Response{
		Data: data,
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	resp := Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteErrorWithDetails writes an error response with details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	resp := Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &MetaInfo{Timestamp: time.Now()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteDomainError maps well-known errors to a status and code.
func WriteDomainError(w http.ResponseWriter, err error) {
	var cfgErr *claude.ConfigurationError
	switch {
	case errors.Is(err, projects.ErrProjectNotFound),
		errors.Is(err, sessionlog.ErrSessionNotFound),
		errors.Is(err, checkpoint.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
	case errors.Is(err, projects.ErrDuplicatePath):
		WriteError(w, http.StatusConflict, ErrConflict, err.Error())
	case errors.Is(err, sessionlog.ErrInvalidProject):
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
	case errors.As(err, &cfgErr):
		WriteError(w, http.StatusServiceUnavailable, ErrConfigurationError, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
	}
}
