// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package claude

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// StreamEvent is a parsed line of `claude --output-format stream-json`.
type StreamEvent struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
	Cost      float64         `json:"total_cost_usd,omitempty"`
	CWD       string          `json:"cwd,omitempty"`
	Model     string          `json:"model,omitempty"`
}

// sessionIDPaths are the fields a session id has been reported under.
var sessionIDPaths = []string{"session_id", "sessionId", "sessionID", "session.id"}

// ParseLine decodes one stdout line. ok is false when the line is not a JSON
// object; such lines are forwarded as raw text rather than dropped.
func ParseLine(line []byte) (ev StreamEvent, ok bool) {
	if !gjson.ValidBytes(line) || !gjson.ParseBytes(line).IsObject() {
		return StreamEvent{}, false
	}
	if err := json.Unmarshal(line, &ev); err != nil {
		return StreamEvent{}, false
	}
	ev.SessionID = SessionIDOf(line)
	return ev, true
}

// SessionIDOf returns the session id carried by a JSON line under any of
// the accepted aliases.
func SessionIDOf(line []byte) string {
	for _, r := range gjson.GetManyBytes(line, sessionIDPaths...) {
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
