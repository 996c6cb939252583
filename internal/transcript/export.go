// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportSchema is the schema identifier for the export format.
const ExportSchema = "clauderelay.transcript.v1"

// Export is the downloadable form of a session transcript.
type Export struct {
	Schema     string    `json:"schema"`
	ExportedAt time.Time `json:"exported_at"`
	Source     Source    `json:"source"`
	Entries    []Entry   `json:"-"`
	Stats      Stats     `json:"stats"`
}

// Source holds metadata about where the transcript came from.
type Source struct {
	Project     string `json:"project"`
	SessionID   string `json:"session_id"`
	ProjectPath string `json:"project_path,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// Stats holds statistics about the transcript.
type Stats struct {
	EntryCount     int `json:"entry_count"`
	UserTurns      int `json:"user_turns"`
	AssistantTurns int `json:"assistant_turns"`
	ToolUses       int `json:"tool_uses"`
	Errors         int `json:"errors"`
}

// NewExport builds an export of entries.
func NewExport(src Source, entries []Entry, now time.Time) *Export {
	return &Export{
		Schema:     ExportSchema,
		ExportedAt: now.UTC(),
		Source:     src,
		Entries:    entries,
		Stats:      ComputeStats(entries),
	}
}

// ComputeStats counts entries by kind.
func ComputeStats(entries []Entry) Stats {
	var s Stats
	s.EntryCount = len(entries)
	for _, e := range entries {
		switch e.Kind() {
		case KindUser:
			s.UserTurns++
		case KindAssistantText:
			s.AssistantTurns++
		case KindToolUse, KindInteractivePrompt:
			s.ToolUses++
		case KindError:
			s.Errors++
		}
	}
	return s
}

// MarshalJSON encodes the export with its tagged entries.
func (x *Export) MarshalJSON() ([]byte, error) {
	entries, err := MarshalEntries(x.Entries)
	if err != nil {
		return nil, err
	}
	type alias Export
	return json.Marshal(struct {
		*alias
		Entries json.RawMessage `json:"entries"`
	}{(*alias)(x), entries})
}

// YAML encodes the export as YAML with the same field names as the JSON form.
func (x *Export) YAML() ([]byte, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("convert export: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return out, nil
}
