// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sessionlog reads the claude CLI's per-project session logs.
//
// Each project is a directory under the log root whose name is the encoded
// working directory. Each directory holds append-only .jsonl files; a file
// may contain entries from more than one session.
package sessionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidProject is returned for project names that are not a single
	// directory name.
	ErrInvalidProject = errors.New("invalid project name")

	// ErrSessionNotFound is returned when no log entry carries the session id.
	ErrSessionNotFound = errors.New("session not found")
)

// ParseError describes a log line that could not be decoded.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SessionInfo is the listing metadata of one session.
type SessionInfo struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastActivity time.Time `json:"lastActivity"`
	MessageCount int       `json:"messageCount"`
	CWD          string    `json:"cwd,omitempty"`
}

// Page is one page of a session listing.
type Page struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
	HasMore  bool          `json:"hasMore"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
}

// DefaultSummary is the title of a session with no summary entry and no
// usable user text.
const DefaultSummary = "New Session"

// Message is one log entry.
type Message struct {
	Type          string          `json:"type"`
	UUID          string          `json:"uuid,omitempty"`
	ParentUUID    string          `json:"parentUuid,omitempty"`
	SessionID     string          `json:"sessionId"`
	Timestamp     string          `json:"timestamp,omitempty"`
	CWD           string          `json:"cwd,omitempty"`
	IsMeta        bool            `json:"isMeta,omitempty"`
	IsSidechain   bool            `json:"isSidechain,omitempty"`
	Message       *Body           `json:"message,omitempty"`
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`
}

// Time parses the entry timestamp. Unparseable timestamps yield the zero time.
func (m Message) Time() time.Time {
	return parseTime(m.Timestamp)
}

// Body is the API message carried by user and assistant entries.
type Body struct {
	Role    string  `json:"role"`
	Model   string  `json:"model,omitempty"`
	Content Content `json:"content"`
}

// Content is the block list of a message. The log stores plain user text as
// a bare string; it decodes as a single text block.
type Content []Block

// UnmarshalJSON accepts either a string or an array of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{{Type: "text", Text: s}}
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*c = blocks
	return nil
}

// Block is one content block.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ResultText flattens a tool_result block's content, which is either a
// string or a list of text blocks.
func (b Block) ResultText() string {
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	var parts []Block
	if err := json.Unmarshal(b.Content, &parts); err != nil {
		return string(b.Content)
	}
	out := ""
	for _, p := range parts {
		if p.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
