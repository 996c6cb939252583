// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transcript turns session log messages and live CLI output into the
// ordered chat transcript a client renders.
package transcript

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Kind is the discriminator of a transcript entry.
type Kind string

const (
	KindUser              Kind = "user"
	KindAssistantText     Kind = "assistant"
	KindToolUse           Kind = "tool_use"
	KindToolResult        Kind = "tool_result"
	KindInteractivePrompt Kind = "interactive_prompt"
	KindSystem            Kind = "system"
	KindError             Kind = "error"
)

// Meta is carried by every entry.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	Pending   bool      `json:"isPending,omitempty"`
}

func (m *Meta) meta() *Meta { return m }

// Entry is one transcript entry. The set of implementations is closed:
// *User, *AssistantText, *ToolUse, *ToolResult, *InteractivePrompt, *System
// and *Error.
type Entry interface {
	Kind() Kind
	meta() *Meta
}

// MetaOf returns the common fields of e.
func MetaOf(e Entry) Meta { return *e.meta() }

// User is text the user sent.
type User struct {
	Meta
	Text         string `json:"text"`
	CheckpointID string `json:"checkpointId,omitempty"`
}

// AssistantText is prose from the assistant.
type AssistantText struct {
	Meta
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// ToolUse is a tool invocation, with its result once known.
type ToolUse struct {
	Meta
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Result *ToolResult     `json:"result,omitempty"`
}

// ToolResult is the output of a tool. It stands alone in a transcript only
// when its tool use is not part of it.
type ToolResult struct {
	Meta
	ToolUseID string `json:"toolUseId"`
	Content   string `json:"content"`
	IsError   bool   `json:"isError,omitempty"`
}

// InteractivePrompt is a tool use that asks the user something, such as a
// clarifying question or plan approval.
type InteractivePrompt struct {
	Meta
	ToolUseID string `json:"toolUseId"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Answer    string `json:"answer,omitempty"`
}

// System is a status line produced by the system rather than either party.
type System struct {
	Meta
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text"`
}

// Error is a failure surfaced inline.
type Error struct {
	Meta
	Message  string `json:"message"`
	ExitCode int    `json:"exitCode,omitempty"`
}

func (*User) Kind() Kind              { return KindUser }
func (*AssistantText) Kind() Kind     { return KindAssistantText }
func (*ToolUse) Kind() Kind           { return KindToolUse }
func (*ToolResult) Kind() Kind        { return KindToolResult }
func (*InteractivePrompt) Kind() Kind { return KindInteractivePrompt }
func (*System) Kind() Kind            { return KindSystem }
func (*Error) Kind() Kind             { return KindError }

// MarshalEntries encodes entries as a JSON array whose elements carry a
// "type" discriminator.
func MarshalEntries(entries []Entry) ([]byte, error) {
	out := []byte{'['}
	for i, e := range entries {
		if i > 0 {
			out = append(out, ',')
		}
		b, err := marshalEntry(e)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return append(out, ']'), nil
}

func marshalEntry(e Entry) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s entry: %w", e.Kind(), err)
	}
	out := []byte(`{"type":"` + string(e.Kind()) + `"`)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
		return out, nil
	}
	return append(out, '}'), nil
}

// UnmarshalEntries decodes the output of MarshalEntries.
func UnmarshalEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid transcript JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("transcript JSON is not an array")
	}

	var entries []Entry
	var err error
	root.ForEach(func(_, v gjson.Result) bool {
		var e Entry
		e, err = newEntry(Kind(v.Get("type").String()))
		if err != nil {
			return false
		}
		if err = json.Unmarshal([]byte(v.Raw), e); err != nil {
			err = fmt.Errorf("decode %s entry: %w", e.Kind(), err)
			return false
		}
		entries = append(entries, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func newEntry(k Kind) (Entry, error) {
	switch k {
	case KindUser:
		return &User{}, nil
	case KindAssistantText:
		return &AssistantText{}, nil
	case KindToolUse:
		return &ToolUse{}, nil
	case KindToolResult:
		return &ToolResult{}, nil
	case KindInteractivePrompt:
		return &InteractivePrompt{}, nil
	case KindSystem:
		return &System{}, nil
	case KindError:
		return &Error{}, nil
	}
	return nil, fmt.Errorf("unknown entry type %q", k)
}
