// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wingedpig/clauderelay/internal/claude"
	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

// interactiveTools are tool uses rendered as prompts to the user. The value
// is the input field holding the prompt text.
var interactiveTools = map[string]string{
	"AskUserQuestion": "questions.0.question",
	"ExitPlanMode":    "plan",
}

// Convert turns log messages into a transcript. The first pass indexes tool
// results by the id of the tool use they answer; the second emits entries in
// log order, attaching each result to its tool use. Command markers and meta
// entries are not part of the visible transcript.
func Convert(messages []sessionlog.Message) []Entry {
	results := make(map[string]*ToolResult)
	uses := make(map[string]bool)
	for _, m := range messages {
		if m.Message == nil {
			continue
		}
		for _, b := range m.Message.Content {
			switch b.Type {
			case "tool_result":
				results[b.ToolUseID] = &ToolResult{
					Meta:      Meta{Timestamp: m.Time(), SessionID: m.SessionID},
					ToolUseID: b.ToolUseID,
					Content:   b.ResultText(),
					IsError:   b.IsError,
				}
			case "tool_use":
				uses[b.ID] = true
			}
		}
	}

	var out []Entry
	for _, m := range messages {
		if m.Message == nil || m.IsMeta {
			continue
		}
		meta := Meta{Timestamp: m.Time(), SessionID: m.SessionID}

		switch m.Type {
		case "user":
			for _, b := range m.Message.Content {
				switch b.Type {
				case "text":
					if strings.TrimSpace(b.Text) == "" || sessionlog.IsCommandMarker(b.Text) {
						continue
					}
					out = append(out, &User{Meta: meta, Text: b.Text})
				case "tool_result":
					if !uses[b.ToolUseID] {
						out = append(out, results[b.ToolUseID])
					}
				}
			}
		case "assistant":
			out = append(out, assistantEntries(meta, m.Message, results)...)
		case "system":
			for _, b := range m.Message.Content {
				if b.Type == "text" && b.Text != "" {
					out = append(out, &System{Meta: meta, Text: b.Text})
				}
			}
		}
	}
	return out
}

func assistantEntries(meta Meta, body *sessionlog.Body, results map[string]*ToolResult) []Entry {
	var out []Entry
	for _, b := range body.Content {
		switch b.Type {
		case "text":
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			out = append(out, &AssistantText{Meta: meta, Text: b.Text, Model: body.Model})
		case "tool_use":
			out = append(out, toolUseEntry(meta, b, results[b.ID]))
		}
	}
	return out
}

func toolUseEntry(meta Meta, b sessionlog.Block, result *ToolResult) Entry {
	if path, ok := interactiveTools[b.Name]; ok {
		p := &InteractivePrompt{
			Meta:      meta,
			ToolUseID: b.ID,
			Name:      b.Name,
			Prompt:    gjson.GetBytes(b.Input, path).String(),
		}
		if result != nil {
			p.Answer = result.Content
		}
		return p
	}
	return &ToolUse{Meta: meta, ID: b.ID, Name: b.Name, Input: b.Input, Result: result}
}

// FromStream converts one parsed line of live CLI output. Entries are
// marked pending until the turn is settled.
func FromStream(ev claude.StreamEvent, sessionID string, now time.Time) []Entry {
	if ev.SessionID != "" {
		sessionID = ev.SessionID
	}
	meta := Meta{Timestamp: now, SessionID: sessionID, Pending: true}

	switch ev.Type {
	case "assistant", "user":
		var body sessionlog.Body
		if len(ev.Message) == 0 || json.Unmarshal(ev.Message, &body) != nil {
			return nil
		}
		if ev.Type == "assistant" {
			return assistantEntries(meta, &body, nil)
		}
		var out []Entry
		for _, b := range body.Content {
			if b.Type == "tool_result" {
				out = append(out, &ToolResult{Meta: meta, ToolUseID: b.ToolUseID, Content: b.ResultText(), IsError: b.IsError})
			}
		}
		return out
	case "system":
		if ev.Subtype == "init" {
			text := "Session started"
			if ev.Model != "" {
				text += " (" + ev.Model + ")"
			}
			return []Entry{&System{Meta: meta, Subtype: ev.Subtype, Text: text}}
		}
	case "result":
		if ev.IsError {
			msg := ev.Result
			if msg == "" {
				msg = strings.Join(ev.Errors, "; ")
			}
			return []Entry{&Error{Meta: meta, Message: msg}}
		}
	}
	return nil
}

// FromEvent converts a bridge event into entries for the live transcript.
func FromEvent(e claude.Event, now time.Time) []Entry {
	meta := Meta{Timestamp: now, SessionID: e.SessionID, Pending: true}
	switch e.Kind {
	case claude.EventOutput:
		if e.Stream != nil {
			return FromStream(*e.Stream, e.SessionID, now)
		}
		if e.Text != "" {
			return []Entry{&AssistantText{Meta: meta, Text: e.Text}}
		}
	case claude.EventError:
		return []Entry{&Error{Meta: meta, Message: e.Text}}
	case claude.EventComplete:
		if e.Err != nil {
			return []Entry{&Error{Meta: meta, Message: e.Err.Error(), ExitCode: e.ExitCode}}
		}
	case claude.EventAborted:
		return []Entry{&System{Meta: meta, Subtype: "aborted", Text: "Session aborted"}}
	}
	return nil
}
