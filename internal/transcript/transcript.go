// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"sync"
)

// Transcript is the transcript in view. Live entries are appended in arrival
// order; history replaces the contents only when the view switches session.
type Transcript struct {
	mu        sync.Mutex
	sessionID string
	entries   []Entry
	tools     map[string]Entry
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{tools: make(map[string]Entry)}
}

// Load replaces the contents with entries loaded for sessionID.
func (t *Transcript) Load(sessionID string, entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = sessionID
	t.entries = nil
	t.tools = make(map[string]Entry)
	for _, e := range entries {
		t.appendLocked(e)
	}
}

// Append adds live entries. A tool result whose tool use is already in the
// transcript is attached to it instead of being appended.
func (t *Transcript) Append(entries ...Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.appendLocked(e)
	}
}

func (t *Transcript) appendLocked(e Entry) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *ToolUse:
		t.tools[v.ID] = v
	case *InteractivePrompt:
		t.tools[v.ToolUseID] = v
	case *ToolResult:
		switch use := t.tools[v.ToolUseID].(type) {
		case *ToolUse:
			use.Result = v
			return
		case *InteractivePrompt:
			use.Answer = v.Content
			return
		}
	}
	if t.sessionID == "" {
		t.sessionID = e.meta().SessionID
	}
	t.entries = append(t.entries, e)
}

// Settle marks every pending entry as persisted.
func (t *Transcript) Settle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.meta().Pending = false
		if use, ok := e.(*ToolUse); ok && use.Result != nil {
			use.Result.Pending = false
		}
	}
}

// Rebind moves entries recorded under oldID to newID. It is used when a
// placeholder session is replaced by its assigned id.
func (t *Transcript) Rebind(oldID, newID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID == oldID {
		t.sessionID = newID
	}
	for _, e := range t.entries {
		if m := e.meta(); m.SessionID == oldID || m.SessionID == "" {
			m.SessionID = newID
		}
	}
}

// SessionID returns the session the transcript shows.
func (t *Transcript) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Entries returns a copy of the entry list.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
