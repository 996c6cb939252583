// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package claude

import (
	"encoding/json"
	"fmt"
)

// EventKind names a bridge event.
type EventKind string

const (
	EventSessionCreated EventKind = "session-created"
	EventOutput         EventKind = "output"
	EventError          EventKind = "error"
	EventComplete       EventKind = "complete"
	EventAborted        EventKind = "aborted"
)

// Event is delivered to the sink of a Run call. Every invocation ends with
// exactly one terminal event, complete or aborted.
type Event struct {
	Kind EventKind

	// SessionID is the best known id of the session: the assigned id once
	// captured, otherwise the id the invocation was started with.
	SessionID string

	// Replaces is the id the invocation was started with, set on
	// session-created. ReplacesPlaceholder is true when that id was
	// client-minted.
	Replaces            string
	ReplacesPlaceholder bool

	Stream *StreamEvent    // output: parsed JSON line
	Data   json.RawMessage // output: the line as received
	Text   string          // output: non-JSON line; error: stderr line

	ExitCode int   // complete
	Err      error // complete: *ProcessError on non-zero exit
}

// Terminal reports whether e ends the invocation.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventAborted
}

// ProcessError reports a non-zero exit of the CLI.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("claude exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("claude exited with code %d", e.ExitCode)
}
