// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package reconciler

import (
	"errors"
	"time"

	"github.com/wingedpig/clauderelay/internal/projects"
)

var (
	// ErrNoActiveSession is returned when an operation needs a selected
	// project or an in-flight dispatch and there is none.
	ErrNoActiveSession = errors.New("no active session")

	// ErrIdentityUnresolved describes a placeholder whose dispatch never
	// received an assigned id before the pending timeout.
	ErrIdentityUnresolved = errors.New("placeholder identity was never resolved")
)

// State is the state of the selected conversation slot.
type State int

const (
	StateNone State = iota
	StatePlaceholder
	StatePendingConversion
	StateReal
	StateProtectedReal
)

func (s State) String() string {
	switch s {
	case StatePlaceholder:
		return "placeholder"
	case StatePendingConversion:
		return "pending-conversion"
	case StateReal:
		return "real"
	case StateProtectedReal:
		return "protected-real"
	}
	return "none"
}

// Decision is the outcome of evaluating a background snapshot.
type Decision int

const (
	// DecisionApply replaces the snapshot; nothing in view is protected.
	DecisionApply Decision = iota
	// DecisionApplyAdditive replaces the snapshot; the protected selection
	// is unchanged by it.
	DecisionApplyAdditive
	// DecisionSuppress drops the snapshot for this tick.
	DecisionSuppress
)

func (d Decision) String() string {
	switch d {
	case DecisionApply:
		return "apply"
	case DecisionApplyAdditive:
		return "apply-additive"
	}
	return "suppress"
}

// PlaceholderRecord is the durable record of a placeholder session.
type PlaceholderRecord struct {
	ID                string    `json:"id"`
	Project           string    `json:"project"`
	CreatedAt         time.Time `json:"createdAt"`
	PendingConversion bool      `json:"pendingConversion,omitempty"`
	PendingSince      time.Time `json:"pendingSince,omitempty"`
}

// Store persists placeholder records across client restarts.
type Store interface {
	SavePlaceholder(rec PlaceholderRecord) error
	Placeholder(id string) (PlaceholderRecord, bool, error)
	DeletePlaceholder(id string) error
	Placeholders() ([]PlaceholderRecord, error)
}

// Selection is the project and session in view.
type Selection struct {
	Project   string `json:"project"`
	SessionID string `json:"sessionId,omitempty"`
}

// Substitution reports that a placeholder was replaced by its assigned id.
type Substitution struct {
	Project     string
	Placeholder string
	SessionID   string
	Session     projects.Session
}

// Inbound message types.
const (
	MessageSessionCreated  = "session-created"
	MessageComplete        = "claude-complete"
	MessageSessionAborted  = "session-aborted"
	MessageProjectsUpdated = "projects_updated"
)

// InboundMessage is one message of the ordered stream a client receives.
type InboundMessage struct {
	ID        string
	Type      string
	SessionID string
	Success   bool // session-aborted
	Projects  []projects.Project
}
