// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-process event bus that fans server-side
// changes (project snapshots, session lifecycle, checkpoints) out to
// connected clients.
package events

import (
	"context"
	"time"
)

// Event is an immutable record published on the bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Handler processes a received event.
type Handler func(ctx context.Context, event Event)

// SubscriptionID identifies a subscription.
type SubscriptionID string

// Filter selects events from history.
type Filter struct {
	Types     []string  // Patterns, see Match
	Project   string    // Exact project name
	SessionID string    // Exact session id
	Since     time.Time // Events at or after this time
	Limit     int       // Keep only the newest Limit events
}

// Bus is the pub/sub surface used by the rest of the server.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(pattern string, handler Handler) (SubscriptionID, error)
	SubscribeAsync(pattern string, handler Handler, bufferSize int) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID) error
	History(filter Filter) []Event
	Close() error
}

// Event types.
const (
	ProjectsUpdated = "projects.updated"
	ProjectCreated  = "project.created"
	ProjectRenamed  = "project.renamed"
	ProjectDeleted  = "project.deleted"

	SessionCreated   = "session.created"
	SessionCompleted = "session.completed"
	SessionAborted   = "session.aborted"
	SessionDeleted   = "session.deleted"

	CheckpointCreated  = "checkpoint.created"
	CheckpointRestored = "checkpoint.restored"
	CheckpointDeleted  = "checkpoint.deleted"
)
