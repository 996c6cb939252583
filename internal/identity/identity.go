// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the session identifier conventions shared by the
// server and its clients.
//
// A session is identified either by a real identifier assigned by the claude
// CLI, or by a client-minted placeholder used until the CLI reports the real
// one. Placeholders and the other transient markers are recognizable by prefix.
package identity

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// PlaceholderPrefix marks a client-minted session identifier.
	PlaceholderPrefix = "temp-"

	// NewSessionPrefix marks a dispatch that had no session at all yet.
	NewSessionPrefix = "new-session-"

	// ConversationPrefix marks a protection entry scoped to a conversation
	// (a group of sessions sharing a title) rather than a single session.
	ConversationPrefix = "conversation:"
)

var markerSeq atomic.Uint64

// NewPlaceholder mints a placeholder identifier from the clock and a random suffix.
func NewPlaceholder(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return PlaceholderPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}

// NewSessionMarker returns a marker used to protect a dispatch that has no
// session identifier of its own.
func NewSessionMarker(now time.Time) string {
	n := markerSeq.Add(1)
	return NewSessionPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(n, 10)
}

// ConversationMarker returns the protection key for a conversation title.
func ConversationMarker(title string) string {
	return ConversationPrefix + title
}

// IsPlaceholder reports whether id was minted by a client.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// IsNewSessionMarker reports whether id is a new-session marker.
func IsNewSessionMarker(id string) bool {
	return strings.HasPrefix(id, NewSessionPrefix)
}

// IsTransient reports whether id is anything other than a real identifier.
func IsTransient(id string) bool {
	return id == "" || IsPlaceholder(id) || IsNewSessionMarker(id) || strings.HasPrefix(id, ConversationPrefix)
}

// IsReal reports whether id was assigned by the CLI.
func IsReal(id string) bool {
	return !IsTransient(id)
}
