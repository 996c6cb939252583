// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
	"time"
)

// History keeps recently published events, bounded by count and age.
type History struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
	maxAge    time.Duration
	now       func() time.Time
}

// NewHistory creates a history buffer. Non-positive limits get defaults.
func NewHistory(maxEvents int, maxAge time.Duration) *History {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &History{maxEvents: maxEvents, maxAge: maxAge, now: time.Now}
}

// Add appends an event, dropping the oldest beyond the count limit.
func (h *History) Add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if over := len(h.events) - h.maxEvents; over > 0 {
		h.events = append(h.events[:0:0], h.events[over:]...)
	}
}

// Query returns matching events oldest first. Events are stored in publish
// order so no sort is needed.
func (h *History) Query(f Filter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, 0)
	for _, e := range h.events {
		if !matchAny(e.Type, f.Types) {
			continue
		}
		if f.Project != "" && e.Project != f.Project {
			continue
		}
		if f.SessionID != "" && e.SessionID != f.SessionID {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Prune drops events older than the age limit.
func (h *History) Prune() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-h.maxAge)
	i := 0
	for i < len(h.events) && h.events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.events = append(h.events[:0:0], h.events[i:]...)
	}
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
