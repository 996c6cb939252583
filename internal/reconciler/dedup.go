// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package reconciler

import (
	"log"
	"sync"
)

// DedupCache remembers the ids of recently applied messages. When it grows
// past its size it is trimmed to the most recent half.
type DedupCache struct {
	mu    sync.Mutex
	size  int
	seen  map[string]struct{}
	order []string
}

// NewDedupCache creates a cache holding up to size ids.
func NewDedupCache(size int) *DedupCache {
	if size <= 0 {
		size = DefaultDedupSize
	}
	return &DedupCache{size: size, seen: make(map[string]struct{})}
}

// Seen records id and reports whether it was already recorded. An empty id
// is never a duplicate.
func (c *DedupCache) Seen(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = struct{}{}
	c.order = append(c.order, id)
	if len(c.order) > c.size {
		c.trimLocked()
	}
	return false
}

func (c *DedupCache) trimLocked() {
	drop := len(c.order) - c.size/2
	for _, id := range c.order[:drop] {
		delete(c.seen, id)
	}
	c.order = append([]string(nil), c.order[drop:]...)
}

// Len returns the number of remembered ids.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Deliver applies one inbound message. It returns false when the message
// was already applied. Terminal messages for a session other than the
// in-flight one are ignored.
func (r *Reconciler) Deliver(msg InboundMessage) bool {
	if r.dedup.Seen(msg.ID) {
		return false
	}

	switch msg.Type {
	case MessageSessionCreated:
		if _, err := r.OnIdentityAssigned(msg.SessionID); err != nil {
			log.Printf("reconciler: session-created %s: %v", msg.SessionID, err)
		}
	case MessageComplete, MessageSessionAborted:
		if msg.Type == MessageSessionAborted && !msg.Success {
			break
		}
		if r.IsInflight(msg.SessionID) {
			r.OnConversationTerminal()
		}
	case MessageProjectsUpdated:
		if d := r.ApplyBackgroundSnapshot(msg.Projects); d == DecisionSuppress {
			log.Printf("reconciler: snapshot suppressed while %s is active", r.Selection().SessionID)
		}
	}
	return true
}

// IsInflight reports whether id belongs to the in-flight turn: the id it
// was dispatched with or one the CLI assigned to it. An empty id matches
// any in-flight turn.
func (r *Reconciler) IsInflight(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		return r.dispatched != ""
	}
	if id == r.dispatched {
		return true
	}
	for _, f := range r.inflight {
		if f == id {
			return true
		}
	}
	return false
}
