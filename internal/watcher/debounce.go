// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher detects changes to the session log tree and reports them
// after bursts have settled.
package watcher

import (
	"sync"
	"time"
)

const defaultDebounceDuration = 300 * time.Millisecond

// Debouncer delays a call until no new call for the same key has arrived
// for the configured duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timers   map[string]*time.Timer
	changes  map[string]Change // accumulated by Coalesce
}

// NewDebouncer creates a debouncer. Non-positive durations use the default.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = defaultDebounceDuration
	}
	return &Debouncer{
		duration: duration,
		timers:   make(map[string]*time.Timer),
		changes:  make(map[string]Change),
	}
}

// Debounce schedules fn after the debounce duration, replacing any call
// still pending for key.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.timers[key] != timer {
			// Superseded between firing and locking.
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = timer
}

// Coalesce records c against key and calls fn once the burst settles. fn
// receives the last change of the burst with Count set to the number of
// changes it absorbed.
func (d *Debouncer) Coalesce(key string, c Change, fn func(Change)) {
	d.mu.Lock()
	acc := d.changes[key]
	c.Count = acc.Count + 1
	d.changes[key] = c
	d.mu.Unlock()

	d.Debounce(key, func() {
		d.mu.Lock()
		last := d.changes[key]
		delete(d.changes, key)
		d.mu.Unlock()
		fn(last)
	})
}

// Cancel drops a pending call for key.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
		delete(d.timers, key)
	}
	delete(d.changes, key)
}

// Stop drops every pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
	d.changes = make(map[string]Change)
}

// Pending returns the number of keys with a scheduled call.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
