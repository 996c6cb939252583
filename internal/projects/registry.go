// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package projects

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entry is the registry record of one project.
type Entry struct {
	DisplayName   string `json:"displayName,omitempty"`
	ManuallyAdded bool   `json:"manuallyAdded,omitempty"`
	OriginalPath  string `json:"originalPath,omitempty"`
}

// Registry persists per-project settings in a JSON file keyed by project name.
type Registry struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
}

// OpenRegistry loads the registry file. A missing file is an empty registry.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read project config: %w", err)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r.entries); err != nil {
		return nil, fmt.Errorf("parse project config: %w", err)
	}
	return r, nil
}

// Get returns the entry for a project.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// All returns a copy of every entry.
func (r *Registry) All() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// PathOverride implements sessionlog.PathOverrides.
func (r *Registry) PathOverride(project string) (string, bool) {
	e, ok := r.Get(project)
	if !ok || e.OriginalPath == "" {
		return "", false
	}
	return e.OriginalPath, true
}

// Update applies fn to the named entry and saves. Returning false from fn
// deletes the entry.
func (r *Registry) Update(name string, fn func(e *Entry) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[name]
	if fn(&e) && e != (Entry{}) {
		r.entries[name] = e
	} else {
		delete(r.entries, name)
	}
	return r.save()
}

// Delete removes an entry and saves.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return nil
	}
	delete(r.entries, name)
	return r.save()
}

// save writes the registry atomically. Caller holds mu.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create project config dir: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp project config: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename project config: %w", err)
	}
	return nil
}
