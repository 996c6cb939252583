// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package checkpoint records restore points for user messages: a snapshot of
// the project's working tree taken just before the message was sent.
// Restoring one puts the files back and truncates the session log so it
// ends before that message.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wingedpig/clauderelay/internal/transcript"
)

// ErrNotFound is returned for an unknown checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// LogTruncater trims a session log back to a point in time.
type LogTruncater interface {
	TruncateAfter(project, sessionID string, cutoff time.Time) error
}

// Manager keeps one JSON index of checkpoints per project.
type Manager struct {
	dir  string
	git  GitExecutor
	logs LogTruncater
	now  func() time.Time

	mu sync.Mutex
}

// NewManager creates a checkpoint manager storing its indexes in dir.
func NewManager(dir string, git GitExecutor, logs LogTruncater) *Manager {
	return &Manager{dir: dir, git: git, logs: logs, now: time.Now}
}

// CreateRequest describes the message a checkpoint is taken for.
type CreateRequest struct {
	SessionID string    `json:"sessionId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	WorkDir   string    `json:"workDir"`
}

// Create snapshots req.WorkDir and records a checkpoint. A work dir outside
// git yields a checkpoint without a ref; it can still truncate the log.
func (m *Manager) Create(ctx context.Context, project string, req CreateRequest) (transcript.Checkpoint, error) {
	if req.Timestamp.IsZero() {
		req.Timestamp = m.now()
	}
	cp := transcript.Checkpoint{
		ID:        uuid.New().String(),
		Project:   project,
		SessionID: req.SessionID,
		Content:   req.Content,
		Timestamp: req.Timestamp.UTC(),
		WorkDir:   req.WorkDir,
	}

	if req.WorkDir != "" && m.git != nil {
		ref, err := m.git.Snapshot(ctx, req.WorkDir, cp.ID)
		if err != nil {
			return transcript.Checkpoint{}, fmt.Errorf("snapshot work tree: %w", err)
		}
		cp.Ref = ref
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cps, err := m.load(project)
	if err != nil {
		return transcript.Checkpoint{}, err
	}
	cps = append(cps, cp)
	if err := m.save(project, cps); err != nil {
		return transcript.Checkpoint{}, err
	}
	log.Printf("checkpoint: created %s for %s (ref %q)", cp.ID, project, cp.Ref)
	return cp, nil
}

// List returns the checkpoints of project, oldest first.
func (m *Manager) List(project string) ([]transcript.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(project)
}

// Get returns one checkpoint.
func (m *Manager) Get(project, id string) (transcript.Checkpoint, error) {
	cps, err := m.List(project)
	if err != nil {
		return transcript.Checkpoint{}, err
	}
	for _, cp := range cps {
		if cp.ID == id {
			return cp, nil
		}
	}
	return transcript.Checkpoint{}, ErrNotFound
}

// Restore puts the checkpoint's files back and truncates its session's log
// to end before the message. Checkpoints taken after it are dropped.
func (m *Manager) Restore(ctx context.Context, project, id string) (transcript.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cps, err := m.load(project)
	if err != nil {
		return transcript.Checkpoint{}, err
	}
	idx := -1
	for i, cp := range cps {
		if cp.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return transcript.Checkpoint{}, ErrNotFound
	}
	cp := cps[idx]

	if cp.Ref != "" && m.git != nil {
		if err := m.git.Restore(ctx, cp.WorkDir, cp.Ref); err != nil {
			return transcript.Checkpoint{}, err
		}
	}
	if cp.SessionID != "" && m.logs != nil {
		if err := m.logs.TruncateAfter(project, cp.SessionID, cp.Timestamp); err != nil {
			return transcript.Checkpoint{}, fmt.Errorf("truncate session log: %w", err)
		}
	}

	kept := cps[:0]
	for _, other := range cps {
		if other.SessionID == cp.SessionID && other.Timestamp.After(cp.Timestamp) {
			m.forget(ctx, other)
			continue
		}
		kept = append(kept, other)
	}
	if err := m.save(project, kept); err != nil {
		return transcript.Checkpoint{}, err
	}
	log.Printf("checkpoint: restored %s for %s", cp.ID, project)
	return cp, nil
}

// Delete removes one checkpoint.
func (m *Manager) Delete(project, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cps, err := m.load(project)
	if err != nil {
		return err
	}
	for i, cp := range cps {
		if cp.ID == id {
			m.forget(context.Background(), cp)
			return m.save(project, append(cps[:i], cps[i+1:]...))
		}
	}
	return ErrNotFound
}

// DeleteProject removes every checkpoint of project.
func (m *Manager) DeleteProject(project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cps, err := m.load(project)
	if err != nil {
		return err
	}
	for _, cp := range cps {
		m.forget(context.Background(), cp)
	}
	if err := os.Remove(m.indexPath(project)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint index: %w", err)
	}
	return nil
}

func (m *Manager) forget(ctx context.Context, cp transcript.Checkpoint) {
	if cp.Ref == "" || m.git == nil {
		return
	}
	if err := m.git.Forget(ctx, cp.WorkDir, cp.ID); err != nil {
		log.Printf("checkpoint: forget %s: %v", cp.ID, err)
	}
}

func (m *Manager) indexPath(project string) string {
	name := strings.NewReplacer("/", "-", `\`, "-").Replace(project)
	return filepath.Join(m.dir, name+".json")
}

// load reads a project's index. Caller holds mu.
func (m *Manager) load(project string) ([]transcript.Checkpoint, error) {
	data, err := os.ReadFile(m.indexPath(project))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint index: %w", err)
	}
	var cps []transcript.Checkpoint
	if err := json.Unmarshal(data, &cps); err != nil {
		return nil, fmt.Errorf("parse checkpoint index: %w", err)
	}
	sort.SliceStable(cps, func(i, j int) bool { return cps[i].Timestamp.Before(cps[j].Timestamp) })
	return cps, nil
}

// save writes a project's index atomically. Caller holds mu.
func (m *Manager) save(project string, cps []transcript.Checkpoint) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoints dir: %w", err)
	}
	if cps == nil {
		cps = []transcript.Checkpoint{}
	}
	data, err := json.MarshalIndent(cps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoints: %w", err)
	}

	path := m.indexPath(project)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp checkpoint index: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint index: %w", err)
	}
	return nil
}
