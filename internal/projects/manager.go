// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package projects

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

// Cleaner removes per-project state owned by another component when a
// project is deleted.
type Cleaner interface {
	DeleteProject(project string) error
}

// Manager builds snapshots and applies project-level changes.
type Manager struct {
	reader   *sessionlog.Reader
	registry *Registry
	cleaners []Cleaner

	snapshotSessions int
}

// NewManager creates a manager. snapshotSessions bounds how many sessions of
// each project a snapshot carries.
func NewManager(reader *sessionlog.Reader, registry *Registry, snapshotSessions int) *Manager {
	if snapshotSessions <= 0 {
		snapshotSessions = 5
	}
	reader.SetOverrides(registry)
	return &Manager{reader: reader, registry: registry, snapshotSessions: snapshotSessions}
}

// AddCleaner registers a component whose state is removed with a project.
func (m *Manager) AddCleaner(c Cleaner) {
	m.cleaners = append(m.cleaners, c)
}

// Snapshot lists every project with its most recent sessions.
//
// Projects come from the log directories, scanned in parallel, followed by
// manually added projects that have no logs yet. At most one project is
// kept per path: a manually added project beats an auto-discovered one,
// otherwise the first seen wins. Auto-discovered projects with no sessions
// are dropped.
func (m *Manager) Snapshot(ctx context.Context) ([]Project, error) {
	dirs, err := m.reader.ProjectDirs()
	if err != nil {
		return nil, fmt.Errorf("list project dirs: %w", err)
	}

	found := make([]Project, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, name := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := m.load(name, m.snapshotSessions)
			if err != nil {
				log.Printf("projects: load %s: %v", name, err)
				return nil
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		onDisk[d] = true
	}
	entries := m.registry.All()
	manual := make([]string, 0, len(entries))
	for name, e := range entries {
		if e.ManuallyAdded && !onDisk[name] {
			manual = append(manual, name)
		}
	}
	sort.Strings(manual)
	for _, name := range manual {
		found = append(found, m.manualOnly(name, entries[name]))
	}

	return dedupe(found), nil
}

// dedupe enforces one project per path and drops empty auto-discovered ones.
func dedupe(found []Project) []Project {
	out := make([]Project, 0, len(found))
	byPath := make(map[string]int)
	for _, p := range found {
		if p.Name == "" {
			continue
		}
		if !p.IsManuallyAdded && len(p.Sessions) == 0 {
			continue
		}
		key := canonicalPath(p.FullPath)
		i, dup := byPath[key]
		if !dup {
			byPath[key] = len(out)
			out = append(out, p)
			continue
		}
		if p.IsManuallyAdded && !out[i].IsManuallyAdded {
			if len(p.Sessions) == 0 {
				p.Sessions, p.SessionMeta = out[i].Sessions, out[i].SessionMeta
			}
			out[i] = p
		}
	}
	return out
}

func canonicalPath(p string) string {
	if p == "" {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// load reads one on-disk project with up to limit sessions.
func (m *Manager) load(name string, limit int) (Project, error) {
	path, err := m.reader.ResolveProjectPath(name)
	if err != nil {
		return Project{}, err
	}
	page, err := m.reader.ListSessions(name, limit, 0)
	if err != nil {
		return Project{}, err
	}

	p := Project{
		Name:        name,
		Path:        path,
		FullPath:    path,
		Sessions:    toSessions(name, page.Sessions),
		SessionMeta: SessionMeta{Total: page.Total, HasMore: page.HasMore},
	}
	m.decorate(&p)
	return p, nil
}

func (m *Manager) manualOnly(name string, e Entry) Project {
	p := Project{
		Name:     name,
		Path:     e.OriginalPath,
		FullPath: e.OriginalPath,
		Sessions: []Session{},
	}
	m.decorate(&p)
	return p
}

// decorate applies registry settings and the display name.
func (m *Manager) decorate(p *Project) {
	e, _ := m.registry.Get(p.Name)
	p.IsManuallyAdded = e.ManuallyAdded
	if e.DisplayName != "" {
		p.DisplayName = e.DisplayName
		p.IsCustomName = true
		return
	}
	p.DisplayName = displayNameFor(p.FullPath)
}

// displayNameFor uses the package.json name when the directory has one,
// otherwise the last path element.
func displayNameFor(path string) string {
	if path == "" {
		return ""
	}
	if data, err := os.ReadFile(filepath.Join(path, "package.json")); err == nil {
		if name := gjson.GetBytes(data, "name").Str; name != "" {
			return name
		}
	}
	return filepath.Base(path)
}

func toSessions(project string, infos []sessionlog.SessionInfo) []Session {
	out := make([]Session, 0, len(infos))
	for _, info := range infos {
		out = append(out, Session{SessionInfo: info, ProjectName: project})
	}
	return out
}

// Project returns a single project with its first page of sessions.
func (m *Manager) Project(name string) (Project, error) {
	if !m.exists(name) {
		return Project{}, ErrProjectNotFound
	}
	if e, ok := m.registry.Get(name); ok && e.ManuallyAdded && !m.onDisk(name) {
		return m.manualOnly(name, e), nil
	}
	return m.load(name, m.snapshotSessions)
}

// Sessions returns a page of a project's sessions.
func (m *Manager) Sessions(name string, limit, offset int) ([]Session, SessionMeta, error) {
	page, err := m.reader.ListSessions(name, limit, offset)
	if err != nil {
		return nil, SessionMeta{}, err
	}
	return toSessions(name, page.Sessions), SessionMeta{Total: page.Total, HasMore: page.HasMore}, nil
}

// ResolvePath returns the working directory of a project.
func (m *Manager) ResolvePath(name string) (string, error) {
	if !m.exists(name) {
		return "", ErrProjectNotFound
	}
	return m.reader.ResolveProjectPath(name)
}

// AddProject registers an existing directory as a project.
func (m *Manager) AddProject(path, displayName string) (Project, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return Project{}, fmt.Errorf("resolve path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Project{}, fmt.Errorf("project path: %w", err)
	}
	if !fi.IsDir() {
		return Project{}, fmt.Errorf("project path %s is not a directory", abs)
	}

	name := sessionlog.EncodeProjectPath(abs)
	key := canonicalPath(abs)
	for other, e := range m.registry.All() {
		if other == name || (e.OriginalPath != "" && canonicalPath(e.OriginalPath) == key) {
			return Project{}, fmt.Errorf("%w: %s", ErrDuplicatePath, abs)
		}
	}

	err = m.registry.Update(name, func(e *Entry) bool {
		e.ManuallyAdded = true
		e.OriginalPath = abs
		e.DisplayName = strings.TrimSpace(displayName)
		return true
	})
	if err != nil {
		return Project{}, err
	}
	m.reader.InvalidateCache()

	if m.onDisk(name) {
		return m.load(name, m.snapshotSessions)
	}
	e, _ := m.registry.Get(name)
	return m.manualOnly(name, e), nil
}

// RenameProject sets a custom display name. An empty name restores the
// inferred one.
func (m *Manager) RenameProject(name, displayName string) error {
	if !m.exists(name) {
		return ErrProjectNotFound
	}
	displayName = strings.TrimSpace(displayName)
	return m.registry.Update(name, func(e *Entry) bool {
		e.DisplayName = displayName
		return true
	})
}

// DeleteProject removes a project's logs, the state of every registered
// cleaner, and its registry entry.
func (m *Manager) DeleteProject(name string) error {
	if !m.exists(name) {
		return ErrProjectNotFound
	}
	if err := m.reader.DeleteProjectLogs(name); err != nil {
		return err
	}
	for _, c := range m.cleaners {
		if err := c.DeleteProject(name); err != nil {
			return fmt.Errorf("delete project state: %w", err)
		}
	}
	return m.registry.Delete(name)
}

func (m *Manager) exists(name string) bool {
	if _, ok := m.registry.Get(name); ok {
		return true
	}
	return m.onDisk(name)
}

func (m *Manager) onDisk(name string) bool {
	dir, err := m.reader.ProjectDir(name)
	if err != nil {
		return false
	}
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}
