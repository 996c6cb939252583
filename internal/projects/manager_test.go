// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package projects

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

type env struct {
	root     string
	reader   *sessionlog.Reader
	registry *Registry
	mgr      *Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "projects")
	require.NoError(t, os.MkdirAll(root, 0755))

	reg, err := OpenRegistry(filepath.Join(base, "project-config.json"))
	require.NoError(t, err)
	reader := sessionlog.NewReader(root)
	return &env{root: root, reader: reader, registry: reg, mgr: NewManager(reader, reg, 5)}
}

func (e *env) addLog(t *testing.T, project, cwd, session string, at time.Time) {
	t.Helper()
	dir := filepath.Join(e.root, project)
	require.NoError(t, os.MkdirAll(dir, 0755))
	line, _ := json.Marshal(map[string]interface{}{
		"type":      "user",
		"sessionId": session,
		"uuid":      session + "-u",
		"cwd":       cwd,
		"timestamp": at.Format(time.RFC3339Nano),
		"message":   map[string]interface{}{"role": "user", "content": "hello " + session},
	})
	f, err := os.OpenFile(filepath.Join(dir, session+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(append(line, '\n'))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestSnapshot_DiscoversProjects(t *testing.T) {
	e := newEnv(t)
	now := time.Now()
	e.addLog(t, "-work-alpha", "/work/alpha", "a1", now)
	e.addLog(t, "-work-alpha", "/work/alpha", "a2", now.Add(time.Second))
	e.addLog(t, "-work-beta", "/work/beta", "b1", now)
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "-work-empty"), 0755))

	snap, err := e.mgr.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 2, "empty auto-discovered project dropped")

	alpha, ok := Find(snap, "-work-alpha")
	require.True(t, ok)
	assert.Equal(t, "/work/alpha", alpha.FullPath)
	assert.Equal(t, "alpha", alpha.DisplayName)
	require.Len(t, alpha.Sessions, 2)
	assert.Equal(t, "a2", alpha.Sessions[0].ID)
	assert.Equal(t, "-work-alpha", alpha.Sessions[0].ProjectName)
	assert.Equal(t, 2, alpha.SessionMeta.Total)
}

func TestSnapshot_ManualBeatsAutoForSamePath(t *testing.T) {
	e := newEnv(t)
	work := t.TempDir()
	e.addLog(t, "auto-name", work, "s1", time.Now())

	added, err := e.mgr.AddProject(work, "Mine")
	require.NoError(t, err)
	assert.True(t, added.IsManuallyAdded)

	snap, err := e.mgr.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, added.Name, snap[0].Name)
	assert.Equal(t, "Mine", snap[0].DisplayName)
	assert.True(t, snap[0].IsCustomName)
	require.Len(t, snap[0].Sessions, 1, "sessions merged from the auto-discovered duplicate")
}

func TestSnapshot_FirstSeenWinsBetweenAutoProjects(t *testing.T) {
	e := newEnv(t)
	now := time.Now()
	e.addLog(t, "a-first", "/same/path", "s1", now)
	e.addLog(t, "b-second", "/same/path", "s2", now)

	snap, err := e.mgr.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "a-first", snap[0].Name)
}

func TestSnapshot_ManualProjectWithoutLogs(t *testing.T) {
	e := newEnv(t)
	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "package.json"), []byte(`{"name":"web-app"}`), 0644))

	p, err := e.mgr.AddProject(work, "")
	require.NoError(t, err)
	assert.Equal(t, "web-app", p.DisplayName)
	assert.False(t, p.IsCustomName)

	snap, err := e.mgr.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Empty(t, snap[0].Sessions)
	assert.True(t, snap[0].IsManuallyAdded)
}

func TestSnapshot_ManualProjectsSortedByName(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"-work-zeta", "-work-alpha", "-work-mid", "-work-beta"} {
		path := "/work/" + name[len("-work-"):]
		require.NoError(t, e.registry.Update(name, func(en *Entry) bool {
			en.ManuallyAdded = true
			en.OriginalPath = path
			return true
		}))
	}

	want := []string{"-work-alpha", "-work-beta", "-work-mid", "-work-zeta"}
	for i := 0; i < 5; i++ {
		snap, err := e.mgr.Snapshot(context.Background())
		require.NoError(t, err)
		var names []string
		for _, p := range snap {
			names = append(names, p.Name)
		}
		require.Equal(t, want, names)
	}
}

func TestAddProject_Errors(t *testing.T) {
	e := newEnv(t)
	_, err := e.mgr.AddProject(filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)

	work := t.TempDir()
	_, err = e.mgr.AddProject(work, "")
	require.NoError(t, err)
	_, err = e.mgr.AddProject(work, "again")
	assert.ErrorIs(t, err, ErrDuplicatePath)
}

func TestRenameProject(t *testing.T) {
	e := newEnv(t)
	e.addLog(t, "-work-alpha", "/work/alpha", "a1", time.Now())

	require.NoError(t, e.mgr.RenameProject("-work-alpha", "Alpha!"))
	p, err := e.mgr.Project("-work-alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha!", p.DisplayName)
	assert.True(t, p.IsCustomName)

	require.NoError(t, e.mgr.RenameProject("-work-alpha", ""))
	p, err = e.mgr.Project("-work-alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.DisplayName)
	_, ok := e.registry.Get("-work-alpha")
	assert.False(t, ok, "empty entry removed")

	assert.ErrorIs(t, e.mgr.RenameProject("nope", "x"), ErrProjectNotFound)
}

type recordingCleaner struct{ deleted []string }

func (c *recordingCleaner) DeleteProject(project string) error {
	c.deleted = append(c.deleted, project)
	return nil
}

func TestDeleteProject(t *testing.T) {
	e := newEnv(t)
	e.addLog(t, "-work-alpha", "/work/alpha", "a1", time.Now())
	require.NoError(t, e.mgr.RenameProject("-work-alpha", "Alpha"))
	cleaner := &recordingCleaner{}
	e.mgr.AddCleaner(cleaner)

	require.NoError(t, e.mgr.DeleteProject("-work-alpha"))

	_, err := os.Stat(filepath.Join(e.root, "-work-alpha"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{"-work-alpha"}, cleaner.deleted)
	_, ok := e.registry.Get("-work-alpha")
	assert.False(t, ok)

	assert.ErrorIs(t, e.mgr.DeleteProject("-work-alpha"), ErrProjectNotFound)
}

func TestRegistry_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "project-config.json")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	require.NoError(t, reg.Update("p", func(e *Entry) bool {
		e.DisplayName = "P"
		e.OriginalPath = "/p"
		return true
	}))

	again, err := OpenRegistry(path)
	require.NoError(t, err)
	e, ok := again.Get("p")
	require.True(t, ok)
	assert.Equal(t, "P", e.DisplayName)

	p, ok := again.PathOverride("p")
	assert.True(t, ok)
	assert.Equal(t, "/p", p)
}
