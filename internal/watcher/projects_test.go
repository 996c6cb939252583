// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *changeRecorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func startWatcher(t *testing.T, root string) (*ProjectsWatcher, *changeRecorder) {
	t.Helper()
	rec := &changeRecorder{}
	w := NewProjectsWatcher(root, nil, 50*time.Millisecond, rec.record)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Close() })
	return w, rec
}

func TestProjectsWatcher_InitialScanIsSilent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "-proj"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "-proj", "s.jsonl"), []byte("{}\n"), 0644))

	w, rec := startWatcher(t, root)
	assert.Contains(t, w.Watched(), filepath.Join(root, "-proj"))

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestProjectsWatcher_BurstYieldsOneChange(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "-proj")
	require.NoError(t, os.MkdirAll(dir, 0755))
	_, rec := startWatcher(t, root)

	path := filepath.Join(dir, "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, _ = f.WriteString("{}\n")
	_, _ = f.WriteString("{}\n")
	f.Close()

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	changes := rec.snapshot()
	require.Len(t, changes, 1)
	assert.Equal(t, path, changes[0].Path)
	assert.GreaterOrEqual(t, changes[0].Count, 2)
}

func TestProjectsWatcher_NewProjectDirectory(t *testing.T) {
	root := t.TempDir()
	w, rec := startWatcher(t, root)

	dir := filepath.Join(root, "-new")
	require.NoError(t, os.MkdirAll(dir, 0755))

	require.Eventually(t, func() bool {
		for _, d := range w.Watched() {
			if d == dir {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 20*time.Millisecond)
	rec.mu.Lock()
	rec.changes = nil
	rec.mu.Unlock()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.jsonl"), []byte("{}\n"), 0644))
	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestProjectsWatcher_MovedInDirectoryReportsItsLog(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "projects")
	require.NoError(t, os.MkdirAll(root, 0755))
	w, rec := startWatcher(t, root)

	staged := filepath.Join(base, "staged")
	require.NoError(t, os.MkdirAll(staged, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staged, "s.jsonl"), []byte("{}\n"), 0644))

	dir := filepath.Join(root, "-moved")
	require.NoError(t, os.Rename(staged, dir))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 20*time.Millisecond)
	changes := rec.snapshot()
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeAdd, changes[0].Type)
	assert.Equal(t, filepath.Join(dir, "s.jsonl"), changes[0].Path)
	assert.Contains(t, w.Watched(), dir)
}

func TestProjectsWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "-proj")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0755))
	w, rec := startWatcher(t, root)

	assert.NotContains(t, w.Watched(), filepath.Join(dir, "node_modules"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x.jsonl"), []byte("x"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestProjectsWatcher_RemoveLog(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "-proj")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
	_, rec := startWatcher(t, root)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, ChangeUnlink, rec.snapshot()[0].Type)
}

func TestProjectsWatcher_CloseIsIdempotent(t *testing.T) {
	w := NewProjectsWatcher(t.TempDir(), nil, 0, nil)
	require.NoError(t, w.Start())
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.Error(t, w.Start())
}
