// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateAfter(t *testing.T) {
	r, dir := newTestReader(t)
	path := writeLog(t, dir, "a.jsonl", t0,
		entry("user", "s1", "u1", t0, "one"),
		entry("assistant", "s1", "u2", t0.Add(time.Minute), "two"),
		entry("user", "s2", "x1", t0.Add(2*time.Minute), "other"),
		entry("user", "s1", "u3", t0.Add(3*time.Minute), "three"),
	)

	require.NoError(t, r.TruncateAfter("demo", "s1", t0.Add(time.Minute)))

	msgs, err := r.ListMessages("demo", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "u2", msgs[1].UUID)

	other, err := r.ListMessages("demo", "s2")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDeleteSession(t *testing.T) {
	r, dir := newTestReader(t)
	only := writeLog(t, dir, "only.jsonl", t0, entry("user", "s1", "u1", t0, "gone"))
	mixed := writeLog(t, dir, "mixed.jsonl", t0,
		entry("user", "s1", "u2", t0, "gone too"),
		entry("user", "s2", "x1", t0, "stays"),
	)

	require.NoError(t, r.DeleteSession("demo", "s1"))

	_, err := os.Stat(only)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(mixed)
	assert.NoError(t, err)

	msgs, _ := r.ListMessages("demo", "s1")
	assert.Empty(t, msgs)
	msgs, _ = r.ListMessages("demo", "s2")
	assert.Len(t, msgs, 1)

	assert.ErrorIs(t, r.DeleteSession("demo", "s1"), ErrSessionNotFound)
}

func TestDeleteProjectLogs(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, dir, "a.jsonl", t0, entry("user", "s1", "u1", t0, "x"))

	require.NoError(t, r.DeleteProjectLogs("demo"))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, r.DeleteProjectLogs(".."), ErrInvalidProject)
}

func TestProjectDirs(t *testing.T) {
	r, dir := newTestReader(t)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(r.Root(), "-other"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(r.Root(), ".hidden"), 0755))

	dirs, err := r.ProjectDirs()
	require.NoError(t, err)
	assert.Equal(t, []string{"-other", "demo"}, dirs)
}
