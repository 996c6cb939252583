// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/clauderelay/internal/config"
	"github.com/wingedpig/clauderelay/internal/events"
	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/internal/watcher"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Claude.ProjectsDir = filepath.Join(dir, "projects")
	cfg.Claude.Executable = filepath.Join(dir, "no-such-claude")
	cfg.Store.ProjectConfig = filepath.Join(dir, "project-config.json")
	cfg.Store.CheckpointsDir = filepath.Join(dir, "checkpoints")
	cfg.Watch.Debounce = "20ms"
	config.ApplyDefaults(cfg)
	cfg.Server.Port = 0
	return cfg
}

func writeSession(t *testing.T, root, project, session, text string) {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	line := fmt.Sprintf(`{"type":"user","uuid":"u-%s","sessionId":%q,"timestamp":%q,"cwd":"/home/dev/demo","message":{"role":"user","content":%q}}`,
		session, session, time.Now().UTC().Format(time.RFC3339Nano), text)
	require.NoError(t, os.WriteFile(filepath.Join(dir, session+".jsonl"), []byte(line+"\n"), 0o644))
}

func TestInitialize_ServesProjects(t *testing.T) {
	cfg := testConfig(t)
	writeSession(t, cfg.Claude.ProjectsDir, "-home-dev-demo", "abc-real", "fix bug")

	app := NewWithConfig(cfg, "test")
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	srv := httptest.NewServer(app.apiServer.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []projects.Project `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "-home-dev-demo", body.Data[0].Name)
	require.Len(t, body.Data[0].Sessions, 1)
	assert.Equal(t, "fix bug", body.Data[0].Sessions[0].Summary)
}

func TestOnLogsChanged_PublishesSnapshot(t *testing.T) {
	cfg := testConfig(t)
	app := NewWithConfig(cfg, "test")
	require.NoError(t, app.Initialize(context.Background()))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	got := make(chan events.Event, 1)
	_, err := app.eventBus.Subscribe(events.ProjectsUpdated, func(_ context.Context, ev events.Event) {
		got <- ev
	})
	require.NoError(t, err)

	writeSession(t, cfg.Claude.ProjectsDir, "-home-dev-demo", "abc-real", "hello")
	app.onLogsChanged(watcher.Change{Type: watcher.ChangeAdd, Path: "/x/abc-real.jsonl", Count: 1})

	select {
	case ev := <-got:
		snapshot, ok := ev.Payload["projects"].([]projects.Project)
		require.True(t, ok)
		require.Len(t, snapshot, 1)
		assert.Equal(t, "add", ev.Payload["changeType"])
		assert.Equal(t, "/x/abc-real.jsonl", ev.Payload["changedFile"])
	case <-time.After(2 * time.Second):
		t.Fatal("no projects.updated event")
	}
}

func TestStart_WatcherTriggersSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	app := NewWithConfig(cfg, "test")
	require.NoError(t, app.Initialize(context.Background()))
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	got := make(chan events.Event, 4)
	_, err := app.eventBus.Subscribe(events.ProjectsUpdated, func(_ context.Context, ev events.Event) {
		select {
		case got <- ev:
		default:
		}
	})
	require.NoError(t, err)

	writeSession(t, cfg.Claude.ProjectsDir, "-home-dev-demo", "abc-real", "hello")

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not publish a snapshot")
	}
}

func TestNew_AppliesOverrides(t *testing.T) {
	app, err := New(Options{Host: "0.0.0.0", Port: 4000, Debug: true, Version: "v1"})
	require.NoError(t, err)
	t.Cleanup(func() { app.eventBus.Close() })

	assert.Equal(t, "0.0.0.0", app.Config().Server.Host)
	assert.Equal(t, 4000, app.Config().Server.Port)
	assert.True(t, app.Config().Logging.Debug())
}

func TestStop_Idempotent(t *testing.T) {
	app := NewWithConfig(testConfig(t), "test")
	app.Stop()
	app.Stop()
	select {
	case <-app.done:
	default:
		t.Fatal("done not closed")
	}
}
