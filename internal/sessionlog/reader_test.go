// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(typ, session, uuid string, at time.Time, content interface{}) string {
	m := map[string]interface{}{
		"type":      typ,
		"sessionId": session,
		"uuid":      uuid,
		"timestamp": at.Format(time.RFC3339Nano),
		"cwd":       "/work/demo",
	}
	if content != nil {
		role := typ
		m["message"] = map[string]interface{}{"role": role, "content": content}
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func writeLog(t *testing.T, dir, name string, modTime time.Time, lines ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func newTestReader(t *testing.T) (*Reader, string) {
	t.Helper()
	root := t.TempDir()
	return NewReader(root), filepath.Join(root, "demo")
}

func TestListSessions_MissingProject(t *testing.T) {
	r, _ := newTestReader(t)
	page, err := r.ListSessions("demo", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)
	assert.Equal(t, 0, page.Total)
	assert.False(t, page.HasMore)
}

func TestListSessions_DeduplicatesAcrossFiles(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, dir, "a.jsonl", t0.Add(time.Hour),
		entry("user", "s1", "u1", t0, "hello there"),
		entry("assistant", "s1", "u2", t0.Add(time.Minute), []map[string]string{{"type": "text", "text": "hi"}}),
	)
	writeLog(t, dir, "b.jsonl", t0,
		entry("user", "s1", "u3", t0.Add(-time.Hour), "older copy"),
	)

	page, err := r.ListSessions("demo", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Sessions, 1)

	s := page.Sessions[0]
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, "hello there", s.Summary)
	assert.Equal(t, t0.Add(time.Minute), s.LastActivity)
	assert.Equal(t, "/work/demo", s.CWD)
}

func TestListSessions_SortedAndPaged(t *testing.T) {
	r, dir := newTestReader(t)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		at := t0.Add(time.Duration(i) * time.Hour)
		writeLog(t, dir, id+".jsonl", at, entry("user", id, id+"-u", at, "msg "+id))
	}

	page, err := r.ListSessions("demo", 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Sessions, 2)
	assert.Equal(t, "e", page.Sessions[0].ID)
	assert.Equal(t, "d", page.Sessions[1].ID)
	assert.True(t, page.HasMore)

	page, err = r.ListSessions("demo", 2, 4)
	require.NoError(t, err)
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, "a", page.Sessions[0].ID)
	assert.False(t, page.HasMore)
	assert.Equal(t, 5, page.Total)
}

func TestListSessions_Summaries(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, dir, "a.jsonl", t0,
		entry("user", "s1", "u1", t0, "<command-name>/clear</command-name>"),
		entry("user", "s1", "u2", t0.Add(time.Second), strings.Repeat("x", 80)),
		entry("user", "s2", "u3", t0.Add(2*time.Second), "plain"),
		`{"type":"summary","summary":"Fix the login bug","leafUuid":"u3"}`,
		entry("user", "s3", "u4", t0.Add(3*time.Second), "<command-name>/init</command-name>"),
	)

	page, err := r.ListSessions("demo", 10, 0)
	require.NoError(t, err)
	byID := map[string]SessionInfo{}
	for _, s := range page.Sessions {
		byID[s.ID] = s
	}

	assert.Equal(t, strings.Repeat("x", 50)+"...", byID["s1"].Summary)
	assert.Equal(t, "Fix the login bug", byID["s2"].Summary)
	assert.Equal(t, DefaultSummary, byID["s3"].Summary)
}

func TestListSessions_MalformedLinesSkipped(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, dir, "a.jsonl", t0,
		`{"type":"user",`,
		entry("user", "s1", "u1", t0, "ok"),
		`not json at all`,
	)

	page, err := r.ListSessions("demo", 10, 0)
	require.NoError(t, err)
	assert.Len(t, page.Sessions, 1)
	assert.Equal(t, int64(2), r.ParseErrors())
}

func TestListSessions_InvalidProject(t *testing.T) {
	r, _ := newTestReader(t)
	_, err := r.ListSessions("../etc", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidProject)
}

func TestListMessages_RoundTrip(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, dir, "a.jsonl", t0,
		entry("assistant", "s1", "u2", t0.Add(time.Minute), []map[string]string{{"type": "text", "text": "reply"}}),
		entry("user", "s2", "x1", t0, "other session"),
	)
	writeLog(t, dir, "b.jsonl", t0.Add(-time.Hour),
		entry("user", "s1", "u1", t0, "question"),
	)

	page, err := r.ListSessions("demo", 10, 0)
	require.NoError(t, err)
	for _, s := range page.Sessions {
		msgs, err := r.ListMessages("demo", s.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, msgs, s.ID)
	}

	msgs, err := r.ListMessages("demo", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Type)
	require.NotNil(t, msgs[0].Message)
	require.Len(t, msgs[0].Message.Content, 1)
	assert.Equal(t, "question", msgs[0].Message.Content[0].Text)
	assert.Equal(t, "reply", msgs[1].Message.Content[0].Text)
}

func TestListMessages_Placeholder(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, dir, "a.jsonl", t0, entry("user", "temp-123", "u1", t0, "should not be read"))

	msgs, err := r.ListMessages("demo", "temp-123")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestFindSessionByCommand(t *testing.T) {
	root := t.TempDir()
	r := NewReader(root)
	workDir := "/work/demo"
	dir := filepath.Join(root, EncodeProjectPath(workDir))

	now := time.Now()
	writeLog(t, dir, "old.jsonl", now.Add(-time.Hour), entry("user", "old", "u0", now.Add(-time.Hour), "refactor the parser"))
	writeLog(t, dir, "new.jsonl", now, entry("user", "fresh", "u1", now, "refactor the parser"))

	id, ok := r.FindSessionByCommand(workDir, "refactor the parser\n", now.Add(-time.Minute))
	require.True(t, ok)
	assert.Equal(t, "fresh", id)

	_, ok = r.FindSessionByCommand(workDir, "something else", now.Add(-time.Minute))
	assert.False(t, ok)
}

func TestBlock_ResultText(t *testing.T) {
	assert.Equal(t, "plain", Block{Content: json.RawMessage(`"plain"`)}.ResultText())
	assert.Equal(t, "a\nb", Block{Content: json.RawMessage(`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`)}.ResultText())
	assert.Equal(t, "", Block{}.ResultText())
}

func TestIsCommandMarker(t *testing.T) {
	assert.True(t, IsCommandMarker("<command-name>/clear</command-name>"))
	assert.True(t, IsCommandMarker("  <local-command-stdout></local-command-stdout>"))
	assert.False(t, IsCommandMarker("please run <command-name>"))
}
