// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendKeepsArrivalOrder(t *testing.T) {
	tr := New()
	tr.Load("s1", []Entry{&User{Meta: Meta{SessionID: "s1"}, Text: "old"}})

	tr.Append(&User{Meta: Meta{SessionID: "s1", Pending: true}, Text: "new"})
	tr.Append(&ToolUse{Meta: Meta{SessionID: "s1", Pending: true}, ID: "t1", Name: "Bash"})
	tr.Append(&AssistantText{Meta: Meta{SessionID: "s1", Pending: true}, Text: "working"})
	tr.Append(&ToolResult{Meta: Meta{SessionID: "s1", Pending: true}, ToolUseID: "t1", Content: "ok"})

	entries := tr.Entries()
	require.Len(t, entries, 4, "tool result attaches to its tool use")
	assert.Equal(t, "old", entries[0].(*User).Text)
	assert.Equal(t, "new", entries[1].(*User).Text)
	assert.Equal(t, "ok", entries[2].(*ToolUse).Result.Content)
	assert.Equal(t, "working", entries[3].(*AssistantText).Text)
}

func TestTranscript_Settle(t *testing.T) {
	tr := New()
	tr.Append(
		&User{Meta: Meta{Pending: true}, Text: "q"},
		&ToolUse{Meta: Meta{Pending: true}, ID: "t"},
		&ToolResult{Meta: Meta{Pending: true}, ToolUseID: "t"},
	)
	tr.Settle()

	for _, e := range tr.Entries() {
		assert.False(t, MetaOf(e).Pending)
	}
	assert.False(t, tr.Entries()[1].(*ToolUse).Result.Pending)
}

func TestTranscript_LoadReplaces(t *testing.T) {
	tr := New()
	tr.Append(&User{Text: "a"})
	tr.Load("s2", []Entry{&User{Text: "b"}, &User{Text: "c"}})

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, "s2", tr.SessionID())
}

func TestTranscript_Rebind(t *testing.T) {
	tr := New()
	tr.Append(&User{Meta: Meta{SessionID: "temp-1"}, Text: "hello"})
	tr.Append(&AssistantText{Meta: Meta{SessionID: "abc-real"}, Text: "hi"})

	tr.Rebind("temp-1", "abc-real")
	assert.Equal(t, "abc-real", tr.SessionID())
	for _, e := range tr.Entries() {
		assert.Equal(t, "abc-real", MetaOf(e).SessionID)
	}
}

func TestAssociate_TrailingNewlineTolerant(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{&User{Meta: Meta{Timestamp: ts}, Text: "fix bug\n"}}
	cps := []Checkpoint{{ID: "cp1", Content: "fix bug", Timestamp: ts}}

	assert.Equal(t, 1, Associate(entries, cps, DefaultTolerance))
	assert.Equal(t, "cp1", entries[0].(*User).CheckpointID)
}

func TestAssociate_Tiers(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("exact beats tolerant", func(t *testing.T) {
		entries := []Entry{&User{Meta: Meta{Timestamp: ts}, Text: "go"}}
		cps := []Checkpoint{
			{ID: "near", Content: "go", Timestamp: ts.Add(time.Second)},
			{ID: "exact", Content: "go", Timestamp: ts},
		}
		Associate(entries, cps, DefaultTolerance)
		assert.Equal(t, "exact", entries[0].(*User).CheckpointID)
	})

	t.Run("closest within tolerance", func(t *testing.T) {
		entries := []Entry{&User{Meta: Meta{Timestamp: ts}, Text: "go"}}
		cps := []Checkpoint{
			{ID: "far", Content: "go", Timestamp: ts.Add(4 * time.Second)},
			{ID: "near", Content: "go", Timestamp: ts.Add(-time.Second)},
		}
		Associate(entries, cps, DefaultTolerance)
		assert.Equal(t, "near", entries[0].(*User).CheckpointID)
	})

	t.Run("content only as last resort", func(t *testing.T) {
		entries := []Entry{&User{Meta: Meta{Timestamp: ts}, Text: "go"}}
		cps := []Checkpoint{{ID: "late", Content: "go", Timestamp: ts.Add(time.Hour)}}
		Associate(entries, cps, DefaultTolerance)
		assert.Equal(t, "late", entries[0].(*User).CheckpointID)
	})

	t.Run("each checkpoint used once", func(t *testing.T) {
		entries := []Entry{
			&User{Meta: Meta{Timestamp: ts}, Text: "again"},
			&User{Meta: Meta{Timestamp: ts.Add(time.Minute)}, Text: "again"},
		}
		cps := []Checkpoint{{ID: "only", Content: "again", Timestamp: ts.Add(time.Minute)}}
		assert.Equal(t, 1, Associate(entries, cps, DefaultTolerance))
		assert.Empty(t, entries[0].(*User).CheckpointID)
		assert.Equal(t, "only", entries[1].(*User).CheckpointID)
	})

	t.Run("different content never matches", func(t *testing.T) {
		entries := []Entry{&User{Meta: Meta{Timestamp: ts}, Text: "one"}}
		cps := []Checkpoint{{ID: "x", Content: "two", Timestamp: ts}}
		assert.Zero(t, Associate(entries, cps, DefaultTolerance))
	})
}

func TestContentKey(t *testing.T) {
	long := ""
	for i := 0; i < 150; i++ {
		long += "é"
	}
	assert.Len(t, []rune(ContentKey(long)), KeyLength)
	assert.Equal(t, "fix bug", ContentKey("fix bug\r\n"))

	c := Checkpoint{Content: "fix bug\n", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "fix bug|2026-01-01T00:00:00Z", c.Key())
}
