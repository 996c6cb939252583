// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		want      bool
	}{
		{"session.created", "session.created", true},
		{"session.created", "*", true},
		{"session.created", "session.*", true},
		{"sessions.created", "session.*", false},
		{"checkpoint.created", "*.created", true},
		{"checkpoint.restored", "*.created", false},
		{"session.created", "", false},
		{"", "*", false},
	}
	for _, tt := range tests {
		t.Run(tt.eventType+"/"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.eventType, tt.pattern))
		})
	}
}

func TestMemoryBus_SyncDelivery(t *testing.T) {
	bus := NewMemoryBus(10, time.Hour)
	defer bus.Close()

	var got []Event
	_, err := bus.Subscribe("session.*", func(ctx context.Context, e Event) {
		got = append(got, e)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: SessionCreated, SessionID: "abc"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: ProjectsUpdated}))

	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].SessionID)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestMemoryBus_AsyncDelivery(t *testing.T) {
	bus := NewMemoryBus(10, time.Hour)
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	_, err := bus.SubscribeAsync("*", func(ctx context.Context, e Event) { wg.Done() }, 4)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: CheckpointCreated}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: CheckpointRestored}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler not called")
	}
}

func TestMemoryBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewMemoryBus(10, time.Hour)
	defer bus.Close()

	called := false
	_, _ = bus.Subscribe("*", func(ctx context.Context, e Event) { panic("boom") })
	_, _ = bus.Subscribe("*", func(ctx context.Context, e Event) { called = true })

	assert.NoError(t, bus.Publish(context.Background(), Event{Type: SessionAborted}))
	assert.True(t, called)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(10, time.Hour)
	defer bus.Close()

	count := 0
	id, err := bus.Subscribe("*", func(ctx context.Context, e Event) { count++ })
	require.NoError(t, err)

	require.NoError(t, bus.Unsubscribe(id))
	assert.ErrorIs(t, bus.Unsubscribe(id), ErrSubscriptionNotFound)

	_ = bus.Publish(context.Background(), Event{Type: SessionCreated})
	assert.Equal(t, 0, count)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(10, time.Hour)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Type: SessionCreated}), ErrBusClosed)
	_, err := bus.Subscribe("*", func(context.Context, Event) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestHistory_QueryAndLimits(t *testing.T) {
	h := NewHistory(3, time.Hour)
	base := time.Now()
	for i, typ := range []string{SessionCreated, ProjectsUpdated, SessionCompleted, SessionAborted} {
		h.Add(Event{Type: typ, Project: "demo", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	assert.Equal(t, 3, h.Len())

	all := h.Query(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, ProjectsUpdated, all[0].Type)

	sessions := h.Query(Filter{Types: []string{"session.*"}})
	assert.Len(t, sessions, 2)

	last := h.Query(Filter{Limit: 1})
	require.Len(t, last, 1)
	assert.Equal(t, SessionAborted, last[0].Type)

	assert.Empty(t, h.Query(Filter{Project: "other"}))
	assert.Len(t, h.Query(Filter{Since: base.Add(2 * time.Second)}), 2)
}

func TestHistory_Prune(t *testing.T) {
	h := NewHistory(10, time.Minute)
	now := time.Now()
	h.now = func() time.Time { return now }

	h.Add(Event{Type: SessionCreated, Timestamp: now.Add(-2 * time.Minute)})
	h.Add(Event{Type: SessionCompleted, Timestamp: now.Add(-10 * time.Second)})

	h.Prune()
	events := h.Query(Filter{})
	require.Len(t, events, 1)
	assert.Equal(t, SessionCompleted, events[0].Type)
}
