// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_Basic(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50 * time.Millisecond)
	d.Debounce("key1", func() {
		callCount.Add(1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_MultipleCallsSameKey(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50 * time.Millisecond)
	for i := 0; i < 10; i++ {
		d.Debounce("key1", func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
}

func TestDebouncer_DifferentKeys(t *testing.T) {
	var count1, count2 atomic.Int32

	d := NewDebouncer(50 * time.Millisecond)
	d.Debounce("key1", func() { count1.Add(1) })
	d.Debounce("key2", func() { count2.Add(1) })

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), count1.Load())
	assert.Equal(t, int32(1), count2.Load())
}

func TestDebouncer_Coalesce(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var mu sync.Mutex
	var got []Change
	record := func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}

	// Three events within 50ms yield one notification.
	d.Coalesce("k", Change{Type: ChangeAdd, Path: "/a.jsonl"}, record)
	time.Sleep(10 * time.Millisecond)
	d.Coalesce("k", Change{Type: ChangeModify, Path: "/a.jsonl"}, record)
	time.Sleep(10 * time.Millisecond)
	d.Coalesce("k", Change{Type: ChangeModify, Path: "/b.jsonl"}, record)

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, ChangeModify, got[0].Type)
	assert.Equal(t, "/b.jsonl", got[0].Path)
	assert.Equal(t, 3, got[0].Count)
}

func TestDebouncer_Cancel(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50 * time.Millisecond)
	d.Coalesce("key1", Change{Type: ChangeAdd}, func(Change) { callCount.Add(1) })
	d.Cancel("key1")
	d.Cancel("missing")

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(0), callCount.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50 * time.Millisecond)
	d.Debounce("a", func() { callCount.Add(1) })
	d.Debounce("b", func() { callCount.Add(1) })
	assert.Equal(t, 2, d.Pending())
	d.Stop()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(0), callCount.Load())
}

func TestDebouncer_NonPositiveDuration(t *testing.T) {
	assert.Equal(t, defaultDebounceDuration, NewDebouncer(0).duration)
	assert.Equal(t, defaultDebounceDuration, NewDebouncer(-time.Second).duration)
}
