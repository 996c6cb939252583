// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPlaceholder(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewPlaceholder(now)

	assert.True(t, strings.HasPrefix(id, "temp-1700000000123-"))
	assert.True(t, IsPlaceholder(id))
	assert.True(t, IsTransient(id))
	assert.False(t, IsReal(id))

	other := NewPlaceholder(now)
	assert.NotEqual(t, id, other)
}

func TestNewSessionMarker(t *testing.T) {
	now := time.Now()
	a := NewSessionMarker(now)
	b := NewSessionMarker(now)

	assert.NotEqual(t, a, b)
	assert.True(t, IsNewSessionMarker(a))
	assert.False(t, IsPlaceholder(a))
	assert.True(t, IsTransient(a))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		id        string
		transient bool
	}{
		{"", true},
		{"temp-123", true},
		{"new-session-1", true},
		{ConversationMarker("fix bug"), true},
		{"abc-real", false},
		{"0b1d3c4e-1111-2222-3333-444455556666", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.id))
			assert.Equal(t, !tt.transient, IsReal(tt.id))
		})
	}
}
