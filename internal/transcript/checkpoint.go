// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"strings"
	"time"
)

// KeyLength is how much of a message's content identifies its checkpoint.
const KeyLength = 100

// DefaultTolerance is the timestamp tolerance of the second matching tier.
const DefaultTolerance = 5 * time.Second

// Checkpoint is a restore point recorded just before a user message was
// sent.
type Checkpoint struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	SessionID string    `json:"sessionId,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Ref       string    `json:"ref,omitempty"`
	WorkDir   string    `json:"workDir,omitempty"`
}

// Key identifies a checkpoint in a client registry: the content key and the
// timestamp.
func (c Checkpoint) Key() string {
	return ContentKey(c.Content) + "|" + c.Timestamp.UTC().Format(time.RFC3339Nano)
}

// ContentKey normalizes message content for matching. The log keeps the
// trailing newline the CLI receives on stdin; it is trimmed before the
// content is truncated to KeyLength runes.
func ContentKey(content string) string {
	content = strings.TrimRight(content, "\r\n")
	if r := []rune(content); len(r) > KeyLength {
		content = string(r[:KeyLength])
	}
	return content
}

// Associate attaches checkpoints to the user entries they were recorded for,
// setting CheckpointID. Matching is tiered: an equal timestamp first, then a
// timestamp within tolerance (closest wins), then content alone. A tier is
// tried for every entry before the next tier starts, and each checkpoint is
// used at most once. It returns the number of entries matched.
func Associate(entries []Entry, checkpoints []Checkpoint, tolerance time.Duration) int {
	var users []*User
	for _, e := range entries {
		if u, ok := e.(*User); ok {
			u.CheckpointID = ""
			users = append(users, u)
		}
	}
	if len(users) == 0 || len(checkpoints) == 0 {
		return 0
	}

	keys := make([]string, len(checkpoints))
	for i, c := range checkpoints {
		keys[i] = ContentKey(c.Content)
	}
	used := make([]bool, len(checkpoints))
	matched := 0

	tiers := []func(u *User, c Checkpoint) (time.Duration, bool){
		func(u *User, c Checkpoint) (time.Duration, bool) {
			return 0, u.Timestamp.Equal(c.Timestamp)
		},
		func(u *User, c Checkpoint) (time.Duration, bool) {
			d := absDuration(u.Timestamp.Sub(c.Timestamp))
			return d, d <= tolerance
		},
		func(u *User, c Checkpoint) (time.Duration, bool) {
			return absDuration(u.Timestamp.Sub(c.Timestamp)), true
		},
	}

	for _, match := range tiers {
		for _, u := range users {
			if u.CheckpointID != "" {
				continue
			}
			key := ContentKey(u.Text)
			best := -1
			var bestDist time.Duration
			for i, c := range checkpoints {
				if used[i] || keys[i] != key {
					continue
				}
				dist, ok := match(u, c)
				if ok && (best < 0 || dist < bestDist) {
					best, bestDist = i, dist
				}
			}
			if best >= 0 {
				used[best] = true
				u.CheckpointID = checkpoints[best].ID
				matched++
			}
		}
	}
	return matched
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
