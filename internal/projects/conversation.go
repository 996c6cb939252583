// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package projects

import (
	"sort"

	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

// GroupConversations merges sessions that share a non-default title into one
// conversation. Untitled sessions stand alone. Conversations and their
// sessions are ordered by last activity, newest first.
func GroupConversations(sessions []Session) []Conversation {
	var convs []Conversation
	index := make(map[string]int)

	for _, s := range sessions {
		title := s.Summary
		groupable := title != "" && title != sessionlog.DefaultSummary
		if i, ok := index[title]; ok && groupable {
			convs[i].Sessions = append(convs[i].Sessions, s)
			if s.LastActivity.After(convs[i].LastActivity) {
				convs[i].LastActivity = s.LastActivity
			}
			continue
		}
		if groupable {
			index[title] = len(convs)
		}
		convs = append(convs, Conversation{
			Title:        title,
			Sessions:     []Session{s},
			LastActivity: s.LastActivity,
		})
	}

	for i := range convs {
		ss := convs[i].Sessions
		sort.SliceStable(ss, func(a, b int) bool { return ss[a].LastActivity.After(ss[b].LastActivity) })
	}
	sort.SliceStable(convs, func(a, b int) bool { return convs[a].LastActivity.After(convs[b].LastActivity) })
	return convs
}
