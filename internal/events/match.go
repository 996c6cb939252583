// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import "strings"

// Match reports whether eventType matches pattern.
//
//	"*"             everything
//	"session.*"     session.created, session.aborted, ...
//	"*.created"     session.created, checkpoint.created, ...
//	"session.aborted" exact
func Match(eventType, pattern string) bool {
	switch {
	case pattern == "" || eventType == "":
		return false
	case pattern == "*" || pattern == eventType:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(eventType, strings.TrimPrefix(pattern, "*"))
	}
	return false
}

func matchAny(eventType string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if Match(eventType, p) {
			return true
		}
	}
	return false
}
