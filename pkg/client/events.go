// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient provides access to the server's event history.
//
// Events record project changes, session lifecycle and checkpoint activity.
//
//	events, err := c.Events.List(ctx, &client.ListOptions{Types: []string{"session.*"}})
type EventClient struct {
	c *Client
}

// ListOptions configures event listing.
type ListOptions struct {
	// Limit keeps only the newest Limit events.
	Limit int

	// Types filters to these event types. Patterns like "session.*" match
	// every type with that prefix.
	Types []string

	// Project filters to events about this project.
	Project string

	// SessionID filters to events about this session.
	SessionID string

	// Since filters to events at or after this time.
	Since time.Time
}

// List returns recent events, oldest first.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	path := "/api/v1/events"

	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		for _, t := range opts.Types {
			params.Add("type", t)
		}
		if opts.Project != "" {
			params.Set("project", opts.Project)
		}
		if opts.SessionID != "" {
			params.Set("session", opts.SessionID)
		}
		if !opts.Since.IsZero() {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return events, nil
}
