// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SessionClient provides access to a project's sessions.
type SessionClient struct {
	c *Client
}

// PageOptions selects a page of sessions. Zero values use the server's
// defaults.
type PageOptions struct {
	Limit  int
	Offset int
}

func sessionsPath(project string) string {
	return "/api/v1/projects/" + url.PathEscape(project) + "/sessions"
}

func sessionPath(project, sessionID string) string {
	return sessionsPath(project) + "/" + url.PathEscape(sessionID)
}

// List returns a page of sessions, newest first.
func (s *SessionClient) List(ctx context.Context, project string, opts *PageOptions) (*SessionPage, error) {
	path := sessionsPath(project)
	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var page SessionPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return &page, nil
}

// Messages returns a session converted to transcript entries.
func (s *SessionClient) Messages(ctx context.Context, project, sessionID string) (*Transcript, error) {
	data, err := s.c.get(ctx, sessionPath(project, sessionID)+"/messages")
	if err != nil {
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	return &t, nil
}

// RawMessages returns a session's log entries as stored.
func (s *SessionClient) RawMessages(ctx context.Context, project, sessionID string) ([]json.RawMessage, error) {
	data, err := s.c.get(ctx, sessionPath(project, sessionID)+"/messages?format=raw")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return resp.Messages, nil
}

// Export returns a session transcript as a JSON or YAML document.
func (s *SessionClient) Export(ctx context.Context, project, sessionID string, format ExportFormat) ([]byte, error) {
	if format == "" {
		format = ExportJSON
	}
	path := sessionPath(project, sessionID) + "/export?format=" + url.QueryEscape(string(format))
	body, _, err := s.c.getRaw(ctx, path)
	return body, err
}

// Delete removes a session's entries from the project logs.
func (s *SessionClient) Delete(ctx context.Context, project, sessionID string) error {
	_, err := s.c.delete(ctx, sessionPath(project, sessionID))
	return err
}
