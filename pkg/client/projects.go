// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ProjectClient provides access to projects.
//
// Access this client through [Client.Projects]:
//
//	projects, err := c.Projects.List(ctx)
type ProjectClient struct {
	c *Client
}

// List returns the current project snapshot. Each project carries only its
// newest sessions; use [SessionClient.List] to page through the rest.
func (p *ProjectClient) List(ctx context.Context) ([]Project, error) {
	data, err := p.c.get(ctx, "/api/v1/projects")
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}
	return projects, nil
}

// Create registers a directory that has no session logs yet. displayName
// may be empty.
func (p *ProjectClient) Create(ctx context.Context, path, displayName string) (*Project, error) {
	req := map[string]string{"path": path, "displayName": displayName}
	data, err := p.c.postJSON(ctx, "/api/v1/projects", req)
	if err != nil {
		return nil, err
	}
	return parseProject(data)
}

// Rename sets a project's display name. An empty name restores the
// default.
func (p *ProjectClient) Rename(ctx context.Context, name, displayName string) (*Project, error) {
	req := map[string]string{"displayName": displayName}
	data, err := p.c.patchJSON(ctx, "/api/v1/projects/"+url.PathEscape(name), req)
	if err != nil {
		return nil, err
	}
	return parseProject(data)
}

// Delete removes a project, its session logs and its checkpoints.
func (p *ProjectClient) Delete(ctx context.Context, name string) error {
	_, err := p.c.delete(ctx, "/api/v1/projects/"+url.PathEscape(name))
	return err
}

func parseProject(data json.RawMessage) (*Project, error) {
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	return &project, nil
}
