// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// CheckpointClient provides access to a project's checkpoints.
//
// A checkpoint pins the working tree as it was when a user message was sent.
// Restoring it resets the tree and truncates the session log after the
// message.
type CheckpointClient struct {
	c *Client
}

func checkpointsPath(project string) string {
	return "/api/v1/projects/" + url.PathEscape(project) + "/checkpoints"
}

// List returns a project's checkpoints, oldest first.
func (k *CheckpointClient) List(ctx context.Context, project string) ([]Checkpoint, error) {
	data, err := k.c.get(ctx, checkpointsPath(project))
	if err != nil {
		return nil, err
	}

	var cps []Checkpoint
	if err := json.Unmarshal(data, &cps); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoints: %w", err)
	}
	return cps, nil
}

// Create records a checkpoint.
func (k *CheckpointClient) Create(ctx context.Context, project string, req CheckpointRequest) (*Checkpoint, error) {
	data, err := k.c.postJSON(ctx, checkpointsPath(project), req)
	if err != nil {
		return nil, err
	}
	return parseCheckpoint(data)
}

// Restore resets the working tree to a checkpoint.
func (k *CheckpointClient) Restore(ctx context.Context, project, id string) (*Checkpoint, error) {
	data, err := k.c.post(ctx, checkpointsPath(project)+"/"+url.PathEscape(id)+"/restore")
	if err != nil {
		return nil, err
	}
	return parseCheckpoint(data)
}

// Delete forgets a checkpoint.
func (k *CheckpointClient) Delete(ctx context.Context, project, id string) error {
	_, err := k.c.delete(ctx, checkpointsPath(project)+"/"+url.PathEscape(id))
	return err
}

func parseCheckpoint(data json.RawMessage) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &cp, nil
}
