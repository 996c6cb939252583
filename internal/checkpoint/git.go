// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// refPrefix namespaces the refs that keep checkpoint commits reachable.
const refPrefix = "refs/clauderelay/checkpoints/"

// GitExecutor snapshots and restores a working tree.
type GitExecutor interface {
	// Snapshot returns a commit holding the working tree state, or "" when
	// dir is not a git work tree.
	Snapshot(ctx context.Context, dir, id string) (string, error)
	Restore(ctx context.Context, dir, ref string) error
	Forget(ctx context.Context, dir, id string) error
}

// RealGitExecutor executes real git commands.
type RealGitExecutor struct{}

// NewRealGitExecutor creates a new git executor.
func NewRealGitExecutor() *RealGitExecutor {
	return &RealGitExecutor{}
}

// Snapshot records uncommitted changes with `git stash create`, which leaves
// the work tree and the stash list untouched. A clean tree falls back to
// HEAD. The commit is pinned under a per-checkpoint ref.
func (e *RealGitExecutor) Snapshot(ctx context.Context, dir, id string) (string, error) {
	if out, err := RunCommand(ctx, "-C", dir, "rev-parse", "--is-inside-work-tree"); err != nil || strings.TrimSpace(out) != "true" {
		return "", nil
	}

	out, err := RunCommand(ctx, "-C", dir, "stash", "create", "clauderelay checkpoint "+id)
	if err != nil {
		return "", fmt.Errorf("git stash create: %s", strings.TrimSpace(out))
	}
	ref := strings.TrimSpace(out)
	if ref == "" {
		out, err = RunCommand(ctx, "-C", dir, "rev-parse", "HEAD")
		if err != nil {
			// Repository without commits.
			return "", nil
		}
		ref = strings.TrimSpace(out)
	}

	if out, err := RunCommand(ctx, "-C", dir, "update-ref", refPrefix+id, ref); err != nil {
		return "", fmt.Errorf("git update-ref: %s", strings.TrimSpace(out))
	}
	return ref, nil
}

// Restore checks the snapshot's files out over the work tree.
func (e *RealGitExecutor) Restore(ctx context.Context, dir, ref string) error {
	if out, err := RunCommand(ctx, "-C", dir, "checkout", ref, "--", "."); err != nil {
		return fmt.Errorf("git checkout %s: %s", ref, strings.TrimSpace(out))
	}
	return nil
}

// Forget deletes the ref pinning a checkpoint. A missing ref is not an error.
func (e *RealGitExecutor) Forget(ctx context.Context, dir, id string) error {
	_, _ = RunCommand(ctx, "-C", dir, "update-ref", "-d", refPrefix+id)
	return nil
}

// RunCommand runs a git command and returns the output.
func RunCommand(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stderr.String(), err
	}
	return stdout.String(), nil
}
