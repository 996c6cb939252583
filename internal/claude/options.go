// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package claude

import (
	"github.com/wingedpig/clauderelay/internal/identity"
)

// Permissions controls which tools the CLI may use without asking.
type Permissions struct {
	Mode            string   `json:"permissionMode,omitempty"`
	AllowedTools    []string `json:"allowedTools,omitempty"`
	DisallowedTools []string `json:"disallowedTools,omitempty"`
	SkipPermissions bool     `json:"skipPermissions,omitempty"`
}

// Options describes one invocation.
type Options struct {
	SessionID   string      `json:"sessionId,omitempty"`
	Resume      bool        `json:"resume,omitempty"`
	WorkDir     string      `json:"cwd,omitempty"`
	ProjectName string      `json:"projectName,omitempty"`
	Model       string      `json:"model,omitempty"`
	Permissions Permissions `json:"toolsSettings,omitempty"`

	// Context is prior conversation text prepended to the command when the
	// session is not resumed.
	Context string `json:"context,omitempty"`
}

// Resuming reports whether the invocation continues an existing CLI session.
// A placeholder can never be resumed: no CLI session exists for it yet.
func (o Options) Resuming() bool {
	return o.Resume && identity.IsReal(o.SessionID)
}

// BuildArgs translates options into CLI arguments.
func BuildArgs(o Options) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}
	if o.Resuming() {
		args = append(args, "--resume", o.SessionID)
	}
	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}

	p := o.Permissions
	if p.SkipPermissions {
		return append(args, "--dangerously-skip-permissions")
	}
	if p.Mode != "" && p.Mode != "default" {
		args = append(args, "--permission-mode", p.Mode)
	}
	for _, tool := range p.AllowedTools {
		args = append(args, "--allowedTools", tool)
	}
	for _, tool := range p.DisallowedTools {
		args = append(args, "--disallowedTools", tool)
	}
	return args
}

// input is what is written to stdin.
func (o Options) input(command string) string {
	if o.Context != "" && !o.Resuming() {
		return o.Context + "\n\n" + command
	}
	return command
}
