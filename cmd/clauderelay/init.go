// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const configFile = "clauderelay.hjson"

// initAnswers are the values collected by the init prompts.
type initAnswers struct {
	Host           string
	Port           int
	Executable     string
	ProjectsDir    string
	PermissionMode string
	Model          string
}

func newInitCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a clauderelay.hjson configuration file",
		Long: `Create a new clauderelay.hjson configuration file in the current directory.

The command asks a few questions; press Enter to accept the default shown in
[brackets]. The generated file is commented and lists every option.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the config file to")
	return cmd
}

func runInit(in io.Reader, out io.Writer, dir string) error {
	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", path)
	}

	reader := bufio.NewReader(in)

	fmt.Fprintln(out, titleStyle.Render("clauderelay configuration setup"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Enter to accept defaults shown in [brackets].")
	fmt.Fprintln(out)

	var a initAnswers
	a.Host = prompt(reader, out, "Host to bind to (0.0.0.0 allows remote access)", "127.0.0.1")
	port, err := strconv.Atoi(prompt(reader, out, "Server port", "3001"))
	if err != nil || port <= 0 || port > 65535 {
		port = 3001
	}
	a.Port = port
	a.Executable = prompt(reader, out, "Claude CLI executable", "claude")
	a.ProjectsDir = prompt(reader, out, "Session log directory", "~/.claude/projects")
	a.PermissionMode = prompt(reader, out, "Permission mode (default, acceptEdits, plan, bypassPermissions)", "default")
	a.Model = prompt(reader, out, "Model (or empty for the CLI default)", "")

	if err := os.WriteFile(path, []byte(generateConfig(a)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Review and edit %s as needed\n", configFile)
	fmt.Fprintln(out, "  2. Run: clauderelay")
	fmt.Fprintf(out, "  3. Connect: http://%s:%d/health\n", a.Host, a.Port)
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for a double-quoted HJSON value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(a initAnswers) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // clauderelay Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax). Paths may
  // start with ~ and durations use Go syntax ("300ms", "5s", "24h").

  // ---------------------------------------------------------------------------
  // Server Settings
  // ---------------------------------------------------------------------------
  server: {
    host: "`)
	sb.WriteString(escapeHJSONValue(a.Host))
	sb.WriteString(`"
    port: `)
	sb.WriteString(strconv.Itoa(a.Port))
	sb.WriteString(`

    // For HTTPS, set paths to your certificates:
    // tls_cert: "~/.clauderelay/cert.pem"
    // tls_key: "~/.clauderelay/key.pem"

    // Or fetch certificates from the local tailscaled:
    // tls_tailscale: true
  }

  // ---------------------------------------------------------------------------
  // Claude CLI
  // ---------------------------------------------------------------------------
  claude: {
    // Command name or path. When not on PATH, search_paths are tried.
    executable: "`)
	sb.WriteString(escapeHJSONValue(a.Executable))
	sb.WriteString(`"
    // search_paths: ["~/.claude/local", "~/.local/bin", "/usr/local/bin"]

    // Where the CLI writes its per-project session logs
    projects_dir: "`)
	sb.WriteString(escapeHJSONValue(a.ProjectsDir))
	sb.WriteString(`"

    permission_mode: "`)
	sb.WriteString(escapeHJSONValue(a.PermissionMode))
	sb.WriteString(`"
`)
	if a.Model != "" {
		sb.WriteString(`    model: "`)
		sb.WriteString(escapeHJSONValue(a.Model))
		sb.WriteString(`"
`)
	} else {
		sb.WriteString(`    // model: "sonnet"
`)
	}
	sb.WriteString(`
    // allowed_tools: ["Read", "Grep"]
    // disallowed_tools: ["Bash"]
    // skip_permissions: false

    // Timing of an invocation
    // stdin_grace: "500ms"
    // post_exit_scan_delay: "1s"
    // recovery_window: "5s"
  }

  // ---------------------------------------------------------------------------
  // Session Log Watching
  // ---------------------------------------------------------------------------
  //
  // Log changes are coalesced for the debounce interval before a new project
  // snapshot is pushed to clients.
  watch: {
    debounce: "300ms"
    // ignore_dirs: [".git", "node_modules", "dist", "build"]
  }

  // ---------------------------------------------------------------------------
  // Storage
  // ---------------------------------------------------------------------------
  // store: {
  //   project_config: "~/.claude/project-config.json"
  //   checkpoints_dir: "~/.claude/checkpoints"
  // }

  // sessions: {
  //   page_size: 20           // sessions per page in listings
  //   snapshot_sessions: 5    // sessions per project in a pushed snapshot
  // }

  // events: {
  //   history: { max_events: 1000, max_age: "1h" }
  // }

  // ---------------------------------------------------------------------------
  // Terminal Client
  // ---------------------------------------------------------------------------
  //
  // Used by 'clauderelay chat'.
  // client: {
  //   state_path: "~/.clauderelay/client.db"
  //   placeholder_max_age: "24h"
  //   pending_timeout: "5m"
  //   dedup_size: 500
  //   checkpoint_tolerance: "5s"
  // }

  logging: {
    level: "info"   // "debug" or "info"
  }
}
`)
	return sb.String()
}
