// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/pkg/client"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, h)
			}
			fmt.Fprintf(out, "%s %s (up %s)\n", titleStyle.Render("clauderelay"), h.Version, h.Uptime)
			fmt.Fprintf(out, "Running invocations: %s\n", countStyle.Render(strconv.Itoa(len(h.Running))))
			for _, id := range h.Running {
				fmt.Fprintf(out, "  %s\n", idStyle.Render(id))
			}
			if h.ParseErrors > 0 {
				fmt.Fprintf(out, "Unparseable log lines: %d\n", h.ParseErrors)
			}
			return nil
		},
	}
}

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := opts.client().Projects.List(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), list)
			}
			displayProjects(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func displayProjects(out io.Writer, list []client.Project) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No projects found.")
		return
	}

	fmt.Fprintf(out, "%s %s\n\n", headerStyle.Render("Projects"), countStyle.Render(fmt.Sprintf("(%d)", len(list))))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSESSIONS\tLAST ACTIVITY\tPATH")
	for _, p := range list {
		name := titleStyle.Render(p.DisplayName)
		if p.IsManuallyAdded {
			name += " *"
		}
		last := "-"
		if len(p.Sessions) > 0 {
			last = formatTime(p.Sessions[0].LastActivity)
		}
		path := p.FullPath
		if path == "" {
			path = p.Path
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, countStyle.Render(strconv.Itoa(p.SessionMeta.Total)), dateStyle.Render(last), pathStyle.Render(path))
	}
	w.Flush()
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var (
		page          client.PageOptions
		conversations bool
	)
	cmd := &cobra.Command{
		Use:   "sessions <project>",
		Short: "List a project's sessions",
		Long: `List a project's sessions, newest first.

Project names start with '-'; separate them from flags with --:
  clauderelay sessions -- -home-dev-demo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.client().Sessions.List(cmd.Context(), args[0], &page)
			if err != nil {
				return err
			}
			if conversations {
				convs, err := groupSessions(result.Sessions)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), convs)
				}
				displayConversations(cmd.OutOrStdout(), convs)
				return nil
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			displaySessions(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page.Limit, "limit", "n", 0, "Sessions per page (default: server setting)")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "Sessions to skip")
	cmd.Flags().BoolVar(&conversations, "conversations", false, "Group the page's sessions by title")
	return cmd
}

// groupSessions converts the client's sessions and groups them into
// conversations.
func groupSessions(list []client.Session) ([]projects.Conversation, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	var sessions []projects.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to convert sessions: %w", err)
	}
	return projects.GroupConversations(sessions), nil
}

func displayConversations(out io.Writer, convs []projects.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tSESSIONS\tLAST ACTIVITY")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", titleStyle.Render(truncate(c.Title, 60)), countStyle.Render(strconv.Itoa(len(c.Sessions))), dateStyle.Render(formatTime(c.LastActivity)))
		for _, s := range c.Sessions {
			fmt.Fprintf(w, "  %s\t%d\t%s\n", idStyle.Render(s.ID), s.MessageCount, dateStyle.Render(formatTime(s.LastActivity)))
		}
	}
	w.Flush()
}

func displaySessions(out io.Writer, page *client.SessionPage) {
	if len(page.Sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUMMARY\tMESSAGES\tLAST ACTIVITY")
	for _, s := range page.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", idStyle.Render(s.ID), truncate(s.Summary, 60), s.MessageCount, dateStyle.Render(formatTime(s.LastActivity)))
	}
	w.Flush()

	shown := page.Offset + len(page.Sessions)
	fmt.Fprintf(out, "\nShowing %d-%d of %d", page.Offset+1, shown, page.Total)
	if page.HasMore {
		fmt.Fprintf(out, " (next: --offset %d)", shown)
	}
	fmt.Fprintln(out)
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <project> <session>",
		Short: "Export a session transcript as JSON or YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != string(client.ExportJSON) && format != string(client.ExportYAML) {
				return fmt.Errorf("unsupported format %q (use json or yaml)", format)
			}
			doc, err := opts.client().Sessions.Export(cmd.Context(), args[0], args[1], client.ExportFormat(format))
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(doc)
				return err
			}
			if err := os.WriteFile(output, doc, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[1], output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
