// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingedpig/clauderelay/pkg/client"
)

const defaultAPI = "http://localhost:3001"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	apiURL     string
	jsonOutput bool
	debug      bool
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.apiURL)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{apiURL: defaultAPI}
	if env := os.Getenv("CLAUDERELAY_API"); env != "" {
		opts.apiURL = strings.TrimSuffix(env, "/")
	}

	serve := &serveOptions{root: opts}

	root := &cobra.Command{
		Use:   "clauderelay",
		Short: "Relay Claude CLI sessions to remote clients",
		Long: `clauderelay exposes the Claude CLI's session history over HTTP and runs
CLI invocations for WebSocket clients.

Run without a subcommand to start the server. The remaining commands talk
to a running server, selected with --server or CLAUDERELAY_API.

Quick Start:
  clauderelay init                        # Write clauderelay.hjson
  clauderelay                             # Start the server
  clauderelay projects                    # List projects
  clauderelay chat -- -home-dev-demo      # Chat in a project`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve.run(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: auto-detect)")
	root.PersistentFlags().StringVar(&opts.apiURL, "server", opts.apiURL, "Base URL of a running relay (env CLAUDERELAY_API)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	serve.addFlags(root)
	root.SetVersionTemplate(`{{printf "clauderelay %s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(serve),
		newInitCmd(),
		newStatusCmd(opts),
		newProjectsCmd(opts),
		newSessionsCmd(opts),
		newExportCmd(opts),
		newChatCmd(opts),
	)
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
