// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/wingedpig/clauderelay/internal/app"
	"github.com/wingedpig/clauderelay/internal/config"
)

type serveOptions struct {
	root *rootOptions
	host string
	port int
}

func (o *serveOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.host, "host", "", "HTTP server host (overrides config)")
	cmd.Flags().IntVar(&o.port, "port", 0, "HTTP server port (overrides config)")
}

func newServeCmd(o *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.addFlags(cmd)
	return cmd
}

func (o *serveOptions) run(cmd *cobra.Command) error {
	configPath, err := resolveConfigPath(o.root.configPath)
	if err != nil {
		return err
	}
	if configPath != "" {
		log.Printf("Using config: %s", configPath)
	} else {
		log.Printf("No config file found, using defaults")
	}

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       o.host,
		Port:       o.port,
		Debug:      o.root.debug,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	return application.Run(cmd.Context())
}

// resolveConfigPath returns path, or the config file found in the current
// directory, or "" when there is none.
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	found, err := config.NewLoader().FindConfig()
	if errors.Is(err, config.ErrConfigNotFound) {
		return "", nil
	}
	return found, err
}
