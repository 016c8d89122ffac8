// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	plugins "github.com/terraplug/terraplug/internal/plugin"
)

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins in load order",
		Long: `Discover plugin descriptors in the plugins directory, order them
by their dependencies, and print them in the order they would be loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			sys, err := newSystem(cfg, logger)
			if err != nil {
				return err
			}

			infos, err := sys.Discover(cmd.Context())
			if err != nil {
				return err
			}
			ordered, err := plugins.SortByDependencies(infos)
			if err != nil {
				return err
			}

			if len(ordered) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No plugins found in %s\n", cfg.PluginsDir)
				return nil
			}
			writeLoadOrder(cmd.OutOrStdout(), ordered)
			return nil
		},
	}
}
