// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/terraplug/terraplug/internal/config"
	"github.com/terraplug/terraplug/internal/logging"
	"github.com/terraplug/terraplug/internal/xdg"
)

const serviceName = "terraplug"

// NewRootCmd creates the root command for the terraplug CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terraplug",
		Short: "terraplug - runtime plugin manager",
		Long: `terraplug discovers plugin descriptors, orders plugins by their
dependencies, and loads them through native, Go, gRPC subprocess and Lua engines.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/terraplug/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewRunCmd())

	return cmd
}

// loadSettings resolves the configuration and the logger of a command.
func loadSettings(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	explicit := path != ""
	if !explicit {
		// No default file without a home directory.
		path, _ = xdg.ConfigFile()
	}

	cfg, err := config.Load(path, explicit, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	}, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
