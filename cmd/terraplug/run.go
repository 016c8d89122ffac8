// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraplug/terraplug/internal/observability"
	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/pkg/errutil"
)

// shutdownTimeout bounds unloading plugins and stopping the metrics server.
const shutdownTimeout = 30 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load and run all discovered plugins",
		Long: `Discover plugins, load (and start) them in dependency order, and keep
them running until SIGINT or SIGTERM. Plugins are stopped and unloaded in
reverse order on shutdown. Metrics and health probes are served on
--metrics-addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlugins(cmd, once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "load, print status and unload without waiting for a signal")
	return cmd
}

func runPlugins(cmd *cobra.Command, once bool) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready atomic.Bool
	var sys *plugins.System
	var opts []plugins.ManagerOption
	var obs *observability.Server
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, ready.Load,
			observability.WithLogger(logger),
			observability.WithStatus(func() any { return sys.Manager.Snapshot() }),
		)
		opts = append(opts, plugins.WithMetrics(plugins.NewMetrics(obs.Registry())))
	}

	sys, err = newSystem(cfg, logger, opts...)
	if err != nil {
		return err
	}

	if obs != nil {
		errCh, err := obs.Start()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obs.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go func() {
			if err, ok := <-errCh; ok && err != nil {
				logger.Error("observability server failed", "error", err)
				stop()
			}
		}()
	}

	logger.Info("loading plugins", "dir", cfg.PluginsDir, "start", !cfg.NoStart)
	if err := sys.LoadAll(ctx, !cfg.NoStart); err != nil {
		// Plugins loaded before the failure keep running.
		errutil.LogError(logger, "plugin loading stopped", err)
	}
	ready.Store(true)

	writeStatus(cmd.OutOrStdout(), sys.Manager.Snapshot())

	if !once {
		logger.Info("plugins running", "loaded", len(sys.Manager.LoadedPlugins()))
		<-ctx.Done()
		logger.Info("shutting down")
	}
	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sys.UnloadAll(shutdownCtx); err != nil {
		errutil.LogError(logger, "failed to unload plugins", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
