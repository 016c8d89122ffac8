// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package goplugin runs plugins as subprocesses using HashiCorp's
// go-plugin system over gRPC. Plugin binaries are built with pkg/pluginsdk.
package goplugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/internal/pluginrpc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ID is the engine id plugin descriptors use.
const ID = "GRPC"

// ResourceExecutable names the plugin binary, relative to the descriptor
// directory unless absolute.
const ResourceExecutable = "executable"

// Default connection retry settings.
const (
	DefaultConnectAttempts = 3
	DefaultConnectBackoff  = 100 * time.Millisecond
)

// Engine starts subprocess plugins.
type Engine struct {
	factory  ClientFactory
	logger   *slog.Logger
	attempts uint64
	backoff  time.Duration
}

var _ plugins.Engine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithClientFactory replaces the go-plugin client factory.
func WithClientFactory(f ClientFactory) Option {
	return func(e *Engine) {
		e.factory = f
	}
}

// WithConnectRetry sets how many times a plugin process is started before
// Load gives up, and the initial backoff between attempts.
func WithConnectRetry(attempts uint64, backoff time.Duration) Option {
	return func(e *Engine) {
		e.attempts = attempts
		e.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a subprocess engine.
// Panics if a nil client factory is configured.
func New(opts ...Option) *Engine {
	e := &Engine{
		factory:  &DefaultClientFactory{},
		logger:   slog.Default(),
		attempts: DefaultConnectAttempts,
		backoff:  DefaultConnectBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.factory == nil {
		panic("goplugin: factory cannot be nil")
	}
	if e.attempts == 0 {
		e.attempts = 1
	}
	if e.backoff <= 0 {
		e.backoff = DefaultConnectBackoff
	}
	return e
}

// ID returns "GRPC".
func (e *Engine) ID() string { return ID }

// Name returns a display name.
func (e *Engine) Name() string { return "gRPC subprocess" }

// Load starts the plugin executable and connects to its lifecycle service.
func (e *Engine) Load(ctx context.Context, info pluginpkg.Info) (pluginpkg.Plugin, error) {
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineLoad); err != nil {
		return nil, err
	}

	errb := oops.Code(pluginpkg.CodeEngineLoad).In("goplugin").With("plugin", info.Name)

	exe, ok := info.Resource(ResourceExecutable)
	if !ok || strings.TrimSpace(exe) == "" {
		return nil, errb.
			Hint("add an executable resource to the plugin descriptor").
			Errorf("plugin %s: resource %s is required", info.Name, ResourceExecutable)
	}

	execPath := exe
	if !filepath.IsAbs(execPath) {
		execPath = filepath.Join(info.Dir, exe)
	}
	if _, err := os.Stat(execPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errb.With("path", execPath).Wrapf(err, "plugin executable not found: %s", execPath)
		}
		return nil, errb.With("path", execPath).Wrapf(err, "cannot access plugin executable %s", execPath)
	}

	client, lifecycle, err := e.connect(ctx, info.Name, execPath)
	if err != nil {
		return nil, errb.With("path", execPath).Wrapf(err, "failed to connect to plugin %s", info.Name)
	}

	e.logger.Debug("plugin process started", "plugin", info.Name, "path", execPath)
	return &Plugin{
		Base:      pluginpkg.NewBase(info),
		path:      execPath,
		client:    client,
		lifecycle: lifecycle,
	}, nil
}

// connect starts a plugin process and dispenses its lifecycle client,
// starting a fresh process for every retried attempt.
func (e *Engine) connect(ctx context.Context, name, execPath string) (PluginClient, pluginrpc.LifecycleClient, error) {
	var (
		client    PluginClient
		lifecycle pluginrpc.LifecycleClient
		attempt   int
	)

	b := retry.WithMaxRetries(e.attempts-1, retry.NewExponential(e.backoff))
	err := retry.Do(ctx, b, func(_ context.Context) error {
		attempt++
		c := e.factory.NewClient(execPath)

		rpcClient, err := c.Client()
		if err != nil {
			c.Kill()
			e.logger.Warn("plugin connection failed", "plugin", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		raw, err := rpcClient.Dispense(pluginrpc.PluginName)
		if err != nil {
			c.Kill()
			e.logger.Warn("plugin dispense failed", "plugin", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		lc, ok := raw.(pluginrpc.LifecycleClient)
		if !ok {
			c.Kill()
			return oops.Errorf("plugin %s does not implement the lifecycle service", name)
		}

		client, lifecycle = c, lc
		return nil
	})
	if err != nil {
		return nil, nil, oops.With("attempts", attempt).Wrap(err)
	}
	return client, lifecycle, nil
}

// Unload kills the plugin process.
func (e *Engine) Unload(_ context.Context, p pluginpkg.Plugin) error {
	if p == nil {
		return oops.Code(pluginpkg.CodeInvalidArgument).Errorf("plugin cannot be nil")
	}
	info := p.Info()
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineUnload); err != nil {
		return err
	}
	proxy, ok := p.(*Plugin)
	if !ok {
		return oops.Code(pluginpkg.CodeEngineUnload).
			With("plugin", info.Name).
			Errorf("plugin %s was not loaded by the %s engine", info.Name, ID)
	}
	proxy.kill()
	e.logger.Debug("plugin process stopped", "plugin", info.Name)
	return nil
}
