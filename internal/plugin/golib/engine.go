// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package golib loads plugins built with go build -buildmode=plugin.
//
// The plugin package must export
//
//	func NewPlugin(info plugin.Info) (plugin.Plugin, error)
//
// using the types of github.com/terraplug/terraplug/pkg/plugin.
package golib

import (
	"context"
	"log/slog"
	"path/filepath"
	goplugin "plugin"
	"strings"
	"sync"

	"github.com/samber/oops"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ID is the engine id plugin descriptors use.
const ID = "Go"

// SymbolNewPlugin is the factory every Go plugin exports.
const SymbolNewPlugin = "NewPlugin"

// Factory creates a plugin instance from its descriptor.
type Factory = func(pluginpkg.Info) (pluginpkg.Plugin, error)

// Symbols looks up exported symbols of an opened Go plugin.
type Symbols interface {
	Lookup(name string) (goplugin.Symbol, error)
}

// Opener opens the Go plugin at path.
type Opener func(path string) (Symbols, error)

func openPlugin(path string) (Symbols, error) {
	return goplugin.Open(path)
}

// Engine loads Go plugins. Go cannot unmap a plugin, so Unload only
// forgets the instance; the package stays mapped for the process lifetime.
type Engine struct {
	open        Opener
	searchPaths []string
	logger      *slog.Logger

	mu        sync.Mutex
	instances map[string]pluginpkg.Plugin
}

var _ plugins.Engine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithOpener replaces plugin.Open.
func WithOpener(open Opener) Option {
	return func(e *Engine) {
		e.open = open
	}
}

// WithSearchPaths adds directories searched after the descriptor directory.
func WithSearchPaths(paths ...string) Option {
	return func(e *Engine) {
		e.searchPaths = append(e.searchPaths, paths...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a Go plugin engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		open:      openPlugin,
		logger:    slog.Default(),
		instances: make(map[string]pluginpkg.Plugin),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns "Go".
func (e *Engine) ID() string { return ID }

// Name returns a display name.
func (e *Engine) Name() string { return "Go plugin" }

// Load opens the plugin package and calls its NewPlugin factory.
func (e *Engine) Load(_ context.Context, info pluginpkg.Info) (pluginpkg.Plugin, error) {
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineLoad); err != nil {
		return nil, err
	}

	errb := oops.Code(pluginpkg.CodeEngineLoad).In("golib").With("plugin", info.Name)

	name, ok := info.Resource(pluginpkg.ResourceSharedLibraryName)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, errb.Errorf("plugin %s: resource %s is required", info.Name, pluginpkg.ResourceSharedLibraryName)
	}
	if filepath.Ext(name) == "" {
		name += ".so"
	}

	syms, path, err := e.openFirst(info, name)
	if err != nil {
		return nil, errb.With("library", name).Wrapf(err, "plugin %s: cannot open %s", info.Name, name)
	}

	factory, err := lookupFactory(syms)
	if err != nil {
		return nil, errb.With("path", path).Wrapf(err, "plugin %s", info.Name)
	}

	p, err := factory(info.Clone())
	if err != nil {
		return nil, errb.With("path", path).Wrapf(err, "plugin %s: %s failed", info.Name, SymbolNewPlugin)
	}
	if p == nil {
		return nil, errb.Errorf("plugin %s: %s returned nil", info.Name, SymbolNewPlugin)
	}
	if got := p.Info().Name; got != info.Name {
		return nil, errb.With("returned", got).Errorf("plugin %s: %s returned plugin %q", info.Name, SymbolNewPlugin, got)
	}

	e.mu.Lock()
	e.instances[info.Name] = p
	e.mu.Unlock()

	e.logger.Debug("go plugin instantiated", "plugin", info.Name, "path", path)
	return p, nil
}

// Unload forgets an instance created by Load.
func (e *Engine) Unload(_ context.Context, p pluginpkg.Plugin) error {
	if p == nil {
		return oops.Code(pluginpkg.CodeInvalidArgument).Errorf("plugin cannot be nil")
	}
	info := p.Info()
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineUnload); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.instances[info.Name]; !ok {
		return oops.Code(pluginpkg.CodeEngineUnload).
			With("plugin", info.Name).
			Errorf("plugin %s was not loaded by the %s engine", info.Name, ID)
	}
	delete(e.instances, info.Name)
	return nil
}

func (e *Engine) openFirst(info pluginpkg.Info, file string) (Symbols, string, error) {
	candidates := []string{file}
	if !filepath.IsAbs(file) {
		candidates = candidates[:0]
		if info.Dir != "" {
			candidates = append(candidates, filepath.Join(info.Dir, file))
		}
		for _, dir := range e.searchPaths {
			candidates = append(candidates, filepath.Join(dir, file))
		}
		candidates = append(candidates, file)
	}

	var lastErr error
	for _, path := range candidates {
		syms, err := e.open(path)
		if err == nil {
			return syms, path, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}

func lookupFactory(syms Symbols) (Factory, error) {
	sym, err := syms.Lookup(SymbolNewPlugin)
	if err != nil {
		return nil, oops.With("symbol", SymbolNewPlugin).Wrap(err)
	}
	switch fn := sym.(type) {
	case func(pluginpkg.Info) (pluginpkg.Plugin, error):
		return fn, nil
	case *func(pluginpkg.Info) (pluginpkg.Plugin, error):
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	}
	return nil, oops.
		With("symbol", SymbolNewPlugin).
		Errorf("symbol %s has type %T, want func(plugin.Info) (plugin.Plugin, error)", SymbolNewPlugin, sym)
}
