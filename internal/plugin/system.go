// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// System bundles the registries and the manager of one application.
// Applications create one and pass it where plugins are needed.
type System struct {
	Engines     *EngineRegistry
	Serializers *SerializerRegistry
	Finders     *FinderRegistry
	Manager     *Manager

	logger *slog.Logger
}

// NewSystem creates empty registries and a manager configured by opts.
func NewSystem(opts ...ManagerOption) *System {
	engines := NewEngineRegistry()
	m := NewManager(engines, opts...)
	return &System{
		Engines:     engines,
		Serializers: NewSerializerRegistry(),
		Finders:     NewFinderRegistry(),
		Manager:     m,
		logger:      m.logger,
	}
}

// Discover runs every registered finder concurrently and returns their
// results concatenated in finder name order.
func (s *System) Discover(ctx context.Context) ([]pluginpkg.Info, error) {
	names := s.Finders.List()
	results := make([][]pluginpkg.Info, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		find, err := s.Finders.Get(name)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			infos, err := find(gctx)
			if err != nil {
				return oops.Code(pluginpkg.CodePluginLoad).
					With("finder", name).
					Wrapf(err, "finder %s failed", name)
			}
			results[i] = infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []pluginpkg.Info
	for i, infos := range results {
		s.logger.Debug("plugins discovered", "finder", names[i], "count", len(infos))
		all = append(all, infos...)
	}
	return all, nil
}

// LoadAll clears the manager, discovers plugins, and inserts and loads
// them in dependency order. A failed teardown during the clear is logged
// and does not stop the reload. Loading stops at the first failure; plugins
// loaded before it stay loaded.
func (s *System) LoadAll(ctx context.Context, start bool) error {
	if err := s.Manager.Clear(ctx); err != nil {
		s.logger.Warn("previous plugins did not tear down cleanly", "error", err)
	}

	infos, err := s.Discover(ctx)
	if err != nil {
		return err
	}
	ordered, err := SortByDependencies(infos)
	if err != nil {
		return err
	}

	for _, info := range ordered {
		if err := s.Manager.Insert(info); err != nil {
			return err
		}
		if err := s.Manager.Load(ctx, info.Name, start); err != nil {
			return err
		}
	}

	s.logger.Info("plugins loaded", "count", len(ordered))
	return nil
}

// UnloadAll stops and unloads every loaded plugin in reverse load order.
// It keeps going after a failure and returns all errors joined.
func (s *System) UnloadAll(ctx context.Context) error {
	var errs []error
	for _, name := range slices.Backward(s.Manager.LoadedPlugins()) {
		if err := s.stopAndUnload(ctx, name); err != nil {
			s.logger.Warn("failed to unload plugin", "plugin", name, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return oops.Code(pluginpkg.CodePluginUnload).
			Wrapf(errors.Join(errs...), "%d plugins failed to unload", len(errs))
	}
	return nil
}

// UnloadPlugin unloads the loaded plugins depending on name, recursively,
// then stops and unloads name itself.
func (s *System) UnloadPlugin(ctx context.Context, name string) error {
	for _, dependent := range s.Manager.Dependents(name) {
		if err := s.UnloadPlugin(ctx, dependent); err != nil {
			return err
		}
	}
	return s.stopAndUnload(ctx, name)
}

func (s *System) stopAndUnload(ctx context.Context, name string) error {
	if p, err := s.Manager.Get(name); err == nil && p.Initialized() {
		if err := s.Manager.Stop(ctx, name); err != nil {
			return err
		}
	}
	return s.Manager.Unload(ctx, name)
}
