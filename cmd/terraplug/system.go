// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"log/slog"

	"github.com/terraplug/terraplug/internal/config"
	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/internal/plugin/descriptor"
	"github.com/terraplug/terraplug/internal/plugin/finder"
	"github.com/terraplug/terraplug/internal/plugin/golib"
	"github.com/terraplug/terraplug/internal/plugin/goplugin"
	"github.com/terraplug/terraplug/internal/plugin/lua"
	"github.com/terraplug/terraplug/internal/plugin/native"
)

// finderName is the name the plugins directory finder is registered under.
const finderName = "directory"

// newSystem wires every engine, the descriptor serializers and the
// directory finder configured by cfg.
func newSystem(cfg *config.Config, logger *slog.Logger, opts ...plugins.ManagerOption) (*plugins.System, error) {
	hostVersion := cfg.HostVersion
	if hostVersion == "" {
		hostVersion = version
	}

	base := []plugins.ManagerOption{
		plugins.WithLogger(logger),
		plugins.WithHostApplication(cfg.HostName, hostVersion),
		plugins.WithLoadTimeout(cfg.LoadTimeout),
	}
	sys := plugins.NewSystem(append(base, opts...)...)

	engines := []plugins.Engine{
		native.New(native.WithSearchPaths(cfg.SearchPaths...), native.WithLogger(logger)),
		golib.New(golib.WithSearchPaths(cfg.SearchPaths...), golib.WithLogger(logger)),
		goplugin.New(goplugin.WithLogger(logger)),
		lua.New(lua.WithLogger(logger)),
	}
	for _, e := range engines {
		if err := sys.Engines.Insert(e); err != nil {
			return nil, err
		}
	}

	if err := descriptor.Register(sys.Serializers); err != nil {
		return nil, err
	}

	dir, err := finder.NewDirectory(cfg.PluginsDir, cfg.Patterns, sys.Serializers, finder.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := dir.Register(sys.Finders, finderName); err != nil {
		return nil, err
	}
	return sys, nil
}
