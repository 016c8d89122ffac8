// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"context"

	"github.com/samber/oops"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Engine loads and unloads plugins of one implementation technology.
type Engine interface {
	// ID is the key plugin descriptors use in their engine field.
	ID() string

	// Name is a human readable engine name.
	Name() string

	// Load creates a plugin instance from its descriptor.
	Load(ctx context.Context, info pluginpkg.Info) (pluginpkg.Plugin, error)

	// Unload releases a plugin instance created by Load.
	Unload(ctx context.Context, p pluginpkg.Plugin) error
}

// EngineRegistry maps engine ids to engines.
type EngineRegistry struct {
	engines *Registry[Engine]
}

// NewEngineRegistry creates an empty engine registry.
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{engines: NewRegistry[Engine]("engine")}
}

// Insert registers e under its id.
func (r *EngineRegistry) Insert(e Engine) error {
	if isNil(e) {
		return oops.Code(pluginpkg.CodeInvalidArgument).Errorf("engine cannot be nil")
	}
	return r.engines.Insert(e.ID(), e)
}

// Remove unregisters the engine with the given id.
func (r *EngineRegistry) Remove(id string) error {
	return r.engines.Remove(id)
}

// Get returns the engine with the given id.
func (r *EngineRegistry) Get(id string) (Engine, error) {
	return r.engines.Get(id)
}

// Exists reports whether an engine with the given id is registered.
func (r *EngineRegistry) Exists(id string) bool {
	return r.engines.Exists(id)
}

// List returns the registered engine ids in sorted order.
func (r *EngineRegistry) List() []string {
	return r.engines.List()
}

// Clear removes every engine.
func (r *EngineRegistry) Clear() {
	r.engines.Clear()
}

// CheckEngine fails with code when info does not belong to engine id.
// Engines call it at the top of Load and Unload.
func CheckEngine(id string, info pluginpkg.Info, code string) error {
	if info.Engine == id {
		return nil
	}
	return oops.Code(code).
		With("plugin", info.Name).
		With("engine", id).
		With("declared_engine", info.Engine).
		Errorf("plugin %s declares engine %q, not %q", info.Name, info.Engine, id)
}
