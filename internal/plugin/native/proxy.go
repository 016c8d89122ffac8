// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package native

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/oops"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Exported symbols of a native plugin library.
const (
	SymbolGetInstance = "te_cpp_plugin_get_instance"
	SymbolStartup     = "te_cpp_plugin_startup"
	SymbolShutdown    = "te_cpp_plugin_shutdown"
	SymbolDestroy     = "te_cpp_plugin_destroy"
)

// symbols holds the bound entry points of a library.
type symbols struct {
	getInstance func(infoJSON string) uintptr
	startup     func(instance uintptr) int32
	shutdown    func(instance uintptr) int32
	destroy     func(instance uintptr)
}

func bind(lib Library) (symbols, error) {
	var s symbols
	for name, fptr := range map[string]any{
		SymbolGetInstance: &s.getInstance,
		SymbolStartup:     &s.startup,
		SymbolShutdown:    &s.shutdown,
		SymbolDestroy:     &s.destroy,
	} {
		if err := lib.Func(name, fptr); err != nil {
			return symbols{}, oops.With("symbol", name).Wrapf(err, "resolve %s", name)
		}
	}
	return s, nil
}

// Plugin owns a native plugin instance and a reference to the library
// it came from.
type Plugin struct {
	*pluginpkg.Base

	libs     *libraryCache
	lib      *sharedLibrary
	fns      symbols
	instance uintptr

	mu       sync.Mutex
	released bool
}

// Path returns the path of the library the plugin was loaded from.
func (p *Plugin) Path() string {
	return p.lib.path
}

// Startup calls te_cpp_plugin_startup.
func (p *Plugin) Startup(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.CheckStartup(); err != nil {
		return err
	}
	if p.released {
		return oops.Code(pluginpkg.CodePluginStartup).With("plugin", p.Name()).Errorf("plugin %s was unloaded", p.Name())
	}
	if rc := p.fns.startup(p.instance); rc != 0 {
		return oops.Code(pluginpkg.CodePluginStartup).
			With("plugin", p.Name()).
			With("status", rc).
			Errorf("plugin %s startup returned %d", p.Name(), rc)
	}
	p.SetInitialized(true)
	return nil
}

// Shutdown calls te_cpp_plugin_shutdown.
func (p *Plugin) Shutdown(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return oops.Code(pluginpkg.CodePluginShutdown).With("plugin", p.Name()).Errorf("plugin %s was unloaded", p.Name())
	}
	if err := p.CheckShutdown(); err != nil {
		return err
	}
	return p.shutdownLocked()
}

func (p *Plugin) shutdownLocked() error {
	if rc := p.fns.shutdown(p.instance); rc != 0 {
		return oops.Code(pluginpkg.CodePluginShutdown).
			With("plugin", p.Name()).
			With("status", rc).
			Errorf("plugin %s shutdown returned %d", p.Name(), rc)
	}
	p.SetInitialized(false)
	return nil
}

// release shuts a started instance down, destroys it, then drops the
// library reference. The instance is destroyed and the reference dropped
// even when shutdown fails; no plugin code runs after that.
func (p *Plugin) release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil
	}

	var shutdownErr error
	if p.Initialized() {
		shutdownErr = p.shutdownLocked()
		p.SetInitialized(false)
	}

	p.released = true
	p.fns.destroy(p.instance)
	p.instance = 0
	if err := p.libs.release(p.lib); err != nil {
		return errors.Join(shutdownErr, err)
	}
	return shutdownErr
}
