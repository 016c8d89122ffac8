// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package goplugin

import (
	"context"
	"sync"

	"github.com/samber/oops"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/terraplug/terraplug/internal/pluginrpc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Plugin is the host side of a subprocess plugin.
type Plugin struct {
	*pluginpkg.Base

	path      string
	mu        sync.Mutex
	client    PluginClient
	lifecycle pluginrpc.LifecycleClient
	killed    bool
}

// Path returns the executable the plugin process was started from.
func (p *Plugin) Path() string {
	return p.path
}

// Startup sends the plugin descriptor to the plugin process.
func (p *Plugin) Startup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.CheckStartup(); err != nil {
		return err
	}
	errb := oops.Code(pluginpkg.CodePluginStartup).With("plugin", p.Name())
	if p.killed {
		return errb.Errorf("plugin %s was unloaded", p.Name())
	}

	info, err := pluginrpc.InfoToStruct(p.Info())
	if err != nil {
		return errb.Wrap(err)
	}
	if _, err := p.lifecycle.Startup(ctx, info); err != nil {
		return errb.Wrapf(err, "plugin %s startup failed", p.Name())
	}
	p.SetInitialized(true)
	return nil
}

// Shutdown asks the plugin process to shut down. The process keeps
// running until the plugin is unloaded.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.CheckShutdown(); err != nil {
		return err
	}
	if _, err := p.lifecycle.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		return oops.Code(pluginpkg.CodePluginShutdown).
			With("plugin", p.Name()).
			Wrapf(err, "plugin %s shutdown failed", p.Name())
	}
	p.SetInitialized(false)
	return nil
}

func (p *Plugin) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.killed {
		return
	}
	p.killed = true
	p.client.Kill()
	p.SetInitialized(false)
}
