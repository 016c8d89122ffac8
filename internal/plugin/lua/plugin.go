// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package lua

import (
	"context"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Lifecycle functions a script may define.
const (
	FuncStartup  = "startup"
	FuncShutdown = "shutdown"
)

// Plugin is a loaded Lua script. An LState is not safe for concurrent
// use, so every call into the script holds mu.
type Plugin struct {
	*pluginpkg.Base

	path   string
	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

// Path returns the script the plugin was loaded from.
func (p *Plugin) Path() string {
	return p.path
}

// Startup calls the script's startup function, if any.
func (p *Plugin) Startup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.CheckStartup(); err != nil {
		return err
	}
	if err := p.call(ctx, FuncStartup, pluginpkg.CodePluginStartup); err != nil {
		return err
	}
	p.SetInitialized(true)
	return nil
}

// Shutdown calls the script's shutdown function, if any.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.CheckShutdown(); err != nil {
		return err
	}
	if err := p.call(ctx, FuncShutdown, pluginpkg.CodePluginShutdown); err != nil {
		return err
	}
	p.SetInitialized(false)
	return nil
}

// call runs a global function with no arguments. A missing function is
// not an error. A function returning false, msg fails the call.
func (p *Plugin) call(ctx context.Context, name, code string) error {
	errb := oops.Code(code).In("lua").With("plugin", p.Name()).With("function", name)
	if p.closed {
		return errb.Errorf("plugin %s was unloaded", p.Name())
	}

	fn := p.state.GetGlobal(name)
	if fn.Type() == lua.LTNil {
		return nil
	}
	if fn.Type() != lua.LTFunction {
		return errb.Errorf("plugin %s: %s is a %s, not a function", p.Name(), name, fn.Type())
	}

	p.state.SetContext(ctx)
	defer p.state.RemoveContext()

	if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}); err != nil {
		return errb.Wrapf(err, "plugin %s: %s failed", p.Name(), name)
	}
	ok, msg := p.state.Get(-2), p.state.Get(-1)
	p.state.Pop(2)

	if ok == lua.LFalse {
		return errb.Errorf("plugin %s: %s failed: %s", p.Name(), name, lua.LVAsString(msg))
	}
	return nil
}

func (p *Plugin) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.state.Close()
	p.SetInitialized(false)
}
