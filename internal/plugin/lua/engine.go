// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package lua runs plugins written in Lua inside a sandboxed gopher-lua
// state.
//
// A script may define global startup() and shutdown() functions; the
// host calls them from the plugin lifecycle. The global plugin table
// carries the descriptor's name, version and parameters, and the
// terraplug table carries the host functions.
package lua

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/internal/plugin/capability"
	"github.com/terraplug/terraplug/internal/plugin/hostfunc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ID is the engine id plugin descriptors use.
const ID = "Lua"

// ResourceScript names the entry script, relative to the descriptor
// directory unless absolute.
const ResourceScript = "script"

// Engine loads Lua plugins.
type Engine struct {
	factory  *StateFactory
	enforcer *capability.Enforcer
	funcs    *hostfunc.Functions
	logger   *slog.Logger
}

var _ plugins.Engine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithEnforcer shares a capability enforcer with the engine.
func WithEnforcer(e *capability.Enforcer) Option {
	return func(eng *Engine) {
		eng.enforcer = e
	}
}

// WithLogger sets the logger for the engine and for scripts calling
// terraplug.log.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a Lua engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		factory: NewStateFactory(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.enforcer == nil {
		e.enforcer = capability.NewEnforcer()
	}
	e.funcs = hostfunc.New(e.logger, e.enforcer)
	return e
}

// ID returns "Lua".
func (e *Engine) ID() string { return ID }

// Name returns a display name.
func (e *Engine) Name() string { return "Lua script" }

// Load compiles and runs the plugin script in a fresh sandboxed state.
func (e *Engine) Load(ctx context.Context, info pluginpkg.Info) (pluginpkg.Plugin, error) {
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineLoad); err != nil {
		return nil, err
	}

	errb := oops.Code(pluginpkg.CodeEngineLoad).In("lua").With("plugin", info.Name)

	script, ok := info.Resource(ResourceScript)
	if !ok || strings.TrimSpace(script) == "" {
		return nil, errb.
			Hint("add a script resource to the plugin descriptor").
			Errorf("plugin %s: resource %s is required", info.Name, ResourceScript)
	}
	path := script
	if !filepath.IsAbs(path) {
		path = filepath.Join(info.Dir, script)
	}
	errb = errb.With("path", path)

	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errb.Hint("failed to read script").Wrapf(err, "plugin %s", info.Name)
	}

	if err := e.enforcer.SetGrants(info.Name, capability.Grants(info)); err != nil {
		return nil, errb.Wrapf(err, "plugin %s: invalid capabilities", info.Name)
	}

	L, err := e.newState(ctx, info, script, code)
	if err != nil {
		e.enforcer.RemoveGrants(info.Name)
		return nil, errb.Wrapf(err, "plugin %s", info.Name)
	}

	e.logger.Debug("lua script loaded", "plugin", info.Name, "path", path)
	return &Plugin{
		Base:  pluginpkg.NewBase(info),
		path:  path,
		state: L,
	}, nil
}

func (e *Engine) newState(ctx context.Context, info pluginpkg.Info, chunk string, code []byte) (*lua.LState, error) {
	L, err := e.factory.NewState(ctx)
	if err != nil {
		return nil, err
	}

	e.funcs.Register(L, info)
	L.SetGlobal("plugin", pluginTable(L, info))

	fn, err := L.Load(bytes.NewReader(code), chunk)
	if err != nil {
		L.Close()
		return nil, oops.Hint("syntax error").Wrap(err)
	}

	L.SetContext(ctx)
	defer L.RemoveContext()

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, oops.Hint("script failed").Wrap(err)
	}
	L.SetTop(0)
	return L, nil
}

func pluginTable(L *lua.LState, info pluginpkg.Info) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "name", lua.LString(info.Name))
	L.SetField(t, "version", lua.LString(info.Version))

	params := L.NewTable()
	for _, kv := range info.Parameters {
		L.SetField(params, kv.Key, lua.LString(kv.Value))
	}
	L.SetField(t, "parameters", params)
	return t
}

// Unload closes the plugin's Lua state and drops its grants.
func (e *Engine) Unload(_ context.Context, p pluginpkg.Plugin) error {
	if p == nil {
		return oops.Code(pluginpkg.CodeInvalidArgument).Errorf("plugin cannot be nil")
	}
	info := p.Info()
	if err := plugins.CheckEngine(ID, info, pluginpkg.CodeEngineUnload); err != nil {
		return err
	}
	lp, ok := p.(*Plugin)
	if !ok {
		return oops.Code(pluginpkg.CodeEngineUnload).
			With("plugin", info.Name).
			Errorf("plugin %s was not loaded by the %s engine", info.Name, ID)
	}
	lp.close()
	e.enforcer.RemoveGrants(info.Name)
	return nil
}
