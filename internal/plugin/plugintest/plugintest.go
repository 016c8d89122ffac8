// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package plugintest provides an in-memory engine and plugin for tests.
package plugintest

import (
	"context"
	"sync"

	"github.com/samber/oops"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// EngineID is the engine id used by Engine unless overridden.
const EngineID = "Fake"

// Plugin is a fake plugin whose lifecycle results are scripted.
type Plugin struct {
	*pluginpkg.Base

	mu          sync.Mutex
	StartupErr  error
	ShutdownErr error
	OnStartup   func(ctx context.Context) error
	Startups    int
	Shutdowns   int
}

// NewPlugin creates a fake plugin for info.
func NewPlugin(info pluginpkg.Info) *Plugin {
	return &Plugin{Base: pluginpkg.NewBase(info)}
}

// Startup records the call and fails with StartupErr when set.
func (p *Plugin) Startup(ctx context.Context) error {
	if err := p.CheckStartup(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Startups++
	hook, fail := p.OnStartup, p.StartupErr
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if fail != nil {
		return fail
	}
	p.SetInitialized(true)
	return nil
}

// Shutdown records the call and fails with ShutdownErr when set.
func (p *Plugin) Shutdown(_ context.Context) error {
	if err := p.CheckShutdown(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Shutdowns++
	if p.ShutdownErr != nil {
		return p.ShutdownErr
	}
	p.SetInitialized(false)
	return nil
}

// Engine is a fake engine that creates Plugin instances.
type Engine struct {
	id string

	mu        sync.Mutex
	loadErr   map[string]error
	unloadErr map[string]error
	prepare   map[string]func(*Plugin)
	instances map[string]*Plugin
	loads     []string
	unloads   []string

	// OnLoad runs at the start of every Load when set.
	OnLoad func(ctx context.Context, info pluginpkg.Info) error
}

var _ plugins.Engine = (*Engine)(nil)

// NewEngine creates a fake engine with id EngineID.
func NewEngine() *Engine {
	return NewEngineWithID(EngineID)
}

// NewEngineWithID creates a fake engine with the given id.
func NewEngineWithID(id string) *Engine {
	return &Engine{
		id:        id,
		loadErr:   make(map[string]error),
		unloadErr: make(map[string]error),
		prepare:   make(map[string]func(*Plugin)),
		instances: make(map[string]*Plugin),
	}
}

// ID returns the engine id.
func (e *Engine) ID() string { return e.id }

// Name returns a display name.
func (e *Engine) Name() string { return "Fake engine " + e.id }

// FailLoad makes loading name fail with err.
func (e *Engine) FailLoad(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadErr[name] = err
}

// FailUnload makes unloading name fail with err.
func (e *Engine) FailUnload(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadErr[name] = err
}

// Prepare registers fn to configure the instance created for name.
func (e *Engine) Prepare(name string, fn func(*Plugin)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prepare[name] = fn
}

// Load creates a Plugin for info.
func (e *Engine) Load(ctx context.Context, info pluginpkg.Info) (pluginpkg.Plugin, error) {
	if err := plugins.CheckEngine(e.id, info, pluginpkg.CodeEngineLoad); err != nil {
		return nil, err
	}
	if e.OnLoad != nil {
		if err := e.OnLoad(ctx, info); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.loads = append(e.loads, info.Name)
	if err := e.loadErr[info.Name]; err != nil {
		return nil, err
	}
	p := NewPlugin(info)
	if fn := e.prepare[info.Name]; fn != nil {
		fn(p)
	}
	e.instances[info.Name] = p
	return p, nil
}

// Unload releases a Plugin created by Load.
func (e *Engine) Unload(_ context.Context, p pluginpkg.Plugin) error {
	if p == nil {
		return oops.Code(pluginpkg.CodeInvalidArgument).Errorf("plugin cannot be nil")
	}
	info := p.Info()
	if err := plugins.CheckEngine(e.id, info, pluginpkg.CodeEngineUnload); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.unloads = append(e.unloads, info.Name)
	if err := e.unloadErr[info.Name]; err != nil {
		return err
	}
	delete(e.instances, info.Name)
	return nil
}

// Instance returns the live instance created for name.
func (e *Engine) Instance(name string) *Plugin {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instances[name]
}

// Loads returns the names passed to Load, in call order.
func (e *Engine) Loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loads...)
}

// Unloads returns the names passed to Unload, in call order.
func (e *Engine) Unloads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.unloads...)
}

// Info builds a descriptor for the fake engine.
func Info(name string, deps ...string) pluginpkg.Info {
	return pluginpkg.Info{
		Name:         name,
		Version:      "1.0.0",
		Engine:       EngineID,
		Dependencies: deps,
	}
}
