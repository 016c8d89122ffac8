// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package plugin tracks known plugins, loads them through engines in
// dependency order, and manages their lifecycle.
package plugin

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

const tracerName = "github.com/terraplug/terraplug/internal/plugin"

// State is the manager-side state of a known plugin.
type State int

// Plugin states. Every known plugin is in exactly one of them.
const (
	StateUnloaded State = iota
	StateLoaded
	StateBroken
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status describes one known plugin.
type Status struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Engine      string    `json:"engine"`
	Version     string    `json:"version,omitempty"`
	Started     bool      `json:"started"`
	Instance    ulid.ULID `json:"instance,omitzero"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
	Depends     []string  `json:"depends,omitempty"`
	RequiredBy  []string  `json:"required_by,omitempty"`
	Description string    `json:"description,omitempty"`
}

// loadedPlugin holds state for a single loaded plugin.
type loadedPlugin struct {
	info     pluginpkg.Info
	plugin   pluginpkg.Plugin
	instance ulid.ULID
	loadedAt time.Time
}

// Manager tracks every known plugin as unloaded, loaded, or broken.
//
// The internal lock is never held while engine or plugin code runs, so a
// plugin may call back into the manager from Startup or Shutdown. A name
// with an operation in flight rejects other mutations with PLUGIN_BUSY.
type Manager struct {
	engines     *EngineRegistry
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	hostName    string
	hostVersion string
	loadTimeout time.Duration
	now         func() time.Time

	mu         sync.Mutex
	plugins    map[string]*loadedPlugin
	order      []string
	unloaded   map[string]pluginpkg.Info
	broken     map[string]pluginpkg.Info
	dependents map[string][]string
	inflight   map[string]string
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records operations and state counts.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = t
	}
}

// WithHostApplication declares the application hosting the plugins.
// Descriptors naming a host application must name this one, and their
// version constraint must accept version.
func WithHostApplication(name, version string) ManagerOption {
	return func(m *Manager) {
		m.hostName = name
		m.hostVersion = version
	}
}

// WithLoadTimeout bounds each engine load. Zero disables the bound.
func WithLoadTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.loadTimeout = d
	}
}

// NewManager creates a manager that loads plugins through engines.
// Panics if engines is nil.
func NewManager(engines *EngineRegistry, opts ...ManagerOption) *Manager {
	if engines == nil {
		panic("plugin.NewManager: engines cannot be nil")
	}
	m := &Manager{
		engines:    engines,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		plugins:    make(map[string]*loadedPlugin),
		unloaded:   make(map[string]pluginpkg.Info),
		broken:     make(map[string]pluginpkg.Info),
		dependents: make(map[string][]string),
		inflight:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Insert registers a plugin descriptor as unloaded.
func (m *Manager) Insert(info pluginpkg.Info) error {
	if err := info.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.existsLocked(info.Name) {
		return pluginpkg.ErrDuplicateName("plugin", info.Name)
	}
	m.unloaded[info.Name] = info.Clone()
	m.publishLocked()

	m.logger.Debug("plugin registered", "plugin", info.Name, "engine", info.Engine)
	return nil
}

// Load loads an unloaded or broken plugin through its engine and, if start
// is set, starts it. Dependencies are not loaded automatically; a plugin
// whose dependencies are not all loaded becomes broken.
func (m *Manager) Load(ctx context.Context, name string, start bool) (err error) {
	ctx, span := m.tracer.Start(ctx, "plugin.load", trace.WithAttributes(
		attribute.String("plugin.name", name),
		attribute.Bool("plugin.start", start),
	))
	defer func() { m.endSpan(span, "load", err) }()

	info, err := m.beginLoad(name)
	if err != nil {
		return err
	}

	engine, err := m.engines.Get(info.Engine)
	if err != nil {
		m.abortLoad(info, false)
		return err
	}
	span.SetAttributes(attribute.String("plugin.engine", info.Engine))

	if err := m.checkHost(info); err != nil {
		m.abortLoad(info, true)
		return err
	}

	p, err := m.engineLoad(ctx, engine, info)
	if err != nil {
		m.abortLoad(info, true)
		return err
	}

	if start {
		errb := oops.Code(pluginpkg.CodePluginStartup).In("manager").With("plugin", name)
		if err := m.checkDependenciesStarted(info, errb); err != nil {
			if uerr := engine.Unload(ctx, p); uerr != nil {
				m.logger.Warn("failed to release plugin after startup check",
					"plugin", name,
					"error", uerr)
			}
			m.abortLoad(info, false)
			return err
		}
		if err := p.Startup(ctx); err != nil {
			if uerr := engine.Unload(ctx, p); uerr != nil {
				m.logger.Warn("failed to release plugin after startup failure",
					"plugin", name,
					"error", uerr)
			}
			m.abortLoad(info, true)
			return rewrap(oops.Code(pluginpkg.CodePluginStartup).In("manager").With("plugin", name),
				err, "plugin %s failed to start", name)
		}
	}

	lp := &loadedPlugin{
		info:     info,
		plugin:   p,
		instance: ulid.Make(),
		loadedAt: m.now(),
	}

	m.mu.Lock()
	delete(m.inflight, name)
	delete(m.unloaded, name)
	delete(m.broken, name)
	m.plugins[name] = lp
	m.order = append(m.order, name)
	if _, ok := m.dependents[name]; !ok {
		m.dependents[name] = []string{}
	}
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("plugin loaded",
		"plugin", name,
		"engine", info.Engine,
		"version", info.Version,
		"instance", lp.instance.String(),
		"started", start)
	return nil
}

// beginLoad validates the preconditions of Load and reserves name and its
// dependencies until the load completes or is aborted.
func (m *Manager) beginLoad(name string) (pluginpkg.Info, error) {
	errb := oops.Code(pluginpkg.CodePluginLoad).In("manager").With("plugin", name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plugins[name]; ok {
		return pluginpkg.Info{}, errb.Errorf("plugin %s is already loaded", name)
	}
	info, ok := m.unloaded[name]
	if !ok {
		info, ok = m.broken[name]
	}
	if !ok {
		return pluginpkg.Info{}, pluginpkg.ErrNotFound("plugin", name)
	}
	if op, busy := m.inflight[name]; busy {
		return pluginpkg.Info{}, errBusy(name, op)
	}

	for _, dep := range info.Dependencies {
		if op, busy := m.inflight[dep]; busy {
			return pluginpkg.Info{}, errBusy(dep, op)
		}
		if _, ok := m.plugins[dep]; !ok {
			m.markBrokenLocked(name)
			m.publishLocked()
			m.logger.Warn("plugin dependency not loaded",
				"plugin", name,
				"dependency", dep)
			return pluginpkg.Info{}, errb.
				With("dependency", dep).
				Hint("load the dependencies first").
				Errorf("plugin %s depends on %s, which is not loaded", name, dep)
		}
	}

	m.inflight[name] = "load"
	for _, dep := range info.Dependencies {
		m.dependents[dep] = append(m.dependents[dep], name)
	}
	return info.Clone(), nil
}

// abortLoad releases the reservations of beginLoad. When broken is set an
// unloaded plugin becomes broken.
func (m *Manager) abortLoad(info pluginpkg.Info, broken bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.inflight, info.Name)
	for _, dep := range info.Dependencies {
		m.dependents[dep] = without(m.dependents[dep], info.Name)
	}
	if broken {
		m.markBrokenLocked(info.Name)
		m.logger.Warn("plugin is broken", "plugin", info.Name, "engine", info.Engine)
	}
	m.publishLocked()
}

// engineLoad calls into the engine and normalizes its failures to PLUGIN_LOAD.
func (m *Manager) engineLoad(ctx context.Context, engine Engine, info pluginpkg.Info) (pluginpkg.Plugin, error) {
	if m.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.loadTimeout)
		defer cancel()
	}

	errb := oops.Code(pluginpkg.CodePluginLoad).
		In("manager").
		With("plugin", info.Name).
		With("engine", engine.ID())

	p, err := engine.Load(ctx, info)
	if err != nil {
		return nil, rewrap(errb, err, "plugin %s failed to load", info.Name)
	}
	if p == nil {
		return nil, errb.Errorf("engine %s returned no instance for plugin %s", engine.ID(), info.Name)
	}
	return p, nil
}

// checkHost verifies the descriptor's host application against the host.
func (m *Manager) checkHost(info pluginpkg.Info) error {
	want := info.HostApplication
	if m.hostName == "" || want.Name == "" {
		return nil
	}

	errb := oops.Code(pluginpkg.CodePluginLoad).
		In("manager").
		With("plugin", info.Name).
		With("host", m.hostName)

	if !strings.EqualFold(want.Name, m.hostName) {
		return errb.Errorf("plugin %s targets host application %s, not %s", info.Name, want.Name, m.hostName)
	}
	if want.Version == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(want.Version)
	if err != nil {
		return errb.With("constraint", want.Version).Wrapf(err, "plugin %s has an invalid host version constraint", info.Name)
	}
	version, err := semver.NewVersion(m.hostVersion)
	if err != nil {
		return errb.With("host_version", m.hostVersion).Wrapf(err, "host version is not a semantic version")
	}
	if !constraint.Check(version) {
		return errb.
			With("constraint", want.Version).
			With("host_version", m.hostVersion).
			Errorf("plugin %s requires %s %s, host is %s", info.Name, want.Name, want.Version, m.hostVersion)
	}
	return nil
}

// Start starts a loaded plugin.
func (m *Manager) Start(ctx context.Context, name string) (err error) {
	ctx, span := m.tracer.Start(ctx, "plugin.start", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer func() { m.endSpan(span, "start", err) }()

	errb := oops.Code(pluginpkg.CodePluginStartup).In("manager").With("plugin", name)

	p, err := m.acquire(name, "start", errb)
	if err != nil {
		return err
	}
	defer m.release(name)

	m.mu.Lock()
	info := m.plugins[name].info
	m.mu.Unlock()
	if err := m.checkDependenciesStarted(info, errb); err != nil {
		return err
	}

	if err := p.Startup(ctx); err != nil {
		return rewrap(errb, err, "plugin %s failed to start", name)
	}

	m.logger.Info("plugin started", "plugin", name)
	return nil
}

// Stop shuts down a loaded plugin. It fails while a started dependent, or
// one with an operation in flight, still needs it. Stopped dependents stay
// recorded and keep Unload from releasing the plugin.
func (m *Manager) Stop(ctx context.Context, name string) (err error) {
	ctx, span := m.tracer.Start(ctx, "plugin.stop", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer func() { m.endSpan(span, "stop", err) }()

	errb := oops.Code(pluginpkg.CodePluginShutdown).In("manager").With("plugin", name)

	p, err := m.acquire(name, "stop", errb)
	if err != nil {
		return err
	}
	defer m.release(name)

	m.mu.Lock()
	deps := m.activeDependentsLocked(name)
	m.mu.Unlock()
	if len(deps) > 0 {
		return errb.
			With("dependents", deps).
			Errorf("plugin %s is required by: %s", name, strings.Join(deps, ", "))
	}

	if err := p.Shutdown(ctx); err != nil {
		return rewrap(errb, err, "plugin %s failed to stop", name)
	}

	m.logger.Info("plugin stopped", "plugin", name)
	return nil
}

// Unload releases a stopped plugin through its engine and marks it unloaded.
func (m *Manager) Unload(ctx context.Context, name string) (err error) {
	ctx, span := m.tracer.Start(ctx, "plugin.unload", trace.WithAttributes(attribute.String("plugin.name", name)))
	defer func() { m.endSpan(span, "unload", err) }()

	errb := oops.Code(pluginpkg.CodePluginUnload).In("manager").With("plugin", name)

	p, err := m.acquire(name, "unload", errb)
	if err != nil {
		return err
	}
	defer m.release(name)

	if p.Initialized() {
		return errb.Hint("stop the plugin first").Errorf("plugin %s is still started", name)
	}

	m.mu.Lock()
	deps := slices.Clone(m.dependents[name])
	info := m.plugins[name].info
	m.mu.Unlock()
	if len(deps) > 0 {
		return errb.
			With("dependents", deps).
			Errorf("plugin %s is required by: %s", name, strings.Join(deps, ", "))
	}

	engine, err := m.engines.Get(info.Engine)
	if err != nil {
		return rewrap(errb.With("engine", info.Engine), err, "cannot unload plugin %s", name)
	}
	if err := engine.Unload(ctx, p); err != nil {
		return rewrap(errb.With("engine", info.Engine), err, "plugin %s failed to unload", name)
	}

	m.mu.Lock()
	for _, dep := range info.Dependencies {
		m.dependents[dep] = without(m.dependents[dep], name)
	}
	delete(m.dependents, name)
	delete(m.plugins, name)
	m.order = without(m.order, name)
	m.unloaded[name] = info
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("plugin unloaded", "plugin", name)
	return nil
}

// activeDependentsLocked returns the dependents of name that are started
// or busy.
func (m *Manager) activeDependentsLocked(name string) []string {
	var active []string
	for _, d := range m.dependents[name] {
		if _, busy := m.inflight[d]; busy {
			active = append(active, d)
			continue
		}
		if lp, ok := m.plugins[d]; ok && lp.plugin.Initialized() {
			active = append(active, d)
		}
	}
	return active
}

// checkDependenciesStarted fails when a dependency of info is not started.
func (m *Manager) checkDependenciesStarted(info pluginpkg.Info, errb oops.OopsErrorBuilder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range info.Dependencies {
		if lp, ok := m.plugins[dep]; !ok || !lp.plugin.Initialized() {
			return errb.
				With("dependency", dep).
				Hint("start the dependencies first").
				Errorf("plugin %s depends on %s, which is not started", info.Name, dep)
		}
	}
	return nil
}

// acquire marks a loaded plugin as busy with op and returns its instance.
func (m *Manager) acquire(name, op string, errb oops.OopsErrorBuilder) (pluginpkg.Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lp, ok := m.plugins[name]
	if !ok {
		return nil, errb.Errorf("plugin %s is not loaded", name)
	}
	if current, busy := m.inflight[name]; busy {
		return nil, errBusy(name, current)
	}
	m.inflight[name] = op
	return lp.plugin, nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	delete(m.inflight, name)
	m.mu.Unlock()
}

// Remove forgets a plugin. A loaded plugin is stopped and unloaded first.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if !m.Exists(name) {
		return pluginpkg.ErrNotFound("plugin", name)
	}

	if p, err := m.Get(name); err == nil {
		if p.Initialized() {
			if err := m.Stop(ctx, name); err != nil {
				return err
			}
		}
		if err := m.Unload(ctx, name); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if op, busy := m.inflight[name]; busy {
		return errBusy(name, op)
	}
	switch {
	case m.hasUnloadedLocked(name):
		delete(m.unloaded, name)
	case m.hasBrokenLocked(name):
		delete(m.broken, name)
	default:
		return pluginpkg.ErrNotFound("plugin", name)
	}
	m.publishLocked()

	m.logger.Debug("plugin removed", "plugin", name)
	return nil
}

// Clear removes every plugin, tearing loaded plugins down in reverse load
// order. Plugins that fail to stop or unload are released through their
// engine directly, then dropped, and their errors returned together.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	order := slices.Clone(m.order)
	m.mu.Unlock()

	var errs []error
	for _, name := range slices.Backward(order) {
		if err := m.Remove(ctx, name); err != nil {
			m.logger.Warn("dropping plugin that failed to tear down",
				"plugin", name,
				"error", err)
			errs = append(errs, err)
		}
	}
	m.forceRelease(ctx)

	m.mu.Lock()
	clear(m.plugins)
	m.order = nil
	clear(m.unloaded)
	clear(m.broken)
	clear(m.dependents)
	m.publishLocked()
	m.mu.Unlock()

	if len(errs) > 0 {
		return oops.Code(pluginpkg.CodePluginUnload).
			In("manager").
			Wrapf(errors.Join(errs...), "%d plugins failed to tear down", len(errs))
	}
	return nil
}

// forceRelease hands every plugin still loaded back to its engine,
// dependents first, ignoring started state and dependents. Failures are
// logged.
func (m *Manager) forceRelease(ctx context.Context) {
	m.mu.Lock()
	var left []*loadedPlugin
	for _, name := range slices.Backward(m.order) {
		if _, busy := m.inflight[name]; busy {
			continue
		}
		if lp, ok := m.plugins[name]; ok {
			left = append(left, lp)
		}
	}
	m.mu.Unlock()

	for _, lp := range left {
		engine, err := m.engines.Get(lp.info.Engine)
		if err == nil {
			err = engine.Unload(ctx, lp.plugin)
		}
		if err != nil {
			m.logger.Warn("plugin could not be released",
				"plugin", lp.info.Name,
				"engine", lp.info.Engine,
				"error", err)
			continue
		}
		m.logger.Debug("plugin released after failed teardown", "plugin", lp.info.Name)
	}
}

// Plugins returns the names of all known plugins in sorted order.
func (m *Manager) Plugins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.plugins)+len(m.unloaded)+len(m.broken))
	for name := range m.plugins {
		names = append(names, name)
	}
	for name := range m.unloaded {
		names = append(names, name)
	}
	for name := range m.broken {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the descriptor of a known plugin.
func (m *Manager) Info(name string) (pluginpkg.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lp, ok := m.plugins[name]; ok {
		return lp.info.Clone(), nil
	}
	if info, ok := m.unloaded[name]; ok {
		return info.Clone(), nil
	}
	if info, ok := m.broken[name]; ok {
		return info.Clone(), nil
	}
	return pluginpkg.Info{}, pluginpkg.ErrNotFound("plugin", name)
}

// Get returns a loaded plugin instance.
func (m *Manager) Get(name string) (pluginpkg.Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lp, ok := m.plugins[name]
	if !ok {
		return nil, pluginpkg.ErrNotFound("loaded plugin", name)
	}
	return lp.plugin, nil
}

// LoadedPlugins returns the names of loaded plugins in load order.
func (m *Manager) LoadedPlugins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// UnloadedPlugins returns the descriptors of unloaded plugins sorted by name.
func (m *Manager) UnloadedPlugins() []pluginpkg.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedInfos(m.unloaded)
}

// BrokenPlugins returns the descriptors of broken plugins sorted by name.
func (m *Manager) BrokenPlugins() []pluginpkg.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedInfos(m.broken)
}

// Dependents returns the loaded plugins that depend on name.
func (m *Manager) Dependents(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.dependents[name])
}

// IsLoaded reports whether name is loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.plugins[name]
	return ok
}

// IsUnloaded reports whether name is known but not loaded.
func (m *Manager) IsUnloaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasUnloadedLocked(name)
}

// IsBroken reports whether name failed to load.
func (m *Manager) IsBroken(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasBrokenLocked(name)
}

// Exists reports whether name is known in any state.
func (m *Manager) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsLocked(name)
}

// State returns the state of a known plugin.
func (m *Manager) State(name string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.plugins[name] != nil:
		return StateLoaded, true
	case m.hasUnloadedLocked(name):
		return StateUnloaded, true
	case m.hasBrokenLocked(name):
		return StateBroken, true
	default:
		return StateUnloaded, false
	}
}

// Snapshot returns the status of every known plugin: loaded plugins in load
// order, then unloaded and broken plugins sorted by name.
func (m *Manager) Snapshot() []Status {
	m.mu.Lock()
	loaded := make([]*loadedPlugin, 0, len(m.order))
	for _, name := range m.order {
		loaded = append(loaded, m.plugins[name])
	}
	unloaded := sortedInfos(m.unloaded)
	broken := sortedInfos(m.broken)
	deps := make(map[string][]string, len(m.dependents))
	for k, v := range m.dependents {
		deps[k] = slices.Clone(v)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(loaded)+len(unloaded)+len(broken))
	for _, lp := range loaded {
		s := statusOf(lp.info, StateLoaded)
		s.Started = lp.plugin.Initialized()
		s.Instance = lp.instance
		s.LoadedAt = lp.loadedAt
		s.RequiredBy = deps[lp.info.Name]
		out = append(out, s)
	}
	for _, info := range unloaded {
		out = append(out, statusOf(info, StateUnloaded))
	}
	for _, info := range broken {
		out = append(out, statusOf(info, StateBroken))
	}
	return out
}

func statusOf(info pluginpkg.Info, state State) Status {
	return Status{
		Name:        info.Name,
		State:       state,
		Engine:      info.Engine,
		Version:     info.Version,
		Depends:     slices.Clone(info.Dependencies),
		Description: info.Description,
	}
}

func (m *Manager) existsLocked(name string) bool {
	_, loaded := m.plugins[name]
	return loaded || m.hasUnloadedLocked(name) || m.hasBrokenLocked(name)
}

func (m *Manager) hasUnloadedLocked(name string) bool {
	_, ok := m.unloaded[name]
	return ok
}

func (m *Manager) hasBrokenLocked(name string) bool {
	_, ok := m.broken[name]
	return ok
}

func (m *Manager) markBrokenLocked(name string) {
	if info, ok := m.unloaded[name]; ok {
		delete(m.unloaded, name)
		m.broken[name] = info
	}
}

func (m *Manager) publishLocked() {
	m.metrics.setStates(len(m.plugins), len(m.unloaded), len(m.broken))
}

func (m *Manager) endSpan(span trace.Span, op string, err error) {
	m.metrics.observe(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func errBusy(name, op string) error {
	return oops.Code(pluginpkg.CodeBusy).
		In("manager").
		With("plugin", name).
		With("operation", op).
		Errorf("plugin %s has a %s in progress", name, op)
}

func sortedInfos(set map[string]pluginpkg.Info) []pluginpkg.Info {
	out := make([]pluginpkg.Info, 0, len(set))
	for _, info := range set {
		out = append(out, info.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func without(list []string, name string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == name })
}
