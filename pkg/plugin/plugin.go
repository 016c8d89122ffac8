// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"context"
	"sync/atomic"
)

// Plugin is the lifecycle every loaded plugin instance implements.
//
// Startup may be called once; Shutdown reverses it. Startup on an
// initialized plugin and Shutdown on a plugin that is not initialized fail.
type Plugin interface {
	// Info returns a copy of the plugin's descriptor.
	Info() Info

	// Initialized reports whether Startup succeeded and Shutdown has not run since.
	Initialized() bool

	// Startup brings the plugin into service.
	Startup(ctx context.Context) error

	// Shutdown takes the plugin out of service.
	Shutdown(ctx context.Context) error
}

// Base carries the descriptor and the initialized flag for Plugin
// implementations. Embed a *Base; it must not be copied after first use.
type Base struct {
	info        Info
	initialized atomic.Bool
}

// NewBase creates a Base holding a copy of info.
func NewBase(info Info) *Base {
	return &Base{info: info.Clone()}
}

// Info returns a copy of the descriptor.
func (b *Base) Info() Info {
	return b.info.Clone()
}

// Name returns the plugin name.
func (b *Base) Name() string {
	return b.info.Name
}

// Initialized reports the lifecycle flag.
func (b *Base) Initialized() bool {
	return b.initialized.Load()
}

// SetInitialized sets the lifecycle flag.
func (b *Base) SetInitialized(v bool) {
	b.initialized.Store(v)
}

// CheckStartup fails with ErrAlreadyStarted when the plugin is initialized.
func (b *Base) CheckStartup() error {
	if b.Initialized() {
		return ErrAlreadyStarted(b.info.Name)
	}
	return nil
}

// CheckShutdown fails with ErrNotStarted when the plugin is not initialized.
func (b *Base) CheckShutdown() error {
	if !b.Initialized() {
		return ErrNotStarted(b.info.Name)
	}
	return nil
}
