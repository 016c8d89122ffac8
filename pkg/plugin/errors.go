// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes attached to every error returned by the plugin subsystem.
const (
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeDuplicateName     = "DUPLICATE_NAME"
	CodeNotFound          = "NOT_FOUND"
	CodePluginLoad        = "PLUGIN_LOAD"
	CodeEngineLoad        = "PLUGIN_ENGINE_LOAD"
	CodePluginUnload      = "PLUGIN_UNLOAD"
	CodeEngineUnload      = "PLUGIN_ENGINE_UNLOAD"
	CodePluginStartup     = "PLUGIN_STARTUP"
	CodePluginShutdown    = "PLUGIN_SHUTDOWN"
	CodeCyclicDependency  = "CYCLIC_DEPENDENCY"
	CodeBusy              = "PLUGIN_BUSY"
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"
)

// Code returns the error code carried by err, or "" when err has none.
func Code(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// ErrNotFound creates a lookup miss error.
func ErrNotFound(kind, name string) error {
	return oops.Code(CodeNotFound).
		With(kind, name).
		Errorf("%s %q not found", kind, name)
}

// ErrDuplicateName creates an error for a name registered twice.
func ErrDuplicateName(kind, name string) error {
	return oops.Code(CodeDuplicateName).
		With(kind, name).
		Errorf("%s %q already registered", kind, name)
}

// ErrAlreadyStarted is returned by Startup on an initialized plugin.
func ErrAlreadyStarted(name string) error {
	return oops.Code(CodePluginStartup).
		With("plugin", name).
		Errorf("plugin %s is already started", name)
}

// ErrNotStarted is returned by Shutdown on a plugin that is not initialized.
func ErrNotStarted(name string) error {
	return oops.Code(CodePluginShutdown).
		With("plugin", name).
		Errorf("plugin %s is not started", name)
}
