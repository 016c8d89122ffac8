// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package hostfunc provides host functions to Lua plugins.
//
// Host functions expose host facilities to plugins in a controlled way.
// Functions that reach outside the sandbox require capability grants.
package hostfunc

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/terraplug/terraplug/internal/plugin/capability"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ModuleName is the global table host functions are registered under.
const ModuleName = "terraplug"

// Capabilities checked by host functions.
const (
	CapabilityFSRead  = "fs.read"
	CapabilityEnvRead = "env.read"
)

// Functions provides host functions to Lua plugins.
type Functions struct {
	logger   *slog.Logger
	enforcer *capability.Enforcer
}

// New creates host functions. Panics if enforcer is nil.
func New(logger *slog.Logger, enforcer *capability.Enforcer) *Functions {
	if enforcer == nil {
		panic("hostfunc: enforcer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Functions{logger: logger, enforcer: enforcer}
}

// Register adds the terraplug table to a Lua state for the given plugin.
func (f *Functions) Register(ls *lua.LState, info pluginpkg.Info) {
	mod := ls.NewTable()

	// No capability required.
	ls.SetField(mod, "log", ls.NewFunction(f.logFn(info.Name)))
	ls.SetField(mod, "new_id", ls.NewFunction(newIDFn))
	ls.SetField(mod, "parameter", ls.NewFunction(parameterFn(info)))

	// Capability checked per call.
	ls.SetField(mod, "getenv", ls.NewFunction(f.getenvFn(info.Name)))
	ls.SetField(mod, "read_file", ls.NewFunction(f.wrap(info.Name, CapabilityFSRead, readFileFn(info.Dir))))

	ls.SetGlobal(ModuleName, mod)
}

func (f *Functions) wrap(plugin, capName string, fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if !f.enforcer.Check(plugin, capName) {
			L.RaiseError("capability denied: %s requires %s", plugin, capName)
			return 0
		}
		return fn(L)
	}
}

func (f *Functions) logFn(pluginName string) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		logger := f.logger.With("plugin", pluginName)
		switch level {
		case "debug":
			logger.Debug(message)
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		default:
			logger.Info(message)
		}
		return 0
	}
}

func newIDFn(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}

func parameterFn(info pluginpkg.Info) lua.LGFunction {
	params := info.Parameters.Map()
	return func(L *lua.LState) int {
		v, ok := params[L.CheckString(1)]
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(v))
		return 1
	}
}

func (f *Functions) getenvFn(pluginName string) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		capName := CapabilityEnvRead + "." + name
		if !f.enforcer.Check(pluginName, capName) {
			L.RaiseError("capability denied: %s requires %s", pluginName, capName)
			return 0
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(v))
		return 1
	}
}

// readFileFn reads files below dir. It returns content, nil or nil, error.
func readFileFn(dir string) lua.LGFunction {
	return func(L *lua.LState) int {
		rel := L.CheckString(1)
		if !filepath.IsLocal(rel) {
			L.Push(lua.LNil)
			L.Push(lua.LString("path escapes the plugin directory: " + rel))
			return 2
		}

		data, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LString(string(data)))
		L.Push(lua.LNil)
		return 2
	}
}
