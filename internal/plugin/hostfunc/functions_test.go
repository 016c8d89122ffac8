// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package hostfunc_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/terraplug/terraplug/internal/plugin/capability"
	"github.com/terraplug/terraplug/internal/plugin/hostfunc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

func newState(t *testing.T, info pluginpkg.Info, grants ...string) (*lua.LState, *bytes.Buffer) {
	t.Helper()

	enforcer := capability.NewEnforcer()
	require.NoError(t, enforcer.SetGrants(info.Name, grants))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	L := lua.NewState()
	t.Cleanup(L.Close)
	hostfunc.New(logger, enforcer).Register(L, info)
	return L, &buf
}

func TestNew_NilEnforcer(t *testing.T) {
	assert.Panics(t, func() { hostfunc.New(nil, nil) })
}

func TestLog(t *testing.T) {
	L, buf := newState(t, pluginpkg.Info{Name: "greeter"})

	require.NoError(t, L.DoString(`terraplug.log("warn", "disk low")`))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "disk low")
	assert.Contains(t, buf.String(), "plugin=greeter")

	require.NoError(t, L.DoString(`terraplug.log("whatever", "fallback")`))
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestNewID(t *testing.T) {
	L, _ := newState(t, pluginpkg.Info{Name: "greeter"})

	require.NoError(t, L.DoString(`id = terraplug.new_id()`))
	_, err := ulid.Parse(L.GetGlobal("id").String())
	require.NoError(t, err)
}

func TestParameter(t *testing.T) {
	info := pluginpkg.Info{
		Name:       "greeter",
		Parameters: pluginpkg.KeyValues{{Key: "greeting", Value: "hello"}},
	}
	L, _ := newState(t, info)

	require.NoError(t, L.DoString(`a = terraplug.parameter("greeting"); b = terraplug.parameter("missing")`))
	assert.Equal(t, "hello", L.GetGlobal("a").String())
	assert.Equal(t, lua.LNil, L.GetGlobal("b"))
}

func TestGetenv(t *testing.T) {
	t.Setenv("TERRAPLUG_TEST_VALUE", "42")

	L, _ := newState(t, pluginpkg.Info{Name: "greeter"}, "env.read.TERRAPLUG_TEST_VALUE")
	require.NoError(t, L.DoString(`v = terraplug.getenv("TERRAPLUG_TEST_VALUE")`))
	assert.Equal(t, "42", L.GetGlobal("v").String())

	err := L.DoString(`terraplug.getenv("HOME")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capability denied")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "motd.txt"), []byte("welcome"), 0o600))
	info := pluginpkg.Info{Name: "greeter", Dir: dir}

	t.Run("granted", func(t *testing.T) {
		L, _ := newState(t, info, hostfunc.CapabilityFSRead)
		require.NoError(t, L.DoString(`data, err = terraplug.read_file("motd.txt")`))
		assert.Equal(t, "welcome", L.GetGlobal("data").String())
		assert.Equal(t, lua.LNil, L.GetGlobal("err"))
	})

	t.Run("escaping path", func(t *testing.T) {
		L, _ := newState(t, info, hostfunc.CapabilityFSRead)
		require.NoError(t, L.DoString(`data, err = terraplug.read_file("../secret")`))
		assert.Equal(t, lua.LNil, L.GetGlobal("data"))
		assert.Contains(t, L.GetGlobal("err").String(), "escapes")
	})

	t.Run("missing file", func(t *testing.T) {
		L, _ := newState(t, info, hostfunc.CapabilityFSRead)
		require.NoError(t, L.DoString(`data, err = terraplug.read_file("nope.txt")`))
		assert.Equal(t, lua.LNil, L.GetGlobal("data"))
		assert.NotEqual(t, lua.LNil, L.GetGlobal("err"))
	})

	t.Run("denied", func(t *testing.T) {
		L, _ := newState(t, info)
		err := L.DoString(`terraplug.read_file("motd.txt")`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capability denied")
	})
}
