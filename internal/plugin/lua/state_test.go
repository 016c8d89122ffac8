// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package lua_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	luavm "github.com/yuin/gopher-lua"

	pluginlua "github.com/terraplug/terraplug/internal/plugin/lua"
)

func newState(t *testing.T) *luavm.LState {
	t.Helper()
	L, err := pluginlua.NewStateFactory().NewState(context.Background())
	require.NoError(t, err)
	t.Cleanup(L.Close)
	return L
}

func TestStateFactory_NewState_LoadsSafeLibraries(t *testing.T) {
	L := newState(t)
	for _, lib := range []string{"table", "string", "math"} {
		assert.NotEqual(t, luavm.LTNil, L.GetGlobal(lib).Type(), "library %q not loaded", lib)
	}
}

func TestStateFactory_NewState_BlocksUnsafeLibraries(t *testing.T) {
	L := newState(t)
	for _, lib := range []string{"os", "io", "debug", "package"} {
		assert.Equal(t, luavm.LTNil, L.GetGlobal(lib).Type(), "unsafe library %q should not be loaded", lib)
	}
}

func TestStateFactory_NewState_BlocksFilesystemFunctions(t *testing.T) {
	L := newState(t)
	for _, fn := range []string{"dofile", "loadfile", "loadstring", "load", "require", "module"} {
		assert.Equal(t, luavm.LTNil, L.GetGlobal(fn).Type(), "unsafe function %q should be blocked", fn)
	}
}

func TestStateFactory_NewState_RunsSafeCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"arithmetic", `result = 1 + 1`, "2"},
		{"string library", `result = string.upper("hello")`, "HELLO"},
		{"table library", `t = {3, 1, 2}; table.sort(t); result = t[1]`, "1"},
		{"math library", `result = math.abs(-42)`, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newState(t)
			require.NoError(t, L.DoString(tt.code))
			assert.Equal(t, tt.want, L.GetGlobal("result").String())
		})
	}
}

func TestStateFactory_NewState_IndependentStates(t *testing.T) {
	L1 := newState(t)
	L2 := newState(t)

	require.NoError(t, L1.DoString(`foo = "bar"`))
	assert.Equal(t, luavm.LTNil, L2.GetGlobal("foo").Type())
}
