// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package lua

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	luavm "github.com/yuin/gopher-lua"

	"github.com/terraplug/terraplug/pkg/errutil"
)

func TestStateFactory_LibraryFailureClosesState(t *testing.T) {
	opened := []string{}
	record := func(name string) luavm.LGFunction {
		return func(*luavm.LState) int {
			opened = append(opened, name)
			return 0
		}
	}

	factory := &StateFactory{
		libraries: []safeLibrary{
			{"first", record("first")},
			{"broken", func(L *luavm.LState) int {
				L.RaiseError("cannot open")
				return 0
			}},
			{"never", record("never")},
		},
	}

	L, err := factory.NewState(context.Background())
	require.Error(t, err)
	assert.Nil(t, L)
	assert.Equal(t, []string{"first"}, opened)
	errutil.AssertErrorContext(t, err, "library", "broken")
	assert.Contains(t, err.Error(), "failed to open library broken")
}

func TestDefaultSafeLibraries(t *testing.T) {
	names := make([]string, 0, 4)
	for _, lib := range defaultSafeLibraries() {
		names = append(names, lib.name)
	}
	assert.ElementsMatch(t, []string{
		luavm.BaseLibName,
		luavm.TabLibName,
		luavm.StringLibName,
		luavm.MathLibName,
	}, names)
}

func TestStateFactory_RemovesLoaderFunctions(t *testing.T) {
	L, err := NewStateFactory().NewState(context.Background())
	require.NoError(t, err)
	defer L.Close()

	for _, fn := range unsafeBaseFunctions {
		assert.Equal(t, luavm.LNil, L.GetGlobal(fn), fn)
	}
	assert.NotEqual(t, luavm.LNil, L.GetGlobal("pairs"))
}
