// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/pkg/errutil"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

func jsonSerializer(path string) (pluginpkg.Info, error) {
	return pluginpkg.Info{Name: path, Engine: "Fake"}, nil
}

func TestRegistry_InsertGetRemove(t *testing.T) {
	r := plugins.NewSerializerRegistry()

	require.NoError(t, r.Insert("JSON", jsonSerializer))
	assert.True(t, r.Exists("JSON"))
	assert.Equal(t, []string{"JSON"}, r.List())

	s, err := r.Get("JSON")
	require.NoError(t, err)
	info, err := s("a.json")
	require.NoError(t, err)
	assert.Equal(t, "a.json", info.Name)

	require.NoError(t, r.Remove("JSON"))
	assert.False(t, r.Exists("JSON"))

	_, err = r.Get("JSON")
	errutil.AssertErrorCode(t, err, pluginpkg.CodeNotFound)
	errutil.AssertErrorCode(t, r.Remove("JSON"), pluginpkg.CodeNotFound)
}

func TestRegistry_InsertRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		fn   plugins.Serializer
		code string
	}{
		{name: "empty name", key: "", fn: jsonSerializer, code: pluginpkg.CodeInvalidArgument},
		{name: "blank name", key: "  ", fn: jsonSerializer, code: pluginpkg.CodeInvalidArgument},
		{name: "nil function", key: "JSON", fn: nil, code: pluginpkg.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := plugins.NewSerializerRegistry()
			err := r.Insert(tt.key, tt.fn)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Empty(t, r.List())
		})
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := plugins.NewFinderRegistry()
	finder := func(context.Context) ([]pluginpkg.Info, error) { return nil, nil }

	require.NoError(t, r.Insert("dir", finder))
	err := r.Insert("dir", finder)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, pluginpkg.CodeDuplicateName)
	errutil.AssertErrorContext(t, err, "finder", "dir")
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := plugins.NewRegistry[int]("number")
	require.NoError(t, r.Insert("c", 3))
	require.NoError(t, r.Insert("a", 1))
	require.NoError(t, r.Insert("b", 2))

	assert.Equal(t, []string{"a", "b", "c"}, r.List())

	r.Clear()
	assert.Empty(t, r.List())
}

func TestSerializerRegistry_ForFile(t *testing.T) {
	r := plugins.NewSerializerRegistry()
	require.NoError(t, r.Insert("JSON", jsonSerializer))

	err := r.Associate(".yaml", "YAML")
	errutil.AssertErrorCode(t, err, pluginpkg.CodeNotFound)

	require.NoError(t, r.Associate(".JSON", "JSON"))

	info, err := r.Parse("/plugins/a.teplg.Json")
	require.NoError(t, err)
	assert.Equal(t, "/plugins/a.teplg.Json", info.Name)

	_, err = r.ForFile("/plugins/a.toml")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, pluginpkg.CodeNotFound)
	errutil.AssertErrorContext(t, err, "path", "/plugins/a.toml")
}

func TestSerializerRegistry_ParsePropagatesError(t *testing.T) {
	r := plugins.NewSerializerRegistry()
	boom := errors.New("boom")
	require.NoError(t, r.Insert("JSON", func(string) (pluginpkg.Info, error) {
		return pluginpkg.Info{}, boom
	}))
	require.NoError(t, r.Associate(".json", "JSON"))

	_, err := r.Parse("a.json")
	assert.ErrorIs(t, err, boom)
}
