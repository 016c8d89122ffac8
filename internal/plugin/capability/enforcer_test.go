// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraplug/terraplug/internal/plugin/capability"
	"github.com/terraplug/terraplug/pkg/errutil"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

func TestEnforcer_Check(t *testing.T) {
	tests := []struct {
		name       string
		grants     []string
		capability string
		want       bool
	}{
		{
			name:       "exact match",
			grants:     []string{"env.read.HOME"},
			capability: "env.read.HOME",
			want:       true,
		},
		{
			name:       "single segment wildcard",
			grants:     []string{"env.read.*"},
			capability: "env.read.HOME",
			want:       true,
		},
		{
			name:       "single segment wildcard does not cross dots",
			grants:     []string{"env.*"},
			capability: "env.read.HOME",
			want:       false,
		},
		{
			name:       "super wildcard crosses dots",
			grants:     []string{"env.**"},
			capability: "env.read.HOME",
			want:       true,
		},
		{
			name:       "no match",
			grants:     []string{"env.read.PATH"},
			capability: "env.read.HOME",
			want:       false,
		},
		{
			name:       "empty grants",
			grants:     []string{},
			capability: "fs.read",
			want:       false,
		},
		{
			name:       "empty capability",
			grants:     []string{"**"},
			capability: "",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := capability.NewEnforcer()
			require.NoError(t, e.SetGrants("test-plugin", tt.grants))
			assert.Equal(t, tt.want, e.Check("test-plugin", tt.capability))
		})
	}
}

func TestEnforcer_UnknownPlugin(t *testing.T) {
	e := capability.NewEnforcer()
	assert.False(t, e.Check("unknown", "fs.read"))
	assert.Nil(t, e.GetGrants("unknown"))
}

func TestEnforcer_SetGrantsInvalid(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("p", []string{"fs.read"}))

	err := e.SetGrants("p", []string{"env.read.*", "[unclosed"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, pluginpkg.CodeInvalidArgument)

	// Failed updates leave previous grants in place.
	assert.Equal(t, []string{"fs.read"}, e.GetGrants("p"))

	err = e.SetGrants("", []string{"fs.read"})
	errutil.AssertErrorContains(t, err, pluginpkg.CodeInvalidArgument, "empty")

	err = e.SetGrants("p", []string{""})
	errutil.AssertErrorContains(t, err, pluginpkg.CodeInvalidArgument, "empty capability pattern")
}

func TestEnforcer_RemoveGrants(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("p", []string{"fs.read"}))
	assert.True(t, e.Check("p", "fs.read"))

	e.RemoveGrants("p")
	assert.False(t, e.Check("p", "fs.read"))
	e.RemoveGrants("p")
}

func TestEnforcer_GetGrantsIsCopy(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("p", []string{"fs.read"}))

	got := e.GetGrants("p")
	got[0] = "mutated"
	assert.Equal(t, []string{"fs.read"}, e.GetGrants("p"))
}

func TestGrants(t *testing.T) {
	info := pluginpkg.Info{
		Name:      "p",
		Resources: pluginpkg.KeyValues{{Key: capability.ResourceCapabilities, Value: " fs.read, env.read.HOME ,, "}},
	}
	assert.Equal(t, []string{"fs.read", "env.read.HOME"}, capability.Grants(info))
	assert.Nil(t, capability.Grants(pluginpkg.Info{Name: "p"}))
}
