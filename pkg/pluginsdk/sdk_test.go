// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package pluginsdk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraplug/terraplug/internal/pluginrpc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
	"github.com/terraplug/terraplug/pkg/pluginsdk"
)

type testPlugin struct{}

func (p *testPlugin) Startup(context.Context, pluginpkg.Info) error { return nil }
func (p *testPlugin) Shutdown(context.Context) error                { return nil }

func TestServeConfig_PluginRequired(t *testing.T) {
	assert.Panics(t, func() {
		pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: nil})
	})
}

func TestServeConfig_ConfigRequired(t *testing.T) {
	assert.Panics(t, func() {
		pluginsdk.Serve(nil)
	})
}

func TestHandshakeConfig(t *testing.T) {
	assert.Equal(t, uint(1), pluginsdk.HandshakeConfig.ProtocolVersion)
	assert.Equal(t, "TERRAPLUG_PLUGIN", pluginsdk.HandshakeConfig.MagicCookieKey)
	assert.Equal(t, "terraplug-v1", pluginsdk.HandshakeConfig.MagicCookieValue)
}

func TestPluginSet(t *testing.T) {
	set := pluginsdk.PluginSet(&testPlugin{})
	require.Contains(t, set, pluginrpc.PluginName)

	p, ok := set[pluginrpc.PluginName].(*pluginrpc.GRPCPlugin)
	require.True(t, ok)
	assert.NotNil(t, p.Impl)
}
