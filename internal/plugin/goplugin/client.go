// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package goplugin

import (
	"os/exec"

	hashiplug "github.com/hashicorp/go-plugin"

	"github.com/terraplug/terraplug/internal/pluginrpc"
	"github.com/terraplug/terraplug/pkg/pluginsdk"
)

// HandshakeConfig is imported from pluginsdk to ensure host and plugins
// use identical configuration. Do not define locally to prevent drift.
var HandshakeConfig = pluginsdk.HandshakeConfig

// PluginMap is the map of plugins the host can dispense.
var PluginMap = map[string]hashiplug.Plugin{
	pluginrpc.PluginName: &pluginrpc.GRPCPlugin{},
}

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client returns the gRPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath resolved from a validated plugin descriptor
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolGRPC},
	})
}
