// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package pluginsdk provides the SDK for building terraplug subprocess plugins.
//
// Subprocess plugins are started by the host's GRPC engine and speak the
// lifecycle service over gRPC using the HashiCorp go-plugin framework.
//
// Example usage:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/terraplug/terraplug/pkg/plugin"
//		"github.com/terraplug/terraplug/pkg/pluginsdk"
//	)
//
//	type Indexer struct{}
//
//	func (p *Indexer) Startup(ctx context.Context, info plugin.Info) error {
//		return nil
//	}
//
//	func (p *Indexer) Shutdown(ctx context.Context) error {
//		return nil
//	}
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{
//			Plugin: &Indexer{},
//		})
//	}
package pluginsdk

import (
	"context"
	"fmt"

	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/terraplug/terraplug/internal/pluginrpc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Plugin is the interface subprocess plugins implement.
type Plugin interface {
	// Startup brings the plugin into service. info is the descriptor the
	// host loaded the plugin from.
	Startup(ctx context.Context, info pluginpkg.Info) error

	// Shutdown takes the plugin out of service.
	Shutdown(ctx context.Context) error
}

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TERRAPLUG_PLUGIN",
	MagicCookieValue: "terraplug-v1",
}

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Plugin is the lifecycle implementation.
	// Required; Serve will panic if nil.
	Plugin Plugin
}

// Serve starts the plugin server. This should be called from main().
// It blocks and never returns under normal operation.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Plugin == nil {
		panic("pluginsdk: config.Plugin cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginSet(config.Plugin),
		GRPCServer:      hashiplug.DefaultGRPCServer,
	})
}

// PluginSet returns the go-plugin plugin set serving impl.
func PluginSet(impl Plugin) hashiplug.PluginSet {
	var server pluginrpc.LifecycleServer
	if impl != nil {
		server = &lifecycleAdapter{impl: impl}
	}
	return hashiplug.PluginSet{
		pluginrpc.PluginName: &pluginrpc.GRPCPlugin{Impl: server},
	}
}

// lifecycleAdapter adapts Plugin to pluginrpc.LifecycleServer.
type lifecycleAdapter struct {
	impl Plugin
}

func (a *lifecycleAdapter) Startup(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	info, err := pluginrpc.StructToInfo(in)
	if err != nil {
		return nil, err
	}
	if err := a.impl.Startup(ctx, info); err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}
	return &emptypb.Empty{}, nil
}

func (a *lifecycleAdapter) Shutdown(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := a.impl.Shutdown(ctx); err != nil {
		return nil, fmt.Errorf("shutdown: %w", err)
	}
	return &emptypb.Empty{}, nil
}
