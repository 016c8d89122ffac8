// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package pluginrpc defines the gRPC lifecycle service spoken between the
// host and subprocess plugins, and the go-plugin glue that carries it.
//
// The service is declared in lifecycle.proto. Its messages are well-known
// protobuf types, so the bindings below are kept by hand instead of
// generated: Startup receives the plugin descriptor as a
// google.protobuf.Struct and Shutdown takes google.protobuf.Empty.
package pluginrpc

import (
	"context"
	"encoding/json"
	"errors"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "terraplug.plugin.v1.Lifecycle"

// PluginName is the name the lifecycle client is dispensed under.
const PluginName = "lifecycle"

const (
	startupMethod  = "/" + ServiceName + "/Startup"
	shutdownMethod = "/" + ServiceName + "/Shutdown"
)

// LifecycleServer is implemented by the plugin process.
type LifecycleServer interface {
	Startup(ctx context.Context, info *structpb.Struct) (*emptypb.Empty, error)
	Shutdown(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
}

// LifecycleClient is used by the host.
type LifecycleClient interface {
	Startup(ctx context.Context, info *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

// LifecycleServiceDesc describes the lifecycle service to grpc.
var LifecycleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Startup", Handler: startupHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lifecycle.proto",
}

// RegisterLifecycleServer registers srv with s.
func RegisterLifecycleServer(s grpc.ServiceRegistrar, srv LifecycleServer) {
	s.RegisterService(&LifecycleServiceDesc, srv)
}

func startupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServer).Startup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: startupMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LifecycleServer).Startup(ctx, req.(*structpb.Struct))
	})
}

func shutdownHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LifecycleServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: shutdownMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LifecycleServer).Shutdown(ctx, req.(*emptypb.Empty))
	})
}

type lifecycleClient struct {
	cc grpc.ClientConnInterface
}

// NewLifecycleClient creates a client over cc.
func NewLifecycleClient(cc grpc.ClientConnInterface) LifecycleClient {
	return &lifecycleClient{cc: cc}
}

func (c *lifecycleClient) Startup(ctx context.Context, info *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, startupMethod, info, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lifecycleClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, shutdownMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCPlugin implements go-plugin's Plugin interface for the lifecycle
// service.
type GRPCPlugin struct {
	hashiplug.NetRPCUnsupportedPlugin
	// Impl is used by the plugin process (not used by the host).
	Impl LifecycleServer
}

// GRPCServer registers the lifecycle server (called by the plugin process).
func (p *GRPCPlugin) GRPCServer(_ *hashiplug.GRPCBroker, s *grpc.Server) error {
	if p.Impl == nil {
		return errors.New("pluginrpc: lifecycle implementation is nil")
	}
	RegisterLifecycleServer(s, p.Impl)
	return nil
}

// GRPCClient returns a lifecycle client (called by the host process).
func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *hashiplug.GRPCBroker, c *grpc.ClientConn) (any, error) {
	return NewLifecycleClient(c), nil
}

// InfoToStruct encodes a descriptor for the wire.
func InfoToStruct(info pluginpkg.Info) (*structpb.Struct, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, oops.Wrapf(err, "encode descriptor")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, oops.Wrapf(err, "encode descriptor")
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, oops.Wrapf(err, "encode descriptor")
	}
	return s, nil
}

// StructToInfo decodes a descriptor received from the wire. Member order of
// resources and parameters is not kept.
func StructToInfo(s *structpb.Struct) (pluginpkg.Info, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return pluginpkg.Info{}, oops.Wrapf(err, "decode descriptor")
	}
	var info pluginpkg.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return pluginpkg.Info{}, oops.Wrapf(err, "decode descriptor")
	}
	return info, nil
}
