// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package pluginsdk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/terraplug/terraplug/internal/pluginrpc"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

type recordingPlugin struct {
	info        pluginpkg.Info
	startupErr  error
	shutdownErr error
	stopped     bool
}

func (p *recordingPlugin) Startup(_ context.Context, info pluginpkg.Info) error {
	p.info = info
	return p.startupErr
}

func (p *recordingPlugin) Shutdown(context.Context) error {
	p.stopped = true
	return p.shutdownErr
}

func TestLifecycleAdapter_Startup(t *testing.T) {
	impl := &recordingPlugin{}
	adapter := &lifecycleAdapter{impl: impl}

	in, err := pluginrpc.InfoToStruct(pluginpkg.Info{
		Name:         "indexer",
		Engine:       "GRPC",
		Dependencies: []string{"core"},
		Parameters:   pluginpkg.KeyValues{{Key: "depth", Value: "3"}},
	})
	require.NoError(t, err)

	_, err = adapter.Startup(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "indexer", impl.info.Name)
	assert.Equal(t, []string{"core"}, impl.info.Dependencies)
	depth, ok := impl.info.Parameter("depth")
	assert.True(t, ok)
	assert.Equal(t, "3", depth)
}

func TestLifecycleAdapter_Errors(t *testing.T) {
	impl := &recordingPlugin{
		startupErr:  errors.New("no index"),
		shutdownErr: errors.New("flush failed"),
	}
	adapter := &lifecycleAdapter{impl: impl}

	in, err := pluginrpc.InfoToStruct(pluginpkg.Info{Name: "indexer", Engine: "GRPC"})
	require.NoError(t, err)

	_, err = adapter.Startup(context.Background(), in)
	require.EqualError(t, err, "startup: no index")

	_, err = adapter.Shutdown(context.Background(), &emptypb.Empty{})
	require.EqualError(t, err, "shutdown: flush failed")
	assert.True(t, impl.stopped)
}
