// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/internal/plugin/plugintest"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

func startServer(t *testing.T, ready ReadinessChecker, opts ...Option) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, opts...)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Probes(t *testing.T) {
	tests := []struct {
		name   string
		ready  ReadinessChecker
		path   string
		status int
		body   string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok"},
		{"liveness while loading", func() bool { return false }, "/healthz/liveness", http.StatusOK, "ok"},
		{"ready", func() bool { return true }, "/healthz/readiness", http.StatusOK, "ok"},
		{"not ready", func() bool { return false }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready"},
		{"nil checker is ready", nil, "/healthz/readiness", http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			status, body := get(t, server, tt.path)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, strings.TrimSpace(body))
		})
	}
}

func TestServer_ReadinessFollowsChecker(t *testing.T) {
	var ready atomic.Bool
	server := startServer(t, ready.Load)

	status, _ := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	ready.Store(true)
	status, _ = get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_Metrics(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	metrics := plugin.NewMetrics(server.Registry())
	metrics.Operations.WithLabelValues("load", "success").Inc()
	metrics.Operations.WithLabelValues("load", "success").Inc()
	metrics.Plugins.WithLabelValues("loaded").Set(3)

	_, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `terraplug_plugin_operations_total{operation="load",result="success"} 2`)
	assert.Contains(t, body, `terraplug_plugins{state="loaded"} 3`)
}

func TestServer_Status(t *testing.T) {
	engines := plugin.NewEngineRegistry()
	require.NoError(t, engines.Insert(plugintest.NewEngine()))
	m := plugin.NewManager(engines)
	require.NoError(t, m.Insert(pluginpkg.Info{Name: "core", Engine: plugintest.EngineID, Version: "1.0.0"}))
	require.NoError(t, m.Insert(pluginpkg.Info{Name: "net", Engine: plugintest.EngineID, Dependencies: []string{"core"}}))
	require.NoError(t, m.Load(context.Background(), "core", true))

	server := startServer(t, nil, WithStatus(func() any { return m.Snapshot() }))
	status, body := get(t, server, "/status")
	require.Equal(t, http.StatusOK, status)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 2)

	byName := map[string]map[string]any{}
	for _, s := range got {
		byName[s["name"].(string)] = s
	}
	assert.Equal(t, "loaded", byName["core"]["state"])
	assert.Equal(t, true, byName["core"]["started"])
	assert.Contains(t, byName["core"], "instance")
	assert.Equal(t, "unloaded", byName["net"]["state"])
	assert.NotContains(t, byName["net"], "instance")
}

func TestServer_StatusDisabled(t *testing.T) {
	server := startServer(t, nil)
	status, _ := get(t, server, "/status")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServer_ListenFailure(t *testing.T) {
	first := startServer(t, nil)
	second := NewServer(first.Addr(), nil)

	_, err := second.Start()
	require.Error(t, err)

	// A failed start leaves the server startable.
	second.addr = "127.0.0.1:0"
	_, err = second.Start()
	require.NoError(t, err)
	require.NoError(t, second.Stop(context.Background()))
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	require.NoError(t, server.Stop(context.Background()))

	_, err := server.Start()
	require.NoError(t, err)
	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok && err != nil, "unexpected serve error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}

func TestServer_AddrBeforeStart(t *testing.T) {
	assert.Equal(t, "", NewServer("127.0.0.1:0", nil).Addr())
}
