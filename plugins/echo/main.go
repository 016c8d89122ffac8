// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package main implements an echo plugin for the GRPC engine.
// It logs the descriptor it is started with and echoes its "greeting"
// parameter to stderr, which the host forwards to its log.
//
// Build with:
//
//	go build -o plugins/echo/echo ./plugins/echo
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
	"github.com/terraplug/terraplug/pkg/pluginsdk"
)

// Echo echoes its configuration on startup.
type Echo struct {
	name string
}

// Startup implements pluginsdk.Plugin.
func (e *Echo) Startup(_ context.Context, info pluginpkg.Info) error {
	e.name = info.Name

	greeting, ok := info.Parameter("greeting")
	if !ok || strings.TrimSpace(greeting) == "" {
		return fmt.Errorf("parameter %q is required", "greeting")
	}
	fmt.Fprintf(os.Stderr, "%s@%s: %s\n", info.Name, info.Version, greeting)
	return nil
}

// Shutdown implements pluginsdk.Plugin.
func (e *Echo) Shutdown(_ context.Context) error {
	fmt.Fprintf(os.Stderr, "%s: goodbye\n", e.name)
	return nil
}

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{
		Plugin: &Echo{},
	})
}
