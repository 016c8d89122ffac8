// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the CLI with args and returns stdout. Config lookup is
// confined to a temp directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writePlugin writes a Lua plugin with its descriptor under root/name.
func writePlugin(t *testing.T, root, name string, deps ...string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o700))

	quoted := make([]string, len(deps))
	for i, d := range deps {
		quoted[i] = `"` + d + `"`
	}
	desc := `{
  "name": "` + name + `",
  "version": "1.0.0",
  "engine": "Lua",
  "dependencies": [` + strings.Join(quoted, ", ") + `],
  "resources": {"script": "main.lua"}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(desc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(`function startup() end`), 0o600))
}
