// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package descriptor_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	"github.com/terraplug/terraplug/internal/plugin/descriptor"
	"github.com/terraplug/terraplug/pkg/errutil"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

const fullJSON = `{
  "name": "mesh-tools",
  "display_name": "Mesh Tools",
  "description": "Mesh editing operators",
  "version": "2.1.0",
  "release": "2026-03-01",
  "engine": "C++",
  "license_description": "Apache 2.0",
  "license_URL": "https://www.apache.org/licenses/LICENSE-2.0",
  "site": "https://example.com/mesh-tools",
  "provider": {"name": "Example", "site": "https://example.com", "email": "dev@example.com"},
  "dependencies": ["core", "geometry"],
  "linked_libraries": ["libm"],
  "resources": {"shared_library_name": "meshtools", "icon": "mesh.png"},
  "parameters": {"z": "last", "a": "first"},
  "host_application": {"name": "terraplug", "version": ">= 1.0"}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecodeJSON(t *testing.T) {
	info, err := descriptor.DecodeJSON([]byte(fullJSON))
	require.NoError(t, err)

	assert.Equal(t, "mesh-tools", info.Name)
	assert.Equal(t, "Mesh Tools", info.DisplayName)
	assert.Equal(t, "C++", info.Engine)
	assert.Equal(t, "https://www.apache.org/licenses/LICENSE-2.0", info.LicenseURL)
	assert.Equal(t, "dev@example.com", info.Provider.Email)
	assert.Equal(t, []string{"core", "geometry"}, info.Dependencies)
	assert.Equal(t, []string{"libm"}, info.LinkedLibraries)
	assert.Equal(t, ">= 1.0", info.HostApplication.Version)

	lib, ok := info.Resource(pluginpkg.ResourceSharedLibraryName)
	assert.True(t, ok)
	assert.Equal(t, "meshtools", lib)

	// Member order is kept.
	assert.Equal(t, pluginpkg.KeyValues{{Key: "z", Value: "last"}, {Key: "a", Value: "first"}}, info.Parameters)
}

func TestDecodeYAML(t *testing.T) {
	data := `
name: mesh-tools
engine: Lua
version: "2.1.0"
dependencies: [core]
resources:
  script: main.lua
parameters:
  z: last
  a: first
`
	info, err := descriptor.DecodeYAML([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "mesh-tools", info.Name)
	assert.Equal(t, "Lua", info.Engine)
	assert.Equal(t, "2.1.0", info.Version)
	assert.Equal(t, []string{"core"}, info.Dependencies)
	assert.Equal(t, pluginpkg.KeyValues{{Key: "z", Value: "last"}, {Key: "a", Value: "first"}}, info.Parameters)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) (pluginpkg.Info, error)
		data   string
	}{
		{name: "malformed JSON", decode: descriptor.DecodeJSON, data: `{"name":`},
		{name: "missing engine", decode: descriptor.DecodeJSON, data: `{"name": "a"}`},
		{name: "empty name", decode: descriptor.DecodeJSON, data: `{"name": "", "engine": "C++"}`},
		{name: "unknown member", decode: descriptor.DecodeJSON, data: `{"name": "a", "engine": "C++", "colour": "red"}`},
		{name: "non-string resource", decode: descriptor.DecodeJSON, data: `{"name": "a", "engine": "C++", "resources": {"n": 1}}`},
		{name: "dependencies not a list", decode: descriptor.DecodeJSON, data: `{"name": "a", "engine": "C++", "dependencies": "b"}`},
		{name: "self dependency", decode: descriptor.DecodeJSON, data: `{"name": "a", "engine": "C++", "dependencies": ["a"]}`},
		{name: "empty YAML", decode: descriptor.DecodeYAML, data: ``},
		{name: "malformed YAML", decode: descriptor.DecodeYAML, data: "name: [a"},
		{name: "numeric YAML version", decode: descriptor.DecodeYAML, data: "name: a\nengine: Lua\nversion: 1.5\n"},
		{name: "duplicate dependency", decode: descriptor.DecodeYAML, data: "name: a\nengine: Lua\ndependencies: [b, b]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decode([]byte(tt.data))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, pluginpkg.CodeInvalidDescriptor)
		})
	}
}

func TestReadJSON_SetsDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mesh.teplg.json", fullJSON)

	info, err := descriptor.ReadJSON(path)
	require.NoError(t, err)

	want, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, want, info.Dir)
}

func TestReadYAML_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := descriptor.ReadYAML(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, pluginpkg.CodeNotFound)

	path := writeFile(t, dir, "bad.yaml", "name: a\n")
	_, err = descriptor.ReadYAML(path)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, pluginpkg.CodeInvalidDescriptor)
	errutil.AssertErrorContext(t, err, "path", path)
}

func TestRegister(t *testing.T) {
	r := plugins.NewSerializerRegistry()
	require.NoError(t, descriptor.Register(r))
	assert.Equal(t, []string{descriptor.JSON, descriptor.YAML}, r.List())

	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "a.json", `{"name": "a", "engine": "Go"}`)
	ymlPath := writeFile(t, dir, "b.yml", "name: b\nengine: Go\n")

	a, err := r.Parse(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "a", a.Name)

	b, err := r.Parse(ymlPath)
	require.NoError(t, err)
	assert.Equal(t, "b", b.Name)

	errutil.AssertErrorCode(t, descriptor.Register(r), pluginpkg.CodeDuplicateName)
}

func TestGenerateSchema(t *testing.T) {
	data, err := descriptor.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, descriptor.SchemaID, schema["$id"])
	assert.ElementsMatch(t, []any{"name", "engine"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"license_URL", "resources", "host_application", "linked_libraries"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "Dir")
}

func TestFormatSchemaError(t *testing.T) {
	assert.Empty(t, descriptor.FormatSchemaError(nil))

	_, err := descriptor.DecodeJSON([]byte(`{"name": "a"}`))
	require.Error(t, err)
	msg := descriptor.FormatSchemaError(err)
	assert.NotContains(t, msg, "schema validation failed")
	assert.NotEmpty(t, msg)
}
