// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package descriptor reads plugin descriptors from JSON and YAML files.
package descriptor

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Serializer names registered by Register.
const (
	JSON = "JSON"
	YAML = "YAML"
)

// DecodeJSON validates and decodes a JSON descriptor.
func DecodeJSON(data []byte) (pluginpkg.Info, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return pluginpkg.Info{}, oops.Code(pluginpkg.CodeInvalidDescriptor).Wrapf(err, "invalid JSON")
	}
	if err := ValidateSchema(doc); err != nil {
		return pluginpkg.Info{}, err
	}

	var info pluginpkg.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return pluginpkg.Info{}, oops.Code(pluginpkg.CodeInvalidDescriptor).Wrapf(err, "decode descriptor")
	}
	if err := info.Validate(); err != nil {
		return pluginpkg.Info{}, err
	}
	return info, nil
}

// DecodeYAML validates and decodes a YAML descriptor.
func DecodeYAML(data []byte) (pluginpkg.Info, error) {
	if len(data) == 0 {
		return pluginpkg.Info{}, oops.Code(pluginpkg.CodeInvalidDescriptor).Errorf("descriptor is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return pluginpkg.Info{}, oops.Code(pluginpkg.CodeInvalidDescriptor).Wrapf(err, "invalid YAML")
	}
	if err := ValidateSchema(toJSONTypes(doc)); err != nil {
		return pluginpkg.Info{}, err
	}

	var info pluginpkg.Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return pluginpkg.Info{}, oops.Code(pluginpkg.CodeInvalidDescriptor).Wrapf(err, "decode descriptor")
	}
	if err := info.Validate(); err != nil {
		return pluginpkg.Info{}, err
	}
	return info, nil
}

// ReadJSON reads a JSON descriptor file. It is the JSON serializer.
func ReadJSON(path string) (pluginpkg.Info, error) {
	return read(path, DecodeJSON)
}

// ReadYAML reads a YAML descriptor file. It is the YAML serializer.
func ReadYAML(path string) (pluginpkg.Info, error) {
	return read(path, DecodeYAML)
}

func read(path string, decode func([]byte) (pluginpkg.Info, error)) (pluginpkg.Info, error) {
	data, err := os.ReadFile(path) //nolint:gosec // descriptor paths come from configured plugin directories
	if err != nil {
		return pluginpkg.Info{}, oops.Code(pluginpkg.CodeNotFound).With("path", path).Wrapf(err, "read descriptor")
	}

	info, err := decode(data)
	if err != nil {
		return pluginpkg.Info{}, oops.With("path", path).Wrapf(err, "descriptor %s", path)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return pluginpkg.Info{}, oops.With("path", path).Wrapf(err, "resolve descriptor directory")
	}
	info.Dir = dir
	return info, nil
}

// Register adds the JSON and YAML serializers to r and associates them
// with the .json, .yaml and .yml extensions.
func Register(r *plugins.SerializerRegistry) error {
	if err := r.Insert(JSON, ReadJSON); err != nil {
		return err
	}
	if err := r.Insert(YAML, ReadYAML); err != nil {
		return err
	}
	for ext, name := range map[string]string{".json": JSON, ".yaml": YAML, ".yml": YAML} {
		if err := r.Associate(ext, name); err != nil {
			return err
		}
	}
	return nil
}
