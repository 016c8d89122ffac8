// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package plugin defines the plugin descriptor model and the lifecycle
// interface every loaded plugin implements.
package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// ResourceSharedLibraryName is the resource naming the native library of a plugin.
const ResourceSharedLibraryName = "shared_library_name"

// Provider identifies who ships a plugin.
type Provider struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Site  string `json:"site,omitempty" yaml:"site,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// HostApplication names the application (and version constraint) a plugin
// was built for.
type HostApplication struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// KeyValue is a single resource or parameter entry.
type KeyValue struct {
	Key   string
	Value string
}

// KeyValues is an ordered list of key/value pairs. It is encoded as an
// object whose member order is preserved on decode.
type KeyValues []KeyValue

// Get returns the value of the first entry with the given key.
func (kv KeyValues) Get(key string) (string, bool) {
	for _, e := range kv {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Map returns the entries as a map. Later duplicates win.
func (kv KeyValues) Map() map[string]string {
	m := make(map[string]string, len(kv))
	for _, e := range kv {
		m[e.Key] = e.Value
	}
	return m
}

// MarshalJSON encodes the entries as an object in order.
func (kv KeyValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range kv {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err //nolint:wrapcheck // json passthrough
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err //nolint:wrapcheck // json passthrough
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of string members keeping member order.
func (kv *KeyValues) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("key/value object: %w", err)
	}
	if tok == nil {
		*kv = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("key/value object: expected '{', got %v", tok)
	}

	var out KeyValues
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("key/value object: %w", err)
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("key/value object: member %q: %w", key, err)
		}
		out = append(out, KeyValue{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("key/value object: %w", err)
	}

	*kv = out
	return nil
}

// MarshalYAML encodes the entries as an ordered mapping.
func (kv KeyValues) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range kv {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Value},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping of scalars keeping key order.
func (kv *KeyValues) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of key/value pairs", node.Line)
	}
	out := make(KeyValues, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value of %q must be a scalar", v.Line, k.Value)
		}
		out = append(out, KeyValue{Key: k.Value, Value: v.Value})
	}
	*kv = out
	return nil
}

// JSONSchema describes KeyValues as an object of string members.
func (KeyValues) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

// Info describes a plugin's identity, dependencies, and resources.
type Info struct {
	Name               string          `json:"name" yaml:"name" jsonschema:"minLength=1"`
	DisplayName        string          `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description        string          `json:"description,omitempty" yaml:"description,omitempty"`
	Version            string          `json:"version,omitempty" yaml:"version,omitempty"`
	Release            string          `json:"release,omitempty" yaml:"release,omitempty"`
	Engine             string          `json:"engine" yaml:"engine" jsonschema:"minLength=1"`
	LicenseDescription string          `json:"license_description,omitempty" yaml:"license_description,omitempty"`
	LicenseURL         string          `json:"license_URL,omitempty" yaml:"license_URL,omitempty"`
	Site               string          `json:"site,omitempty" yaml:"site,omitempty"`
	Provider           Provider        `json:"provider,omitempty" yaml:"provider,omitempty"`
	Dependencies       []string        `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	LinkedLibraries    []string        `json:"linked_libraries,omitempty" yaml:"linked_libraries,omitempty"`
	Resources          KeyValues       `json:"resources,omitempty" yaml:"resources,omitempty"`
	Parameters         KeyValues       `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	HostApplication    HostApplication `json:"host_application,omitempty" yaml:"host_application,omitempty"`

	// Dir is the directory the descriptor was read from. Engines resolve
	// relative resource paths against it.
	Dir string `json:"-" yaml:"-"`
}

// Clone returns a deep copy of the descriptor.
func (i Info) Clone() Info {
	c := i
	c.Dependencies = slices.Clone(i.Dependencies)
	c.LinkedLibraries = slices.Clone(i.LinkedLibraries)
	c.Resources = slices.Clone(i.Resources)
	c.Parameters = slices.Clone(i.Parameters)
	return c
}

// Resource returns the value of the named resource.
func (i Info) Resource(key string) (string, bool) {
	return i.Resources.Get(key)
}

// Parameter returns the value of the named parameter.
func (i Info) Parameter(key string) (string, bool) {
	return i.Parameters.Get(key)
}

// Validate checks descriptor constraints that do not depend on other plugins.
func (i Info) Validate() error {
	errb := oops.Code(CodeInvalidDescriptor).With("plugin", i.Name)

	if strings.TrimSpace(i.Name) == "" {
		return errb.Errorf("name is required")
	}
	if strings.TrimSpace(i.Engine) == "" {
		return errb.Errorf("plugin %s: engine is required", i.Name)
	}

	seen := make(map[string]struct{}, len(i.Dependencies))
	for _, dep := range i.Dependencies {
		switch {
		case strings.TrimSpace(dep) == "":
			return errb.Errorf("plugin %s: empty dependency name", i.Name)
		case dep == i.Name:
			return errb.With("dependency", dep).Errorf("plugin %s depends on itself", i.Name)
		}
		if _, dup := seen[dep]; dup {
			return errb.With("dependency", dep).Errorf("plugin %s lists dependency %s twice", i.Name, dep)
		}
		seen[dep] = struct{}{}
	}
	return nil
}
