// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"context"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// Serializer parses a plugin descriptor file.
type Serializer func(path string) (pluginpkg.Info, error)

// Finder discovers plugin descriptors from some source.
type Finder func(ctx context.Context) ([]pluginpkg.Info, error)

// Registry maps names to values of one capability. It is safe for
// concurrent use.
type Registry[T any] struct {
	kind  string
	mu    sync.RWMutex
	items map[string]T
}

// NewRegistry creates an empty registry. kind names the capability in errors.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

// Insert registers v under name.
func (r *Registry[T]) Insert(name string, v T) error {
	if strings.TrimSpace(name) == "" {
		return oops.Code(pluginpkg.CodeInvalidArgument).
			With("kind", r.kind).
			Errorf("%s name cannot be empty", r.kind)
	}
	if isNil(v) {
		return oops.Code(pluginpkg.CodeInvalidArgument).
			With(r.kind, name).
			Errorf("%s %q cannot be nil", r.kind, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[name]; ok {
		return pluginpkg.ErrDuplicateName(r.kind, name)
	}
	r.items[name] = v
	return nil
}

// Remove unregisters name.
func (r *Registry[T]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[name]; !ok {
		return pluginpkg.ErrNotFound(r.kind, name)
	}
	delete(r.items, name)
	return nil
}

// Get returns the value registered under name.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items[name]
	if !ok {
		var zero T
		return zero, pluginpkg.ErrNotFound(r.kind, name)
	}
	return v, nil
}

// Exists reports whether name is registered.
func (r *Registry[T]) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[name]
	return ok
}

// List returns the registered names in sorted order.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes every entry.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.items)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// SerializerRegistry holds descriptor parsers by name.
type SerializerRegistry struct {
	*Registry[Serializer]
	extMu      sync.RWMutex
	extensions map[string]string
}

// NewSerializerRegistry creates an empty serializer registry.
func NewSerializerRegistry() *SerializerRegistry {
	return &SerializerRegistry{
		Registry:   NewRegistry[Serializer]("serializer"),
		extensions: make(map[string]string),
	}
}

// Associate maps a file extension (".json") to a registered serializer name.
func (r *SerializerRegistry) Associate(ext, name string) error {
	if !r.Exists(name) {
		return pluginpkg.ErrNotFound("serializer", name)
	}
	r.extMu.Lock()
	defer r.extMu.Unlock()
	r.extensions[strings.ToLower(ext)] = name
	return nil
}

// ForFile returns the serializer associated with the extension of path.
func (r *SerializerRegistry) ForFile(path string) (Serializer, error) {
	ext := strings.ToLower(filepath.Ext(path))

	r.extMu.RLock()
	name, ok := r.extensions[ext]
	r.extMu.RUnlock()

	if !ok {
		return nil, oops.Code(pluginpkg.CodeNotFound).
			With("path", path).
			Errorf("no serializer associated with %q files", ext)
	}
	return r.Get(name)
}

// Parse reads path with the serializer associated with its extension.
func (r *SerializerRegistry) Parse(path string) (pluginpkg.Info, error) {
	s, err := r.ForFile(path)
	if err != nil {
		return pluginpkg.Info{}, err
	}
	return s(path)
}

// FinderRegistry holds discovery functions by name.
type FinderRegistry struct {
	*Registry[Finder]
}

// NewFinderRegistry creates an empty finder registry.
func NewFinderRegistry() *FinderRegistry {
	return &FinderRegistry{Registry: NewRegistry[Finder]("finder")}
}
