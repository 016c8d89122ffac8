// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

// Package capability checks what sandboxed plugins may reach at runtime.
//
// Capabilities are dot separated names such as "env.read.HOME" or
// "fs.read". Grants are gobwas/glob patterns with '.' as the segment
// separator:
//   - '*' matches a single segment (does not cross '.')
//   - '**' matches zero or more segments (crosses '.')
package capability

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// ResourceCapabilities is the descriptor resource listing a plugin's
// grants, comma separated.
const ResourceCapabilities = "capabilities"

// compiledGrant holds a pattern and its compiled glob.
type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks plugin capabilities. It is safe for concurrent use.
type Enforcer struct {
	mu     sync.RWMutex
	grants map[string][]compiledGrant
}

// NewEnforcer creates a capability enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{
		grants: make(map[string][]compiledGrant),
	}
}

// Grants returns the capability patterns a descriptor declares.
func Grants(info pluginpkg.Info) []string {
	raw, ok := info.Resource(ResourceCapabilities)
	if !ok {
		return nil
	}
	var grants []string
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			grants = append(grants, g)
		}
	}
	return grants
}

// SetGrants replaces the grants of a plugin. Nothing changes when any
// pattern is invalid.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	errb := oops.Code(pluginpkg.CodeInvalidArgument).In("capability").With("plugin", plugin)
	if plugin == "" {
		return errb.Errorf("plugin name cannot be empty")
	}

	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return errb.Errorf("capability %d: empty capability pattern", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return errb.With("pattern", pattern).Wrapf(err, "capability %d (%q)", i, pattern)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.grants[plugin] = compiled
	return nil
}

// RemoveGrants forgets a plugin. Unknown plugins are ignored.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, plugin)
}

// GetGrants returns a copy of the patterns granted to a plugin, or nil.
func (e *Enforcer) GetGrants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[plugin]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check reports whether the plugin holds the capability. Unknown plugins
// and empty capabilities are denied.
func (e *Enforcer) Check(plugin, capability string) bool {
	if capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, grant := range e.grants[plugin] {
		if grant.glob.Match(capability) {
			return true
		}
	}
	return false
}
