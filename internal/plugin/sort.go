// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package plugin

import (
	"errors"
	"strings"

	"github.com/samber/oops"
	"ocm.software/open-component-model/bindings/go/dag"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// SortByDependencies orders infos so that every plugin comes after all of
// its dependencies found in infos. Dependencies outside the set are ignored;
// Manager.Load checks them. Plugins without ordering constraints keep their
// input order.
func SortByDependencies(infos []pluginpkg.Info) ([]pluginpkg.Info, error) {
	g := dag.NewDirectedAcyclicGraph[string]()

	for _, info := range infos {
		if g.Contains(info.Name) {
			return nil, pluginpkg.ErrDuplicateName("plugin", info.Name)
		}
		if err := g.AddVertex(info.Name); err != nil {
			return nil, oops.Code(pluginpkg.CodeInvalidArgument).With("plugin", info.Name).Wrap(err)
		}
	}

	// Edges point from a dependency to its dependents. The graph rejects
	// any edge that would close a cycle.
	for _, info := range infos {
		for _, dep := range info.Dependencies {
			if !g.Contains(dep) {
				continue
			}
			if err := g.AddEdge(dep, info.Name); err != nil {
				return nil, cycleError(dep, info.Name, err)
			}
		}
	}

	inDegree := make(map[string]int, len(infos))
	for name, v := range g.Vertices {
		inDegree[name] = v.InDegree
	}

	done := make([]bool, len(infos))
	order := make([]pluginpkg.Info, 0, len(infos))
	for len(order) < len(infos) {
		next := -1
		for i, info := range infos {
			if !done[i] && inDegree[info.Name] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, oops.Code(pluginpkg.CodeCyclicDependency).Errorf("dependency graph has no acyclic order")
		}

		done[next] = true
		order = append(order, infos[next].Clone())
		for to := range g.Vertices[infos[next].Name].Edges {
			inDegree[to]--
		}
	}

	return order, nil
}

func cycleError(from, to string, err error) error {
	cycle := []string{from, to, from}
	var ce *dag.CycleError
	switch {
	case errors.Is(err, dag.ErrSelfReference):
		cycle = []string{from, from}
	case errors.As(err, &ce) && len(ce.Cycle) > 0:
		cycle = ce.Cycle
	}
	return oops.Code(pluginpkg.CodeCyclicDependency).
		With("cycle", cycle).
		Wrapf(err, "cyclic dependency: %s", strings.Join(cycle, " -> "))
}
