package asterism

import (
	"context"
	"fmt"
	"log/slog"
)

// A BuildStep is one module to build, at its resolved version.
type BuildStep struct {
	Module  *Module
	Version VersionSpecifier
}

func (s BuildStep) String() string {
	return fmt.Sprintf("%v@%v", s.Module, s.Version)
}

// BuildOrder projects res onto a sequence in which every module appears after all of the modules
// it requires.  The root module is excluded.  A requirement cycle is reported as a [*CycleError].
// An edge naming a module missing from res.Modules is an error.
func BuildOrder(ctx context.Context, res *Resolution) ([]BuildStep, error) {
	g := DependencyGraph(res)
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Module, len(res.Modules))
	for _, m := range res.Modules {
		byName[m.Name()] = m
	}
	steps := make([]BuildStep, 0, len(order))
	for _, name := range order {
		if name == res.Root.Name() {
			continue
		}
		m, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("edge references unresolved module %q", name)
		}
		steps = append(steps, BuildStep{Module: m, Version: res.Versions[name]})
	}
	slog.DebugContext(ctx, "build order", "steps", len(steps))
	return steps, nil
}

// DependencyGraph converts res into a [Graph] over module names where each edge points from a
// required module to the module requiring it.
func DependencyGraph(res *Resolution) *Graph[string] {
	g := NewGraph[string]()
	for _, m := range res.Modules {
		g.AddNode(m.Name())
	}
	for _, e := range res.Edges {
		g.AddEdge(e.Child, e.Parent)
	}
	return g
}
