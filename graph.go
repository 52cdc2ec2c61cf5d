package asterism

import (
	"fmt"
	"iter"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Graph is a directed graph with insertion-ordered nodes.  An edge from -> to means "to depends on
// from", so a topological sort lists every node after all of the nodes it depends on.
//
// The zero value is not usable; construct with [NewGraph].
type Graph[N comparable] struct {
	nodes    []N
	incoming map[N]mapset.Set[N]
	outgoing map[N][]N
}

// NewGraph returns an empty graph.
func NewGraph[N comparable]() *Graph[N] {
	return &Graph[N]{
		incoming: map[N]mapset.Set[N]{},
		outgoing: map[N][]N{},
	}
}

// AddNode adds n to the graph.  Adding an existing node is a no-op.
func (g *Graph[N]) AddNode(n N) {
	if _, ok := g.incoming[n]; ok {
		return
	}
	g.nodes = append(g.nodes, n)
	g.incoming[n] = mapset.NewThreadUnsafeSet[N]()
}

// AddEdge records that to depends on from, adding either node if needed.  Duplicate edges are
// ignored.
func (g *Graph[N]) AddEdge(from, to N) {
	g.AddNode(from)
	g.AddNode(to)
	if g.incoming[to].Add(from) {
		g.outgoing[from] = append(g.outgoing[from], to)
	}
}

// Nodes yields the nodes in insertion order.
func (g *Graph[N]) Nodes() iter.Seq[N] {
	return slices.Values(g.nodes)
}

// DependsOn yields the nodes n depends on, in no particular order.
func (g *Graph[N]) DependsOn(n N) iter.Seq[N] {
	in, ok := g.incoming[n]
	if !ok {
		return func(func(N) bool) {}
	}
	return mapset.Elements(in)
}

// TopologicalSort orders the nodes with Kahn's algorithm.  Ties are broken by node insertion order
// and then by edge insertion order, so the result is deterministic.  If the graph has a cycle, the
// error is a [*CycleError] listing every node that could not be ordered.
func (g *Graph[N]) TopologicalSort() ([]N, error) {
	indegree := make(map[N]int, len(g.nodes))
	var queue []N
	for _, n := range g.nodes {
		indegree[n] = g.incoming[n].Cardinality()
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	order := make([]N, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, m := range g.outgoing[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if len(order) < len(g.nodes) {
		var remaining []string
		for _, n := range g.nodes {
			if indegree[n] > 0 {
				remaining = append(remaining, fmt.Sprint(n))
			}
		}
		return nil, &CycleError{Nodes: remaining}
	}
	return order, nil
}
