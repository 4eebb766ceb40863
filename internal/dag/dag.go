// SPDX-License-Identifier: MPL-2.0

// Package dag orders workspace projects so that every project comes after the
// projects it depends on, and reports dependency cycles with their path.
package dag

import (
	"errors"
	"slices"
	"strings"
)

// ErrCycle is the sentinel wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports a dependency cycle. Cycle starts and ends with the
	// same node, e.g. [app lib app].
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph over project names. An edge from A to B
	// means A must be built before B. Node order is insertion order, which
	// breaks ties in BuildOrder.
	Graph struct {
		edges   map[string][]string
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// Unwrap returns ErrCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		edges:   make(map[string][]string),
		nodeSet: make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddDependency records that project depends on dep, so dep is ordered
// first. Repeated declarations of the same pair add a single edge.
func (g *Graph) AddDependency(project, dep string) {
	g.AddNode(dep)
	g.AddNode(project)
	if !slices.Contains(g.edges[dep], project) {
		g.edges[dep] = append(g.edges[dep], project)
	}
}

// Dependents returns the nodes that depend on name directly.
func (g *Graph) Dependents(name string) []string {
	return slices.Clone(g.edges[name])
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// BuildOrder returns every node with dependencies before dependents, using
// Kahn's algorithm. Nodes that become ready together keep insertion order.
// A cycle yields a CycleError.
func (g *Graph) BuildOrder() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.edges {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	var ready []string
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, t := range g.edges[n] {
			inDegree[t]--
			if inDegree[t] == 0 {
				ready = append(ready, t)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &CycleError{Cycle: g.findCycle(inDegree)}
	}
	return order, nil
}

// findCycle walks the nodes left with incoming edges after Kahn's algorithm
// until a node repeats. Every such node has a predecessor that is also left,
// so following predecessors always closes a loop.
func (g *Graph) findCycle(inDegree map[string]int) []string {
	predecessor := make(map[string]string)
	for _, from := range g.nodes {
		if inDegree[from] == 0 {
			continue
		}
		for _, to := range g.edges[from] {
			if inDegree[to] > 0 {
				if _, ok := predecessor[to]; !ok {
					predecessor[to] = from
				}
			}
		}
	}

	var start string
	for _, n := range g.nodes {
		if _, ok := predecessor[n]; ok {
			start = n
			break
		}
	}
	if start == "" {
		return nil
	}

	seen := map[string]int{}
	var walk []string
	for n := start; ; n = predecessor[n] {
		if i, ok := seen[n]; ok {
			loop := append(walk[i:], n)
			slices.Reverse(loop)
			return loop
		}
		seen[n] = len(walk)
		walk = append(walk, n)
	}
}
