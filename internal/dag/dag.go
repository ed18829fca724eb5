// Package dag provides the dependency graph used to order device start-up:
// trigger and clock sources sort before the devices they drive. The graph
// detects cycles and produces a deterministic topological order.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed acyclic graph over string-identified nodes.
type Graph struct {
	nodes map[string]*node
}

// node is one vertex. It is unexported so callers interact with the graph
// through string IDs only.
type node struct {
	id         string
	deps       map[string]*node
	dependents map[string]*node
}

// New creates an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node with the given ID. Adding an existing ID is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge records that toID depends on fromID: fromID will sort before
// toID. Self-references and unknown nodes are errors.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, toID)
	}
	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	return nil
}

// TopoSort returns every node in an order where dependencies come before
// their dependents. Ties are broken by the given less function over node
// IDs, so the result is deterministic. A cycle is an error naming one of
// its nodes.
func (g *Graph) TopoSort(less func(a, b string) bool) ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for id := range g.nodes[next].dependents {
			indegree[id]--
			if indegree[id] == 0 {
				ready = append(ready, id)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("cycle detected involving node '%s'", stuck[0])
	}
	return order, nil
}
