// Package dag models the pipeline's task graph as an explicit directed
// acyclic graph value and executes it with a bounded worker pool.
//
// Graph construction is pure: nodes are typed task descriptors with a run
// closure, edges are data dependencies. Execution is the only concurrent
// phase of the pipeline; each node writes to its own uniquely named output
// files, so ordering constraints are expressed purely as edges.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a collection of nodes and their dependencies.
type Graph struct {
	nodes map[string]*Node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode inserts a node into the graph. Node IDs must be unique: a second
// insert under the same ID is an error, because deterministic task naming is
// what guarantees distinct input files never collide.
func (g *Graph) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("node must have an ID")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node ID %q", n.ID)
	}
	if n.deps == nil {
		n.deps = make(map[string]*Node)
	}
	if n.dependents == nil {
		n.dependents = make(map[string]*Node)
	}
	g.nodes[n.ID] = n
	return nil
}

// AddEdge creates a directed edge from fromID to toID, meaning toID depends
// on fromID. An error is returned if either node does not exist or the edge
// would be self-referential.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}
	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.deps[fromID] = from
	from.dependents[toID] = to
	return nil
}

// Node returns the node with the given ID, or nil when absent.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeIDs returns all node IDs in sorted order, giving repeated runs a
// stable, human-diffable view of the graph.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the sorted IDs of the nodes the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	deps := make([]string, 0, len(n.deps))
	for depID := range n.deps {
		deps = append(deps, depID)
	}
	sort.Strings(deps)
	return deps, nil
}

// Dependents returns the sorted IDs of the nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	dependents := make([]string, 0, len(n.dependents))
	for depID := range n.dependents {
		dependents = append(dependents, depID)
	}
	sort.Strings(dependents)
	return dependents, nil
}

// Merge moves every node and edge of other into g. Node IDs must remain
// globally unique across the merged graphs.
func (g *Graph) Merge(other *Graph) error {
	for _, n := range other.nodes {
		if _, exists := g.nodes[n.ID]; exists {
			return fmt.Errorf("duplicate node ID %q while merging graphs", n.ID)
		}
	}
	for id, n := range other.nodes {
		g.nodes[id] = n
	}
	return nil
}

// DetectCycles checks the graph for any cycles using depth-first search,
// returning a non-nil error naming a node involved in the first cycle found.
func (g *Graph) DetectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		visiting[n.ID] = true
		for _, dep := range n.deps {
			if visiting[dep.ID] {
				return fmt.Errorf("cycle detected involving '%s'", dep.ID)
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, n.ID)
		visited[n.ID] = true
		return nil
	}

	for _, n := range g.nodes {
		if !visited[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
