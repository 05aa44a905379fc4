// pkg/dag/dag.go
package dag

import (
	"context"
	"fmt"
	"time"
)

// NodeFunc is the body of a single graph node: one blocking, synchronous unit
// of work. It runs only after every dependency has succeeded.
type NodeFunc func(ctx context.Context) error

// RetryPolicy controls how the executor re-runs a failed node. The zero value
// means a single attempt with no retry.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int

	// Backoff is the delay between attempts
	Backoff time.Duration

	// Retryable, when set, gates retries on the returned error. A nil
	// predicate retries every failure.
	Retryable func(error) bool
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type node struct {
	id         string
	run        NodeFunc
	policy     RetryPolicy
	deps       map[string]*node
	dependents map[string]*node
}

// Graph is a directed acyclic graph of named nodes. Build it once with
// AddNode/AddEdge, then Validate before handing it to an Executor.
type Graph struct {
	nodes map[string]*node
	order []string // insertion order, for deterministic iteration
}

// New creates and returns an initialized, empty Graph
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a node with the given ID, body and retry policy. Adding a
// duplicate ID is an error.
func (g *Graph) AddNode(id string, run NodeFunc, policy RetryPolicy) error {
	if run == nil {
		return fmt.Errorf("node %q has no body", id)
	}
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("duplicate node: %s", id)
	}

	g.nodes[id] = &node{
		id:         id,
		run:        run,
		policy:     policy,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
	return nil
}

// AddEdge creates a directed edge from fromID to toID, meaning toID depends
// on fromID. An error is returned if either node does not exist or the edge
// would be self-referential.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
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

// NodeIDs returns all node IDs in insertion order
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Dependencies returns the IDs of the nodes the given node depends on
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}

	deps := make([]string, 0, len(n.deps))
	for depID := range n.deps {
		deps = append(deps, depID)
	}
	return deps, nil
}

// Validate checks the graph for cycles. It returns a non-nil error if a cycle
// is found, naming the first node involved.
func (g *Graph) Validate() error {
	// Classic depth-first search with three node sets:
	// permanent: fully visited, known cycle-free.
	// temporary: currently on the recursion stack.
	// unvisited: everything else.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}

		temporary[n.id] = true

		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range g.order {
		n := g.nodes[id]
		if !permanent[n.id] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	return nil
}
