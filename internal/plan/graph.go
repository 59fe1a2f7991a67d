package plan

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidGraph is returned for malformed nodes or edges
	ErrInvalidGraph = errors.New("invalid plan graph")
	// ErrCycleFound is returned when the edges do not form a DAG
	ErrCycleFound = errors.New("cycle detected")
)

// GraphError wraps deterministic graph validation failures
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &GraphError{Kind: ErrCycleFound, Msg: msg}
}

// Graph is a validated, acyclic set of plan nodes and edges.
// Node order is the canonical order used to break ties deterministically.
type Graph struct {
	nodes    []string
	index    map[string]int
	edges    []Edge
	outgoing [][]int
	incoming [][]Edge
	indeg    []int
}

// NewGraph validates nodes and edges and returns the graph.
// All edge kinds take part in the cycle check since each one orders From before To.
func NewGraph(nodes []string, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:    append([]string(nil), nodes...),
		index:    make(map[string]int, len(nodes)),
		outgoing: make([][]int, len(nodes)),
		incoming: make([][]Edge, len(nodes)),
		indeg:    make([]int, len(nodes)),
	}

	for i, name := range nodes {
		if strings.TrimSpace(name) == "" {
			return nil, invalidf("node %d has an empty name", i)
		}
		if _, dup := g.index[name]; dup {
			return nil, invalidf("duplicate node %q", name)
		}
		g.index[name] = i
	}

	type pair struct{ from, to int }
	seen := make(map[pair]EdgeKind, len(edges))
	for _, e := range edges {
		from, ok := g.index[e.From]
		if !ok {
			return nil, invalidf("edge %s -> %s references unknown node %q", e.From, e.To, e.From)
		}
		to, ok := g.index[e.To]
		if !ok {
			return nil, invalidf("edge %s -> %s references unknown node %q", e.From, e.To, e.To)
		}
		if from == to {
			return nil, invalidf("self-loop on %q", e.From)
		}
		if prev, dup := seen[pair{from, to}]; dup {
			return nil, invalidf("duplicate edge %s -> %s (%s and %s)", e.From, e.To, prev, e.Kind)
		}
		seen[pair{from, to}] = e.Kind

		g.edges = append(g.edges, e)
		g.outgoing[from] = append(g.outgoing[from], to)
		g.incoming[to] = append(g.incoming[to], e)
		g.indeg[to]++
	}
	for i := range g.outgoing {
		sort.Ints(g.outgoing[i])
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// Nodes returns the node names in canonical order
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns the edges in declaration order
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Has reports whether name is a node of the graph
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Incoming returns the edges ending at name, optionally filtered by kind
func (g *Graph) Incoming(name string, kinds ...EdgeKind) []Edge {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return filterEdges(g.incoming[i], kinds)
}

// Outgoing returns the edges starting at name, optionally filtered by kind
func (g *Graph) Outgoing(name string, kinds ...EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == name {
			out = append(out, e)
		}
	}
	return filterEdges(out, kinds)
}

// TopoOrder returns every node in a deterministic topological order
func (g *Graph) TopoOrder() []string {
	order := g.topoOrderIndices()
	out := make([]string, 0, len(order))
	for _, idx := range order {
		out = append(out, g.nodes[idx])
	}
	return out
}

func filterEdges(edges []Edge, kinds []EdgeKind) []Edge {
	if len(kinds) == 0 {
		return append([]Edge(nil), edges...)
	}
	var out []Edge
	for _, e := range edges {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// validateAcyclic runs Kahn's algorithm and extracts one stable cycle on failure
func (g *Graph) validateAcyclic() error {
	order := g.topoOrderIndices()
	if len(order) == len(g.nodes) {
		return nil
	}
	return cycleError(g.findCycleDeterministic())
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrderIndices orders ready nodes by canonical index
func (g *Graph) topoOrderIndices() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

func (g *Graph) findCycleDeterministic() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				// back-edge u -> v closes the cycle v ... u -> v
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.nodes[cycle[i]])
	}
	return out
}
