// Package vgraph compacts a collation into a variant graph: a directed
// acyclic graph whose nodes are distinct readings and whose edges record
// which witnesses travel between them.
//
// Every witness corresponds to exactly one path from the single start
// node to the single end node; removing gaps, that path reconstructs the
// witness's normalized token sequence. Witnesses sharing the same
// normalized reading at a variation unit share the node, so the graph is
// the minimal DAG that preserves each witness's path identity.
//
// The graph is built by a single writer and treated as immutable once
// published; concurrent readers need no locking.
package vgraph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [Graph.Validate] when a cycle is
	// detected. Witness paths only ever move forward through variation
	// units, so a cycle indicates graph corruption.
	ErrGraphHasCycle = errors.New("graph contains a cycle")

	// ErrMultipleSources is returned by [Graph.Validate] when more than one
	// node has no incoming edges. A variant graph has exactly one start.
	ErrMultipleSources = errors.New("graph must have exactly one source")

	// ErrMultipleSinks is returned by [Graph.Validate] when more than one
	// node has no outgoing edges. A variant graph has exactly one end.
	ErrMultipleSinks = errors.New("graph must have exactly one sink")

	// ErrBrokenWitnessPath is returned by [Graph.Validate] when a witness's
	// edges do not form a single start-to-end path.
	ErrBrokenWitnessPath = errors.New("witness path is not connected")
)

// NodeKind distinguishes the two boundary markers from reading nodes.
type NodeKind int

const (
	// NodeKindReading is a reading attested by at least one witness.
	NodeKindReading NodeKind = iota
	// NodeKindStart is the unique entry node shared by all witnesses.
	NodeKindStart
	// NodeKindEnd is the unique exit node shared by all witnesses.
	NodeKindEnd
)

// Node is a vertex of the variant graph: one distinct normalized reading
// at one variation unit, or a boundary marker.
type Node struct {
	ID      string   // Unique identifier
	Rank    int      // Variation unit index (-1 for start, unit count for end)
	Reading string   // Normalized reading (empty for boundary nodes)
	Kind    NodeKind // Reading, start or end
}

// IsBoundary reports whether the node is the start or end marker.
func (n Node) IsBoundary() bool { return n.Kind != NodeKindReading }

// Edge is a directed connection traversed by one or more witnesses.
type Edge struct {
	From      string
	To        string
	Witnesses []string // witness IDs traversing this edge, sorted
}

// Graph is a variant graph. The zero value is not usable - use New.
// Not safe for concurrent mutation; safe for concurrent reads once built.
type Graph struct {
	nodes     map[string]*Node
	edges     []Edge
	edgeIndex map[[2]string]int   // (from, to) -> index into edges
	outgoing  map[string][]string // nodeID -> successor IDs
	incoming  map[string][]string // nodeID -> predecessor IDs
	witnesses []string            // witness IDs in ingestion order
	units     int                 // number of variation units spanned
}

// New creates an empty variant graph for the given witnesses.
func New(witnesses []string) *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		edgeIndex: make(map[[2]string]int),
		outgoing:  make(map[string][]string),
		incoming:  make(map[string][]string),
		witnesses: slices.Clone(witnesses),
	}
}

// Witnesses returns the witness IDs in ingestion order.
func (g *Graph) Witnesses() []string { return slices.Clone(g.witnesses) }

// Units returns the number of variation units the graph spans.
func (g *Graph) Units() int { return g.units }

// AddNode adds a node to the graph.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	node := n
	g.nodes[node.ID] = &node
	return nil
}

// AddTraversal records that witnessID travels from one node to another,
// creating the edge on first use and merging witness lists otherwise.
func (g *Graph) AddTraversal(from, to, witnessID string) error {
	if _, ok := g.nodes[from]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[to]; !ok {
		return ErrUnknownTargetNode
	}
	key := [2]string{from, to}
	if idx, ok := g.edgeIndex[key]; ok {
		e := &g.edges[idx]
		if !slices.Contains(e.Witnesses, witnessID) {
			e.Witnesses = append(e.Witnesses, witnessID)
			slices.Sort(e.Witnesses)
		}
		return nil
	}
	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, Edge{From: from, To: to, Witnesses: []string{witnessID}})
	g.outgoing[from] = append(g.outgoing[from], to)
	g.incoming[to] = append(g.incoming[to], from)
	return nil
}

// Node returns the node with the given ID and true, or nil and false.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by rank, then ID, for deterministic
// iteration.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		if a.Rank != b.Rank {
			return a.Rank - b.Rank
		}
		return compareStrings(a.ID, b.ID)
	})
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	for i, e := range g.edges {
		out[i] = Edge{From: e.From, To: e.To, Witnesses: slices.Clone(e.Witnesses)}
	}
	return out
}

// NodeCount returns the number of nodes, including the two boundaries.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Successors returns the IDs of nodes reachable in one step.
// The returned slice is a read-only view.
func (g *Graph) Successors(id string) []string { return g.outgoing[id] }

// Predecessors returns the IDs of nodes with an edge into id.
// The returned slice is a read-only view.
func (g *Graph) Predecessors(id string) []string { return g.incoming[id] }

// Source returns the unique start node.
func (g *Graph) Source() (*Node, bool) {
	for _, n := range g.nodes {
		if n.Kind == NodeKindStart {
			return n, true
		}
	}
	return nil, false
}

// Sink returns the unique end node.
func (g *Graph) Sink() (*Node, bool) {
	for _, n := range g.nodes {
		if n.Kind == NodeKindEnd {
			return n, true
		}
	}
	return nil, false
}

// PathFor returns the normalized readings along witnessID's path from
// start to end, gaps removed. The result equals the witness's original
// normalized token sequence (round-trip law).
func (g *Graph) PathFor(witnessID string) ([]string, error) {
	src, ok := g.Source()
	if !ok {
		return nil, ErrBrokenWitnessPath
	}
	var out []string
	cur := src.ID
	for {
		next := ""
		for _, succ := range g.outgoing[cur] {
			idx := g.edgeIndex[[2]string{cur, succ}]
			if slices.Contains(g.edges[idx].Witnesses, witnessID) {
				next = succ
				break
			}
		}
		if next == "" {
			if n := g.nodes[cur]; n.Kind == NodeKindEnd {
				return out, nil
			}
			return nil, fmt.Errorf("%w: witness %s stops at %s", ErrBrokenWitnessPath, witnessID, cur)
		}
		if n := g.nodes[next]; n.Kind == NodeKindReading {
			out = append(out, n.Reading)
		}
		cur = next
	}
}

// Validate checks structural invariants: acyclicity, a single source, a
// single sink, and one connected path per witness.
func (g *Graph) Validate() error {
	var sources, sinks int
	for id := range g.nodes {
		if len(g.incoming[id]) == 0 {
			sources++
		}
		if len(g.outgoing[id]) == 0 {
			sinks++
		}
	}
	if sources != 1 {
		return ErrMultipleSources
	}
	if sinks != 1 {
		return ErrMultipleSinks
	}
	if err := g.detectCycles(); err != nil {
		return err
	}
	for _, w := range g.witnesses {
		if _, err := g.PathFor(w); err != nil {
			return err
		}
	}
	return nil
}

// detectCycles runs depth-first search with white/gray/black coloring.
func (g *Graph) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, succ := range g.outgoing[id] {
			switch color[succ] {
			case white:
				dfs(succ)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for id := range g.nodes {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
