package dag

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Metadata stores arbitrary key-value pairs attached to nodes, edges or the
// graph itself. Source locations and display hints live here.
type Metadata map[string]any

// Well-known declaration kinds. Kind is free-form; these are the values the
// simplifier and renderers treat specially.
const (
	KindTheorem    = "theorem"
	KindDefinition = "definition"
	KindInstance   = "instance"
	KindClass      = "class"
	KindStructure  = "structure"
	KindAxiom      = "axiom"
)

// Node is a declaration in the dependency graph.
//
// Name is the dot-separated hierarchical identifier (e.g. "Nat.add_comm").
// The zero value is not usable: ID must be set before adding to a DAG.
type Node struct {
	ID   string   // Unique identifier
	Name string   // Hierarchical display name; defaults to ID
	Kind string   // Declaration kind (theorem, instance, ...)
	Meta Metadata // Arbitrary metadata (never nil after AddNode)
}

// Edge is a directed "depends on" relation: From depends on To.
type Edge struct {
	ID        string   // Defaults to "<from>-><to>"
	From      string   // Dependent node ID
	To        string   // Dependency node ID
	Synthetic bool     // Created by through-link contraction, not present in the input
	Meta      Metadata // Arbitrary metadata (never nil after AddEdge)
}

// EdgeID returns the canonical identifier for the edge from→to.
func EdgeID(from, to string) string { return from + "->" + to }

type edgeKey struct{ from, to string }

// DAG is the mutable graph every pipeline stage reads and rewrites.
//
// Despite the name, the graph may contain cycles and self-loops: proof
// projects occasionally produce mutual dependencies and the simplifier is
// expected to tolerate them. Nodes and edges keep insertion order so all
// downstream passes are deterministic. At most one edge exists per
// (From, To) pair.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	index    map[edgeKey]int
	outgoing map[string][]string // nodeID -> dependency IDs
	incoming map[string][]string // nodeID -> dependent IDs
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		index:    make(map[edgeKey]int),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Build assembles a graph from raw node and edge lists.
//
// Duplicate node IDs keep the first occurrence. Edges whose endpoints are
// not in the node set are dropped silently; the number of dropped edges is
// returned for logging.
func Build(nodes []Node, edges []Edge) (*DAG, int) {
	g := New(nil)
	for _, n := range nodes {
		_ = g.AddNode(n)
	}
	dropped := 0
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			dropped++
		}
	}
	return g, dropped
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode adds a node to the graph. Name defaults to ID and Meta is
// initialized to an empty map if nil.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Name == "" {
		n.Name = n.ID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	d.nodes[node.ID] = node
	d.order = append(d.order, node.ID)
	return nil
}

// AddEdge adds a directed edge between two existing nodes.
//
// A second edge for an existing (From, To) pair is ignored, except that a
// real edge replaces a synthetic one.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.ID == "" {
		e.ID = EdgeID(e.From, e.To)
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	key := edgeKey{e.From, e.To}
	if i, exists := d.index[key]; exists {
		if d.edges[i].Synthetic && !e.Synthetic {
			d.edges[i] = e
		}
		return nil
	}
	d.index[key] = len(d.edges)
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// HasEdge reports whether an edge from→to exists.
func (d *DAG) HasEdge(from, to string) bool {
	_, ok := d.index[edgeKey{from, to}]
	return ok
}

// Edge returns the edge from→to and true, or a zero Edge and false.
func (d *DAG) Edge(from, to string) (Edge, bool) {
	i, ok := d.index[edgeKey{from, to}]
	if !ok {
		return Edge{}, false
	}
	return d.edges[i], true
}

// RemoveEdge removes the edge from→to if it exists.
func (d *DAG) RemoveEdge(from, to string) {
	d.RemoveEdgesFunc(func(e Edge) bool { return e.From == from && e.To == to })
}

// RemoveEdgesFunc removes every edge for which del returns true in a single
// pass and returns the number of removed edges.
func (d *DAG) RemoveEdgesFunc(del func(Edge) bool) int {
	before := len(d.edges)
	d.edges = slices.DeleteFunc(d.edges, del)
	if len(d.edges) != before {
		d.reindex()
	}
	return before - len(d.edges)
}

// RemoveNodes deletes the given nodes and every edge touching them in a
// single pass. Unknown IDs are ignored. Returns the number of removed nodes.
func (d *DAG) RemoveNodes(ids map[string]bool) int {
	removed := 0
	for id := range ids {
		if _, ok := d.nodes[id]; ok {
			delete(d.nodes, id)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}
	d.order = slices.DeleteFunc(d.order, func(id string) bool { return ids[id] })
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return ids[e.From] || ids[e.To] })
	d.reindex()
	return removed
}

func (d *DAG) reindex() {
	d.index = make(map[edgeKey]int, len(d.edges))
	d.outgoing = make(map[string][]string)
	d.incoming = make(map[string][]string)
	for i, e := range d.edges {
		d.index[edgeKey{e.From, e.To}] = i
		d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
		d.incoming[e.To] = append(d.incoming[e.To], e.From)
	}
}

// Nodes returns all nodes in insertion order. The returned slice contains
// pointers to the actual node structs, so modifications affect the graph.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// NodeIDs returns all node IDs in insertion order.
func (d *DAG) NodeIDs() []string { return slices.Clone(d.order) }

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of the node's dependencies. The returned slice
// is a read-only view.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes that depend on this node. The returned
// slice is a read-only view.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// OutDegree returns the number of outgoing edges from the node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of incoming edges to the node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Node returns the node with the given ID and true, or nil and false.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Sources returns nodes with no incoming edges, in insertion order.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, id := range d.order {
		if len(d.incoming[id]) == 0 {
			sources = append(sources, d.nodes[id])
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges, in insertion order.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, id := range d.order {
		if len(d.outgoing[id]) == 0 {
			sinks = append(sinks, d.nodes[id])
		}
	}
	return sinks
}

// Clone returns a deep copy of the graph structure. Metadata maps are
// copied shallowly.
func (d *DAG) Clone() *DAG {
	c := New(cloneMeta(d.meta))
	for _, id := range d.order {
		n := *d.nodes[id]
		n.Meta = cloneMeta(n.Meta)
		_ = c.AddNode(n)
	}
	for _, e := range d.edges {
		e.Meta = cloneMeta(e.Meta)
		_ = c.AddEdge(e)
	}
	return c
}

func cloneMeta(m Metadata) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
