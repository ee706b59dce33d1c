package graph

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Version is the graph file format version. Files with another version are
// rejected by [Graph.Validate].
const Version = "1.0"

// Metadata keys used to carry wire fields through dag.Node.Meta.
const (
	MetaFilePath   = "file_path"
	MetaLineNumber = "line_number"
	MetaStatus     = "status"
	MetaFromLean   = "from_lean"
)

// Proof status values.
const (
	StatusProven  = "proven"
	StatusSorry   = "sorry"
	StatusError   = "error"
	StatusUnknown = "unknown"
)

// =============================================================================
// Graph - Declaration Graph Serialization
// =============================================================================

// Graph is the canonical serialization format for declaration graphs.
// Used for input files, API requests and responses, and caching.
//
// Positions is optional; when present it carries previously persisted
// layout coordinates keyed by node ID.
type Graph struct {
	Version   string               `json:"version,omitempty" bson:"version,omitempty"`
	Nodes     []Node               `json:"nodes" bson:"nodes"`
	Edges     []Edge               `json:"edges" bson:"edges"`
	Positions map[string]geom.Vec3 `json:"positions,omitempty" bson:"positions,omitempty"`
}

// =============================================================================
// Node - Declaration
// =============================================================================

// Node is a declaration on the wire.
type Node struct {
	ID         string `json:"id" bson:"id"`
	Name       string `json:"name,omitempty" bson:"name,omitempty"`
	Kind       string `json:"kind,omitempty" bson:"kind,omitempty"`
	FilePath   string `json:"file_path,omitempty" bson:"file_path,omitempty"`
	LineNumber int    `json:"line_number,omitempty" bson:"line_number,omitempty"`
	Status     string `json:"status,omitempty" bson:"status,omitempty"`

	// Derived statistics, filled on export.
	DependsOn int `json:"depends_on_count,omitempty" bson:"depends_on_count,omitempty"`
	UsedBy    int `json:"used_by_count,omitempty" bson:"used_by_count,omitempty"`
	Depth     int `json:"depth,omitempty" bson:"depth,omitempty"`

	Meta map[string]any `json:"meta,omitempty" bson:"meta,omitempty"`
}

// DisplayName returns the name if set, otherwise the ID.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// =============================================================================
// Edge - Directed Dependency
// =============================================================================

// Edge is a "depends on" relation on the wire: Source depends on Target.
type Edge struct {
	ID        string `json:"id,omitempty" bson:"id,omitempty"`
	Source    string `json:"source" bson:"source"`
	Target    string `json:"target" bson:"target"`
	Synthetic bool   `json:"synthetic,omitempty" bson:"synthetic,omitempty"`
}

// =============================================================================
// DAG ↔ Graph Conversion
// =============================================================================

// FromDAG converts a DAG to its serialization format, including per-node
// statistics. Nodes are sorted by ID for deterministic output; edges keep
// graph order.
func FromDAG(g *dag.DAG) Graph {
	nodes := g.Nodes()
	slices.SortFunc(nodes, func(a, b *dag.Node) int { return strings.Compare(a.ID, b.ID) })
	stats := g.Stats()

	out := Graph{
		Version: Version,
		Nodes:   make([]Node, len(nodes)),
		Edges:   make([]Edge, 0, g.EdgeCount()),
	}
	for i, n := range nodes {
		out.Nodes[i] = nodeFromDAG(n, stats[n.ID])
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, Edge{ID: e.ID, Source: e.From, Target: e.To, Synthetic: e.Synthetic})
	}
	return out
}

// ToDAG converts a Graph to a DAG.
//
// Duplicate node IDs keep the first occurrence and edges referencing
// unknown nodes are dropped; the count of dropped edges is returned.
func ToDAG(gj Graph) (*dag.DAG, int) {
	nodes := make([]dag.Node, 0, len(gj.Nodes))
	for _, nj := range gj.Nodes {
		nodes = append(nodes, nodeToDAG(nj))
	}
	edges := make([]dag.Edge, 0, len(gj.Edges))
	for _, ej := range gj.Edges {
		edges = append(edges, dag.Edge{ID: ej.ID, From: ej.Source, To: ej.Target, Synthetic: ej.Synthetic})
	}
	return dag.Build(nodes, edges)
}

// UnmarshalGraph deserializes JSON bytes to a Graph.
func UnmarshalGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func nodeToDAG(nj Node) dag.Node {
	meta := copyMeta(nj.Meta)
	if meta == nil {
		meta = dag.Metadata{}
	}
	if nj.FilePath != "" {
		meta[MetaFilePath] = nj.FilePath
	}
	if nj.LineNumber != 0 {
		meta[MetaLineNumber] = nj.LineNumber
	}
	if nj.Status != "" {
		meta[MetaStatus] = nj.Status
	}
	return dag.Node{ID: nj.ID, Name: nj.Name, Kind: nj.Kind, Meta: meta}
}

func nodeFromDAG(n *dag.Node, s dag.NodeStats) Node {
	node := Node{
		ID:        n.ID,
		Kind:      n.Kind,
		DependsOn: s.DependsOn,
		UsedBy:    s.UsedBy,
		Depth:     s.Depth,
	}
	if n.Name != n.ID {
		node.Name = n.Name
	}
	if v, ok := n.Meta[MetaFilePath].(string); ok {
		node.FilePath = v
	}
	node.LineNumber = intMeta(n.Meta[MetaLineNumber])
	if v, ok := n.Meta[MetaStatus].(string); ok {
		node.Status = v
	}
	node.Meta = cleanMeta(n.Meta)
	return node
}

// intMeta accepts both int (set in-process) and float64 (decoded JSON).
func intMeta(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}

func copyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

// cleanMeta returns a copy of metadata without keys promoted to wire
// fields. Returns nil if the result would be empty.
func cleanMeta(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case MetaFilePath, MetaLineNumber, MetaStatus:
			continue
		}
		result[k] = v
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
