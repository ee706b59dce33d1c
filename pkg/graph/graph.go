package graph

import (
	"fmt"
	"io"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
)

// MarshalGraph returns the wire form of g as indented JSON.
func MarshalGraph(g *dag.DAG) ([]byte, error) { return marshal(FromDAG(g)) }

// WriteGraph writes the wire form of g to w.
func WriteGraph(g *dag.DAG, w io.Writer) error { return Encode(FromDAG(g), w) }

// WriteGraphFile writes the wire form of g to path.
func WriteGraphFile(g *dag.DAG, path string) error { return writeFile(path, FromDAG(g)) }

// ReadGraph decodes a graph from r and rejects it if [Graph.Validate] fails.
func ReadGraph(r io.Reader) (Graph, error) {
	return decode(r, "graph", Graph.Validate)
}

// ReadGraphFile is [ReadGraph] on the contents of path.
func ReadGraphFile(path string) (Graph, error) { return readFile(path, ReadGraph) }

// Validate checks structural problems that cannot be recovered by dropping
// data: unsupported versions and nodes without IDs. Dangling edges and
// duplicates are tolerated and handled by [ToDAG].
func (g Graph) Validate() error {
	if g.Version != "" && g.Version != Version {
		return fmt.Errorf("unsupported graph version %q (want %q)", g.Version, Version)
	}
	for i, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: %w", i, dag.ErrInvalidNodeID)
		}
	}
	return nil
}
