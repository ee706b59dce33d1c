package graph

import (
	"bytes"
	"fmt"
	"io"

	"github.com/matzehuels/astrolabe/pkg/core/dag/transform"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
)

// Layout is a simplified graph together with solved 3D positions and the
// reports of the steps that produced it. Positions has exactly one entry
// per node.
type Layout struct {
	Graph `bson:",inline"`

	Simplify transform.Result   `json:"simplify" bson:"simplify"`
	Solve    layout.SolveResult `json:"solve" bson:"solve"`
	Radius   float64            `json:"radius" bson:"radius"`
}

// NewLayout attaches positions and reports to a serialized graph.
func NewLayout(g Graph, positions map[string]geom.Vec3, simplify transform.Result, solve layout.SolveResult, radius float64) Layout {
	g.Positions = positions
	return Layout{Graph: g, Simplify: simplify, Solve: solve, Radius: radius}
}

// checkPositions reports the first node without a position.
func (l Layout) checkPositions() error {
	for _, n := range l.Nodes {
		if _, ok := l.Positions[n.ID]; !ok {
			return fmt.Errorf("layout has no position for node %q", n.ID)
		}
	}
	return nil
}

// MarshalLayout returns l as indented JSON.
func MarshalLayout(l Layout) ([]byte, error) { return marshal(l) }

// ReadLayout decodes a layout from r. Every node must have a position.
func ReadLayout(r io.Reader) (Layout, error) {
	return decode(r, "layout", Layout.checkPositions)
}

// UnmarshalLayout is [ReadLayout] on data.
func UnmarshalLayout(data []byte) (Layout, error) { return ReadLayout(bytes.NewReader(data)) }

// WriteLayoutFile writes l to path.
func WriteLayoutFile(l Layout, path string) error { return writeFile(path, l) }

// ReadLayoutFile is [ReadLayout] on the contents of path.
func ReadLayoutFile(path string) (Layout, error) { return readFile(path, ReadLayout) }
