package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/graph"
	"github.com/matzehuels/astrolabe/pkg/render/nodelink"
)

// Render exports a simplified graph and its layout in opts.Format.
//
// FormatJSON returns the layout document. FormatDOT and FormatSVG produce a
// node-link diagram; with opts.Pinned the nodes are fixed at the XY
// projection of their solved positions.
func (r *Runner) Render(ctx context.Context, g *dag.DAG, l graph.Layout, opts Options) ([]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}

	switch opts.Format {
	case FormatJSON:
		return graph.MarshalLayout(l)
	case FormatDOT:
		return []byte(ToDOT(g, l, opts)), nil
	case FormatSVG:
		data, err := nodelink.RenderSVG(ctx, ToDOT(g, l, opts), opts.RenderEngine())
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", opts.Format, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

// ToDOT builds the node-link DOT source for g according to opts.
func ToDOT(g *dag.DAG, l graph.Layout, opts Options) string {
	nl := nodelink.Options{
		Detailed:     opts.Detailed,
		ClusterDepth: opts.ClusterDepth,
	}
	if opts.Pinned {
		nl.Positions = l.Positions
	}
	return nodelink.ToDOT(g, nl)
}
