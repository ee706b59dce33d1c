package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/astrolabe/pkg/core/cluster"
	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// DefaultScale converts layout units to Graphviz points when positions are
// pinned.
const DefaultScale = 4.0

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes the kind and metadata in node labels.
	// When false, only the display name is shown.
	Detailed bool

	// ClusterDepth groups nodes into one subgraph per namespace at this
	// depth. Zero disables grouping.
	ClusterDepth int

	// Positions pins nodes to the XY projection of solved 3D positions.
	// When set, render with [EngineNeato] so the pins are honoured.
	Positions map[string]geom.Vec3

	// Scale multiplies pinned coordinates. Zero means [DefaultScale].
	Scale float64
}

// Fill colours per declaration kind. Unknown kinds stay white.
var kindFill = map[string]string{
	dag.KindTheorem:    "#dbeafe",
	dag.KindDefinition: "#dcfce7",
	dag.KindInstance:   "#f3f4f6",
	dag.KindClass:      "#fef3c7",
	dag.KindStructure:  "#ede9fe",
	dag.KindAxiom:      "#fee2e2",
}

// ToDOT converts a declaration graph to Graphviz DOT format.
// The resulting DOT string can be rendered with [RenderSVG].
//
// Synthetic edges (through-links created when technical nodes are elided)
// are drawn dashed so they can be told apart from real dependencies.
func ToDOT(g *dag.DAG, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.15,0.05\"];\n")
	buf.WriteString("  edge [arrowsize=0.6];\n")
	if opts.Positions != nil {
		buf.WriteString("  splines=true;\n")
		buf.WriteString("  overlap=false;\n")
	} else {
		buf.WriteString("  ranksep=0.5;\n")
		buf.WriteString("  nodesep=0.3;\n")
	}
	buf.WriteString("\n")

	nodes := g.Nodes()
	if opts.ClusterDepth > 0 {
		groups := cluster.Group(nodes, opts.ClusterDepth)
		byID := make(map[string]*dag.Node, len(nodes))
		for _, n := range nodes {
			byID[n.ID] = n
		}
		for _, ns := range slices.Sorted(maps.Keys(groups.Members)) {
			members := groups.Members[ns]
			indent := "  "
			if ns != cluster.Root {
				fmt.Fprintf(&buf, "  subgraph %q {\n", "cluster_"+ns)
				fmt.Fprintf(&buf, "    label=%q;\n", ns)
				buf.WriteString("    style=\"rounded,dashed\";\n")
				indent = "    "
			}
			for _, id := range members {
				writeNode(&buf, indent, *byID[id], opts)
			}
			if ns != cluster.Root {
				buf.WriteString("  }\n")
			}
		}
	} else {
		for _, n := range nodes {
			writeNode(&buf, "  ", *n, opts)
		}
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if e.Synthetic {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=grey50];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeNode(buf *bytes.Buffer, indent string, n dag.Node, opts Options) {
	attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed))
	if p, ok := opts.Positions[n.ID]; ok {
		scale := opts.Scale
		if scale == 0 {
			scale = DefaultScale
		}
		attrs = append(attrs, fmt.Sprintf("pos=\"%.2f,%.2f!\"", p.X*scale, p.Y*scale))
	}
	fmt.Fprintf(buf, "%s%q [%s];\n", indent, n.ID, strings.Join(attrs, ", "))
}

func fmtLabel(n dag.Node, detailed bool) string {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	if !detailed {
		return name
	}

	var parts []string
	if n.Kind != "" {
		parts = append(parts, "kind: "+n.Kind)
	}
	for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
	}
	if len(parts) == 0 {
		return name
	}
	return name + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n dag.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if fill, ok := kindFill[n.Kind]; ok {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
	}
	return attrs
}

// Layout engines accepted by [RenderSVG].
const (
	EngineDot   = "dot"
	EngineNeato = "neato"
)

// RenderSVG renders a DOT graph to SVG using Graphviz. An empty engine
// means [EngineDot].
func RenderSVG(ctx context.Context, dot string, engine string) ([]byte, error) {
	var layout graphviz.Layout
	switch engine {
	case "", EngineDot:
		layout = graphviz.DOT
	case EngineNeato:
		layout = graphviz.NEATO
	default:
		return nil, fmt.Errorf("unsupported layout engine %q", engine)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(layout)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
