// Package nodelink renders declaration graphs as node-link diagrams.
//
// # Overview
//
// This package produces flat 2D exports of a simplified graph using
// Graphviz: declarations appear as boxes coloured by kind, dependencies as
// arrows. Through-links created by technical-node elision are dashed.
//
// # Usage
//
// Convert a DAG to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{ClusterDepth: 1})
//	svg, err := nodelink.RenderSVG(ctx, dot, nodelink.EngineDot)
//
// To reuse a solved 3D layout, pin the nodes to its XY projection and
// render with neato:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Positions: l.Positions})
//	svg, err := nodelink.RenderSVG(ctx, dot, nodelink.EngineNeato)
//
// # Options
//
//   - Detailed: node labels include the kind and all metadata
//   - ClusterDepth: one dashed subgraph per namespace
//   - Positions, Scale: pinned coordinates for neato
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering; no Graphviz installation is required.
package nodelink
