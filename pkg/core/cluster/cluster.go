// Package cluster groups declarations by namespace and computes the group
// centroids that bias the force-directed layout.
//
// A namespace is the dotted name prefix left after stripping the last
// depth segments: at depth 1, "Nat.Prime.two_le" belongs to "Nat.Prime".
// Declarations with too few segments fall into the root cluster "".
package cluster

import (
	"strings"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// Root is the namespace of declarations with too few name segments.
const Root = ""

// ExtractNamespace returns the namespace of name at the given depth.
//
// Runs of empty segments ("a..b") collapse into one boundary; a leading
// empty segment (".a.b") is kept once and trailing empty segments are
// ignored. If fewer than depth+1 segments remain, the result is [Root].
func ExtractNamespace(name string, depth int) string {
	if depth < 0 {
		depth = 0
	}
	segs := segments(name)
	if len(segs) < depth+1 {
		return Root
	}
	return strings.Join(segs[:len(segs)-depth], ".")
}

func segments(name string) []string {
	raw := strings.Split(name, ".")
	out := make([]string, 0, len(raw))
	for i, s := range raw {
		if s == "" {
			if i == 0 {
				out = append(out, s)
			}
			continue
		}
		out = append(out, s)
	}
	// A name made only of dots has no real segment at all.
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

// Groups maps namespaces to their members and back.
type Groups struct {
	// Members lists node IDs per namespace in input order.
	Members map[string][]string
	// NodeNamespace maps each node ID to its namespace.
	NodeNamespace map[string]string
}

// Group assigns every node to its namespace at the given depth. Node.Name
// is used when set, otherwise the ID.
func Group(nodes []*dag.Node, depth int) Groups {
	g := Groups{
		Members:       make(map[string][]string),
		NodeNamespace: make(map[string]string, len(nodes)),
	}
	for _, n := range nodes {
		name := n.Name
		if name == "" {
			name = n.ID
		}
		ns := ExtractNamespace(name, depth)
		g.Members[ns] = append(g.Members[ns], n.ID)
		g.NodeNamespace[n.ID] = ns
	}
	return g
}

// Centroids returns the mean position of each namespace's positioned
// members. Members without a position are skipped; a namespace with no
// positioned member has no entry.
func Centroids(groups Groups, positions map[string]geom.Vec3) map[string]geom.Vec3 {
	out := make(map[string]geom.Vec3, len(groups.Members))
	for ns, members := range groups.Members {
		var sum geom.Vec3
		n := 0
		for _, id := range members {
			p, ok := positions[id]
			if !ok {
				continue
			}
			sum = sum.Add(p)
			n++
		}
		if n > 0 {
			out[ns] = sum.Scale(1 / float64(n))
		}
	}
	return out
}

// Force returns the attraction of a node toward its cluster centroid:
// (centroid - pos) * strength.
func Force(pos, centroid geom.Vec3, strength float64) geom.Vec3 {
	if pos == centroid {
		return geom.Vec3{}
	}
	return centroid.Sub(pos).Scale(strength)
}
