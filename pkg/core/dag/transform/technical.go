package transform

import (
	"regexp"
	"strings"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
)

var (
	instPrefix   = regexp.MustCompile(`^inst[A-Z]`)
	numericTail  = regexp.MustCompile(`\.\d+$`)
	constructor  = regexp.MustCompile(`^mk\d?$`)
	coercionBits = []string{"_of_", ".of_", "_to_", ".to_"}
)

// IsTechnical reports whether a node is an implementation detail that the
// visualization hides: type-class instances and classes, auto-generated
// instance names, coercions, private or numbered auxiliary declarations,
// decidability helpers and structure constructors.
func IsTechnical(n *dag.Node) bool {
	if n.Kind == dag.KindInstance || n.Kind == dag.KindClass {
		return true
	}

	name := n.Name
	last := lastSegment(name)

	switch {
	case last == "inst" || instPrefix.MatchString(last):
		return true
	case strings.HasPrefix(last, "_") || numericTail.MatchString(name):
		return true
	case strings.Contains(name, "Decidable") || strings.Contains(name, "decidable"):
		return true
	case constructor.MatchString(last):
		return true
	}
	for _, s := range coercionBits {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
