package pipeline

import (
	"slices"

	"github.com/matzehuels/astrolabe/pkg/core/dag"
	"github.com/matzehuels/astrolabe/pkg/errors"
)

// Deps lists the direct neighbours of one declaration.
type Deps struct {
	ID        string   `json:"id"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// NodeDeps returns the declarations id depends on and the declarations
// that use it, each sorted by ID.
func NodeDeps(g *dag.DAG, id string) (Deps, error) {
	if err := errors.ValidateNodeID(id); err != nil {
		return Deps{}, err
	}
	if _, ok := g.Node(id); !ok {
		return Deps{}, errors.New(errors.ErrCodeNotFound, "node %q not found", id)
	}
	d := Deps{
		ID:        id,
		DependsOn: slices.Sorted(slices.Values(g.Children(id))),
		UsedBy:    slices.Sorted(slices.Values(g.Parents(id))),
	}
	if d.DependsOn == nil {
		d.DependsOn = []string{}
	}
	if d.UsedBy == nil {
		d.UsedBy = []string{}
	}
	return d, nil
}
