package layout

import (
	"math"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

type cellKey struct{ x, y, z int }

// grid is a uniform spatial hash with cells one cutoff wide, so every pair
// within the cutoff lies in the same or an adjacent cell.
type grid struct {
	size  float64
	cells map[cellKey][]int
}

func newGrid(size float64, capacity int) *grid {
	return &grid{size: size, cells: make(map[cellKey][]int, capacity)}
}

func (g *grid) key(p geom.Vec3) cellKey {
	return cellKey{
		int(math.Floor(p.X / g.size)),
		int(math.Floor(p.Y / g.size)),
		int(math.Floor(p.Z / g.size)),
	}
}

func (g *grid) insert(i int, p geom.Vec3) {
	k := g.key(p)
	g.cells[k] = append(g.cells[k], i)
}

// neighbors calls fn for every slot index in the 27 cells around p.
func (g *grid) neighbors(p geom.Vec3, fn func(j int)) {
	k := g.key(p)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				for _, j := range g.cells[cellKey{k.x + dx, k.y + dy, k.z + dz}] {
					fn(j)
				}
			}
		}
	}
}
