package lattice

import (
	"github.com/zyedidia/generic/mapset"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
)

// Tile is one step of a Walk.
type Tile[T euclid.Scalar[T]] struct {
	Isometry fuchsian.Isometry[T]
	Position fuchsian.Position[T]
	// Depth is the number of neighbour steps from the root.
	Depth int
}

// Walk lists every tile within radius neighbour steps of root, breadth first,
// each exactly once. A neighbour step crosses an edge or a vertex, so radius
// 1 yields the root and its 16 neighbours.
func Walk[T euclid.Scalar[T]](root fuchsian.Isometry[T], radius int) []Tile[T] {
	steps := Neighbours[T]()
	seen := mapset.New[string]()

	start := Tile[T]{Isometry: root.Simplify(), Position: root.Position()}
	seen.Put(start.Position.Key())
	out := []Tile[T]{start}

	for head := 0; head < len(out); head++ {
		cur := out[head]
		if cur.Depth >= radius {
			continue
		}
		for _, s := range steps {
			g := cur.Isometry.Compose(s).Simplify()
			p := g.Position()
			k := p.Key()
			if seen.Has(k) {
				continue
			}
			seen.Put(k)
			out = append(out, Tile[T]{Isometry: g, Position: p, Depth: cur.Depth + 1})
		}
	}
	return out
}
