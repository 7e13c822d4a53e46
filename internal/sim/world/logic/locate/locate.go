// Package locate answers where a disk point sits relative to the origin tile:
// which grid cell, whether it is still inside, and which neighbour took it.
package locate

import (
	"math"

	"hypervoxel.ai/internal/sim/world/logic/lattice"
)

// NoMatch is returned by MatchNeighbour when the point is not within one
// neighbour step of the origin tile.
const NoMatch = -1

// Touch reports whether p lies in grid cell (i, j). The cell is tested in the
// Klein model, where its sides are straight, so the result agrees with Round.
// Points on a shared side touch both cells.
func Touch(l *lattice.Lattice, p complex128, i, j int) bool {
	if i < 0 || j < 0 || i >= l.N || j >= l.N {
		return false
	}
	q := lattice.DiskToKlein(p)
	quad := [4]complex128{
		lattice.DiskToKlein(l.Corners[i][j]),
		lattice.DiskToKlein(l.Corners[i+1][j]),
		lattice.DiskToKlein(l.Corners[i+1][j+1]),
		lattice.DiskToKlein(l.Corners[i][j+1]),
	}
	var pos, neg bool
	for k := range quad {
		c := cross(quad[(k+1)%4]-quad[k], q-quad[k])
		switch {
		case c > 0:
			pos = true
		case c < 0:
			neg = true
		}
	}
	return !(pos && neg)
}

// Round returns the grid cell containing p. Points outside the tile are
// clamped onto the nearest border cell.
func Round(l *lattice.Lattice, p complex128) (i, j int) {
	u, v := l.Param(p)
	return cell(u, l.N), cell(v, l.N)
}

func cell(u float64, n int) int {
	i := int(math.Floor(u))
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// IsInsideOfDomain reports whether p lies inside the origin tile. The tile is
// symmetric in both axes, so p is folded into the first quadrant and tested
// against the chord of the boundary fan whose sector contains it. Chords cut
// outside the curved edges, so points within a hair of an edge may be
// counted on both sides.
func IsInsideOfDomain(l *lattice.Lattice, p complex128) bool {
	q := complex(math.Abs(real(p)), math.Abs(imag(p)))
	last := l.FanLen() - 2
	s := 0
	for ; s < last; s++ {
		if cross(q, l.FanAt(s+1)) >= 0 {
			break
		}
	}
	a, b := l.FanAt(s), l.FanAt(s+1)
	return cross(b-a, q-a) >= 0
}

// MatchNeighbour finds the neighbour tile that contains p, returning its
// index into the lattice's neighbour table. A point more than one step away
// from the origin tile yields (NoMatch, false); callers treat that as no
// change of tile this step. A point inside the origin tile also yields no
// match.
func MatchNeighbour(l *lattice.Lattice, p complex128) (int, bool) {
	if IsInsideOfDomain(l, p) {
		return NoMatch, false
	}
	for k, inv := range l.NeighboursInverse {
		if IsInsideOfDomain(l, inv.Apply(p)) {
			return k, true
		}
	}
	return NoMatch, false
}

// cross is the z component of a×b.
func cross(a, b complex128) float64 {
	return real(a)*imag(b) - imag(a)*real(b)
}
