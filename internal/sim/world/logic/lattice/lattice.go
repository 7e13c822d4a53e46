// Package lattice is the fixed data of the order-6 square tessellation: the
// four tile-step generators, the sixteen tiles that touch the origin tile,
// and the corner grid that subdivides one tile.
package lattice

import (
	"fmt"
	"math"
	"sync"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/gaussian"
	"hypervoxel.ai/internal/sim/world/logic/mobius"
)

// Directions, counter-clockwise. Generator k is generator Right rotated by
// k quarter turns.
const (
	Right = iota
	Up
	Left
	Down
)

const (
	// NeighbourCount is 4 edge neighbours plus 3 tiles at each of 4 vertices.
	NeighbourCount = 16

	DefaultSubdivisions = 16
)

var (
	// EdgeDistance is the hyperbolic distance from a tile centre to the
	// midpoint of an edge: cosh d = cos(π/6)/sin(π/4) = sqrt(3/2).
	EdgeDistance = math.Acosh(math.Sqrt(1.5))

	// EdgeKlein is the Beltrami-Klein coordinate of an edge, tanh(d) = 1/sqrt(3).
	// In that model the tile is the square [-EdgeKlein, EdgeKlein]².
	EdgeKlein = math.Tanh(EdgeDistance)
)

// Generator is the translation onto the neighbour across edge dir:
// [[3, 3u], [conj(u), 3]] with u = i^dir.
func Generator[T euclid.Scalar[T]](dir int) fuchsian.Isometry[T] {
	u := gaussian.Units[T]()[dir&3]
	three := gaussian.Of[T](3, 0)
	return fuchsian.New(three, u.MulScalar(euclid.Of[T](3)), u.Conj(), three)
}

func Generators[T euclid.Scalar[T]]() [4]fuchsian.Isometry[T] {
	var g [4]fuchsian.Isometry[T]
	for k := range g {
		g[k] = Generator[T](k)
	}
	return g
}

// Neighbours lists every tile that shares an edge or a vertex with the origin
// tile, simplified. Slots 0-3 are the generators. For the vertex between
// directions k and k+1, slot 4+k is g_k·g_(k+1), slot 8+k is g_(k+1)·g_k and
// slot 12+k is g_k·g_(k+1)·g_k⁻¹, the tile opposite the origin across that
// vertex.
func Neighbours[T euclid.Scalar[T]]() [NeighbourCount]fuchsian.Isometry[T] {
	g := Generators[T]()
	var out [NeighbourCount]fuchsian.Isometry[T]
	for k := 0; k < 4; k++ {
		a, b := g[k], g[(k+1)%4]
		out[k] = a
		out[4+k] = a.Compose(b).Simplify()
		out[8+k] = b.Compose(a).Simplify()
		out[12+k] = a.Compose(b).Compose(a.Inverse()).Simplify()
	}
	return out
}

// NeighboursInverse is Neighbours with every entry inverted.
func NeighboursInverse[T euclid.Scalar[T]]() [NeighbourCount]fuchsian.Isometry[T] {
	out := Neighbours[T]()
	for k := range out {
		out[k] = out[k].Inverse().Simplify()
	}
	return out
}

// Lattice is the floating table shared by rendering and point location.
// It is read-only once built.
type Lattice struct {
	// N is the number of grid subdivisions per axis.
	N int

	Neighbours        [NeighbourCount]mobius.Disk
	NeighboursInverse [NeighbourCount]mobius.Disk

	// Corners[i][j] is the disk point at grid column i, row j, for
	// 0 <= i, j <= N.
	Corners [][]complex128

	// fan is the tile boundary in the first quadrant, counter-clockwise from
	// the right edge midpoint to the top edge midpoint.
	fan []complex128
}

var (
	defaultOnce    sync.Once
	defaultLattice *Lattice
)

// Default returns the process-wide lattice with DefaultSubdivisions.
func Default() *Lattice {
	defaultOnce.Do(func() {
		l, err := New(DefaultSubdivisions)
		if err != nil {
			panic(err)
		}
		defaultLattice = l
	})
	return defaultLattice
}

// New builds a lattice with n subdivisions per axis. n must be even so that
// the axes fall on grid lines.
func New(n int) (*Lattice, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("lattice: subdivisions must be even and >= 2, got %d", n)
	}
	l := &Lattice{N: n}

	fwd := Neighbours[euclid.Int]()
	inv := NeighboursInverse[euclid.Int]()
	for k := 0; k < NeighbourCount; k++ {
		f, ok := fwd[k].Disk()
		if !ok {
			return nil, fmt.Errorf("lattice: neighbour %d is not a disk automorphism", k)
		}
		g, ok := inv[k].Disk()
		if !ok {
			return nil, fmt.Errorf("lattice: inverse neighbour %d is not a disk automorphism", k)
		}
		l.Neighbours[k], l.NeighboursInverse[k] = f, g
	}

	l.Corners = make([][]complex128, n+1)
	for i := range l.Corners {
		l.Corners[i] = make([]complex128, n+1)
		for j := range l.Corners[i] {
			l.Corners[i][j] = KleinToDisk(complex(l.axis(i), l.axis(j)))
		}
	}

	half := n / 2
	for j := half; j <= n; j++ {
		l.fan = append(l.fan, l.Corners[n][j])
	}
	for i := n - 1; i >= half; i-- {
		l.fan = append(l.fan, l.Corners[i][n])
	}
	return l, nil
}

// axis is the Klein coordinate of grid line i. Lines are spaced evenly in
// hyperbolic arc length along the tile's midlines.
func (l *Lattice) axis(i int) float64 {
	t := EdgeDistance * (2*float64(i)/float64(l.N) - 1)
	return math.Tanh(t)
}

// unaxis inverts axis for a continuous Klein coordinate.
func (l *Lattice) unaxis(k float64) float64 {
	return (math.Atanh(k)/EdgeDistance + 1) * float64(l.N) / 2
}

// Param maps a disk point to continuous grid coordinates; the tile covers
// [0, N]² and the centre is (N/2, N/2). Klein coordinates are clamped just
// inside the tile edge first, so points beyond the edge land on the border.
func (l *Lattice) Param(p complex128) (u, v float64) {
	k := DiskToKlein(p)
	lim := EdgeKlein * (1 - 1e-12)
	return l.unaxis(clamp(real(k), -lim, lim)), l.unaxis(clamp(imag(k), -lim, lim))
}

// Fan returns a copy of the first-quadrant boundary polyline.
func (l *Lattice) Fan() []complex128 {
	return append([]complex128(nil), l.fan...)
}

// FanLen and FanAt read the boundary polyline in place, for hot paths.
func (l *Lattice) FanLen() int            { return len(l.fan) }
func (l *Lattice) FanAt(i int) complex128 { return l.fan[i] }

// KleinToDisk maps a Beltrami-Klein point to the Poincare disk.
func KleinToDisk(k complex128) complex128 {
	r2 := real(k)*real(k) + imag(k)*imag(k)
	return k / complex(1+math.Sqrt(1-r2), 0)
}

// DiskToKlein maps a Poincare disk point to the Beltrami-Klein model.
func DiskToKlein(p complex128) complex128 {
	r2 := real(p)*real(p) + imag(p)*imag(p)
	return p * complex(2/(1+r2), 0)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
