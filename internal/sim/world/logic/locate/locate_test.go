package locate_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"hypervoxel.ai/internal/sim/world/logic/lattice"
	"hypervoxel.ai/internal/sim/world/logic/locate"
)

// samples covers the tile in the Klein model, off every grid line.
func samples(steps int) []complex128 {
	var out []complex128
	for a := 0; a < steps; a++ {
		for b := 0; b < steps; b++ {
			x := lattice.EdgeKlein * (2*(float64(a)+0.37)/float64(steps) - 1)
			y := lattice.EdgeKlein * (2*(float64(b)+0.61)/float64(steps) - 1)
			out = append(out, lattice.KleinToDisk(complex(x, y)))
		}
	}
	return out
}

func TestRoundThenTouch(t *testing.T) {
	l := lattice.Default()
	for _, p := range samples(23) {
		i, j := locate.Round(l, p)
		require.True(t, locate.Touch(l, p, i, j), "p=%v cell=(%d,%d)", p, i, j)
		require.False(t, locate.Touch(l, p, (i+2)%l.N, j), "p=%v", p)
	}
}

func TestRoundClampsToBorder(t *testing.T) {
	l := lattice.Default()
	i, j := locate.Round(l, 0)
	require.Equal(t, l.N/2, i)
	require.Equal(t, l.N/2, j)

	i, j = locate.Round(l, 0.9)
	require.Equal(t, l.N-1, i)
	require.Equal(t, l.N/2, j)

	i, j = locate.Round(l, -0.6-0.6i)
	require.Equal(t, 0, i)
	require.Equal(t, 0, j)

	require.False(t, locate.Touch(l, 0, -1, 0))
	require.False(t, locate.Touch(l, 0, 0, l.N))
}

func TestIsInsideOfDomain(t *testing.T) {
	l := lattice.Default()
	mid := math.Tanh(lattice.EdgeDistance / 2)
	vertex := math.Tanh(math.Acosh(math.Sqrt(3)) / 2)

	require.True(t, locate.IsInsideOfDomain(l, 0))
	for _, u := range []complex128{1, 1i, -1, -1i} {
		require.True(t, locate.IsInsideOfDomain(l, u*complex(mid*0.99, 0)), "u=%v", u)
		require.False(t, locate.IsInsideOfDomain(l, u*complex(mid*1.01, 0)), "u=%v", u)
	}
	for _, u := range []complex128{1 + 1i, -1 + 1i, -1 - 1i, 1 - 1i} {
		dir := u / complex(cmplx.Abs(u), 0)
		require.True(t, locate.IsInsideOfDomain(l, dir*complex(vertex*0.98, 0)), "u=%v", u)
		require.False(t, locate.IsInsideOfDomain(l, dir*complex(vertex*1.02, 0)), "u=%v", u)
	}

	// Away from the edges the fan agrees with the exact Klein square.
	for _, k := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.1, 1.3} {
		for _, theta := range []float64{0.05, 0.4, 0.8, 1.3, 2.0, 2.9, 3.6, 4.4, 5.1, 6.0} {
			kp := cmplx.Rect(k*lattice.EdgeKlein, theta)
			if cmplx.Abs(kp) >= 1 {
				continue
			}
			edge := math.Max(math.Abs(real(kp)), math.Abs(imag(kp))) / lattice.EdgeKlein
			if math.Abs(edge-1) < 0.02 {
				continue
			}
			require.Equal(t, edge < 1, locate.IsInsideOfDomain(l, lattice.KleinToDisk(kp)), "k=%v theta=%v", k, theta)
		}
	}
}

func TestMatchNeighbourCardinal(t *testing.T) {
	l := lattice.Default()
	for k, u := range []complex128{1, 1i, -1, -1i} {
		got, ok := locate.MatchNeighbour(l, u*0.34)
		require.True(t, ok, "direction %d", k)
		require.Equal(t, k, got)
	}

	got, ok := locate.MatchNeighbour(l, 0.05-0.1i)
	require.False(t, ok)
	require.Equal(t, locate.NoMatch, got)
}

func TestMatchNeighbourCentres(t *testing.T) {
	l := lattice.Default()
	for k, n := range l.Neighbours {
		got, ok := locate.MatchNeighbour(l, n.Apply(0))
		require.True(t, ok, "neighbour %d", k)
		require.Equal(t, k, got)
	}
}

func TestMatchNeighbourTwoStepsAway(t *testing.T) {
	l := lattice.Default()
	right := l.Neighbours[lattice.Right]
	far := right.Compose(right).Apply(0)
	_, ok := locate.MatchNeighbour(l, far)
	require.False(t, ok)
}

func TestMatchNeighbourDoesNotAllocate(t *testing.T) {
	l := lattice.Default()
	// Worst case: every neighbour is tried and none matches.
	far := l.Neighbours[lattice.Right].Compose(l.Neighbours[lattice.Right]).Apply(0)
	allocs := testing.AllocsPerRun(100, func() {
		locate.MatchNeighbour(l, far)
		locate.MatchNeighbour(l, l.Neighbours[15].Apply(0))
	})
	require.Zero(t, allocs)
}
