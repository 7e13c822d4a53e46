// Package fuchsian holds exact isometries of the tiling: 2x2 matrices over
// Gaussian integers, taken up to a scalar multiple. Tile identity is read off
// an isometry as a canonical Position, so it never depends on floating point.
package fuchsian

import (
	"fmt"
	"math"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/gaussian"
	"hypervoxel.ai/internal/sim/world/logic/mobius"
)

// Scale converts the exact encoding to the unit disk. Exact matrices act on
// w = Scale·z, which keeps the generators integral; ToFloating divides B and
// multiplies C by it.
var Scale = math.Sqrt(3)

// Isometry is the map w ↦ (A·w + B)/(C·w + D). Matrices that differ by a
// nonzero scalar represent the same isometry.
type Isometry[T euclid.Scalar[T]] struct {
	A, B, C, D gaussian.Int[T]
}

// New builds an isometry and panics on a zero determinant.
func New[T euclid.Scalar[T]](a, b, c, d gaussian.Int[T]) Isometry[T] {
	g := Isometry[T]{A: a, B: b, C: c, D: d}
	if g.Det().IsZero() {
		panic(fmt.Sprintf("fuchsian: zero determinant in %s", g))
	}
	return g
}

func Identity[T euclid.Scalar[T]]() Isometry[T] {
	return Isometry[T]{A: gaussian.One[T](), B: gaussian.Zero[T](), C: gaussian.Zero[T](), D: gaussian.One[T]()}
}

// Det is AD - BC.
func (g Isometry[T]) Det() gaussian.Int[T] {
	return g.A.Mul(g.D).Sub(g.B.Mul(g.C))
}

// Compose returns g·h, the map that applies h first.
func (g Isometry[T]) Compose(h Isometry[T]) Isometry[T] {
	return Isometry[T]{
		A: g.A.Mul(h.A).Add(g.B.Mul(h.C)),
		B: g.A.Mul(h.B).Add(g.B.Mul(h.D)),
		C: g.C.Mul(h.A).Add(g.D.Mul(h.C)),
		D: g.C.Mul(h.B).Add(g.D.Mul(h.D)),
	}
}

// Inverse is the cofactor matrix (D, -B, -C, A). It equals the true inverse
// times the determinant, which is the same isometry.
func (g Isometry[T]) Inverse() Isometry[T] {
	return Isometry[T]{A: g.D, B: g.B.Neg(), C: g.C.Neg(), D: g.A}
}

// Simplify divides all four entries by their joint HCF. The result represents
// the same isometry with the smallest coefficients available up to a unit.
func (g Isometry[T]) Simplify() Isometry[T] {
	h := gaussian.HCFAll(g.A, g.B, g.C, g.D)
	if h.IsZero() {
		panic("fuchsian: simplify of the zero matrix")
	}
	if h.IsUnit() {
		return g
	}
	return Isometry[T]{A: g.A.Div(h), B: g.B.Div(h), C: g.C.Div(h), D: g.D.Div(h)}
}

// Same reports that g and h are scalar multiples of each other, i.e. the same
// isometry. The test is exact cross-multiplication.
func (g Isometry[T]) Same(h Isometry[T]) bool {
	x := [4]gaussian.Int[T]{g.A, g.B, g.C, g.D}
	y := [4]gaussian.Int[T]{h.A, h.B, h.C, h.D}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if !x[i].Mul(y[j]).Equal(x[j].Mul(y[i])) {
				return false
			}
		}
	}
	return true
}

// Equal is entry-wise equality, stricter than Same.
func (g Isometry[T]) Equal(h Isometry[T]) bool {
	return g.A.Equal(h.A) && g.B.Equal(h.B) && g.C.Equal(h.C) && g.D.Equal(h.D)
}

// Size is the largest magnitude, in bytes, of any coordinate.
func (g Isometry[T]) Size() int {
	n := 0
	for _, e := range [4]gaussian.Int[T]{g.A, g.B, g.C, g.D} {
		n = max(n, len(e.Re.Magnitude()), len(e.Im.Magnitude()))
	}
	return n
}

// ToFloating projects the matrix onto the unit disk model. It is meant for
// one frame of evaluation; long-lived state stays exact.
func (g Isometry[T]) ToFloating() mobius.Matrix {
	s := complex(Scale, 0)
	return mobius.Matrix{
		A: g.A.Float(),
		B: g.B.Float() / s,
		C: g.C.Float() * s,
		D: g.D.Float(),
	}
}

// Disk is ToFloating reduced to a normalised disk automorphism. It is the
// sanctioned way to obtain a long-lived mobius.Disk.
func (g Isometry[T]) Disk() (mobius.Disk, bool) {
	return g.ToFloating().Disk()
}

func (g Isometry[T]) String() string {
	return fmt.Sprintf("[%s %s; %s %s]", g.A, g.B, g.C, g.D)
}

// Convert moves g to another backend.
func Convert[U euclid.Scalar[U], T euclid.Scalar[T]](g Isometry[T]) Isometry[U] {
	return Isometry[U]{
		A: gaussian.Convert[U](g.A),
		B: gaussian.Convert[U](g.B),
		C: gaussian.Convert[U](g.C),
		D: gaussian.Convert[U](g.D),
	}
}
