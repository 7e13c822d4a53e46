// Package mobius is the floating realisation of isometries: general Mobius
// matrices for one-off evaluation and the two-parameter Disk form used for
// per-frame work. Values here drift; exact state lives in package fuchsian.
package mobius

import (
	"math"
	"math/cmplx"
)

// Matrix is z ↦ (A·z + B)/(C·z + D).
type Matrix struct {
	A, B, C, D complex128
}

func (m Matrix) Apply(z complex128) complex128 {
	return (m.A*z + m.B) / (m.C*z + m.D)
}

// Compose returns m·n (n applied first).
func (m Matrix) Compose(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
	}
}

func (m Matrix) Det() complex128 { return m.A*m.D - m.B*m.C }

// Disk reduces m to the economical form. m must be a complex multiple λ of
// [[a, b], [conj(b), conj(a)]]; the phase of λ² is the phase of the
// determinant, so dividing by its square root leaves a real multiple, which
// Normalize removes. Only A and B of m are read after that.
func (m Matrix) Disk() (Disk, bool) {
	det := m.Det()
	if det == 0 || isBad(det) {
		return Disk{}, false
	}
	s := cmplx.Sqrt(det / complex(cmplx.Abs(det), 0))
	return Disk{A: m.A / s, B: m.B / s}.Normalize()
}

// Disk is z ↦ (A·z + B)/(conj(B)·z + conj(A)) with |A|² > |B|², an
// orientation-preserving automorphism of the unit disk.
type Disk struct {
	A, B complex128
}

func Identity() Disk { return Disk{A: 1} }

// Translation is the hyperbolic translation along the diameter through p that
// sends 0 to p. |p| must be below 1.
func Translation(p complex128) Disk {
	k := 1 / math.Sqrt(1-sq(p))
	return Disk{A: complex(k, 0), B: p * complex(k, 0)}
}

// Rotation turns the disk by theta radians about the origin.
func Rotation(theta float64) Disk {
	return Disk{A: cmplx.Rect(1, theta/2)}
}

// Compose returns f∘g. It expands the 2x2 product using the conjugate
// symmetry of both factors, so only two products of pairs are needed.
func (f Disk) Compose(g Disk) Disk {
	return Disk{
		A: f.A*g.A + f.B*cmplx.Conj(g.B),
		B: f.A*g.B + f.B*cmplx.Conj(g.A),
	}
}

func (f Disk) Apply(z complex128) complex128 {
	return (f.A*z + f.B) / (cmplx.Conj(f.B)*z + cmplx.Conj(f.A))
}

func (f Disk) Inverse() Disk {
	return Disk{A: cmplx.Conj(f.A), B: -f.B}
}

// Normalize rescales so that |A|² - |B|² = 1. It returns false when drift has
// already broken the disk invariant; callers then re-derive the map from its
// exact source instead of using it.
func (f Disk) Normalize() (Disk, bool) {
	n := sq(f.A) - sq(f.B)
	if !(n > 0) || math.IsInf(n, 0) {
		return f, false
	}
	k := complex(1/math.Sqrt(n), 0)
	return Disk{A: f.A * k, B: f.B * k}, true
}

// Matrix expands f to the general form.
func (f Disk) Matrix() Matrix {
	return Matrix{A: f.A, B: f.B, C: cmplx.Conj(f.B), D: cmplx.Conj(f.A)}
}

// Distance is the hyperbolic distance between two points of the disk.
func Distance(p, q complex128) float64 {
	num := 2 * sq(p-q)
	den := (1 - sq(p)) * (1 - sq(q))
	return math.Acosh(1 + num/den)
}

func sq(z complex128) float64 { return real(z)*real(z) + imag(z)*imag(z) }

func isBad(z complex128) bool {
	return math.IsNaN(real(z)) || math.IsNaN(imag(z)) ||
		math.IsInf(real(z), 0) || math.IsInf(imag(z), 0)
}
