package gaussian

import "hypervoxel.ai/internal/sim/world/logic/euclid"

// parity classes of a Gaussian integer: bit 0 is Re odd, bit 1 is Im odd.
type parity uint8

const (
	evenEven parity = iota
	oddEven
	evenOdd
	oddOdd
)

func (x Int[T]) parity() parity {
	var p parity
	if x.Re.IsOdd() {
		p |= oddEven
	}
	if x.Im.IsOdd() {
		p |= evenOdd
	}
	return p
}

// omegaDivisible reports that 1+i divides a value of this class.
func (p parity) omegaDivisible() bool { return p == evenEven || p == oddOdd }

// HCF returns a greatest common divisor of x and y, correct up to a unit.
//
// It is a binary GCD over Z[i]: common factors of 1+i are stripped into an
// accumulator, a factor of 1+i that only one side carries is discarded, and
// two operands with a single odd coordinate each are combined by subtraction
// (after rotating one by i when their odd axes differ) and halved. Every step
// lowers the norm of one operand, so the loop terminates.
func HCF[T euclid.Scalar[T]](x, y Int[T]) Int[T] {
	acc := One[T]()
	for {
		switch {
		case x.IsZero():
			return y.Mul(acc)
		case y.IsZero():
			return x.Mul(acc)
		case x.IsUnit() || y.IsUnit():
			return acc
		case x.Associate(y):
			return x.Mul(acc)
		}

		px, py := x.parity(), y.parity()
		switch {
		case px == evenEven && py == evenEven:
			x, y = x.Halve(), y.Halve()
			acc = acc.Double()
		case px.omegaDivisible() && py.omegaDivisible():
			x, y = x.DivOmega(), y.DivOmega()
			acc = acc.MulOmega()
		case px == evenEven:
			x = x.Halve()
		case py == evenEven:
			y = y.Halve()
		case px == oddOdd:
			x = x.DivOmega()
		case py == oddOdd:
			y = y.DivOmega()
		default:
			if px != py {
				y = y.MulI()
			}
			d := x.Sub(y).Halve()
			if euclid.Less(x.Norm(), y.Norm()) {
				y = d
			} else {
				x = d
			}
		}
	}
}

// HCFAll folds HCF over vs, skipping zeros. It returns zero when every value
// is zero.
func HCFAll[T euclid.Scalar[T]](vs ...Int[T]) Int[T] {
	g := Zero[T]()
	for _, v := range vs {
		if v.IsZero() {
			continue
		}
		if g.IsZero() {
			g = v
			continue
		}
		g = HCF(g, v)
		if g.IsUnit() {
			return g
		}
	}
	return g
}
