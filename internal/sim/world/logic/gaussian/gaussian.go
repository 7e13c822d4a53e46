// Package gaussian implements Gaussian integers a+bi over an euclid.Scalar
// backend: ring arithmetic, exact division, a binary HCF and canonical
// representatives under multiplication by the units 1, i, -1, -i.
package gaussian

import (
	"fmt"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
)

// Int is the Gaussian integer Re + Im·i.
type Int[T euclid.Scalar[T]] struct {
	Re, Im T
}

func New[T euclid.Scalar[T]](re, im T) Int[T] {
	return Int[T]{Re: re, Im: im}
}

// Of builds a Gaussian integer from small rational parts.
func Of[T euclid.Scalar[T]](re, im int64) Int[T] {
	return Int[T]{Re: euclid.Of[T](re), Im: euclid.Of[T](im)}
}

func Zero[T euclid.Scalar[T]]() Int[T] { return Of[T](0, 0) }
func One[T euclid.Scalar[T]]() Int[T] { return Of[T](1, 0) }
func I[T euclid.Scalar[T]]() Int[T] { return Of[T](0, 1) }

// Omega is 1+i, the Gaussian prime over 2 (2 = -i·Omega²).
func Omega[T euclid.Scalar[T]]() Int[T] { return Of[T](1, 1) }

// Units returns 1, i, -1, -i in that order.
func Units[T euclid.Scalar[T]]() [4]Int[T] {
	return [4]Int[T]{Of[T](1, 0), Of[T](0, 1), Of[T](-1, 0), Of[T](0, -1)}
}

func (x Int[T]) Add(y Int[T]) Int[T] { return Int[T]{x.Re.Add(y.Re), x.Im.Add(y.Im)} }
func (x Int[T]) Sub(y Int[T]) Int[T] { return Int[T]{x.Re.Sub(y.Re), x.Im.Sub(y.Im)} }
func (x Int[T]) Neg() Int[T] { return Int[T]{x.Re.Neg(), x.Im.Neg()} }
func (x Int[T]) Conj() Int[T] { return Int[T]{x.Re, x.Im.Neg()} }

func (x Int[T]) Mul(y Int[T]) Int[T] {
	return Int[T]{
		Re: x.Re.Mul(y.Re).Sub(x.Im.Mul(y.Im)),
		Im: x.Re.Mul(y.Im).Add(x.Im.Mul(y.Re)),
	}
}

// MulScalar multiplies both coordinates by a rational scalar.
func (x Int[T]) MulScalar(s T) Int[T] { return Int[T]{x.Re.Mul(s), x.Im.Mul(s)} }

// MulI multiplies by i.
func (x Int[T]) MulI() Int[T] { return Int[T]{x.Im.Neg(), x.Re} }

// Double multiplies by 2.
func (x Int[T]) Double() Int[T] { return Int[T]{x.Re.Double(), x.Im.Double()} }

// Halve divides by 2; both coordinates must be even.
func (x Int[T]) Halve() Int[T] { return Int[T]{x.Re.Halve(), x.Im.Halve()} }

// MulOmega multiplies by 1+i.
func (x Int[T]) MulOmega() Int[T] {
	return Int[T]{x.Re.Sub(x.Im), x.Re.Add(x.Im)}
}

// DivOmega divides by 1+i. The coordinates must share parity, otherwise the
// halving step panics.
func (x Int[T]) DivOmega() Int[T] {
	return Int[T]{x.Re.Add(x.Im).Halve(), x.Im.Sub(x.Re).Halve()}
}

// Norm is Re²+Im², zero only for zero.
func (x Int[T]) Norm() T { return x.Re.Mul(x.Re).Add(x.Im.Mul(x.Im)) }

func (x Int[T]) IsZero() bool { return x.Re.IsZero() && x.Im.IsZero() }

// IsUnit reports x ∈ {1, i, -1, -i}.
func (x Int[T]) IsUnit() bool {
	return (x.Re.IsUnit() && x.Im.IsZero()) || (x.Re.IsZero() && x.Im.IsUnit())
}

func (x Int[T]) Equal(y Int[T]) bool { return x.Re.Equal(y.Re) && x.Im.Equal(y.Im) }

// Associate reports x = u·y for some unit u.
func (x Int[T]) Associate(y Int[T]) bool {
	for _, u := range Units[T]() {
		if x.Equal(y.Mul(u)) {
			return true
		}
	}
	return false
}

// Div divides exactly by y. It panics when y does not divide x.
func (x Int[T]) Div(y Int[T]) Int[T] {
	if y.IsZero() {
		panic(fmt.Sprintf("gaussian: division of %s by zero", x))
	}
	n := y.Norm()
	p := x.Mul(y.Conj())
	return Int[T]{p.Re.Div(n), p.Im.Div(n)}
}

// Float is the lossy projection to complex128.
func (x Int[T]) Float() complex128 { return complex(x.Re.Float(), x.Im.Float()) }

func (x Int[T]) String() string {
	if x.Im.IsNegative() {
		return fmt.Sprintf("%s-%si", x.Re, x.Im.Neg())
	}
	return fmt.Sprintf("%s+%si", x.Re, x.Im)
}

// Convert moves x to another backend.
func Convert[U euclid.Scalar[U], T euclid.Scalar[T]](x Int[T]) Int[U] {
	return Int[U]{Re: euclid.Convert[U](x.Re), Im: euclid.Convert[U](x.Im)}
}
