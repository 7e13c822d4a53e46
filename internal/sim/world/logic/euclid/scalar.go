// Package euclid defines the exact scalar ring that the Gaussian integer and
// isometry code is written against, with two interchangeable backends:
// Int (fixed-width, fast, panics on overflow) and Big (arbitrary precision).
package euclid

// Scalar is a commutative ring with exact division, a parity test and a sign
// test. Values are immutable: every operation returns a fresh value and never
// changes its receiver.
//
// The "2" of the ring is the rational integer 2, so Halve and Double are
// exact division and multiplication by 2, and IsOdd reports that the value is
// not divisible by 2.
type Scalar[T any] interface {
	Neg() T
	Add(y T) T
	Sub(y T) T
	Mul(y T) T
	// Div divides exactly. It panics when y does not divide the receiver.
	Div(y T) T
	// Halve panics when the receiver is odd.
	Halve() T
	Double() T

	IsOdd() bool
	IsZero() bool
	IsUnit() bool
	IsNegative() bool
	Equal(y T) bool

	// Float is a lossy, monotone conversion.
	Float() float64

	// FromInt64 ignores its receiver and returns v as a T.
	FromInt64(v int64) T
	// Magnitude returns |x| as big-endian bytes without leading zeros.
	Magnitude() []byte
	// FromMagnitude ignores its receiver and rebuilds a value from a sign and
	// the output of Magnitude.
	FromMagnitude(neg bool, b []byte) T

	String() string
}

// Of returns v in the ring T.
func Of[T Scalar[T]](v int64) T {
	var zero T
	return zero.FromInt64(v)
}

// Zero returns the additive identity of T.
func Zero[T Scalar[T]]() T {
	return Of[T](0)
}

// One returns the multiplicative identity of T.
func One[T Scalar[T]]() T {
	return Of[T](1)
}

// Less reports x < y using only the sign test.
func Less[T Scalar[T]](x, y T) bool {
	return x.Sub(y).IsNegative()
}

// Convert moves a value between backends through its exact byte form.
func Convert[U Scalar[U], T Scalar[T]](x T) U {
	var zero U
	return zero.FromMagnitude(x.IsNegative(), x.Magnitude())
}
