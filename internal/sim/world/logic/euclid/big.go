package euclid

import (
	"fmt"
	"math/big"
)

// Big is the arbitrary-precision backend. The zero value is 0. The wrapped
// *big.Int is never mutated after construction, so values may be shared.
type Big struct{ v *big.Int }

var _ Scalar[Big] = Big{}

var bigZero = new(big.Int)

// NewBig copies v into a Big.
func NewBig(v *big.Int) Big {
	return Big{v: new(big.Int).Set(v)}
}

func (x Big) get() *big.Int {
	if x.v == nil {
		return bigZero
	}
	return x.v
}

// Int returns a copy of the underlying integer.
func (x Big) Int() *big.Int { return new(big.Int).Set(x.get()) }

// BitLen is the bit length of |x|.
func (x Big) BitLen() int { return x.get().BitLen() }

func (x Big) Neg() Big { return Big{v: new(big.Int).Neg(x.get())} }
func (x Big) Add(y Big) Big { return Big{v: new(big.Int).Add(x.get(), y.get())} }
func (x Big) Sub(y Big) Big { return Big{v: new(big.Int).Sub(x.get(), y.get())} }
func (x Big) Mul(y Big) Big { return Big{v: new(big.Int).Mul(x.get(), y.get())} }
func (x Big) Double() Big { return Big{v: new(big.Int).Lsh(x.get(), 1)} }
func (x Big) IsOdd() bool { return x.get().Bit(0) == 1 }
func (x Big) IsZero() bool { return x.get().Sign() == 0 }
func (x Big) IsNegative() bool { return x.get().Sign() < 0 }
func (x Big) Equal(y Big) bool { return x.get().Cmp(y.get()) == 0 }

func (x Big) IsUnit() bool {
	return x.get().IsInt64() && (x.get().Int64() == 1 || x.get().Int64() == -1)
}

func (x Big) Div(y Big) Big {
	if y.IsZero() {
		panic(fmt.Sprintf("euclid: division of %s by zero", x))
	}
	q, r := new(big.Int).QuoRem(x.get(), y.get(), new(big.Int))
	if r.Sign() != 0 {
		panic(fmt.Sprintf("euclid: %s does not divide %s", y, x))
	}
	return Big{v: q}
}

func (x Big) Halve() Big {
	if x.IsOdd() {
		panic(fmt.Sprintf("euclid: halve of odd value %s", x))
	}
	return Big{v: new(big.Int).Rsh(x.get(), 1)}
}

func (x Big) Float() float64 {
	f, _ := x.get().Float64()
	return f
}

func (Big) FromInt64(v int64) Big { return Big{v: big.NewInt(v)} }

func (x Big) Magnitude() []byte { return x.get().Bytes() }

func (Big) FromMagnitude(neg bool, b []byte) Big {
	v := new(big.Int).SetBytes(b)
	if neg {
		v.Neg(v)
	}
	return Big{v: v}
}

func (x Big) String() string { return x.get().String() }
