package euclid

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Int is the fixed-width backend. It covers isometries a few dozen tile steps
// from the origin; arithmetic that leaves int64 panics rather than wrapping.
type Int int64

var _ Scalar[Int] = Int(0)

func overflow(op string, x, y Int) string {
	return fmt.Sprintf("euclid: int64 overflow in %s(%d, %d)", op, int64(x), int64(y))
}

func (x Int) Neg() Int {
	if x == math.MinInt64 {
		panic(overflow("neg", x, 0))
	}
	return -x
}

func (x Int) Add(y Int) Int {
	s := x + y
	if (y > 0 && s < x) || (y < 0 && s > x) {
		panic(overflow("add", x, y))
	}
	return s
}

func (x Int) Sub(y Int) Int {
	s := x - y
	if (y < 0 && s < x) || (y > 0 && s > x) {
		panic(overflow("sub", x, y))
	}
	return s
}

func (x Int) Mul(y Int) Int {
	if x == 0 || y == 0 {
		return 0
	}
	p := x * y
	if p/x != y || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		panic(overflow("mul", x, y))
	}
	return p
}

func (x Int) Div(y Int) Int {
	if y == 0 || x%y != 0 {
		panic(fmt.Sprintf("euclid: %d does not divide %d", int64(y), int64(x)))
	}
	if y == -1 {
		return x.Neg()
	}
	return x / y
}

func (x Int) Halve() Int {
	if x&1 != 0 {
		panic(fmt.Sprintf("euclid: halve of odd value %d", int64(x)))
	}
	return x / 2
}

func (x Int) Double() Int { return x.Add(x) }

func (x Int) IsOdd() bool { return x&1 != 0 }
func (x Int) IsZero() bool { return x == 0 }
func (x Int) IsUnit() bool { return x == 1 || x == -1 }
func (x Int) IsNegative() bool { return x < 0 }
func (x Int) Equal(y Int) bool { return x == y }
func (x Int) Float() float64 { return float64(x) }
func (Int) FromInt64(v int64) Int { return Int(v) }

func (x Int) Magnitude() []byte {
	u := uint64(x)
	if x < 0 {
		// -MinInt64 wraps back to MinInt64, whose bit pattern is 1<<63.
		u = uint64(-x)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	out := make([]byte, len(buf)-i)
	copy(out, buf[i:])
	return out
}

func (Int) FromMagnitude(neg bool, b []byte) Int {
	if len(b) > 8 {
		panic(fmt.Sprintf("euclid: %d-byte magnitude does not fit int64", len(b)))
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	u := binary.BigEndian.Uint64(buf[:])
	switch {
	case neg && u == 1<<63:
		return math.MinInt64
	case u > math.MaxInt64:
		panic(fmt.Sprintf("euclid: magnitude %d does not fit int64", u))
	case neg:
		return -Int(u)
	}
	return Int(u)
}

func (x Int) String() string { return strconv.FormatInt(int64(x), 10) }
