package fuchsian

import (
	"encoding/binary"
	"errors"
	"fmt"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/gaussian"
)

// Binary layout: one byte of sign flags (bit k set when scalar k is
// negative) followed, per scalar, by a uvarint length and the big-endian
// magnitude. Scalars are listed Re before Im, entries in struct order.
// Every value has exactly one encoding: magnitudes carry no leading zero
// bytes and zero is never flagged negative.

var (
	ErrShortBuffer  = errors.New("fuchsian: truncated binary form")
	ErrNonCanonical = errors.New("fuchsian: non-canonical binary form")
)

func appendScalars[T euclid.Scalar[T]](dst []byte, xs []T) []byte {
	var flags byte
	for k, x := range xs {
		if x.IsNegative() {
			flags |= 1 << k
		}
	}
	dst = append(dst, flags)
	for _, x := range xs {
		m := x.Magnitude()
		dst = binary.AppendUvarint(dst, uint64(len(m)))
		dst = append(dst, m...)
	}
	return dst
}

func readScalars[T euclid.Scalar[T]](data []byte, n int) ([]T, error) {
	if len(data) < 1 {
		return nil, ErrShortBuffer
	}
	flags := data[0]
	if flags>>n != 0 {
		return nil, fmt.Errorf("%w: stray sign flags %08b", ErrNonCanonical, flags)
	}
	data = data[1:]
	var zero T
	out := make([]T, n)
	for k := 0; k < n; k++ {
		l, used := binary.Uvarint(data)
		if used <= 0 {
			return nil, ErrShortBuffer
		}
		data = data[used:]
		if uint64(len(data)) < l {
			return nil, ErrShortBuffer
		}
		m := data[:l]
		neg := flags&(1<<k) != 0
		if l > 0 && m[0] == 0 {
			return nil, fmt.Errorf("%w: scalar %d has leading zero bytes", ErrNonCanonical, k)
		}
		if l == 0 && neg {
			return nil, fmt.Errorf("%w: scalar %d is a negative zero", ErrNonCanonical, k)
		}
		out[k] = zero.FromMagnitude(neg, m)
		data = data[l:]
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("fuchsian: %d trailing bytes", len(data))
	}
	return out, nil
}

func (p Position[T]) MarshalBinary() ([]byte, error) {
	return appendScalars(nil, []T{p.B.Re, p.B.Im, p.D.Re, p.D.Im}), nil
}

func (p *Position[T]) UnmarshalBinary(data []byte) error {
	xs, err := readScalars[T](data, 4)
	if err != nil {
		return err
	}
	b, d := gaussian.New(xs[0], xs[1]), gaussian.New(xs[2], xs[3])
	if d.IsZero() {
		return errors.New("fuchsian: position with zero denominator")
	}
	// Only the reduced, rotated pair is a tile key.
	q := Position[T]{B: b, D: d}
	if c := (Isometry[T]{B: b, D: d}).Position(); !c.Equal(q) {
		return fmt.Errorf("%w: position %s reduces to %s", ErrNonCanonical, q, c)
	}
	*p = q
	return nil
}

func (g Isometry[T]) MarshalBinary() ([]byte, error) {
	return appendScalars(nil, []T{g.A.Re, g.A.Im, g.B.Re, g.B.Im, g.C.Re, g.C.Im, g.D.Re, g.D.Im}), nil
}

func (g *Isometry[T]) UnmarshalBinary(data []byte) error {
	xs, err := readScalars[T](data, 8)
	if err != nil {
		return err
	}
	h := Isometry[T]{
		A: gaussian.New(xs[0], xs[1]),
		B: gaussian.New(xs[2], xs[3]),
		C: gaussian.New(xs[4], xs[5]),
		D: gaussian.New(xs[6], xs[7]),
	}
	if h.Det().IsZero() {
		return errors.New("fuchsian: isometry with zero determinant")
	}
	*g = h
	return nil
}

// ParseIsometry decodes the output of Isometry.MarshalBinary.
func ParseIsometry[T euclid.Scalar[T]](data []byte) (Isometry[T], error) {
	var g Isometry[T]
	err := g.UnmarshalBinary(data)
	return g, err
}
