package fuchsian

import (
	"encoding/hex"
	"fmt"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/gaussian"
)

// Position is the canonical key of one tile: the image of the origin B/D,
// reduced to a primitive pair and rotated so that D lies in the canonical
// quadrant. Two isometries send the origin tile to the same tile exactly
// when their positions are equal.
type Position[T euclid.Scalar[T]] struct {
	B, D gaussian.Int[T]
}

// Origin is the position of the tile around the origin.
func Origin[T euclid.Scalar[T]]() Position[T] {
	return Position[T]{B: gaussian.Zero[T](), D: gaussian.One[T]()}
}

// Position extracts the canonical tile position of g. Right-multiplying g by
// a rotation about the origin, or scaling it, leaves the result unchanged.
func (g Isometry[T]) Position() Position[T] {
	if g.B.IsZero() {
		return Origin[T]()
	}
	h := gaussian.HCF(g.B, g.D)
	b, d := g.B.Div(h), g.D.Div(h)
	sib := []gaussian.Int[T]{b}
	d = gaussian.Normalize(d, sib)
	return Position[T]{B: sib[0], D: d}
}

func (p Position[T]) Equal(q Position[T]) bool {
	return p.B.Equal(q.B) && p.D.Equal(q.D)
}

func (p Position[T]) IsOrigin() bool {
	return p.B.IsZero()
}

// Center is the tile centre in the unit disk.
func (p Position[T]) Center() complex128 {
	return p.B.Float() / p.D.Float() / complex(Scale, 0)
}

// Key is the binary form as a string, usable as a map key for any backend.
func (p Position[T]) Key() string {
	b, _ := p.MarshalBinary()
	return string(b)
}

// Hex is the binary form in hex, the wire and log representation.
func (p Position[T]) Hex() string {
	b, _ := p.MarshalBinary()
	return hex.EncodeToString(b)
}

func (p Position[T]) String() string {
	return fmt.Sprintf("(%s : %s)", p.B, p.D)
}

// ParsePosition decodes the output of MarshalBinary.
func ParsePosition[T euclid.Scalar[T]](data []byte) (Position[T], error) {
	var p Position[T]
	err := p.UnmarshalBinary(data)
	return p, err
}

// ParsePositionHex decodes the output of Hex.
func ParsePositionHex[T euclid.Scalar[T]](s string) (Position[T], error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Position[T]{}, fmt.Errorf("position hex: %w", err)
	}
	return ParsePosition[T](b)
}

// ConvertPosition moves p to another backend.
func ConvertPosition[U euclid.Scalar[U], T euclid.Scalar[T]](p Position[T]) Position[U] {
	return Position[U]{B: gaussian.Convert[U](p.B), D: gaussian.Convert[U](p.D)}
}
