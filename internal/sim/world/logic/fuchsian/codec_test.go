package fuchsian_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/gaussian"
)

func TestIsometryBinaryRoundTrip(t *testing.T) {
	// Unsimplified, so entries run well past eight bytes.
	g := path[euclid.Big](t, strings.Repeat("U", 40)+"LDRRD", false)
	require.Greater(t, g.Size(), 8)

	b, err := g.MarshalBinary()
	require.NoError(t, err)
	back, err := fuchsian.ParseIsometry[euclid.Big](b)
	require.NoError(t, err)
	require.True(t, back.Equal(g))

	small := path[euclid.Int](t, "LDR", true)
	b, err = small.MarshalBinary()
	require.NoError(t, err)
	backSmall, err := fuchsian.ParseIsometry[euclid.Int](b)
	require.NoError(t, err)
	require.True(t, backSmall.Equal(small))

	// Both backends write the same bytes.
	wide, err := fuchsian.Convert[euclid.Big](small).MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, b, wide)
}

func TestPositionBinaryRoundTrip(t *testing.T) {
	for _, w := range words {
		p := path[euclid.Big](t, w, true).Position()
		back, err := fuchsian.ParsePositionHex[euclid.Big](p.Hex())
		require.NoError(t, err, w)
		require.True(t, back.Equal(p), w)
		require.Equal(t, p.Key(), back.Key(), w)
	}

	// 5+i = (1+i)(3-2i) shares no factor with -300+7i, so this pair is reduced.
	neg := fuchsian.Position[euclid.Int]{B: gaussian.Of[euclid.Int](-300, 7), D: gaussian.Of[euclid.Int](5, 1)}
	require.True(t, neg.Equal(fuchsian.Isometry[euclid.Int]{B: neg.B, D: neg.D}.Position()))
	b, err := neg.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, byte(0b0001), b[0])
	back, err := fuchsian.ParsePosition[euclid.Int](b)
	require.NoError(t, err)
	require.True(t, back.Equal(neg))
}

func TestBinaryRejectsBadInput(t *testing.T) {
	b, err := path[euclid.Int](t, "RU", false).MarshalBinary()
	require.NoError(t, err)
	for n := 0; n < len(b); n++ {
		_, err := fuchsian.ParseIsometry[euclid.Int](b[:n])
		require.True(t, errors.Is(err, fuchsian.ErrShortBuffer), "prefix %d: %v", n, err)
	}
	_, err = fuchsian.ParseIsometry[euclid.Int](append(b, 0))
	require.Error(t, err)

	two := gaussian.Of[euclid.Int](2, 0)
	flat := fuchsian.Isometry[euclid.Int]{A: two, B: two, C: two, D: two}
	b, err = flat.MarshalBinary()
	require.NoError(t, err)
	_, err = fuchsian.ParseIsometry[euclid.Int](b)
	require.Error(t, err)

	b, err = fuchsian.Position[euclid.Int]{B: two, D: gaussian.Zero[euclid.Int]()}.MarshalBinary()
	require.NoError(t, err)
	_, err = fuchsian.ParsePosition[euclid.Int](b)
	require.Error(t, err)

	_, err = fuchsian.ParsePositionHex[euclid.Int]("zz")
	require.Error(t, err)
}

func TestPositionRejectsNonCanonicalBytes(t *testing.T) {
	origin, err := fuchsian.Origin[euclid.Int]().MarshalBinary()
	require.NoError(t, err)
	// flags, then (len, bytes) for B.Re, B.Im, D.Re, D.Im.
	require.Equal(t, []byte{0, 0, 0, 1, 1, 0}, origin)

	cases := map[string][]byte{
		"negative zero":    {0b0001, 0, 0, 1, 1, 0},
		"stray flag":       {0b10000, 0, 0, 1, 1, 0},
		"leading zero":     {0, 0, 0, 2, 0, 1, 0},
		"zero-padded to 9": {0, 0, 0, 9, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0},
		"origin scaled":    {0, 0, 0, 1, 2, 0},
		"origin rotated":   {0b1000, 0, 0, 0, 1, 1},
	}
	for name, b := range cases {
		_, err := fuchsian.ParsePosition[euclid.Int](b)
		require.ErrorIs(t, err, fuchsian.ErrNonCanonical, name)
		_, err = fuchsian.ParsePosition[euclid.Big](b)
		require.ErrorIs(t, err, fuchsian.ErrNonCanonical, name)
	}

	p := path[euclid.Int](t, "RU", true).Position()
	for name, q := range map[string]fuchsian.Position[euclid.Int]{
		"rotated":      {B: p.B.MulI(), D: p.D.MulI()},
		"negated":      {B: p.B.Neg(), D: p.D.Neg()},
		"doubled":      {B: p.B.Double(), D: p.D.Double()},
		"times 1+i":    {B: p.B.MulOmega(), D: p.D.MulOmega()},
		"times 1 (ok)": p,
	} {
		b, err := q.MarshalBinary()
		require.NoError(t, err)
		_, err = fuchsian.ParsePosition[euclid.Int](b)
		if q.Equal(p) {
			require.NoError(t, err, name)
			continue
		}
		require.ErrorIs(t, err, fuchsian.ErrNonCanonical, name)
	}

	b, err := p.MarshalBinary()
	require.NoError(t, err)
	back, err := fuchsian.ParsePosition[euclid.Int](b)
	require.NoError(t, err)
	require.True(t, back.Equal(p))
}
