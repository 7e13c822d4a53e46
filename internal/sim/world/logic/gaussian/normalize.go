package gaussian

import "hypervoxel.ai/internal/sim/world/logic/euclid"

// canonical reports Re > 0 and Im >= 0.
func (x Int[T]) canonical() bool {
	return !x.Re.IsZero() && !x.Re.IsNegative() && !x.Im.IsNegative()
}

// Normalize multiplies x by the unit that puts it in the canonical quadrant
// (Re > 0, Im >= 0) and rotates every sibling by the same unit in place, so
// ratios between x and its siblings are preserved. Exactly one unit qualifies
// for a nonzero x. Zero is returned unchanged and siblings are left alone.
func Normalize[T euclid.Scalar[T]](x Int[T], siblings []Int[T]) Int[T] {
	if x.IsZero() {
		return x
	}
	for k := 0; k < 4 && !x.canonical(); k++ {
		x = x.MulI()
		for i := range siblings {
			siblings[i] = siblings[i].MulI()
		}
	}
	return x
}

// Canonical is Normalize without siblings.
func Canonical[T euclid.Scalar[T]](x Int[T]) Int[T] {
	return Normalize(x, nil)
}
