// Package runtime moves a walker across the tessellation. The walker's tile
// is held exactly; its offset inside the tile is a floating disk map that
// is rebased whenever the walker crosses into a neighbour.
package runtime

import (
	"errors"
	"math"

	"hypervoxel.ai/internal/sim/world/feature/movement"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
	"hypervoxel.ai/internal/sim/world/logic/locate"
	"hypervoxel.ai/internal/sim/world/logic/mobius"
)

type StepResult struct {
	// Crossed is set when the walker moved into a neighbour tile.
	Crossed   bool
	Neighbour int
	From, To  string
	// Lost is set when the walker left the tile but no neighbour claimed
	// it. The anchor is unchanged and the next step tries again.
	Lost bool
	// Rederived is set when drift broke the local map and it was rebuilt
	// from the last good point.
	Rederived bool
}

type Tracker[T euclid.Scalar[T]] struct {
	lat     *lattice.Lattice
	maxStep float64
	steps   [lattice.NeighbourCount]fuchsian.Isometry[T]

	anchor fuchsian.Isometry[T]
	pos    fuchsian.Position[T]
	local  mobius.Disk
	last   complex128
}

// NewTracker starts a walker at the centre of the origin tile.
func NewTracker[T euclid.Scalar[T]](l *lattice.Lattice, maxStep float64) *Tracker[T] {
	return &Tracker[T]{
		lat:     l,
		maxStep: maxStep,
		steps:   lattice.Neighbours[T](),
		anchor:  fuchsian.Identity[T](),
		pos:     fuchsian.Origin[T](),
		local:   mobius.Identity(),
	}
}

// Restore rebuilds a walker from a saved anchor and local offset. The
// offset is kept bit for bit so that a restored walker replays identically.
func Restore[T euclid.Scalar[T]](l *lattice.Lattice, maxStep float64, anchor fuchsian.Isometry[T], local mobius.Disk) (*Tracker[T], error) {
	if _, ok := local.Normalize(); !ok {
		return nil, errors.New("movement: local offset is not a disk automorphism")
	}
	tr := NewTracker[T](l, maxStep)
	tr.anchor = anchor.Simplify()
	tr.pos = tr.anchor.Position()
	tr.local = local
	tr.last = local.Apply(0)
	return tr, nil
}

// Step moves the walker by (dx, dy) in its own frame, clamped to maxStep.
func (tr *Tracker[T]) Step(dx, dy float64) StepResult {
	var res StepResult
	dir, d := movement.ClampStep(dx, dy, tr.maxStep)
	if d == 0 {
		return res
	}
	step := mobius.Translation(dir * complex(math.Tanh(d/2), 0))
	next, ok := tr.local.Compose(step).Normalize()
	if !ok {
		next = mobius.Translation(tr.last)
		res.Rederived = true
	}
	tr.local = next

	p := tr.local.Apply(0)
	if locate.IsInsideOfDomain(tr.lat, p) {
		tr.last = p
		return res
	}
	k, ok := locate.MatchNeighbour(tr.lat, p)
	if !ok {
		res.Lost = true
		return res
	}

	res.From = tr.pos.Hex()
	tr.anchor = tr.anchor.Compose(tr.steps[k]).Simplify()
	tr.pos = tr.anchor.Position()
	rebased, ok := tr.lat.NeighboursInverse[k].Compose(tr.local).Normalize()
	if !ok {
		rebased = mobius.Translation(tr.lat.NeighboursInverse[k].Apply(p))
		res.Rederived = true
	}
	tr.local = rebased
	tr.last = rebased.Apply(0)

	res.Crossed = true
	res.Neighbour = k
	res.To = tr.pos.Hex()
	return res
}

// Point is the walker's location in the anchor tile's disk frame.
func (tr *Tracker[T]) Point() complex128 { return tr.local.Apply(0) }

// Cell is the grid cell of the anchor tile under the walker.
func (tr *Tracker[T]) Cell() (i, j int) { return locate.Round(tr.lat, tr.Point()) }

func (tr *Tracker[T]) Anchor() fuchsian.Isometry[T]   { return tr.anchor }
func (tr *Tracker[T]) Position() fuchsian.Position[T] { return tr.pos }
func (tr *Tracker[T]) Local() mobius.Disk             { return tr.local }

// Global is the walker's frame relative to the origin tile: the anchor's
// floating realisation followed by the local offset.
func (tr *Tracker[T]) Global() mobius.Matrix {
	return tr.anchor.ToFloating().Compose(tr.local.Matrix())
}
