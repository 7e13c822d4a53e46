package runtime

import (
	"math"
	"math/cmplx"
	"testing"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
	"hypervoxel.ai/internal/sim/world/logic/mobius"
)

func walk(tr *Tracker[euclid.Big], dx, dy float64, n int) []StepResult {
	var crossed []StepResult
	for i := 0; i < n; i++ {
		if r := tr.Step(dx, dy); r.Crossed {
			crossed = append(crossed, r)
		}
	}
	return crossed
}

func TestCrossRightEdge(t *testing.T) {
	tr := NewTracker[euclid.Big](lattice.Default(), 0.25)
	start := tr.Position().Hex()

	crossed := walk(tr, 0.1, 0, 7)
	if len(crossed) != 1 {
		t.Fatalf("expected one crossing, got %d", len(crossed))
	}
	r := crossed[0]
	if r.Neighbour != lattice.Right {
		t.Fatalf("crossed into neighbour %d, want %d", r.Neighbour, lattice.Right)
	}
	if r.From != start || r.To != tr.Position().Hex() {
		t.Fatalf("crossing keys %s -> %s, tracker at %s", r.From, r.To, tr.Position().Hex())
	}
	want := lattice.Generator[euclid.Big](lattice.Right).Position()
	if !tr.Position().Equal(want) {
		t.Fatalf("position after crossing: got %s want %s", tr.Position(), want)
	}

	// 0.7 walked, so the walker sits 2d-0.7 left of the new centre.
	wantLocal := -math.Tanh((2*lattice.EdgeDistance - 0.7) / 2)
	if got := tr.Point(); cmplx.Abs(got-complex(wantLocal, 0)) > 1e-9 {
		t.Fatalf("local point after crossing: got %v want %v", got, wantLocal)
	}
	global := tr.Global().Apply(0)
	if cmplx.Abs(global-complex(math.Tanh(0.35), 0)) > 1e-9 {
		t.Fatalf("global point: got %v want %v", global, math.Tanh(0.35))
	}
	if i, _ := tr.Cell(); i >= lattice.Default().N/2 {
		t.Fatalf("cell column %d should be on the left half", i)
	}
}

func TestWalkBackReturnsToOrigin(t *testing.T) {
	tr := NewTracker[euclid.Big](lattice.Default(), 0.25)
	walk(tr, 0.1, 0, 7)
	crossed := walk(tr, -0.1, 0, 7)
	if len(crossed) != 1 || crossed[0].Neighbour != lattice.Left {
		t.Fatalf("expected one crossing to the left, got %+v", crossed)
	}
	if !tr.Position().IsOrigin() {
		t.Fatalf("walker did not return to the origin tile: %s", tr.Position())
	}
	if got := tr.Point(); cmplx.Abs(got) > 1e-9 {
		t.Fatalf("walker should be back at the centre, got %v", got)
	}
}

func TestCrossUpEdge(t *testing.T) {
	tr := NewTracker[euclid.Big](lattice.Default(), 0.25)
	crossed := walk(tr, 0, 0.2, 4)
	if len(crossed) != 1 || crossed[0].Neighbour != lattice.Up {
		t.Fatalf("expected one crossing up, got %+v", crossed)
	}
	want := lattice.Generator[euclid.Big](lattice.Up).Position()
	if !tr.Position().Equal(want) {
		t.Fatalf("position after crossing: got %s want %s", tr.Position(), want)
	}
}

func TestStepIsClamped(t *testing.T) {
	tr := NewTracker[euclid.Big](lattice.Default(), 0.25)
	tr.Step(5, 0)
	if d := mobius.Distance(0, tr.Point()); math.Abs(d-0.25) > 1e-9 {
		t.Fatalf("clamped step moved %v, want 0.25", d)
	}
	before := tr.Point()
	if r := tr.Step(0, 0); r.Crossed || tr.Point() != before {
		t.Fatalf("zero step moved the walker")
	}
}

func TestLongWalkStaysInsideAnchor(t *testing.T) {
	tr := NewTracker[euclid.Big](lattice.Default(), 0.25)
	crossings := 0
	for i := 0; i < 400; i++ {
		a := float64(i) * 0.37
		r := tr.Step(0.2*math.Cos(a), 0.2*math.Sin(a))
		if r.Crossed {
			crossings++
		}
		if !r.Lost && !insideOrBorder(tr.Point()) {
			t.Fatalf("step %d: walker at %v outside its anchor tile", i, tr.Point())
		}
	}
	if crossings == 0 {
		t.Fatalf("expected the walk to cross at least one edge")
	}
	if !tr.Anchor().Position().Equal(tr.Position()) {
		t.Fatalf("anchor and position disagree")
	}
}

func insideOrBorder(p complex128) bool {
	k := lattice.DiskToKlein(p)
	lim := lattice.EdgeKlein * 1.01
	return math.Abs(real(k)) <= lim && math.Abs(imag(k)) <= lim
}

func TestRestore(t *testing.T) {
	tr := NewTracker[euclid.Big](lattice.Default(), 0.25)
	walk(tr, 0.1, 0.05, 9)

	back, err := Restore(lattice.Default(), 0.25, tr.Anchor(), tr.Local())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !back.Position().Equal(tr.Position()) || cmplx.Abs(back.Point()-tr.Point()) > 1e-12 {
		t.Fatalf("restored walker differs")
	}
	if _, err := Restore(lattice.Default(), 0.25, tr.Anchor(), mobius.Disk{A: 1, B: 2}); err == nil {
		t.Fatalf("expected error for degenerate local offset")
	}
}
