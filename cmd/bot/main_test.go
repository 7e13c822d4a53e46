package main

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"hypervoxel.ai/internal/protocol"
)

func TestWalkerEmitsValidMoves(t *testing.T) {
	wk := newWalker(rand.New(rand.NewSource(1)), 0.1)
	moves := 0
	for tick := uint64(0); tick < 32; tick++ {
		mv, ok := wk.next(&protocol.ObsMsg{Tick: tick})
		if tick%8 == 7 {
			if ok {
				t.Fatalf("tick %d: expected a rest", tick)
			}
			continue
		}
		if !ok {
			t.Fatalf("tick %d: no move", tick)
		}
		moves++
		if d := math.Hypot(mv.DX, mv.DY); math.Abs(d-0.1) > 1e-12 {
			t.Fatalf("tick %d: step length %v want 0.1", tick, d)
		}
		b, err := json.Marshal(mv)
		if err != nil {
			t.Fatal(err)
		}
		if err := protocol.Validate(protocol.TypeMove, b); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	if moves != 28 {
		t.Fatalf("moves=%d want 28", moves)
	}
}
