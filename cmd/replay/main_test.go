package main

import (
	"strings"
	"testing"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/protocol"
	"hypervoxel.ai/internal/sim/world"
)

type memTickLogger struct {
	entries []world.TickLogEntry
}

func (l *memTickLogger) WriteTick(e world.TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func testConfig() world.WorldConfig {
	return world.WorldConfig{ID: "R", Seed: 11, GridSubdivisions: 8, MaxStep: 0.25, ObsRadius: 1}
}

func move(id string, dx, dy float64) world.ActionEnvelope {
	return world.ActionEnvelope{AgentID: id, Move: protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, DX: dx, DY: dy}}
}

// record runs a short session with two agents walking out of the origin
// tile, snapshotting at tick 5.
func record(t *testing.T) ([]world.TickLogEntry, snapshot.SnapshotV1) {
	t.Helper()
	w, err := world.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	logger := &memTickLogger{}
	w.SetTickLogger(logger)

	var snap snapshot.SnapshotV1
	w.StepOnce([]world.JoinRequest{{Name: "a"}, {Name: "b"}}, nil, nil)
	for i := 0; i < 12; i++ {
		w.StepOnce(nil, nil, []world.ActionEnvelope{move("A1", 0.2, 0), move("A2", -0.05, 0.2)})
		if w.CurrentTick() == 6 {
			snap = w.ExportSnapshot(5)
		}
	}
	w.StepOnce(nil, []string{"A2"}, nil)
	return logger.entries, snap
}

func TestReplayFromFreshWorld(t *testing.T) {
	entries, _ := record(t)
	crossed := false
	for _, e := range entries {
		if len(e.Crossings) > 0 {
			crossed = true
		}
	}
	if !crossed {
		t.Fatalf("recorded session never crossed a tile edge")
	}

	w, err := world.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	checked, err := replay(w, entries, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != uint64(len(entries)) {
		t.Fatalf("checked=%d want %d", checked, len(entries))
	}
}

func TestReplayFromSnapshot(t *testing.T) {
	entries, snap := record(t)
	w, err := world.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	checked, err := replay(w, entries, 0, 9)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 4 {
		t.Fatalf("checked=%d want 4 (ticks 6..9)", checked)
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	entries, _ := record(t)
	entries[3].Digest = "bogus"
	w, err := world.New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	_, err = replay(w, entries, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 3") {
		t.Fatalf("err=%v want digest mismatch at tick 3", err)
	}

	other := testConfig()
	other.Seed++
	w, err = world.New(other)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := replay(w, entries[:2], 0, 0); err == nil {
		t.Fatalf("expected mismatch with a different seed")
	}
}
