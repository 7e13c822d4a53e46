package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})
	s.RecordSnapshotState(snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.DropSnapshotStateTotal != 1 {
		t.Fatalf("DropSnapshotStateTotal=%d want=1", st.DropSnapshotStateTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WriteAndRead(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("tuning: %v", err)
	}

	origin := fuchsian.Origin[euclid.Big]().Hex()
	right := lattice.Generator[euclid.Big](lattice.Right)
	rightKey := right.Position().Hex()
	anchor, err := right.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	_ = idx.WriteTick(world.TickLogEntry{
		Tick:      1,
		Joins:     []world.RecordedJoin{{AgentID: "A1", Name: "alice"}},
		NewChunks: []string{origin},
		Digest:    "d1",
	})
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:      2,
		Moves:     []world.RecordedMove{{AgentID: "A1", DX: 0.5}},
		Crossings: []world.RecordedCrossing{{AgentID: "A1", From: origin, To: rightKey, Neighbour: lattice.Right}},
		NewChunks: []string{rightKey, "not-hex"},
		Digest:    "d2",
	})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 3, Leaves: []string{"A1"}, Digest: "d3"})

	snap := snapshot.SnapshotV1{
		Header:           snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 3},
		Seed:             7,
		GridSubdivisions: 16,
		Chunks:           []snapshot.ChunkV1{{Key: origin}, {Key: rightKey}},
		Agents:           []snapshot.AgentV1{{ID: "A1", Name: "alice", Anchor: anchor, Local: [4]float64{1, 0, 0, 0}, Crossings: 1}},
	}
	idx.RecordSnapshot("/tmp/3.snap.zst", snap)
	idx.RecordSnapshotState(snap)

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	// Closed indexes ignore writes.
	_ = idx.WriteTick(world.TickLogEntry{Tick: 4})

	r, err := OpenReader(dbPath)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	if n, err := r.TickCount(ctx); err != nil || n != 3 {
		t.Fatalf("ticks=%d err=%v want 3", n, err)
	}
	if n, err := r.ChunkCount(ctx); err != nil || n != 2 {
		t.Fatalf("chunks=%d err=%v want 2", n, err)
	}
	c, ok, err := r.Chunk(ctx, rightKey)
	if err != nil || !ok {
		t.Fatalf("chunk lookup ok=%v err=%v", ok, err)
	}
	p := right.Position()
	if c.FirstTick != 2 || c.BRe != p.B.Re.String() || c.DIm != p.D.Im.String() {
		t.Fatalf("chunk row mismatch: %+v", c)
	}

	cs, err := r.Crossings(ctx, "A1")
	if err != nil {
		t.Fatalf("crossings: %v", err)
	}
	if len(cs) != 1 || cs[0].Tick != 2 || cs[0].From != origin || cs[0].To != rightKey || cs[0].Neighbour != lattice.Right {
		t.Fatalf("crossings mismatch: %+v", cs)
	}
	if cs, err := r.Crossings(ctx, "A9"); err != nil || len(cs) != 0 {
		t.Fatalf("unknown agent crossings=%v err=%v", cs, err)
	}

	s, ok, err := r.LatestSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("latest snapshot ok=%v err=%v", ok, err)
	}
	if s.Tick != 3 || s.Path != "/tmp/3.snap.zst" || s.Seed != 7 || s.Grid != 16 || s.Chunks != 2 || s.Agents != 1 {
		t.Fatalf("snapshot row mismatch: %+v", s)
	}

	key, tick, ok, err := r.AgentTile(ctx, "A1")
	if err != nil || !ok || key != rightKey || tick != 3 {
		t.Fatalf("agent tile=%q tick=%d ok=%v err=%v", key, tick, ok, err)
	}

	if v, ok, err := r.Meta(ctx, "tuning_digest"); err != nil || !ok || len(v) != 64 {
		t.Fatalf("tuning digest=%q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteIndex_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := OpenReader(""); err == nil {
		t.Fatalf("expected error")
	}
}
