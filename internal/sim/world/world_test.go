package world

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/protocol"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
)

type memTickLogger struct {
	entries []TickLogEntry
}

func (l *memTickLogger) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func testConfig() WorldConfig {
	return WorldConfig{
		ID:               "TEST",
		TickRateHz:       5,
		Seed:             7,
		GridSubdivisions: 8,
		MaxStep:          0.25,
		ObsRadius:        1,
		SpawnClearRadius: 2,
		StonePermille:    150,
		OrePermille:      20,
		PillarPermille:   300,
	}
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(testConfig())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func joinOne(t *testing.T, w *World, name string) (string, chan []byte) {
	t.Helper()
	out := make(chan []byte, 4)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Welcome.AgentID == "" {
		t.Fatalf("join returned no agent id")
	}
	return r.Welcome.AgentID, out
}

func lastObs(t *testing.T, out chan []byte) protocol.ObsMsg {
	t.Helper()
	var b []byte
	for {
		select {
		case b = <-out:
			continue
		default:
		}
		break
	}
	if b == nil {
		t.Fatalf("no OBS sent")
	}
	var obs protocol.ObsMsg
	if err := json.Unmarshal(b, &obs); err != nil {
		t.Fatalf("decode obs: %v", err)
	}
	if err := protocol.Validate(protocol.TypeObs, b); err != nil {
		t.Fatalf("obs fails schema: %v", err)
	}
	return obs
}

func move(id string, dx, dy float64) ActionEnvelope {
	return ActionEnvelope{AgentID: id, Move: protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, DX: dx, DY: dy}}
}

func TestJoinSendsWelcomeAndObs(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 4)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "bot", Out: out, Resp: resp}}, nil, nil)

	welcome := (<-resp).Welcome
	if welcome.AgentID != "A1" || welcome.WorldParams.GridSubdivisions != 8 || welcome.WorldParams.Seed != 7 {
		t.Fatalf("unexpected welcome: %+v", welcome)
	}
	b, _ := json.Marshal(welcome)
	if err := protocol.Validate(protocol.TypeWelcome, b); err != nil {
		t.Fatalf("welcome fails schema: %v", err)
	}

	obs := lastObs(t, out)
	if obs.Tick != 0 || obs.AgentID != "A1" {
		t.Fatalf("unexpected obs header: %+v", obs)
	}
	if obs.Tile.Key != welcome.Tile.Key {
		t.Fatalf("obs tile %s, welcome tile %s", obs.Tile.Key, welcome.Tile.Key)
	}
	if len(obs.Neighbours) != lattice.NeighbourCount {
		t.Fatalf("expected %d neighbours, got %d", lattice.NeighbourCount, len(obs.Neighbours))
	}
	if len(obs.Nearby) != lattice.NeighbourCount+1 {
		t.Fatalf("expected %d nearby tiles, got %d", lattice.NeighbourCount+1, len(obs.Nearby))
	}
	if obs.Cell != [2]int{4, 4} || obs.Block != "FLOOR" {
		t.Fatalf("spawn cell %v block %s", obs.Cell, obs.Block)
	}
	if got := w.Metrics().LoadedChunks; got != lattice.NeighbourCount+1 {
		t.Fatalf("expected %d loaded chunks, got %d", lattice.NeighbourCount+1, got)
	}
}

func TestMoveCrossesIntoNeighbour(t *testing.T) {
	w := newTestWorld(t)
	logger := &memTickLogger{}
	w.SetTickLogger(logger)
	id, out := joinOne(t, w, "walker")

	for i := 0; i < 7; i++ {
		w.StepOnce(nil, nil, []ActionEnvelope{move(id, 0.1, 0)})
	}

	a := w.agents[id]
	if a.Crossings != 1 {
		t.Fatalf("expected 1 crossing, got %d", a.Crossings)
	}
	want := lattice.Generator[euclid.Big](lattice.Right).Position()
	if !a.tracker.Position().Equal(want) {
		t.Fatalf("agent at %s, want %s", a.tracker.Position(), want)
	}

	var crossing *RecordedCrossing
	for i := range logger.entries {
		for j := range logger.entries[i].Crossings {
			crossing = &logger.entries[i].Crossings[j]
		}
	}
	if crossing == nil || crossing.Neighbour != lattice.Right || crossing.To != want.Hex() {
		t.Fatalf("crossing not logged: %+v", crossing)
	}

	obs := lastObs(t, out)
	if obs.Tile.Key != want.Hex() {
		t.Fatalf("obs tile %s, want %s", obs.Tile.Key, want.Hex())
	}
	// Walking one tile moved the observation ring, so new tiles exist now.
	if got := w.Metrics().LoadedChunks; got <= lattice.NeighbourCount+1 {
		t.Fatalf("expected more chunks after crossing, got %d", got)
	}
}

func TestMoveRateLimit(t *testing.T) {
	w := newTestWorld(t)
	id, out := joinOne(t, w, "spammer")

	acts := make([]ActionEnvelope, 0, 6)
	for i := 0; i < 6; i++ {
		acts = append(acts, move(id, 0.01, 0))
	}
	logger := &memTickLogger{}
	w.SetTickLogger(logger)
	w.StepOnce(nil, nil, acts)

	if got := len(logger.entries[0].Moves); got != w.cfg.MovesPerTick {
		t.Fatalf("expected %d applied moves, got %d", w.cfg.MovesPerTick, got)
	}
	obs := lastObs(t, out)
	limited := 0
	for _, e := range obs.Events {
		if e["code"] == protocol.ErrRateLimit {
			limited++
		}
	}
	if limited != 2 {
		t.Fatalf("expected 2 rate-limit events, got %d (%v)", limited, obs.Events)
	}
}

func TestLeaveKeepsAgent(t *testing.T) {
	w := newTestWorld(t)
	id, _ := joinOne(t, w, "bot")
	logger := &memTickLogger{}
	w.SetTickLogger(logger)
	w.StepOnce(nil, []string{id, "A99"}, nil)

	if len(logger.entries[0].Leaves) != 1 || logger.entries[0].Leaves[0] != id {
		t.Fatalf("unexpected leaves: %v", logger.entries[0].Leaves)
	}
	if _, ok := w.clients[id]; ok {
		t.Fatalf("client still attached")
	}
	if _, ok := w.agents[id]; !ok {
		t.Fatalf("agent removed on leave")
	}
}

func TestDeterministicDigest(t *testing.T) {
	run := func() []string {
		w := newTestWorld(t)
		var digests []string
		_, d := w.StepOnce([]JoinRequest{{Name: "a"}, {Name: "b"}}, nil, nil)
		digests = append(digests, d)
		for i := 0; i < 20; i++ {
			_, d := w.StepOnce(nil, nil, []ActionEnvelope{
				move("A1", 0.12, 0.03*float64(i%3)),
				move("A2", -0.05, 0.11),
			})
			digests = append(digests, d)
		}
		return digests
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("digest diverged at tick %d", i)
		}
	}
	if a[0] == a[len(a)-1] {
		t.Fatalf("digest did not change while agents moved")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	w.StepOnce([]JoinRequest{{Name: "a"}, {Name: "b"}}, nil, nil)
	for i := 0; i < 10; i++ {
		w.StepOnce(nil, nil, []ActionEnvelope{move("A1", 0.2, 0.05), move("A2", 0, -0.2)})
	}
	tick := w.CurrentTick() - 1
	snap := w.ExportSnapshot(tick)

	w2 := newTestWorld(t)
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != tick+1 {
		t.Fatalf("tick after import: got %d want %d", w2.CurrentTick(), tick+1)
	}
	if got, want := w2.stateDigest(tick), w.stateDigest(tick); got != want {
		t.Fatalf("digest mismatch after import: %s vs %s", got, want)
	}

	// Both worlds keep evolving identically.
	acts := []ActionEnvelope{move("A1", 0.1, 0.1)}
	_, d1 := w.StepOnce([]JoinRequest{{Name: "c"}}, nil, acts)
	_, d2 := w2.StepOnce([]JoinRequest{{Name: "c"}}, nil, acts)
	if d1 != d2 {
		t.Fatalf("worlds diverged after import")
	}
	if _, ok := w2.agents["A3"]; !ok {
		t.Fatalf("agent counter not restored")
	}
}

func TestImportRejectsMismatch(t *testing.T) {
	w := newTestWorld(t)
	snap := w.ExportSnapshot(0)

	cfg := testConfig()
	cfg.Seed = 8
	other, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected seed mismatch error")
	}

	bad := snap
	bad.Header.Version = 9
	if err := newTestWorld(t).ImportSnapshot(bad); err == nil {
		t.Fatalf("expected version error")
	}

	bad = w.ExportSnapshot(0)
	bad.Agents = append(bad.Agents, bad.Agents...)
	bad.Chunks[0].Blocks = bad.Chunks[0].Blocks[:3]
	if err := newTestWorld(t).ImportSnapshot(bad); err == nil {
		t.Fatalf("expected chunk shape error")
	}
}

func TestFailedImportKeepsWorld(t *testing.T) {
	src := newTestWorld(t)
	src.StepOnce([]JoinRequest{{Name: "a"}}, nil, nil)
	snap := src.ExportSnapshot(src.CurrentTick() - 1)
	snap.MaxStep = 0.5
	snap.SnapshotEveryTicks = 99
	snap.StonePermille = 1
	// A zero offset is not a disk automorphism, so the agent restore fails.
	snap.Agents[0].Local = [4]float64{}

	w := newTestWorld(t)
	before := w.Config()
	chunks, tick := w.chunks, w.CurrentTick()
	if err := w.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected agent restore error")
	}
	if got := w.Config(); got != before {
		t.Fatalf("config changed by failed import: got %+v want %+v", got, before)
	}
	if w.chunks != chunks || len(w.agents) != 0 || w.CurrentTick() != tick {
		t.Fatalf("state changed by failed import: agents=%d tick=%d", len(w.agents), w.CurrentTick())
	}

	snap.Agents = nil
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := w.Config(); got.MaxStep != 0.5 || got.SnapshotEveryTicks != 99 || got.StonePermille != 1 {
		t.Fatalf("config not taken from snapshot: %+v", got)
	}
}

func TestSnapshotSinkCadence(t *testing.T) {
	cfg := testConfig()
	cfg.SnapshotEveryTicks = 3
	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sink := make(chan snapshot.SnapshotV1, 4)
	w.SetSnapshotSink(sink)
	for i := 0; i < 7; i++ {
		w.StepOnce(nil, nil, nil)
	}
	var ticks []uint64
	for len(sink) > 0 {
		ticks = append(ticks, (<-sink).Header.Tick)
	}
	if len(ticks) != 2 || ticks[0] != 3 || ticks[1] != 6 {
		t.Fatalf("unexpected snapshot ticks %v", ticks)
	}
}

func TestRunLoop(t *testing.T) {
	cfg := testConfig()
	cfg.TickRateHz = 50
	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	out := make(chan []byte, 4)
	resp := make(chan JoinResponse, 1)
	w.Join() <- JoinRequest{Name: "bot", Out: out, Resp: resp}
	select {
	case r := <-resp:
		if r.Welcome.AgentID != "A1" {
			t.Fatalf("unexpected welcome %+v", r.Welcome)
		}
	case <-ctx.Done():
		t.Fatalf("no welcome")
	}
	select {
	case <-out:
	case <-ctx.Done():
		t.Fatalf("no obs")
	}

	tick, err := w.RequestSnapshot(ctx)
	if err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	if snap := <-sink; snap.Header.Tick != tick || len(snap.Agents) != 1 {
		t.Fatalf("unexpected snapshot tick=%d agents=%d (want tick %d)", snap.Header.Tick, len(snap.Agents), tick)
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}
