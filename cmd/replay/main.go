package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "hypervoxel.ai/internal/persistence/log"
	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (optional; without it the replay starts a fresh world at tick 0)")
		worldDir   = flag.String("world_dir", "", "world data dir containing events/events-*.jsonl.zst")
		worldID    = flag.String("world", "world_1", "world id (fresh replays only)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning used by the recorded world (fresh replays only)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *worldDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -world_dir or -snapshot")
		os.Exit(2)
	}

	w, err := openWorld(*snapPath, *worldID, *tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *worldDir == "" {
		return
	}

	entries, err := persistlog.ReadTicks(*worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no events found in", filepath.Join(*worldDir, "events"))
		os.Exit(1)
	}

	startTick := w.CurrentTick()
	checked, err := replay(w, entries, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d) chunks=%d agents=%d\n",
		checked, startTick, w.Metrics().LoadedChunks, w.Metrics().Agents)
}

func openWorld(snapPath, worldID, tuningPath string) (*world.World, error) {
	if strings.TrimSpace(snapPath) == "" {
		tune, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		return world.New(world.ConfigFromTuning(worldID, tune))
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d grid=%d chunks=%d agents=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.GridSubdivisions,
		len(snap.Chunks), len(snap.Agents))

	w, err := world.New(world.WorldConfig{
		ID:               snap.Header.WorldID,
		TickRateHz:       snap.TickRate,
		Seed:             snap.Seed,
		GridSubdivisions: snap.GridSubdivisions,
		MaxStep:          snap.MaxStep,
		ObsRadius:        snap.ObsRadius,
	})
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}

// replay steps w through entries and compares every digest from verifyFrom
// on. Entries before the world's current tick are skipped.
func replay(w *world.World, entries []world.TickLogEntry, verifyFrom, toTick uint64) (checked uint64, err error) {
	startTick := w.CurrentTick()
	if verifyFrom == 0 {
		verifyFrom = startTick
	}
	for _, entry := range entries {
		if entry.Tick < startTick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return checked, nil
		}
		if entry.Tick != w.CurrentTick() {
			return checked, fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}

		joins := make([]world.JoinRequest, 0, len(entry.Joins))
		for _, j := range entry.Joins {
			joins = append(joins, world.JoinRequest{Name: j.Name})
		}
		moves := make([]world.ActionEnvelope, 0, len(entry.Moves))
		for _, m := range entry.Moves {
			env := world.ActionEnvelope{AgentID: m.AgentID}
			env.Move.DX, env.Move.DY = m.DX, m.DY
			moves = append(moves, env)
		}

		tick, gotDigest := w.StepOnce(joins, entry.Leaves, moves)

		// Sanity check: StepOnce should have stepped the same tick.
		if tick != entry.Tick {
			return checked, fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if tick >= verifyFrom {
			checked++
			if gotDigest != entry.Digest {
				return checked, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
	}
	return checked, nil
}
