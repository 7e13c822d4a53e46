package world

import (
	"fmt"

	"hypervoxel.ai/internal/persistence/snapshot"
	movementrt "hypervoxel.ai/internal/sim/world/feature/movement/runtime"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/ids"
	"hypervoxel.ai/internal/sim/world/logic/mobius"
	"hypervoxel.ai/internal/sim/world/terrain/store"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	// Snapshot must be called from the world loop goroutine.
	agents := make([]snapshot.AgentV1, 0, len(w.agents))
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		anchor, _ := a.tracker.Anchor().MarshalBinary()
		local := a.tracker.Local()
		agents = append(agents, snapshot.AgentV1{
			ID:        a.ID,
			Name:      a.Name,
			Anchor:    anchor,
			Local:     [4]float64{real(local.A), imag(local.A), real(local.B), imag(local.B)},
			Crossings: a.Crossings,
		})
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:               w.cfg.Seed,
		TickRate:           w.cfg.TickRateHz,
		GridSubdivisions:   w.cfg.GridSubdivisions,
		MaxStep:            w.cfg.MaxStep,
		ObsRadius:          w.cfg.ObsRadius,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		SpawnClearRadius:   w.cfg.SpawnClearRadius,
		StonePermille:      w.cfg.StonePermille,
		OrePermille:        w.cfg.OrePermille,
		PillarPermille:     w.cfg.PillarPermille,
		Chunks:             store.ExportLoadedChunks(w.chunks.Chunks, w.chunks.LoadedChunkKeys()),
		Agents:             agents,
		Counters:           snapshot.CountersV1{NextAgent: w.nextAgentNum.Load()},
	}
}

func (w *World) validateSnapshotImport(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Seed != s.Seed {
		return fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.GridSubdivisions != s.GridSubdivisions {
		return fmt.Errorf("snapshot grid_subdivisions mismatch: cfg=%d snap=%d", w.cfg.GridSubdivisions, s.GridSubdivisions)
	}
	if w.cfg.ObsRadius != s.ObsRadius {
		return fmt.Errorf("snapshot obs_radius mismatch: cfg=%d snap=%d", w.cfg.ObsRadius, s.ObsRadius)
	}
	return nil
}

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if err := w.validateSnapshotImport(s); err != nil {
		return err
	}

	// Operational and worldgen parameters: snapshot is authoritative when present.
	// Nothing on w changes until every chunk and agent has parsed.
	cfg := w.cfg
	if s.SnapshotEveryTicks > 0 {
		cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	if s.MaxStep > 0 {
		cfg.MaxStep = s.MaxStep
	}
	if s.SpawnClearRadius > 0 {
		cfg.SpawnClearRadius = s.SpawnClearRadius
	}
	if s.StonePermille > 0 {
		cfg.StonePermille = s.StonePermille
	}
	if s.OrePermille > 0 {
		cfg.OrePermille = s.OrePermille
	}
	if s.PillarPermille > 0 {
		cfg.PillarPermille = s.PillarPermille
	}

	chunks, err := store.ImportChunks(cfg.worldGen(), s.Chunks)
	if err != nil {
		return err
	}

	agents := make(map[string]*Agent, len(s.Agents))
	maxID := s.Counters.NextAgent
	for _, as := range s.Agents {
		anchor, err := fuchsian.ParseIsometry[euclid.Big](as.Anchor)
		if err != nil {
			return fmt.Errorf("snapshot agent %s anchor: %w", as.ID, err)
		}
		local := mobius.Disk{A: complex(as.Local[0], as.Local[1]), B: complex(as.Local[2], as.Local[3])}
		tr, err := movementrt.Restore(w.lat, cfg.MaxStep, anchor, local)
		if err != nil {
			return fmt.Errorf("snapshot agent %s: %w", as.ID, err)
		}
		if n, ok := ids.ParseAgentID(as.ID); ok && n > maxID {
			maxID = n
		}
		agents[as.ID] = &Agent{ID: as.ID, Name: as.Name, Crossings: as.Crossings, tracker: tr}
	}

	w.cfg = cfg
	w.chunks = chunks
	w.agents = agents
	w.clients = map[string]*clientState{}
	w.nextAgentNum.Store(maxID)
	w.tick.Store(s.Header.Tick + 1)
	w.metrics.Store(WorldMetrics{Tick: s.Header.Tick + 1, Agents: len(agents), LoadedChunks: len(chunks.Chunks)})
	return nil
}
