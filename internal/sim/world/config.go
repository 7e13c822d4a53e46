package world

import (
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world/terrain/store"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	GridSubdivisions int
	MaxStep          float64
	ObsRadius        int

	// MovesPerTick caps the MOVE actions applied per agent per tick.
	MovesPerTick int

	// Operational parameters. These are included in snapshots for resume.
	SnapshotEveryTicks int

	// Worldgen tuning.
	SpawnClearRadius int
	StonePermille    int
	OrePermille      int
	PillarPermille   int
}

func (c *WorldConfig) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "HYPER"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.GridSubdivisions <= 0 {
		c.GridSubdivisions = d.GridSubdivisions
	}
	if c.MaxStep <= 0 {
		c.MaxStep = d.MaxStep
	}
	if c.ObsRadius < 0 {
		c.ObsRadius = 0
	}
	if c.MovesPerTick <= 0 {
		c.MovesPerTick = 4
	}
}

// ConfigFromTuning builds a world config from loaded tuning.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		Seed:               t.Seed,
		GridSubdivisions:   t.GridSubdivisions,
		MaxStep:            t.MaxStep,
		ObsRadius:          t.ObsRadius,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		SpawnClearRadius:   t.WorldGen.SpawnClearRadius,
		StonePermille:      t.WorldGen.StonePermille,
		OrePermille:        t.WorldGen.OrePermille,
		PillarPermille:     t.WorldGen.PillarPermille,
	}
}

func (c WorldConfig) worldGen() store.WorldGen {
	return store.WorldGen{
		Seed:             c.Seed,
		N:                c.GridSubdivisions,
		SpawnClearRadius: c.SpawnClearRadius,
		StonePermille:    c.StonePermille,
		OrePermille:      c.OrePermille,
		PillarPermille:   c.PillarPermille,
	}
}
